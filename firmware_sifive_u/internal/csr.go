// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

package platform

import (
	"github.com/usbarmory/GoTEE-firmware/internal/csr"
)

// defined in csr_riscv64.s
func wfi()
func read_sstatus() uint64
func write_sstatus(val uint64)
func read_stvec() uint64
func read_sepc() uint64
func write_sepc(val uint64)
func read_scause() uint64
func write_scause(val uint64)
func read_stval() uint64
func write_stval(val uint64)
func read_satp() uint64
func read_mstatus() uint64
func write_mstatus(val uint64)
func read_misa() uint64
func read_medeleg() uint64
func write_medeleg(val uint64)
func read_mideleg() uint64
func write_mideleg(val uint64)
func read_mie() uint64
func write_mie(val uint64)
func read_mtvec() uint64
func read_mscratch() uint64
func write_mscratch(val uint64)
func read_mepc() uint64
func read_mcause() uint64
func read_mtval() uint64
func read_mip() uint64
func write_mip(val uint64)
func read_pmpcfg0() uint64
func write_pmpcfg0(val uint64)
func read_pmpaddr0() uint64
func write_pmpaddr0(val uint64)
func read_pmpaddr1() uint64
func write_pmpaddr1(val uint64)
func read_pmpaddr2() uint64
func write_pmpaddr2(val uint64)
func read_pmpaddr3() uint64
func write_pmpaddr3(val uint64)
func read_pmpaddr4() uint64
func write_pmpaddr4(val uint64)
func read_pmpaddr5() uint64
func write_pmpaddr5(val uint64)
func read_pmpaddr6() uint64
func write_pmpaddr6(val uint64)
func read_pmpaddr7() uint64
func write_pmpaddr7(val uint64)
func read_mvendorid() uint64
func read_marchid() uint64
func read_mimpid() uint64
func read_mhartid() uint64

type accessor struct {
	read  func() uint64
	write func(val uint64)
}

var registers = map[uint16]accessor{
	csr.Sstatus:      {read_sstatus, write_sstatus},
	csr.Stvec:        {read_stvec, nil},
	csr.Sepc:         {read_sepc, write_sepc},
	csr.Scause:       {read_scause, write_scause},
	csr.Stval:        {read_stval, write_stval},
	csr.Satp:         {read_satp, nil},
	csr.Mstatus:      {read_mstatus, write_mstatus},
	csr.Misa:         {read_misa, nil},
	csr.Medeleg:      {read_medeleg, write_medeleg},
	csr.Mideleg:      {read_mideleg, write_mideleg},
	csr.Mie:          {read_mie, write_mie},
	csr.Mtvec:        {read_mtvec, nil},
	csr.Mscratch:     {read_mscratch, write_mscratch},
	csr.Mepc:         {read_mepc, nil},
	csr.Mcause:       {read_mcause, nil},
	csr.Mtval:        {read_mtval, nil},
	csr.Mip:          {read_mip, write_mip},
	csr.Pmpcfg0:      {read_pmpcfg0, write_pmpcfg0},
	csr.Pmpaddr0 + 0: {read_pmpaddr0, write_pmpaddr0},
	csr.Pmpaddr0 + 1: {read_pmpaddr1, write_pmpaddr1},
	csr.Pmpaddr0 + 2: {read_pmpaddr2, write_pmpaddr2},
	csr.Pmpaddr0 + 3: {read_pmpaddr3, write_pmpaddr3},
	csr.Pmpaddr0 + 4: {read_pmpaddr4, write_pmpaddr4},
	csr.Pmpaddr0 + 5: {read_pmpaddr5, write_pmpaddr5},
	csr.Pmpaddr0 + 6: {read_pmpaddr6, write_pmpaddr6},
	csr.Pmpaddr0 + 7: {read_pmpaddr7, write_pmpaddr7},
	csr.Mvendorid:    {read_mvendorid, nil},
	csr.Marchid:      {read_marchid, nil},
	csr.Mimpid:       {read_mimpid, nil},
	csr.Mhartid:      {read_mhartid, nil},
}

// CSR gives access to the control and status registers of the running
// hart. Unimplemented registers read as zero and ignore writes.
type CSR struct{}

// Read implements csr.Reader.
func (CSR) Read(reg uint16) uint64 {
	if a, ok := registers[reg]; ok {
		return a.read()
	}

	return 0
}

// Write implements csr.File.
func (CSR) Write(reg uint16, val uint64) {
	if a, ok := registers[reg]; ok && a.write != nil {
		a.write(val)
	}
}
