// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package introspect prints a read-only snapshot of the hart machine-mode
// state.
package introspect

import (
	"github.com/usbarmory/GoTEE-firmware/internal/csr"
	"github.com/usbarmory/GoTEE-firmware/internal/pmp"
)

// Printer represents the diagnostic console.
type Printer interface {
	Printf(format string, a ...interface{}) error
}

var registers = []struct {
	name string
	addr uint16
}{
	{"mhartid", csr.Mhartid},
	{"misa", csr.Misa},
	{"mstatus", csr.Mstatus},
	{"mtvec", csr.Mtvec},
	{"mie", csr.Mie},
	{"mip", csr.Mip},
	{"medeleg", csr.Medeleg},
	{"mideleg", csr.Mideleg},
}

// Dump prints the machine-mode CSRs and the first n PMP entries. Console
// errors are ignored, the dump is best effort.
func Dump(p Printer, regs csr.Reader, n int) {
	for _, r := range registers {
		_ = p.Printf("%-8s %#.16x", r.name, regs.Read(r.addr))
	}

	if n > pmp.MaxEntries {
		n = pmp.MaxEntries
	}

	addrs := make([]uint64, n)

	for i := range addrs {
		addrs[i] = regs.Read(csr.Pmpaddr(i))
	}

	for i, e := range pmp.Decode(regs.Read(csr.Pmpcfg0), addrs) {
		_ = p.Printf("PMP:%.2d %s", i, e)
	}
}
