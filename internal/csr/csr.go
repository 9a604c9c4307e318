// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package csr defines the RISC-V machine-mode control and status registers
// used by the firmware and the interface to access them.
package csr

// CSR addresses
const (
	Sstatus   uint16 = 0x100
	Sie       uint16 = 0x104
	Stvec     uint16 = 0x105
	Sepc      uint16 = 0x141
	Scause    uint16 = 0x142
	Stval     uint16 = 0x143
	Sip       uint16 = 0x144
	Satp      uint16 = 0x180
	Mstatus   uint16 = 0x300
	Misa      uint16 = 0x301
	Medeleg   uint16 = 0x302
	Mideleg   uint16 = 0x303
	Mie       uint16 = 0x304
	Mtvec     uint16 = 0x305
	Mscratch  uint16 = 0x340
	Mepc      uint16 = 0x341
	Mcause    uint16 = 0x342
	Mtval     uint16 = 0x343
	Mip       uint16 = 0x344
	Pmpcfg0   uint16 = 0x3a0
	Pmpcfg2   uint16 = 0x3a2
	Pmpaddr0  uint16 = 0x3b0
	Time      uint16 = 0xc01
	Mvendorid uint16 = 0xf11
	Marchid   uint16 = 0xf12
	Mimpid    uint16 = 0xf13
	Mhartid   uint16 = 0xf14
)

// Pmpaddr returns the address of the i-th pmpaddr register.
func Pmpaddr(i int) uint16 {
	return Pmpaddr0 + uint16(i)
}

// mstatus fields
const (
	MstatusSIE  uint64 = 1 << 1
	MstatusMIE  uint64 = 1 << 3
	MstatusSPIE uint64 = 1 << 5
	MstatusMPIE uint64 = 1 << 7
	MstatusSPP  uint64 = 1 << 8
	MstatusMPP  uint64 = 3 << 11
	MstatusMPRV uint64 = 1 << 17

	MstatusMPPShift = 11
)

// Privilege levels
const (
	PrivUser       = 0
	PrivSupervisor = 1
	PrivMachine    = 3
)

// mip/mie bits
const (
	SSIP uint64 = 1 << 1
	MSIP uint64 = 1 << 3
	STIP uint64 = 1 << 5
	MTIP uint64 = 1 << 7
	SEIP uint64 = 1 << 9
	MEIP uint64 = 1 << 11
)

// Interrupt is the mcause bit distinguishing interrupts from exceptions.
const Interrupt uint64 = 1 << 63

// Exception causes
const (
	InstructionMisaligned uint64 = 0
	InstructionFault      uint64 = 1
	IllegalInstruction    uint64 = 2
	Breakpoint            uint64 = 3
	LoadMisaligned        uint64 = 4
	LoadFault             uint64 = 5
	StoreMisaligned       uint64 = 6
	StoreFault            uint64 = 7
	EcallFromU            uint64 = 8
	EcallFromS            uint64 = 9
	EcallFromM            uint64 = 11
	InstructionPageFault  uint64 = 12
	LoadPageFault         uint64 = 13
	StorePageFault        uint64 = 15
)

// Interrupt causes
const (
	SupervisorSoftware uint64 = Interrupt | 1
	MachineSoftware    uint64 = Interrupt | 3
	SupervisorTimer    uint64 = Interrupt | 5
	MachineTimer       uint64 = Interrupt | 7
	SupervisorExternal uint64 = Interrupt | 9
	MachineExternal    uint64 = Interrupt | 11
)

// Reader represents read access to the hart CSRs.
type Reader interface {
	Read(csr uint16) uint64
}

// File represents read and write access to the hart CSRs.
type File interface {
	Reader
	Write(csr uint16, val uint64)
}

// Map is a CSR file backed by memory, used to simulate a hart.
type Map map[uint16]uint64

// Read implements Reader.
func (m Map) Read(csr uint16) uint64 {
	return m[csr]
}

// Write implements File.
func (m Map) Write(csr uint16, val uint64) {
	m[csr] = val
}
