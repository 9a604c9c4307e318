// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package hart defines the saved supervisor context handed to machine-mode
// trap handling and the hart resources trap handlers act on.
package hart

import (
	"fmt"

	"github.com/usbarmory/GoTEE-firmware/internal/csr"
)

// Frame represents the supervisor register state saved on a trap.
type Frame struct {
	// X holds the general purpose registers, X[0] is ignored.
	X [32]uint64
	// PC holds the trapping instruction address (mepc).
	PC uint64
	// Cause holds mcause.
	Cause uint64
	// Tval holds mtval.
	Tval uint64
	// Mstatus holds the mstatus value restored on return.
	Mstatus uint64
}

// A returns argument register a<n>.
func (f *Frame) A(n int) uint64 {
	return f.X[10+n]
}

// SetA sets argument register a<n>.
func (f *Frame) SetA(n int, val uint64) {
	f.X[10+n] = val
}

// SetX sets a general purpose register, writes to x0 are discarded.
func (f *Frame) SetX(n int, val uint64) {
	if n != 0 {
		f.X[n] = val
	}
}

// Interrupt reports whether the trap is an interrupt.
func (f *Frame) Interrupt() bool {
	return f.Cause&csr.Interrupt != 0
}

// PreviousPrivilege returns the privilege level the trap was taken from.
func (f *Frame) PreviousPrivilege() int {
	return int(f.Mstatus&csr.MstatusMPP) >> csr.MstatusMPPShift
}

func (f *Frame) String() string {
	return fmt.Sprintf("pc:%#.16x ra:%#.16x sp:%#.16x a0:%#x a1:%#x a6:%#x a7:%#x mcause:%#x mtval:%#x",
		f.PC, f.X[1], f.X[2], f.A(0), f.A(1), f.A(6), f.A(7), f.Cause, f.Tval)
}

// Bus represents physical memory access on behalf of the supervisor.
type Bus interface {
	Read(addr uint64, buf []byte) error
	Write(addr uint64, buf []byte) error
}

// Clint represents the core local interruptor of the hart.
type Clint interface {
	// Now returns the current mtime value.
	Now() uint64
	// SetCompare programs mtimecmp.
	SetCompare(val uint64)
	// SetSoftware sets or clears the machine software interrupt.
	SetSoftware(pending bool)
}

// Hart represents a hart able to run the supervisor until its next trap.
type Hart interface {
	// Resume restores the context held in f, runs the supervisor and
	// saves the context of the next trap back into f.
	Resume(f *Frame) error
}

// SetBits sets bits in a CSR.
func SetBits(f csr.File, reg uint16, bits uint64) {
	f.Write(reg, f.Read(reg)|bits)
}

// ClearBits clears bits in a CSR.
func ClearBits(f csr.File, reg uint16, bits uint64) {
	f.Write(reg, f.Read(reg)&^bits)
}
