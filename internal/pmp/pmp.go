// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pmp builds RISC-V Physical Memory Protection tables.
//
// Every entry is a top-of-range (TOR) region: its effective range starts at
// the previous entry boundary (or zero) and ends, exclusive, at its own one.
// Entries are evaluated in order, so boundaries must be strictly increasing,
// which the Builder enforces before anything is written to hardware.
package pmp

import (
	"errors"
	"fmt"

	"github.com/usbarmory/GoTEE-firmware/internal/csr"
)

// Shift is the pmpaddr register granularity shift.
const Shift = 2

// MaxEntries is the number of entries covered by the pmpcfg0 register on
// RV64.
const MaxEntries = 8

// maximum physical address encodable in pmpaddr (56 bits)
const maxAddress = 1 << 56

var (
	ErrOrder = errors.New("PMP boundaries must be strictly increasing")
	ErrAlign = errors.New("PMP boundary not aligned")
	ErrCount = errors.New("too many PMP entries")
	ErrRange = errors.New("PMP boundary out of range")
)

// Perm represents the access permission bits of an entry.
type Perm uint8

// Permission bits
const (
	R Perm = 1 << 0
	W Perm = 1 << 1
	X Perm = 1 << 2

	None Perm = 0
	RW        = R | W
	RX        = R | X
	RWX       = R | W | X
)

// Address matching modes
const (
	OFF   = 0
	TOR   = 1
	NA4   = 2
	NAPOT = 3
)

const (
	cfgA    = 3
	cfgLock = 1 << 7
)

// Entry represents a single PMP entry.
type Entry struct {
	// Boundary is the physical address ending the entry range.
	Boundary uint64
	// Perm holds the R/W/X permissions.
	Perm Perm
	// Mode is the address matching mode.
	Mode int
	// Lock enforces the entry on machine mode as well.
	Lock bool
}

// Config returns the 8-bit pmpcfg field for the entry.
func (e Entry) Config() uint8 {
	cfg := uint8(e.Perm&RWX) | uint8(e.Mode&3)<<cfgA

	if e.Lock {
		cfg |= cfgLock
	}

	return cfg
}

func (e Entry) String() string {
	mode := [...]string{"OFF", "TOR", "NA4", "NAPOT"}[e.Mode&3]

	return fmt.Sprintf("addr:%#.16x A:%s R:%v W:%v X:%v L:%v",
		e.Boundary, mode, e.Perm&R != 0, e.Perm&W != 0, e.Perm&X != 0, e.Lock)
}

// Builder accumulates TOR entries.
type Builder struct {
	entries []Entry
}

// Add appends a TOR entry ending at boundary with the given permissions.
func (b *Builder) Add(boundary uint64, perm Perm) *Builder {
	b.entries = append(b.entries, Entry{
		Boundary: boundary,
		Perm:     perm,
		Mode:     TOR,
	})

	return b
}

// Build validates the accumulated entries and returns the table.
func (b *Builder) Build() (t Table, err error) {
	if len(b.entries) > MaxEntries {
		return t, fmt.Errorf("%w, %d > %d", ErrCount, len(b.entries), MaxEntries)
	}

	var prev uint64

	for i, e := range b.entries {
		switch {
		case e.Boundary%(1<<Shift) != 0:
			return t, fmt.Errorf("%w, entry %d addr:%#x", ErrAlign, i, e.Boundary)
		case e.Boundary >= maxAddress:
			return t, fmt.Errorf("%w, entry %d addr:%#x", ErrRange, i, e.Boundary)
		case e.Boundary <= prev:
			return t, fmt.Errorf("%w, entry %d addr:%#x <= %#x", ErrOrder, i, e.Boundary, prev)
		}

		prev = e.Boundary
	}

	t.entries = append([]Entry(nil), b.entries...)

	return
}

// Table represents a validated PMP table.
type Table struct {
	entries []Entry
}

// Len returns the number of entries.
func (t Table) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the table entries.
func (t Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Addresses returns the pmpaddr register values.
func (t Table) Addresses() (addrs []uint64) {
	for _, e := range t.entries {
		addrs = append(addrs, e.Boundary>>Shift)
	}

	return
}

// Config returns the packed pmpcfg0 register value, unused entries are OFF.
func (t Table) Config() (cfg uint64) {
	for i, e := range t.entries {
		cfg |= uint64(e.Config()) << (8 * i)
	}

	return
}

// Apply writes the table to the hart, addresses first, then all
// configuration fields with a single pmpcfg0 write.
func (t Table) Apply(f csr.File) {
	for i, addr := range t.Addresses() {
		f.Write(csr.Pmpaddr(i), addr)
	}

	f.Write(csr.Pmpcfg0, t.Config())
}

// Permits reports whether a supervisor access of size bytes at addr is
// granted perm. The entry matching addr must enclose the whole access, an
// access matching no entry is denied unless the table is empty.
func (t Table) Permits(addr uint64, size uint64, perm Perm) bool {
	if len(t.entries) == 0 {
		return true
	}

	end := addr + size

	if size == 0 || end < addr {
		return false
	}

	var prev uint64

	for _, e := range t.entries {
		if e.Mode == TOR && addr >= prev && addr < e.Boundary {
			return end <= e.Boundary && e.Perm&perm == perm
		}

		prev = e.Boundary
	}

	return false
}

// Decode converts raw pmpcfg0 and pmpaddr register values to entries.
func Decode(cfg uint64, addrs []uint64) (entries []Entry) {
	for i, addr := range addrs {
		if i >= MaxEntries {
			break
		}

		c := uint8(cfg >> (8 * i))

		entries = append(entries, Entry{
			Boundary: addr << Shift,
			Perm:     Perm(c) & RWX,
			Mode:     int(c>>cfgA) & 3,
			Lock:     c&cfgLock != 0,
		})
	}

	return
}
