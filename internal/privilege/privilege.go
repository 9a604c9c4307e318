// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package privilege configures which memory and traps a supervisor is
// entitled to before it is first entered.
package privilege

import (
	"errors"
	"sync/atomic"

	"github.com/usbarmory/GoTEE-firmware/internal/csr"
	"github.com/usbarmory/GoTEE-firmware/internal/pmp"
)

// ErrConfigured is returned when the configuration is applied twice within
// the same boot.
var ErrConfigured = errors.New("privilege configuration already applied")

// Delegation represents the medeleg and mideleg register values.
type Delegation struct {
	Exceptions uint64
	Interrupts uint64
}

func bit(cause uint64) uint64 {
	return 1 << (cause &^ csr.Interrupt)
}

// Delegates reports whether cause is handled by the supervisor directly.
func (d Delegation) Delegates(cause uint64) bool {
	if cause&csr.Interrupt != 0 {
		return d.Interrupts&bit(cause) != 0
	}

	return d.Exceptions&bit(cause) != 0
}

// DefaultDelegation returns the firmware delegation policy.
//
// Supervisor interrupts are delegated. Illegal instructions and misaligned
// loads and stores are retained for emulation, supervisor and machine
// environment calls are retained as they implement the firmware interface.
func DefaultDelegation() Delegation {
	return Delegation{
		Interrupts: csr.SSIP | csr.STIP | csr.SEIP,
		Exceptions: bit(csr.InstructionMisaligned) |
			bit(csr.InstructionFault) |
			bit(csr.Breakpoint) |
			bit(csr.LoadFault) |
			bit(csr.StoreFault) |
			bit(csr.EcallFromU) |
			bit(csr.InstructionPageFault) |
			bit(csr.LoadPageFault) |
			bit(csr.StorePageFault),
	}
}

// Config applies the privilege configuration exactly once.
type Config struct {
	applied uint32

	PMP        pmp.Table
	Delegation Delegation
}

// Apply programs the PMP table and the delegation registers. It must be
// called before the supervisor is first entered, any further call returns
// ErrConfigured without touching the hart.
func (c *Config) Apply(f csr.File) error {
	if !atomic.CompareAndSwapUint32(&c.applied, 0, 1) {
		return ErrConfigured
	}

	c.PMP.Apply(f)

	f.Write(csr.Mideleg, c.Delegation.Interrupts)
	f.Write(csr.Medeleg, c.Delegation.Exceptions)

	return nil
}

// Applied reports whether Apply has run.
func (c *Config) Applied() bool {
	return atomic.LoadUint32(&c.applied) == 1
}
