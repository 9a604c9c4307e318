// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package sim implements a host simulation of the single hart platform the
// firmware runs on: physical memory, serial transmitter, core local
// interruptor and a supervisor following a scripted sequence of traps.
package sim

import (
	"errors"
	"fmt"

	"github.com/usbarmory/GoTEE-firmware/internal/csr"
	"github.com/usbarmory/GoTEE-firmware/internal/hart"
)

var (
	// ErrHalted is returned when the supervisor program is exhausted.
	ErrHalted = errors.New("supervisor program exhausted")
	// ErrStalled is returned when the supervisor does not trap within the
	// step limit.
	ErrStalled = errors.New("supervisor stalled")
	// ErrPrivilege is returned when the firmware resumes a context which
	// does not return to supervisor mode.
	ErrPrivilege = errors.New("resume to non supervisor privilege")
)

// Action represents the outcome of a supervisor program step.
type Action int

const (
	// Next completes the step without trapping.
	Next Action = iota
	// Trap completes the step, the frame describes the raised trap.
	Trap
	// Repeat runs the same step again on the next iteration.
	Repeat
)

// Step represents supervisor execution between two points of interest.
type Step func(h *Hart, f *hart.Frame) Action

// DefaultLimit is the default number of iterations a Resume may take.
const DefaultLimit = 1 << 16

// Hart represents a simulated hart running a scripted supervisor.
type Hart struct {
	CSR   csr.Map
	Mem   *Memory
	Clint *Clint

	// Program is the supervisor step sequence.
	Program []Step
	// Limit bounds the iterations of a single Resume.
	Limit int

	// Delegated collects exceptions handled by the supervisor directly.
	Delegated []uint64
	// Errors collects failed expectations.
	Errors []error
	// Resumes counts supervisor entries.
	Resumes int

	pc int
}

// NewHart returns a simulated hart with a fresh CSR file and CLINT.
func NewHart(mem *Memory, program ...Step) *Hart {
	return &Hart{
		CSR:     csr.Map{},
		Mem:     mem,
		Clint:   NewClint(1),
		Program: program,
	}
}

func (h *Hart) sync() {
	mip := h.CSR.Read(csr.Mip) &^ (csr.MTIP | csr.MSIP)

	if h.Clint.TimerPending() {
		mip |= csr.MTIP
	}

	if h.Clint.Msip {
		mip |= csr.MSIP
	}

	h.CSR.Write(csr.Mip, mip)
}

// pending returns the highest priority machine interrupt, which is always
// taken from supervisor mode.
func (h *Hart) pending() (cause uint64, ok bool) {
	active := h.CSR.Read(csr.Mip) & h.CSR.Read(csr.Mie) &^ h.CSR.Read(csr.Mideleg)

	switch {
	case active&csr.MEIP != 0:
		return csr.MachineExternal, true
	case active&csr.MSIP != 0:
		return csr.MachineSoftware, true
	case active&csr.MTIP != 0:
		return csr.MachineTimer, true
	}

	return
}

func (h *Hart) delegated(cause uint64) bool {
	if cause&csr.Interrupt != 0 {
		return false
	}

	return h.CSR.Read(csr.Medeleg)&(1<<cause) != 0
}

func (h *Hart) trap(f *hart.Frame, cause uint64) {
	f.Cause = cause

	f.Mstatus &^= csr.MstatusMPP
	f.Mstatus |= csr.PrivSupervisor << csr.MstatusMPPShift

	h.CSR.Write(csr.Mepc, f.PC)
	h.CSR.Write(csr.Mcause, f.Cause)
	h.CSR.Write(csr.Mtval, f.Tval)
}

// Resume implements hart.Hart.
func (h *Hart) Resume(f *hart.Frame) error {
	if f.PreviousPrivilege() != csr.PrivSupervisor {
		return fmt.Errorf("%w, mstatus:%#x", ErrPrivilege, f.Mstatus)
	}

	limit := h.Limit

	if limit == 0 {
		limit = DefaultLimit
	}

	h.Resumes++

	for i := 0; i < limit; i++ {
		h.Clint.Tick()
		h.sync()

		if cause, ok := h.pending(); ok {
			f.Tval = 0
			h.trap(f, cause)
			return nil
		}

		if h.pc >= len(h.Program) {
			return ErrHalted
		}

		switch h.Program[h.pc](h, f) {
		case Repeat:
			continue
		case Next:
			h.pc++
			continue
		}

		h.pc++

		if h.delegated(f.Cause) {
			h.Delegated = append(h.Delegated, f.Cause)
			continue
		}

		h.trap(f, f.Cause)

		return nil
	}

	return ErrStalled
}

// Done reports whether the whole program has run.
func (h *Hart) Done() bool {
	return h.pc >= len(h.Program)
}

// Err returns the first failed expectation.
func (h *Hart) Err() error {
	if len(h.Errors) == 0 {
		return nil
	}

	return h.Errors[0]
}
