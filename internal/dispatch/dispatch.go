// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package dispatch implements the execution of a supervisor from machine
// mode: its entry, the handling of each trap it raises and the reset
// directive it eventually returns to the firmware.
package dispatch

import (
	"errors"
	"fmt"
	"log"

	"github.com/usbarmory/GoTEE-firmware/internal/csr"
	"github.com/usbarmory/GoTEE-firmware/internal/emulate"
	"github.com/usbarmory/GoTEE-firmware/internal/hart"
	"github.com/usbarmory/GoTEE-firmware/internal/reset"
	"github.com/usbarmory/GoTEE-firmware/internal/sbi"
)

// State represents the dispatcher state.
type State int

// Dispatcher states
const (
	Idle State = iota
	Running
	Trapped
	Exited
	Faulted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Trapped:
		return "trapped"
	case Exited:
		return "exited"
	case Faulted:
		return "faulted"
	}

	return fmt.Sprintf("state(%d)", int(s))
}

var (
	// ErrUnhandledTrap is returned for traps the firmware cannot service.
	ErrUnhandledTrap = errors.New("unhandled trap")
	// ErrState is returned on operations invalid in the current state.
	ErrState = errors.New("invalid dispatcher state")
)

// Directive represents the power operation requested by the supervisor on
// exit.
type Directive struct {
	Kind   reset.Kind
	Reason string
}

func (d Directive) String() string {
	return fmt.Sprintf("%s (%s)", d.Kind, d.Reason)
}

// Stats represents trap counters.
type Stats struct {
	Traps      uint64
	Calls      uint64
	Emulated   uint64
	Reflected  uint64
	Interrupts uint64
}

// Dispatcher handles the traps of a single supervisor.
type Dispatcher struct {
	// SBI serves supervisor environment calls.
	SBI *sbi.Handler
	// CSR gives access to the hart trap registers.
	CSR csr.File
	// Emulator, when set, handles misaligned accesses and time reads.
	Emulator *emulate.Emulator
	// Annotate, when set, describes a program counter in fatal trap
	// diagnostics.
	Annotate func(pc uint64) string
	// Debug enables logging of every trap.
	Debug bool

	state     State
	directive Directive
	stats     Stats
}

// State returns the current dispatcher state.
func (d *Dispatcher) State() State {
	return d.state
}

// Directive returns the reset directive, valid once Exited.
func (d *Dispatcher) Directive() Directive {
	return d.directive
}

// Stats returns the trap counters.
func (d *Dispatcher) Stats() Stats {
	return d.stats
}

// Enter prepares the initial supervisor context, a0 and a1 are passed as
// boot arguments (supervisor memory base and device tree offset).
func (d *Dispatcher) Enter(entry uint64, a0 uint64, a1 uint64) (f *hart.Frame, err error) {
	if d.state != Idle {
		return nil, fmt.Errorf("%w, enter while %s", ErrState, d.state)
	}

	f = &hart.Frame{
		PC:      entry,
		Mstatus: csr.PrivSupervisor << csr.MstatusMPPShift,
	}

	f.SetA(0, a0)
	f.SetA(1, a1)

	d.state = Running

	return
}

func (d *Dispatcher) fault(f *hart.Frame, err error) error {
	d.state = Faulted

	if d.Annotate != nil {
		if line := d.Annotate(f.PC); line != "" {
			return fmt.Errorf("%w, %s (%s)", err, f, line)
		}
	}

	return fmt.Errorf("%w, %s", err, f)
}

// Trap handles the trap saved in f. On return the supervisor can be resumed
// with f unless done is true, in which case the dispatcher has Exited and
// the Directive is set. Any error is fatal, the dispatcher is Faulted and f
// is left untouched.
func (d *Dispatcher) Trap(f *hart.Frame) (done bool, err error) {
	if d.state != Running {
		return false, fmt.Errorf("%w, trap while %s", ErrState, d.state)
	}

	d.state = Trapped
	d.stats.Traps++

	if d.Debug {
		log.Printf("fw trap %s", f)
	}

	if f.Interrupt() {
		err = d.interrupt(f)
	} else {
		done, err = d.exception(f)
	}

	switch {
	case err != nil:
		return false, d.fault(f, err)
	case done:
		d.state = Exited
	default:
		d.state = Running
	}

	return
}

func (d *Dispatcher) interrupt(f *hart.Frame) error {
	switch f.Cause {
	case csr.MachineTimer:
		// forward to the supervisor, which re-arms the comparator
		// through the timer extension
		hart.ClearBits(d.CSR, csr.Mie, csr.MTIP)
		hart.SetBits(d.CSR, csr.Mip, csr.STIP)
	case csr.MachineSoftware:
		d.SBI.Clint.SetSoftware(false)
		hart.SetBits(d.CSR, csr.Mip, csr.SSIP)
	default:
		return fmt.Errorf("%w, interrupt %d", ErrUnhandledTrap, f.Cause&^csr.Interrupt)
	}

	d.stats.Interrupts++

	return nil
}

func (d *Dispatcher) exception(f *hart.Frame) (done bool, err error) {
	switch f.Cause {
	case csr.EcallFromS:
		return d.call(f)
	case csr.LoadMisaligned, csr.StoreMisaligned:
		if d.Emulator == nil {
			break
		}

		if err = d.Emulator.Misaligned(f); err != nil {
			return false, d.reflect(f, err)
		}

		d.stats.Emulated++

		return
	case csr.IllegalInstruction:
		if d.Emulator == nil {
			break
		}

		if err = d.Emulator.Illegal(f); err != nil {
			return false, d.reflect(f, err)
		}

		d.stats.Emulated++

		return
	}

	return false, fmt.Errorf("%w, exception %d", ErrUnhandledTrap, f.Cause)
}

func (d *Dispatcher) call(f *hart.Frame) (done bool, err error) {
	c := sbi.NewCall(f)
	d.stats.Calls++

	res, req, err := d.SBI.Handle(c)

	if err != nil {
		return false, fmt.Errorf("%s, %w", c, err)
	}

	if req != nil {
		d.directive = Directive{
			Kind:   req.Kind,
			Reason: req.Reason,
		}

		return true, nil
	}

	f.SetA(0, uint64(res.Error))

	if !c.Legacy() {
		f.SetA(1, res.Value)
	}

	f.PC += 4

	return
}

// reflect redirects a trap the firmware declined to the supervisor trap
// vector, as if it had been delegated. An emulated access denied by the PMP
// table is reported as the matching access fault.
func (d *Dispatcher) reflect(f *hart.Frame, cause error) error {
	stvec := d.CSR.Read(csr.Stvec)

	if stvec == 0 {
		return fmt.Errorf("%w, no supervisor trap vector, %v", ErrUnhandledTrap, cause)
	}

	if d.Debug {
		log.Printf("fw reflecting trap %d, %v", f.Cause, cause)
	}

	var fault *emulate.AccessFault
	scause, stval := f.Cause, f.Tval

	if errors.As(cause, &fault) {
		scause, stval = fault.Cause, fault.Addr
	}

	d.CSR.Write(csr.Sepc, f.PC)
	d.CSR.Write(csr.Scause, scause)
	d.CSR.Write(csr.Stval, stval)

	status := f.Mstatus &^ (csr.MstatusSPP | csr.MstatusSPIE | csr.MstatusSIE | csr.MstatusMPP)

	if f.PreviousPrivilege() == csr.PrivSupervisor {
		status |= csr.MstatusSPP
	}

	if f.Mstatus&csr.MstatusSIE != 0 {
		status |= csr.MstatusSPIE
	}

	f.Mstatus = status | csr.PrivSupervisor<<csr.MstatusMPPShift
	f.PC = stvec &^ 3

	d.stats.Reflected++

	return nil
}

// Run enters the supervisor on h and services its traps until it requests
// a reset, which is returned.
func (d *Dispatcher) Run(h hart.Hart, entry uint64, a0 uint64, a1 uint64) (dir Directive, err error) {
	f, err := d.Enter(entry, a0, a1)

	if err != nil {
		return
	}

	for {
		if err = h.Resume(f); err != nil {
			d.state = Faulted
			return dir, fmt.Errorf("supervisor resume, %w", err)
		}

		done, err := d.Trap(f)

		if err != nil {
			return dir, err
		}

		if done {
			return d.directive, nil
		}
	}
}
