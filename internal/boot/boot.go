// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package boot implements the firmware boot trampoline, the first code
// executed after reset: it clears the uninitialized static region, switches
// to the environment stack, brings up the heap and transfers control to the
// main routine and then to the power operation it selects.
package boot

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/usbarmory/GoTEE-firmware/internal/fault"
	"github.com/usbarmory/GoTEE-firmware/internal/reset"
)

// WordSize is the zero fill stride.
const WordSize = 8

var (
	// ErrLayout is returned for regions which are not a whole number of
	// words, it denotes a link time configuration error.
	ErrLayout = errors.New("invalid memory layout")
	// ErrReentry is raised when the trampoline runs twice.
	ErrReentry = errors.New("boot trampoline re-entered")
)

// Bus represents the physical memory writes performed by the trampoline.
type Bus interface {
	Write(addr uint64, buf []byte) error
}

// CPU represents the hart operations performed by the trampoline.
type CPU interface {
	// SetStack switches the stack pointer.
	SetStack(sp uint64)
}

// Stack represents the boot environment stack.
type Stack struct {
	Base uint64
	Size uint64
}

// Top returns the initial stack pointer, the stack grows downwards.
func (s Stack) Top() uint64 {
	return s.Base + s.Size
}

// ZeroFill clears the region [start, end) one word at a time. A zero-length
// region performs no access.
func ZeroFill(bus Bus, start uint64, end uint64) error {
	if end < start || (end-start)%WordSize != 0 || start%WordSize != 0 {
		return fmt.Errorf("%w, start:%#x end:%#x", ErrLayout, start, end)
	}

	zero := make([]byte, WordSize)

	for addr := start; addr != end; addr += WordSize {
		if err := bus.Write(addr, zero); err != nil {
			return err
		}
	}

	return nil
}

// Env represents the boot environment.
type Env struct {
	CPU CPU
	Bus Bus

	// BSSStart and BSSEnd delimit the uninitialized static region.
	BSSStart uint64
	BSSEnd   uint64

	Stack Stack

	// HeapInit, when set, brings up the heap arena.
	HeapInit func() error
	// Main runs the firmware and returns the requested power operation,
	// any error is fatal.
	Main func() (reset.Kind, error)
	// Finish performs the power operation.
	Finish func(kind reset.Kind)

	started uint32
}

// Start runs the boot sequence, it never returns on hardware.
func Start(env *Env) {
	if !atomic.CompareAndSwapUint32(&env.started, 0, 1) {
		fault.Fatal(ErrReentry)
		return
	}

	if err := ZeroFill(env.Bus, env.BSSStart, env.BSSEnd); err != nil {
		fault.Fatal(err)
		return
	}

	env.CPU.SetStack(env.Stack.Top())

	if env.HeapInit != nil {
		if err := env.HeapInit(); err != nil {
			fault.Fatal(fmt.Errorf("heap, %w", err))
			return
		}
	}

	kind, err := env.Main()

	if err != nil {
		fault.Fatal(err)
		return
	}

	env.Finish(kind)

	// unreachable unless Finish fails to act
	fault.Halt()
}
