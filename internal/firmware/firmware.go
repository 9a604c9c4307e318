// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package firmware implements the machine-mode main routine: peripheral
// bring-up, console, privilege configuration and supervisor execution.
package firmware

import (
	"fmt"
	"log"
	"runtime"

	"github.com/usbarmory/GoTEE-firmware/internal/board"
	"github.com/usbarmory/GoTEE-firmware/internal/csr"
	"github.com/usbarmory/GoTEE-firmware/internal/dispatch"
	"github.com/usbarmory/GoTEE-firmware/internal/hart"
	"github.com/usbarmory/GoTEE-firmware/internal/heap"
	"github.com/usbarmory/GoTEE-firmware/internal/introspect"
	"github.com/usbarmory/GoTEE-firmware/internal/logging"
	"github.com/usbarmory/GoTEE-firmware/internal/privilege"
	"github.com/usbarmory/GoTEE-firmware/internal/reset"
)

// Firmware represents the machine-mode runtime of a platform.
type Firmware struct {
	Board  board.Board
	Clocks board.Clocks
	Serial board.SerialConfig

	// Console is the logging singleton wrapping the board serial port.
	Console *logging.Singleton

	// CSR gives access to the hart control and status registers.
	CSR csr.File
	// Privilege is applied before the supervisor is first entered.
	Privilege *privilege.Config

	// Heap, when set together with ScratchSize, provides the machine
	// trap scratch area.
	Heap        *heap.Arena
	ScratchSize uint64

	// Hart runs the supervisor.
	Hart hart.Hart
	// Dispatcher services supervisor traps.
	Dispatcher *dispatch.Dispatcher

	// Entry is the supervisor entry point, A0 and A1 its arguments.
	Entry uint64
	A0    uint64
	A1    uint64

	// Introspect enables the CSR dump before the supervisor is entered.
	Introspect bool
}

// Main brings up the platform, runs the supervisor and returns the power
// operation it requested. Any error is unrecoverable.
func (fw *Firmware) Main() (kind reset.Kind, err error) {
	tx, err := fw.Board.Init(fw.Clocks, fw.Serial)

	if err != nil {
		return kind, fmt.Errorf("board initialization, %w", err)
	}

	// status LED off
	if err = fw.Board.LED(false); err != nil {
		return kind, fmt.Errorf("LED, %w", err)
	}

	fw.Console.Set(tx)
	log.SetOutput(fw.Console)

	log.Printf("%s/%s (%s) • firmware (M-mode)", runtime.GOOS, runtime.GOARCH, runtime.Version())
	log.Printf("fw clocks psi:%s apb1:%s serial:%s", fw.Clocks.PSI, fw.Clocks.APB1, fw.Serial)

	if fw.Heap != nil && fw.ScratchSize > 0 {
		scratch, err := fw.Heap.Alloc(fw.ScratchSize)

		if err != nil {
			return kind, fmt.Errorf("trap scratch, %w", err)
		}

		fw.CSR.Write(csr.Mscratch, scratch)

		s := fw.Heap.Stats()
		log.Printf("fw heap size:%d free:%d largest:%d scratch:%#x", s.Size, s.Free, s.Largest, scratch)
	}

	if err = fw.Privilege.Apply(fw.CSR); err != nil {
		return kind, fmt.Errorf("privilege configuration, %w", err)
	}

	log.Printf("fw delegation medeleg:%#x mideleg:%#x", fw.Privilege.Delegation.Exceptions, fw.Privilege.Delegation.Interrupts)

	if fw.Introspect {
		introspect.Dump(fw.Console, fw.CSR, fw.Privilege.PMP.Len())
	}

	log.Printf("fw starting supervisor pc:%#.8x a0:%#x a1:%#x", fw.Entry, fw.A0, fw.A1)

	dir, err := fw.Dispatcher.Run(fw.Hart, fw.Entry, fw.A0, fw.A1)

	if err != nil {
		return
	}

	s := fw.Dispatcher.Stats()
	log.Printf("fw supervisor exited, %s traps:%d calls:%d emulated:%d reflected:%d interrupts:%d",
		dir, s.Traps, s.Calls, s.Emulated, s.Reflected, s.Interrupts)

	return dir.Kind, nil
}
