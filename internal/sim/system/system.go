// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package system assembles a complete simulated machine running the
// firmware boot sequence against a scripted supervisor.
//
// The fault and log package level sinks are redirected to the simulated
// machine while it boots, only one system can boot at a time.
package system

import (
	"io"
	"log"

	"github.com/usbarmory/GoTEE-firmware/internal/board"
	"github.com/usbarmory/GoTEE-firmware/internal/boot"
	"github.com/usbarmory/GoTEE-firmware/internal/csr"
	"github.com/usbarmory/GoTEE-firmware/internal/dispatch"
	"github.com/usbarmory/GoTEE-firmware/internal/emulate"
	"github.com/usbarmory/GoTEE-firmware/internal/fault"
	"github.com/usbarmory/GoTEE-firmware/internal/firmware"
	"github.com/usbarmory/GoTEE-firmware/internal/heap"
	"github.com/usbarmory/GoTEE-firmware/internal/logging"
	"github.com/usbarmory/GoTEE-firmware/internal/power"
	"github.com/usbarmory/GoTEE-firmware/internal/privilege"
	"github.com/usbarmory/GoTEE-firmware/internal/reset"
	"github.com/usbarmory/GoTEE-firmware/internal/sbi"
	"github.com/usbarmory/GoTEE-firmware/internal/sim"
	"github.com/usbarmory/GoTEE-firmware/mem"
	"github.com/usbarmory/GoTEE-firmware/util"
)

// RV64IMACSU
const misa = 2<<62 | 1<<0 | 1<<2 | 1<<8 | 1<<12 | 1<<18 | 1<<20

// DefaultDRAMSize is the default amount of simulated supervisor memory.
const DefaultDRAMSize = 1 << 20

// Config represents the simulated machine configuration.
type Config struct {
	// Program is the scripted supervisor.
	Program []sim.Step

	// DRAMSize is the simulated supervisor memory size.
	DRAMSize int
	// Quantum is the mtime increment per supervisor step.
	Quantum uint64
	// Limit bounds the supervisor steps between two traps.
	Limit int
	// UARTBusy makes the serial port not ready every UARTBusy bytes.
	UARTBusy int

	// Output receives the firmware serial output.
	Output io.Writer
	// Log receives the supervisor console output, line buffered.
	Log *util.BufferedLog

	// Introspect enables the CSR dump.
	Introspect bool
	// Debug enables trap logging.
	Debug bool
	// Annotate describes supervisor program counters in fatal traps.
	Annotate func(pc uint64) string
}

// System represents a simulated machine.
type System struct {
	Env   *sim.Memory
	DRAM  *sim.Memory
	CPU   *sim.CPU
	Hart  *sim.Hart
	Board *sim.Board

	Console    *logging.Singleton
	Heap       *heap.Arena
	Dispatcher *dispatch.Dispatcher
	Firmware   *firmware.Firmware

	// Kind holds the performed power operation, valid if Finished.
	Kind     reset.Kind
	Finished bool
	// Halts counts the hart halts.
	Halts int

	log *util.BufferedLog
	env *boot.Env
}

// New assembles a simulated machine.
func New(cfg *Config) (s *System, err error) {
	table, err := mem.DefaultPMP()

	if err != nil {
		return
	}

	size := cfg.DRAMSize

	if size == 0 {
		size = DefaultDRAMSize
	}

	s = &System{
		Env:     sim.NewMemory(mem.EnvStart, mem.EnvSize),
		DRAM:    sim.NewMemory(mem.SupervisorStart, size),
		CPU:     &sim.CPU{},
		Board:   &sim.Board{UART: &sim.UART{Busy: cfg.UARTBusy, Output: cfg.Output}},
		Console: &logging.Singleton{},
		Heap:    &heap.Arena{},
		log:     cfg.Log,
	}

	// power-on contents
	s.Env.Fill(0xa5)

	s.Hart = sim.NewHart(s.DRAM, cfg.Program...)
	s.Hart.Limit = cfg.Limit
	s.Hart.CSR.Write(csr.Misa, misa)
	s.Hart.CSR.Write(csr.Mtvec, mem.FirmwareStart)

	if cfg.Quantum != 0 {
		s.Hart.Clint.Quantum = cfg.Quantum
	}

	if s.log == nil {
		s.log = &util.BufferedLog{}
	}

	s.Dispatcher = &dispatch.Dispatcher{
		SBI: &sbi.Handler{
			CSR:   s.Hart.CSR,
			Clint: s.Hart.Clint,
			Console: func(c byte) {
				s.log.Log(c, util.Supervisor)
			},
		},
		CSR: s.Hart.CSR,
		Emulator: &emulate.Emulator{
			CSR:   s.Hart.CSR,
			Bus:   s.DRAM,
			Clint: s.Hart.Clint,
			PMP:   table,
		},
		Annotate: cfg.Annotate,
		Debug:    cfg.Debug,
	}

	s.Firmware = &firmware.Firmware{
		Board:   s.Board,
		Clocks:  board.DefaultClocks(),
		Serial:  board.DefaultSerial(),
		Console: s.Console,
		CSR:     s.Hart.CSR,
		Privilege: &privilege.Config{
			PMP:        table,
			Delegation: privilege.DefaultDelegation(),
		},
		Heap:        s.Heap,
		ScratchSize: mem.TrapScratchSize,
		Hart:        s.Hart,
		Dispatcher:  s.Dispatcher,
		Entry:       mem.SupervisorEntry,
		A0:          mem.SupervisorStart,
		A1:          mem.DeviceTreeOffset,
		Introspect:  cfg.Introspect,
	}

	s.env = &boot.Env{
		CPU:      s.CPU,
		Bus:      s.Env,
		BSSStart: mem.BSSStart,
		BSSEnd:   mem.BSSStart + mem.BSSSize,
		Stack: boot.Stack{
			Base: mem.EnvStackStart,
			Size: mem.EnvStackSize,
		},
		HeapInit: func() error {
			return s.Heap.Init(mem.HeapStart, mem.HeapSize)
		},
		Main: s.Firmware.Main,
		Finish: func(kind reset.Kind) {
			s.Kind = kind
			s.Finished = true

			power.Finish(kind)
		},
	}

	return
}

// Boot runs the firmware boot sequence until the hart halts.
func (s *System) Boot() {
	origHalt, origConsole, origOutput := fault.Halt, fault.Console, log.Writer()

	defer func() {
		fault.Halt = origHalt
		fault.Console = origConsole
		log.SetOutput(origOutput)
	}()

	fault.Halt = func() {
		s.Halts++
	}

	fault.Console = s.Console

	boot.Start(s.env)

	s.log.Flush()
}

// Output returns the firmware serial output.
func (s *System) Output() string {
	return s.Board.UART.String()
}
