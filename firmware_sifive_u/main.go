// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

package main

import (
	_ "embed"
	"errors"
	"log"
	_ "unsafe"

	"github.com/usbarmory/tamago/soc/sifive/fu540"

	"github.com/usbarmory/GoTEE-firmware/firmware_sifive_u/internal"
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
	"github.com/usbarmory/GoTEE-firmware/mem"
	"github.com/usbarmory/GoTEE-firmware/util"
)

// The supervisor ELF binary is embedded within the firmware executable,
// using Go embed package.

//go:embed assets/supervisor.elf
var supervisorELF []byte

//go:linkname ramStart runtime.ramStart
var ramStart uint64 = mem.FirmwareStart

//go:linkname ramSize runtime.ramSize
var ramSize uint64 = mem.FirmwareSize

var errPrivileged = errors.New("supervisor context would run in machine mode")

func init() {
	log.SetFlags(log.Ltime)
	mem.Init()
}

func main() {
	table, err := mem.DefaultPMP()

	if err != nil {
		fault.Fatal(err)
	}

	supervisor, err := platform.LoadSupervisor(mem.SupervisorRegion, supervisorELF, table)

	if err != nil {
		fault.Fatal(err)
	}

	regs := platform.CSR{}
	bus := &platform.Bus{}
	clint := &platform.Clint{Base: fu540.CLINT_BASE}
	output := &util.BufferedLog{Output: logging.Default}

	handler := &sbi.Handler{
		CSR:   regs,
		Clint: clint,
		Console: func(c byte) {
			output.Log(c, util.Supervisor)
		},
		HartID: regs.Read(csr.Mhartid),
	}

	handler.Register(sbi.EXT_RFENCE, supervisor.Fallback())

	d := &dispatch.Dispatcher{
		SBI: handler,
		CSR: regs,
		Emulator: &emulate.Emulator{
			CSR:   regs,
			Bus:   bus,
			Clint: clint,
			PMP:   table,
		},
	}

	if dbg, err := util.NewDebugger(supervisorELF); err == nil {
		d.Annotate = dbg.Annotate
	}

	entry, _ := supervisor.Entry()

	fw := &firmware.Firmware{
		Board:   platform.Board{},
		Clocks:  board.DefaultClocks(),
		Serial:  board.DefaultSerial(),
		Console: logging.Default,
		CSR:     regs,
		Privilege: &privilege.Config{
			PMP:        table,
			Delegation: privilege.DefaultDelegation(),
		},
		// mscratch holds the environment stack
		Heap:       heap.Default,
		Hart:       supervisor,
		Dispatcher: d,
		Entry:      entry,
		A0:         mem.SupervisorStart,
		A1:         mem.DeviceTreeOffset,
	}

	boot.Start(&boot.Env{
		CPU:      platform.CPU{},
		Bus:      bus,
		BSSStart: mem.BSSStart,
		BSSEnd:   mem.BSSStart + mem.BSSSize,
		Stack: boot.Stack{
			Base: mem.EnvStackStart,
			Size: mem.EnvStackSize,
		},
		HeapInit: func() error {
			return heap.Default.Init(mem.HeapStart, mem.HeapSize)
		},
		Main: func() (kind reset.Kind, err error) {
			if supervisor.Privileged() {
				return kind, errPrivileged
			}

			defer output.Flush()

			return fw.Main()
		},
		Finish: power.Finish,
	})
}
