// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

package platform

import (
	"fmt"
	"log"

	"github.com/usbarmory/GoTEE/monitor"
	"github.com/usbarmory/tamago/dma"

	"github.com/usbarmory/armory-boot/exec"

	"github.com/usbarmory/GoTEE-firmware/internal/csr"
	"github.com/usbarmory/GoTEE-firmware/internal/pmp"
)

// LoadSupervisor loads a TamaGo unikernel as supervisor.
func LoadSupervisor(region *dma.Region, elf []byte, table pmp.Table) (s *Supervisor, err error) {
	image := &exec.ELFImage{
		Region: region,
		ELF:    elf,
	}

	if err = image.Load(); err != nil {
		return
	}

	ctx, err := monitor.Load(image.Entry(), image.Region, false)

	if err != nil {
		return nil, fmt.Errorf("fw could not load supervisor, %v", err)
	}

	log.Printf("fw loaded supervisor addr:%#x entry:%#x size:%d", ctx.Memory.Start(), ctx.PC, len(elf))

	s = &Supervisor{
		Ctx: ctx,
		CSR: CSR{},
		PMP: table,
	}

	// set memory protection check
	ctx.PMP = s.verifyPMP

	// set stack pointer to the end of available memory
	ctx.X2 = uint64(ctx.Memory.End())

	// return to the dispatcher on every trap
	ctx.Handler = s.handler

	return
}

// Entry returns the supervisor entry point and its initial stack pointer.
func (s *Supervisor) Entry() (pc uint64, sp uint64) {
	return s.Ctx.PC, s.Ctx.X2
}

// Privileged reports whether the execution context would run in machine
// mode, which must never happen for the supervisor.
func (s *Supervisor) Privileged() bool {
	return s.Ctx.Secure() || s.CSR.Read(csr.Mstatus)&csr.MstatusMPRV != 0
}
