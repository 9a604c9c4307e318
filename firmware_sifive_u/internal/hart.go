// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

package platform

import (
	"errors"
	"fmt"

	"github.com/usbarmory/tamago/soc/sifive/fu540"

	"github.com/usbarmory/GoTEE/monitor"
	goteesbi "github.com/usbarmory/GoTEE/sbi"

	"github.com/usbarmory/GoTEE-firmware/internal/csr"
	"github.com/usbarmory/GoTEE-firmware/internal/hart"
	"github.com/usbarmory/GoTEE-firmware/internal/pmp"
	"github.com/usbarmory/GoTEE-firmware/internal/sbi"
)

// ErrPMP is raised when the hardware PMP state diverges from the applied
// table.
var ErrPMP = errors.New("PMP mismatch")

// errTrap stops the execution context on every supervisor trap.
var errTrap = errors.New("trap")

// sstatus bits restored on resume, they carry reflected traps
const supervisorStatus = csr.MstatusSPP | csr.MstatusSPIE | csr.MstatusSIE

// Supervisor runs the supervisor execution context, returning to the
// dispatcher on every trap.
type Supervisor struct {
	Ctx *monitor.ExecCtx
	CSR csr.File
	// PMP is verified before every context switch.
	PMP pmp.Table

	started bool
}

func (s *Supervisor) registers() []*uint64 {
	ctx := s.Ctx

	return []*uint64{
		nil, &ctx.X1, &ctx.X2, &ctx.X3,
		&ctx.X4, &ctx.X5, &ctx.X6, &ctx.X7,
		&ctx.X8, &ctx.X9, &ctx.X10, &ctx.X11,
		&ctx.X12, &ctx.X13, &ctx.X14, &ctx.X15,
		&ctx.X16, &ctx.X17, &ctx.X18, &ctx.X19,
		&ctx.X20, &ctx.X21, &ctx.X22, &ctx.X23,
		&ctx.X24, &ctx.X25, &ctx.X26, &ctx.X27,
		&ctx.X28, &ctx.X29, &ctx.X30, &ctx.X31,
	}
}

func (s *Supervisor) handler(_ *monitor.ExecCtx) error {
	return errTrap
}

// verifyPMP is invoked by the monitor before entering the supervisor, the
// table is written once by the firmware and only checked here.
func (s *Supervisor) verifyPMP(_ *monitor.ExecCtx, _ int) (err error) {
	for i, e := range s.PMP.Entries() {
		addr, r, w, x, a, l, err := fu540.RV64.ReadPMP(i)

		if err != nil {
			return err
		}

		if addr != e.Boundary || a != e.Mode || l != e.Lock ||
			r != (e.Perm&pmp.R != 0) || w != (e.Perm&pmp.W != 0) || x != (e.Perm&pmp.X != 0) {
			return fmt.Errorf("PMP:%.2d %s, %w", i, e, ErrPMP)
		}
	}

	return
}

// Resume implements hart.Hart.
func (s *Supervisor) Resume(f *hart.Frame) (err error) {
	regs := s.registers()

	// the initial frame carries no stack pointer
	if !s.started && f.X[2] == 0 {
		f.X[2] = s.Ctx.X2
	}

	s.started = true

	for i := 1; i < len(regs); i++ {
		*regs[i] = f.X[i]
	}

	s.Ctx.PC = f.PC
	s.CSR.Write(csr.Mstatus, s.CSR.Read(csr.Mstatus)&^supervisorStatus|f.Mstatus&supervisorStatus)

	if err = s.Ctx.Run(); err != nil && !errors.Is(err, errTrap) {
		return
	}

	for i := 1; i < len(regs); i++ {
		f.X[i] = *regs[i]
	}

	f.PC = s.Ctx.PC
	f.Cause = s.CSR.Read(csr.Mcause)
	f.Tval = s.CSR.Read(csr.Mtval)
	f.Mstatus = s.CSR.Read(csr.Mstatus)&^csr.MstatusMPP | csr.PrivSupervisor<<csr.MstatusMPPShift

	return nil
}

// Fallback returns an extension served by the GoTEE SBI implementation
// acting directly on the execution context.
func (s *Supervisor) Fallback() sbi.Extension {
	return func(c *sbi.Call) (res sbi.Result, err error) {
		ctx := s.Ctx
		regs := s.registers()

		ctx.X17 = c.EID
		ctx.X16 = c.FID

		for i, arg := range c.Args {
			*regs[10+i] = arg
		}

		if err = goteesbi.Handler(ctx); err != nil {
			return
		}

		res.Error = int64(ctx.X10)
		res.Value = ctx.X11

		return
	}
}
