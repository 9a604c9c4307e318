// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

// Package platform implements the firmware hardware layer for the QEMU
// sifive_u machine.
package platform

import (
	"github.com/usbarmory/GoTEE-firmware/internal/csr"
	"github.com/usbarmory/GoTEE-firmware/internal/fault"
)

func init() {
	fault.WaitForInterrupt = wfi
}

// CPU represents the boot hart.
type CPU struct{}

// SetStack installs the environment stack used by machine trap entry, the
// Go runtime keeps its own goroutine stacks.
func (CPU) SetStack(sp uint64) {
	CSR{}.Write(csr.Mscratch, sp)
}
