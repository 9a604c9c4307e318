// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

package main

import (
	"log"
	"os"
	"runtime"
	_ "unsafe"

	"github.com/usbarmory/tamago/soc/sifive/fu540"

	"github.com/usbarmory/GoTEE-firmware/internal/reset"
	"github.com/usbarmory/GoTEE-firmware/mem"
)

//go:linkname ramStart runtime.ramStart
var ramStart uint64 = mem.SupervisorStart

//go:linkname ramSize runtime.ramSize
var ramSize uint64 = mem.SupervisorSize

//go:linkname hwinit runtime.hwinit
func hwinit() {
	fu540.RV64.InitSupervisor()
}

//go:linkname printk runtime.printk
func printk(c byte) {
	putchar(c)
}

// TestPMP, when set at link time (-X main.TestPMP=1), makes the supervisor
// probe firmware memory, which must fault.
var TestPMP string

func init() {
	log.SetFlags(log.Ltime)
	log.SetOutput(os.Stdout)
}

func main() {
	log.Printf("%s/%s (%s) • supervisor", runtime.GOOS, runtime.GOARCH, runtime.Version())

	id, version := implementation()
	log.Printf("supervisor running on SBI implementation %d version %d", id, version)

	if TestPMP != "" {
		mem.TestAccess("supervisor")
	}

	// hand power control back to the firmware
	log.Printf("supervisor is about to shut down")
	err := systemReset(reset.Shutdown, reset.ReasonNone)

	// this should be unreachable
	log.Printf("supervisor shutdown failed (%d)", err)
}
