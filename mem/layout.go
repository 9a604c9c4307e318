// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package mem defines the firmware physical memory layout and the memory
// protection policy applied to the supervisor.
package mem

import (
	"github.com/usbarmory/GoTEE-firmware/internal/pmp"
)

const (
	// Supervisor payload
	SupervisorStart = 0x80000000
	SupervisorSize  = 0x10000000 // 256MB

	// Firmware (machine mode)
	FirmwareStart = 0x90000000
	FirmwareSize  = 0x07e00000 // 126MB

	// Firmware DMA (relocated to avoid conflicts with the supervisor)
	FirmwareDMAStart = 0x97e00000
	FirmwareDMASize  = 0x00100000 // 1MB

	// Boot environment, private to the firmware
	EnvStart = 0x97f00000
	EnvSize  = 0x00100000 // 1MB

	FirmwareEnd = EnvStart + EnvSize

	// DRAMEnd is the end of the physical memory visible to the supervisor.
	DRAMEnd = 0x100000000
)

// Boot environment regions
const (
	// firmware scratch region cleared by the boot trampoline, distinct
	// from the image .bss which the Go runtime clears itself
	BSSStart = EnvStart
	BSSSize  = 0x1000

	EnvStackStart = BSSStart + BSSSize
	EnvStackSize  = 1 * 1024 // 1KiB

	HeapStart = EnvStart + 0x2000
	HeapSize  = 8 * 1024 // 8KiB
)

// Supervisor boot arguments
const (
	// SupervisorEntry is the default supervisor entry point.
	SupervisorEntry = SupervisorStart
	// DeviceTreeOffset is reserved for a future device tree blob.
	DeviceTreeOffset = 0
)

// TrapScratchSize is the per-hart machine trap scratch area taken from the
// heap.
const TrapScratchSize = 512

// DefaultPMP returns the supervisor memory protection table:
//
//	[0, SupervisorStart)           MMIO        RWX
//	[SupervisorStart, Firmware)    supervisor  RWX
//	[FirmwareStart, FirmwareEnd)   firmware    ---
//	[FirmwareEnd, DRAMEnd)         DRAM        RWX
func DefaultPMP() (pmp.Table, error) {
	return new(pmp.Builder).
		Add(SupervisorStart, pmp.RWX).
		Add(FirmwareStart, pmp.RWX).
		Add(FirmwareEnd, pmp.None).
		Add(DRAMEnd, pmp.RWX).
		Build()
}
