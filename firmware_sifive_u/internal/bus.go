// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

package platform

import (
	"fmt"

	"github.com/usbarmory/tamago/dma"
)

// Bus gives the firmware access to physical memory ranges outside the Go
// runtime heap.
type Bus struct{}

func (b *Bus) copy(addr uint64, buf []byte, write bool) (err error) {
	if len(buf) == 0 {
		return
	}

	region, err := dma.NewRegion(uint(addr), len(buf), true)

	if err != nil {
		return fmt.Errorf("could not map %#x, %v", addr, err)
	}

	start, mem := region.Reserve(len(buf), 0)
	defer region.Release(start)

	if write {
		copy(mem, buf)
	} else {
		copy(buf, mem)
	}

	return
}

// Read implements hart.Bus.
func (b *Bus) Read(addr uint64, buf []byte) error {
	return b.copy(addr, buf, false)
}

// Write implements hart.Bus.
func (b *Bus) Write(addr uint64, buf []byte) error {
	return b.copy(addr, buf, true)
}
