// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

package platform

import (
	"sync/atomic"
	"unsafe"
)

// CLINT registers for hart 0
const (
	MSIP     = 0x0000
	MTIMECMP = 0x4000
	MTIME    = 0xbff8
)

// Clint drives the core local interruptor of hart 0.
type Clint struct {
	Base uint64
}

func (c *Clint) reg(off uint64) unsafe.Pointer {
	return unsafe.Pointer(uintptr(c.Base + off))
}

// Now implements hart.Clint.
func (c *Clint) Now() uint64 {
	return atomic.LoadUint64((*uint64)(c.reg(MTIME)))
}

// SetCompare implements hart.Clint.
func (c *Clint) SetCompare(val uint64) {
	atomic.StoreUint64((*uint64)(c.reg(MTIMECMP)), val)
}

// SetSoftware implements hart.Clint.
func (c *Clint) SetSoftware(pending bool) {
	var val uint32

	if pending {
		val = 1
	}

	atomic.StoreUint32((*uint32)(c.reg(MSIP)), val)
}
