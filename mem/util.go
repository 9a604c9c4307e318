// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago

package mem

import (
	"log"
	"sync/atomic"
	"unsafe"
)

// TestAccess attempts to read one 64-bit word from firmware memory, which
// must raise an access fault when issued by the supervisor.
func TestAccess(tag string) {
	addr := uintptr(FirmwareStart)
	mem := (*uint64)(unsafe.Pointer(addr))

	log.Printf("%s is about to read firmware memory at %#x", tag, addr)
	val := atomic.LoadUint64(mem)

	log.Printf("%s read firmware memory %#x: %#x (success - *insecure configuration*)", tag, addr, val)
}
