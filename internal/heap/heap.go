// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package heap implements the firmware heap arena, a buddy allocator handing
// out power-of-two size classes from a single fixed memory region.
//
// The arena only keeps bookkeeping, it never touches the memory it manages.
package heap

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/usbarmory/GoTEE-firmware/internal/fault"
	"github.com/usbarmory/GoTEE-firmware/internal/spin"
)

// MinBlock is the smallest size class.
const MinBlock = 64

const minOrder = 6

var (
	ErrInitialized   = errors.New("heap already initialized")
	ErrUninitialized = errors.New("heap not initialized")
	ErrExhausted     = errors.New("heap exhausted")
	ErrInvalid       = errors.New("invalid heap region")
	ErrInvalidFree   = errors.New("invalid free")
)

// Stats represents the arena occupation.
type Stats struct {
	Size    uint64
	Free    uint64
	Largest uint64
}

// Arena represents a heap region.
type Arena struct {
	lock spin.Lock

	base  uint64
	size  uint64
	order int

	// free blocks offsets, indexed by order
	free []map[uint64]bool
	// allocated blocks orders, indexed by offset
	used map[uint64]int
}

// Default is the firmware heap.
var Default = &Arena{}

// Init registers the memory region managed by the arena. The size must be a
// power of two not smaller than MinBlock and the base aligned to MinBlock.
func (a *Arena) Init(base uint64, size uint64) error {
	a.lock.Acquire()
	defer a.lock.Release()

	if a.free != nil {
		return ErrInitialized
	}

	if size < MinBlock || size&(size-1) != 0 || base%MinBlock != 0 {
		return fmt.Errorf("%w, base:%#x size:%#x", ErrInvalid, base, size)
	}

	a.base = base
	a.size = size
	a.order = bits.TrailingZeros64(size)
	a.free = make([]map[uint64]bool, a.order+1)
	a.used = make(map[uint64]int)

	for i := range a.free {
		a.free[i] = make(map[uint64]bool)
	}

	a.free[a.order][0] = true

	return nil
}

func orderOf(n uint64) int {
	if n <= MinBlock {
		return minOrder
	}

	return 64 - bits.LeadingZeros64(n-1)
}

func lowest(set map[uint64]bool) (off uint64, ok bool) {
	for o := range set {
		if !ok || o < off {
			off, ok = o, true
		}
	}

	return
}

// Alloc reserves a block of at least n bytes and returns its address.
func (a *Arena) Alloc(n uint64) (addr uint64, err error) {
	a.lock.Acquire()
	defer a.lock.Release()

	if a.free == nil {
		return 0, ErrUninitialized
	}

	want := orderOf(n)

	if want > a.order {
		return 0, fmt.Errorf("%w, %d bytes requested", ErrExhausted, n)
	}

	k := want
	for ; k <= a.order && len(a.free[k]) == 0; k++ {
	}

	if k > a.order {
		return 0, fmt.Errorf("%w, %d bytes requested", ErrExhausted, n)
	}

	off, _ := lowest(a.free[k])
	delete(a.free[k], off)

	// split down to the requested size class, returning upper halves
	for ; k > want; k-- {
		a.free[k-1][off+(1<<(k-1))] = true
	}

	a.used[off] = want

	return a.base + off, nil
}

// MustAlloc is like Alloc but treats any failure as fatal, there is no
// backpressure to apply when the heap is exhausted.
func (a *Arena) MustAlloc(n uint64) uint64 {
	addr, err := a.Alloc(n)

	if err != nil {
		fault.Fatal(err)
	}

	return addr
}

// Free releases a block previously returned by Alloc, merging it with its
// free buddies.
func (a *Arena) Free(addr uint64) error {
	a.lock.Acquire()
	defer a.lock.Release()

	if a.free == nil {
		return ErrUninitialized
	}

	off := addr - a.base
	k, ok := a.used[off]

	if addr < a.base || !ok {
		return fmt.Errorf("%w, %#x", ErrInvalidFree, addr)
	}

	delete(a.used, off)

	for ; k < a.order; k++ {
		buddy := off ^ (1 << k)

		if !a.free[k][buddy] {
			break
		}

		delete(a.free[k], buddy)

		if buddy < off {
			off = buddy
		}
	}

	a.free[k][off] = true

	return nil
}

// Stats returns the current arena occupation.
func (a *Arena) Stats() (s Stats) {
	a.lock.Acquire()
	defer a.lock.Release()

	s.Size = a.size

	for k, set := range a.free {
		if len(set) == 0 {
			continue
		}

		s.Free += uint64(len(set)) << k
		s.Largest = 1 << k
	}

	return
}
