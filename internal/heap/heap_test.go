// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package heap

import (
	"errors"
	"testing"

	"github.com/usbarmory/GoTEE-firmware/internal/fault"
)

const (
	testBase = 0x40100000
	testSize = 8192
)

func TestAllocExhaustion(t *testing.T) {
	var a Arena

	if err := a.Init(testBase, testSize); err != nil {
		t.Fatal(err)
	}

	first, err := a.Alloc(4096)

	if err != nil {
		t.Fatalf("expected first allocation to succeed; got %v", err)
	}

	if first != testBase {
		t.Fatalf("expected first block at %#x; got %#x", testBase, first)
	}

	if _, err = a.Alloc(4097); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted; got %v", err)
	}

	// the first block is left untouched
	if s := a.Stats(); s.Free != 4096 || s.Largest != 4096 {
		t.Fatalf("unexpected stats after failed allocation %+v", s)
	}
}

func TestAllocFreeMerge(t *testing.T) {
	var a Arena

	if err := a.Init(testBase, testSize); err != nil {
		t.Fatal(err)
	}

	var addrs []uint64

	for i := 0; i < testSize/MinBlock; i++ {
		addr, err := a.Alloc(1)

		if err != nil {
			t.Fatalf("allocation %d failed, %v", i, err)
		}

		if exp := testBase + uint64(i*MinBlock); addr != exp {
			t.Fatalf("expected allocation %d at %#x; got %#x", i, exp, addr)
		}

		addrs = append(addrs, addr)
	}

	if _, err := a.Alloc(1); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted; got %v", err)
	}

	for _, addr := range addrs {
		if err := a.Free(addr); err != nil {
			t.Fatal(err)
		}
	}

	if s := a.Stats(); s.Free != testSize || s.Largest != testSize {
		t.Fatalf("expected fully merged arena; got %+v", s)
	}

	if err := a.Free(addrs[0]); !errors.Is(err, ErrInvalidFree) {
		t.Fatalf("expected ErrInvalidFree on double free; got %v", err)
	}
}

func TestInit(t *testing.T) {
	var a Arena

	if _, err := a.Alloc(16); !errors.Is(err, ErrUninitialized) {
		t.Fatalf("expected ErrUninitialized; got %v", err)
	}

	for _, tt := range []struct {
		base uint64
		size uint64
	}{
		{testBase, 0},
		{testBase, 32},
		{testBase, 3000},
		{testBase + 8, testSize},
	} {
		if err := a.Init(tt.base, tt.size); !errors.Is(err, ErrInvalid) {
			t.Errorf("expected ErrInvalid for base:%#x size:%d; got %v", tt.base, tt.size, err)
		}
	}

	if err := a.Init(testBase, testSize); err != nil {
		t.Fatal(err)
	}

	if err := a.Init(testBase, testSize); !errors.Is(err, ErrInitialized) {
		t.Fatalf("expected ErrInitialized; got %v", err)
	}
}

func TestMustAlloc(t *testing.T) {
	defer func(orig func()) { fault.Halt = orig }(fault.Halt)

	var halts int
	fault.Halt = func() { halts++ }

	var a Arena

	if err := a.Init(testBase, testSize); err != nil {
		t.Fatal(err)
	}

	a.MustAlloc(testSize)

	if halts != 0 {
		t.Fatal("unexpected fault")
	}

	a.MustAlloc(1)

	if halts != 1 {
		t.Fatalf("expected exhaustion to be fatal once; got %d halts", halts)
	}
}
