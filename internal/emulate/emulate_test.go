// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package emulate

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/usbarmory/GoTEE-firmware/internal/csr"
	"github.com/usbarmory/GoTEE-firmware/internal/hart"
	"github.com/usbarmory/GoTEE-firmware/internal/pmp"
)

const base = 0x1000

type memory []byte

func (m memory) Read(addr uint64, buf []byte) error {
	copy(buf, m[addr-base:])
	return nil
}

func (m memory) Write(addr uint64, buf []byte) error {
	copy(m[addr-base:], buf)
	return nil
}

type clint uint64

func (c clint) Now() uint64 { return uint64(c) }
func (c clint) SetCompare(uint64) {}
func (c clint) SetSoftware(bool) {}

func newEmulator(code ...uint32) (*Emulator, memory) {
	m := make(memory, 0x100)

	for i, insn := range code {
		binary.LittleEndian.PutUint32(m[i*4:], insn)
	}

	return &Emulator{CSR: csr.Map{}, Bus: m, Clint: clint(1234)}, m
}

func TestDecode(t *testing.T) {
	for _, tt := range []struct {
		insn uint32
		n    uint64
		want access
	}{
		{0x0005b503, 4, access{size: 8, signed: true, reg: 10, len: 4}}, // ld a0, 0(a1)
		{0x0005d503, 4, access{size: 2, reg: 10, len: 4}},               // lhu a0, 0(a1)
		{0x0005e503, 4, access{size: 4, reg: 10, len: 4}},               // lwu a0, 0(a1)
		{0x00a5a023, 4, access{store: true, size: 4, reg: 10, len: 4}},  // sw a0, 0(a1)
		{0x00a59023, 4, access{store: true, size: 2, reg: 10, len: 4}},  // sh a0, 0(a1)
		{0x4188, 2, access{size: 4, signed: true, reg: 10, len: 2}},     // c.lw a0, 0(a1)
		{0xe188, 2, access{store: true, size: 8, reg: 10, len: 2}},      // c.sd a0, 0(a1)
		{0x6502, 2, access{size: 8, reg: 10, len: 2}},                   // c.ldsp a0, 0(sp)
		{0xc02a, 2, access{store: true, size: 4, reg: 10, len: 2}},      // c.swsp a0, 0(sp)
	} {
		a, err := decode(tt.insn, tt.n)

		if err != nil {
			t.Errorf("%#x, %v", tt.insn, err)
			continue
		}

		if a != tt.want {
			t.Errorf("%#x, got %+v expected %+v", tt.insn, a, tt.want)
		}
	}

	for _, insn := range []uint32{
		0x00058503, // lb a0, 0(a1)
		0x00a58023, // sb a0, 0(a1)
		0x00000013, // nop
	} {
		if _, err := decode(insn, 4); !errors.Is(err, ErrUnsupported) {
			t.Errorf("%#x, unexpected error %v", insn, err)
		}
	}
}

func TestMisalignedLoad(t *testing.T) {
	e, m := newEmulator(0x00059503) // lh a0, 0(a1)

	m[0x81] = 0xfe
	m[0x82] = 0xff

	f := &hart.Frame{PC: base, Cause: csr.LoadMisaligned, Tval: base + 0x81}

	if err := e.Misaligned(f); err != nil {
		t.Fatal(err)
	}

	if f.A(0) != ^uint64(1) {
		t.Errorf("a0 %#x", f.A(0))
	}

	if f.PC != base+4 {
		t.Errorf("pc %#x", f.PC)
	}
}

func TestMisalignedStore(t *testing.T) {
	e, m := newEmulator(0x00a5a023) // sw a0, 0(a1)

	f := &hart.Frame{PC: base, Cause: csr.StoreMisaligned, Tval: base + 0x83}
	f.SetA(0, 0x1122334455667788)

	if err := e.Misaligned(f); err != nil {
		t.Fatal(err)
	}

	if v := binary.LittleEndian.Uint32(m[0x83:]); v != 0x55667788 {
		t.Errorf("stored %#x", v)
	}

	if m[0x87] != 0 {
		t.Errorf("store overflow")
	}
}

func TestMisalignedRefused(t *testing.T) {
	e, _ := newEmulator(0x0005b503) // ld a0, 0(a1)

	f := &hart.Frame{PC: base, Cause: csr.StoreMisaligned, Tval: base + 0x81}
	saved := *f

	if err := e.Misaligned(f); !errors.Is(err, ErrUnsupported) {
		t.Errorf("cause mismatch, unexpected error %v", err)
	}

	e.CSR.(csr.Map)[csr.Satp] = 8 << 60

	f.Cause = csr.LoadMisaligned
	saved.Cause = f.Cause

	if err := e.Misaligned(f); !errors.Is(err, ErrUnsupported) {
		t.Errorf("translation, unexpected error %v", err)
	}

	if *f != saved {
		t.Errorf("frame mutated")
	}
}

func TestMisalignedProtected(t *testing.T) {
	// code in [base, base+0x80), data denied from base+0x80
	table, err := new(pmp.Builder).
		Add(base, pmp.None).
		Add(base+0x80, pmp.RX).
		Add(base+0x100, pmp.None).
		Build()

	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		name  string
		insn  uint32
		cause uint64
		pc    uint64
		addr  uint64
		fault uint64
		at    uint64
	}{
		{"load", 0x0005b503, csr.LoadMisaligned, base, base + 0x81, csr.LoadFault, base + 0x81},
		{"straddling load", 0x0005b503, csr.LoadMisaligned, base, base + 0x7b, csr.LoadFault, base + 0x7b},
		{"store", 0x00a5b023, csr.StoreMisaligned, base, base + 0x13, csr.StoreFault, base + 0x13},
		{"fetch", 0x0005b503, csr.LoadMisaligned, base + 0x80, base + 0x11, csr.InstructionFault, base + 0x80},
	} {
		t.Run(tt.name, func(t *testing.T) {
			e, m := newEmulator()
			e.PMP = table

			binary.LittleEndian.PutUint32(m[tt.pc-base:], tt.insn)
			binary.LittleEndian.PutUint64(m[0x80:], 0x1122334455667788)

			f := &hart.Frame{PC: tt.pc, Cause: tt.cause, Tval: tt.addr}
			f.SetA(0, 0xcafe)
			saved := *f

			var fault *AccessFault

			if err := e.Misaligned(f); !errors.As(err, &fault) {
				t.Fatalf("unexpected error %v", err)
			}

			if fault.Cause != tt.fault || fault.Addr != tt.at {
				t.Errorf("fault %d at %#x", fault.Cause, fault.Addr)
			}

			if *f != saved {
				t.Errorf("frame mutated")
			}

			if v := binary.LittleEndian.Uint64(m[0x80:]); v != 0x1122334455667788 {
				t.Errorf("protected memory modified %#x", v)
			}
		})
	}
}

func TestTime(t *testing.T) {
	const rdtime = 0xc01027f3 // csrr a5, time

	e, _ := newEmulator(rdtime)

	// instruction bits from mtval
	f := &hart.Frame{PC: base, Cause: csr.IllegalInstruction, Tval: rdtime}

	if err := e.Illegal(f); err != nil {
		t.Fatal(err)
	}

	if f.X[15] != 1234 || f.PC != base+4 {
		t.Errorf("a5 %d pc %#x", f.X[15], f.PC)
	}

	// instruction bits fetched
	f = &hart.Frame{PC: base, Cause: csr.IllegalInstruction}

	if err := e.Illegal(f); err != nil {
		t.Fatal(err)
	}

	if f.X[15] != 1234 {
		t.Errorf("a5 %d", f.X[15])
	}

	// csrrw time, a0 is not a read
	f = &hart.Frame{PC: base, Cause: csr.IllegalInstruction, Tval: 0xc0151073}

	if err := e.Illegal(f); !errors.Is(err, ErrUnsupported) {
		t.Errorf("unexpected error %v", err)
	}
}
