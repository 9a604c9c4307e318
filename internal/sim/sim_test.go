// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sim

import (
	"errors"
	"testing"

	"github.com/usbarmory/GoTEE-firmware/internal/csr"
	"github.com/usbarmory/GoTEE-firmware/internal/hart"
	"github.com/usbarmory/GoTEE-firmware/internal/logging"
)

func supervisorFrame() *hart.Frame {
	return &hart.Frame{
		PC:      0x1000,
		Mstatus: csr.PrivSupervisor << csr.MstatusMPPShift,
	}
}

func TestMemoryBounds(t *testing.T) {
	m := NewMemory(0x1000, 16)

	if err := m.Write64(0x1008, 0x0102030405060708); err != nil {
		t.Fatal(err)
	}

	if val, err := m.Read64(0x1008); err != nil || val != 0x0102030405060708 {
		t.Errorf("%#x, %v", val, err)
	}

	for _, addr := range []uint64{0xfff, 0x1009, 0x1010} {
		if err := m.Write64(addr, 0); !errors.Is(err, ErrBusFault) {
			t.Errorf("%#x: %v", addr, err)
		}
	}
}

func TestUARTBusy(t *testing.T) {
	u := &UART{Busy: 2}

	if err := u.WriteByte('a'); err != nil {
		t.Fatal(err)
	}

	if err := u.WriteByte('b'); !errors.Is(err, logging.ErrWouldBlock) {
		t.Errorf("%v", err)
	}

	if err := u.WriteByte('b'); err != nil {
		t.Fatal(err)
	}

	if u.String() != "" {
		t.Errorf("output before flush %q", u.String())
	}

	if err := u.Flush(); err != nil || u.String() != "ab" {
		t.Errorf("%q, %v", u.String(), err)
	}
}

func TestHartPrivilege(t *testing.T) {
	h := NewHart(NewMemory(0x1000, 64), Raw(csr.IllegalInstruction, 0))

	if err := h.Resume(&hart.Frame{}); !errors.Is(err, ErrPrivilege) {
		t.Errorf("%v", err)
	}

	if h.Resumes != 0 {
		t.Errorf("%d resumes", h.Resumes)
	}
}

func TestHartTrap(t *testing.T) {
	h := NewHart(NewMemory(0x1000, 64),
		Set(5, 42),
		Illegal(0xc0102573),
	)

	f := supervisorFrame()

	if err := h.Resume(f); err != nil {
		t.Fatal(err)
	}

	if f.Cause != csr.IllegalInstruction || f.Tval != 0xc0102573 || f.X[5] != 42 {
		t.Errorf("%s", f)
	}

	if h.CSR.Read(csr.Mepc) != f.PC || h.CSR.Read(csr.Mcause) != f.Cause {
		t.Errorf("mepc:%#x mcause:%#x", h.CSR.Read(csr.Mepc), h.CSR.Read(csr.Mcause))
	}

	if err := h.Resume(f); !errors.Is(err, ErrHalted) || !h.Done() {
		t.Errorf("%v", err)
	}
}

func TestHartDelegation(t *testing.T) {
	h := NewHart(NewMemory(0x1000, 64),
		Raw(csr.LoadPageFault, 0x2000),
		Ecall(0x10, 0),
	)

	h.CSR.Write(csr.Medeleg, 1<<csr.LoadPageFault)
	f := supervisorFrame()

	if err := h.Resume(f); err != nil {
		t.Fatal(err)
	}

	if f.Cause != csr.EcallFromS {
		t.Errorf("cause %d", f.Cause)
	}

	if len(h.Delegated) != 1 || h.Delegated[0] != csr.LoadPageFault {
		t.Errorf("delegated %v", h.Delegated)
	}
}

func TestHartTimer(t *testing.T) {
	h := NewHart(NewMemory(0x1000, 64), WaitFor(csr.STIP))
	h.Clint.SetCompare(8)
	h.CSR.Write(csr.Mie, csr.MTIP)

	f := supervisorFrame()

	if err := h.Resume(f); err != nil {
		t.Fatal(err)
	}

	if f.Cause != csr.MachineTimer || h.Clint.Now() < 8 {
		t.Errorf("cause:%#x mtime:%d", f.Cause, h.Clint.Now())
	}

	// never forwarded, the wait does not complete
	h.CSR.Write(csr.Mie, 0)
	h.Limit = 16

	if err := h.Resume(f); !errors.Is(err, ErrStalled) {
		t.Errorf("%v", err)
	}
}
