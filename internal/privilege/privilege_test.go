// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package privilege

import (
	"errors"
	"testing"

	"github.com/usbarmory/GoTEE-firmware/internal/csr"
	"github.com/usbarmory/GoTEE-firmware/internal/pmp"
)

func TestDefaultDelegation(t *testing.T) {
	d := DefaultDelegation()

	for _, cause := range []uint64{
		csr.SupervisorSoftware,
		csr.SupervisorTimer,
		csr.SupervisorExternal,
		csr.EcallFromU,
		csr.LoadPageFault,
		csr.Breakpoint,
	} {
		if !d.Delegates(cause) {
			t.Errorf("expected cause %#x to be delegated", cause)
		}
	}

	for _, cause := range []uint64{
		csr.MachineTimer,
		csr.MachineSoftware,
		csr.IllegalInstruction,
		csr.LoadMisaligned,
		csr.StoreMisaligned,
		csr.EcallFromS,
		csr.EcallFromM,
	} {
		if d.Delegates(cause) {
			t.Errorf("expected cause %#x to be retained", cause)
		}
	}
}

func TestApplyOnce(t *testing.T) {
	var b pmp.Builder

	tbl, err := b.Add(0x80000000, pmp.RWX).Build()

	if err != nil {
		t.Fatal(err)
	}

	c := &Config{
		PMP:        tbl,
		Delegation: DefaultDelegation(),
	}

	regs := csr.Map{}

	if err = c.Apply(regs); err != nil {
		t.Fatal(err)
	}

	if regs[csr.Mideleg] != csr.SSIP|csr.STIP|csr.SEIP {
		t.Fatalf("unexpected mideleg %#x", regs[csr.Mideleg])
	}

	if regs[csr.Medeleg] != c.Delegation.Exceptions {
		t.Fatalf("unexpected medeleg %#x", regs[csr.Medeleg])
	}

	if regs[csr.Pmpaddr0] != 0x20000000 || regs[csr.Pmpcfg0] != 0x0f {
		t.Fatalf("unexpected PMP registers %#x %#x", regs[csr.Pmpaddr0], regs[csr.Pmpcfg0])
	}

	again := csr.Map{}

	if err = c.Apply(again); !errors.Is(err, ErrConfigured) {
		t.Fatalf("expected ErrConfigured; got %v", err)
	}

	if len(again) != 0 {
		t.Fatalf("expected no register writes on second apply; got %v", again)
	}

	if !c.Applied() {
		t.Fatal("expected configuration to be reported as applied")
	}
}
