// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package introspect

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/usbarmory/GoTEE-firmware/internal/csr"
)

type lines []string

func (l *lines) Printf(format string, a ...interface{}) error {
	*l = append(*l, fmt.Sprintf(format, a...))
	return nil
}

func TestDump(t *testing.T) {
	regs := csr.Map{
		csr.Mideleg:     0x222,
		csr.Pmpcfg0:     0x080f,
		csr.Pmpaddr(0):  0x10000000,
		csr.Pmpaddr(1):  0x10080000,
		csr.Pmpaddr(2):  0xdead,
		csr.Mhartid:     0,
		csr.Mstatus:     0x0a00000000,
		csr.Pmpaddr(20): 1,
	}

	snapshot := csr.Map{}
	for k, v := range regs {
		snapshot[k] = v
	}

	var out lines
	Dump(&out, regs, 2)

	if len(out) != len(registers)+2 {
		t.Fatalf("expected %d lines; got %d:\n%s", len(registers)+2, len(out), strings.Join(out, "\n"))
	}

	if exp := "mideleg  0x0000000000000222"; out[7] != exp {
		t.Fatalf("expected %q; got %q", exp, out[7])
	}

	if exp := "PMP:00 addr:0x0000000040000000 A:TOR R:true W:true X:true L:false"; out[8] != exp {
		t.Fatalf("expected %q; got %q", exp, out[8])
	}

	if exp := "PMP:01 addr:0x0000000040200000 A:TOR R:false W:false X:false L:false"; out[9] != exp {
		t.Fatalf("expected %q; got %q", exp, out[9])
	}

	if !reflect.DeepEqual(regs, snapshot) {
		t.Fatal("dump mutated hart state")
	}
}
