// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package reset

import (
	"testing"
)

func TestKind(t *testing.T) {
	for k, s := range map[Kind]string{
		Shutdown:   "shutdown",
		ColdReboot: "cold reboot",
		WarmReboot: "warm reboot",
		3:          "reset kind 0x3",
	} {
		if k.String() != s {
			t.Errorf("%d, got %q expected %q", uint32(k), k.String(), s)
		}

		if k.Valid() != (k <= 2) {
			t.Errorf("%d, valid %v", uint32(k), k.Valid())
		}
	}
}

func TestReason(t *testing.T) {
	for code, s := range map[uint32]string{
		0:          "no reason",
		1:          "system failure",
		2:          "reserved reason 0x2",
		0xe0000000: "SBI implementation specific reason 0xe0000000",
		0xf00000ff: "vendor specific reason 0xf00000ff",
	} {
		if r := Reason(code); r != s {
			t.Errorf("%#x, got %q expected %q", code, r, s)
		}
	}
}
