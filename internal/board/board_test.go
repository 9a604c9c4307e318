// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package board

import (
	"testing"
)

func TestSerialConfig(t *testing.T) {
	c := DefaultSerial()

	if s := c.String(); s != "115200 8N1" {
		t.Fatalf("unexpected configuration %q", s)
	}

	// 24MHz / (16 * 115200) = 13.02
	if d := c.Divisor(DefaultClocks().APB1); d != 13 {
		t.Fatalf("expected divisor 13; got %d", d)
	}

	c.Baud = 0

	if d := c.Divisor(MHz(24)); d != 0 {
		t.Fatalf("expected zero divisor; got %d", d)
	}
}

func TestHz(t *testing.T) {
	for f, s := range map[Hz]string{
		MHz(600): "600MHz",
		MHz(24):  "24MHz",
		1843200:  "1843200Hz",
	} {
		if f.String() != s {
			t.Errorf("got %q expected %q", f.String(), s)
		}
	}
}
