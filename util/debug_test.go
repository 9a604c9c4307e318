// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package util

import (
	"os"
	"reflect"
	"strings"
	"testing"
)

func TestDebuggerInvalidImage(t *testing.T) {
	if _, err := NewDebugger([]byte("not an ELF image")); err == nil {
		t.Fatal("expected error")
	}
}

func TestDebugger(t *testing.T) {
	exe, err := os.Executable()

	if err != nil {
		t.Skip(err)
	}

	buf, err := os.ReadFile(exe)

	if err != nil {
		t.Skip(err)
	}

	d, err := NewDebugger(buf)

	if err != nil {
		t.Skipf("test binary not a Go ELF image, %v", err)
	}

	pc := uint64(reflect.ValueOf(TestDebuggerInvalidImage).Pointer())

	line := d.Annotate(pc)

	// position independent binaries are relocated at load time
	if !strings.Contains(line, "debug_test.go") {
		t.Skipf("relocated test binary, %q", line)
	}

	if _, err = d.PCToLine(0); err == nil {
		t.Errorf("expected error for pc 0")
	}
}
