// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package util

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"golang.org/x/term"
)

func TestBufferedLog(t *testing.T) {
	var out bytes.Buffer

	l := &BufferedLog{Output: &out}

	fmt.Fprint(l.Writer(Firmware), "fw ")
	fmt.Fprint(l.Writer(Supervisor), "supervisor line\n")

	if out.String() != "supervisor line\n" {
		t.Fatalf("unexpected output %q", out.String())
	}

	fmt.Fprint(l.Writer(Firmware), "line\n")

	if out.String() != "supervisor line\nfw line\n" {
		t.Fatalf("unexpected output %q", out.String())
	}

	l.Log('x', Supervisor)
	l.Flush()

	if !strings.HasSuffix(out.String(), "x") {
		t.Fatalf("partial line not flushed, %q", out.String())
	}
}

func TestBufferedLogLimit(t *testing.T) {
	var out bytes.Buffer

	l := &BufferedLog{Output: &out}

	for i := 0; i <= outputLimit; i++ {
		l.Log('a', Supervisor)
	}

	if out.Len() != outputLimit+1 {
		t.Errorf("%d bytes flushed", out.Len())
	}
}

func TestBufferedTermLog(t *testing.T) {
	var out bytes.Buffer

	rw := struct {
		io.Reader
		io.Writer
	}{&bytes.Buffer{}, &out}

	tt := term.NewTerminal(rw, "")
	l := &BufferedLog{Terminal: tt}

	fmt.Fprint(l.Writer(Supervisor), "hello\n")

	s := out.String()

	if !strings.HasPrefix(s, string(tt.Escape.Red)) || !strings.HasSuffix(s, string(tt.Escape.Reset)) {
		t.Errorf("output not colored, %q", s)
	}

	if !strings.Contains(s, "hello\r\n") {
		t.Errorf("unexpected output %q", s)
	}
}
