// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/usbarmory/GoTEE-firmware/internal/reset"
)

func TestParseScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: test
quantum: 4
uart_busy: 3
steps:
  - print: "ok\n"
  - ecall: {eid: 0x53525354, fid: 0, args: [1, 0]}
`))

	if err != nil {
		t.Fatal(err)
	}

	if sc.Name != "test" || sc.Quantum != 4 || sc.UARTBusy != 3 {
		t.Errorf("%+v", sc)
	}

	program, err := sc.Program()

	if err != nil {
		t.Fatal(err)
	}

	// one call per printed character
	if len(program) != 4 {
		t.Errorf("%d steps", len(program))
	}

	exp := &EcallStep{EID: 0x53525354, FID: 0, Args: []uint64{1, 0}}

	if diff := cmp.Diff(exp, sc.Steps[1].Ecall); diff != "" {
		t.Errorf("ecall step mismatch (-want +got):\n%s", diff)
	}
}

func TestParseScenarioInvalid(t *testing.T) {
	for _, tc := range []struct {
		doc string
		err error
	}{
		{"steps: [{}]", errStep},
		{"steps: [{print: a, jump: 0}]", errStep},
		{"steps: [{set: {reg: 32, val: 0}}]", nil},
		{"steps: [{ecall: {eid: 1, args: [1, 2, 3, 4, 5, 6, 7]}}]", nil},
		{"steps: 1", nil},
	} {
		_, err := ParseScenario([]byte(tc.doc))

		if err == nil {
			t.Errorf("%q: no error", tc.doc)
			continue
		}

		if tc.err != nil && !errors.Is(err, tc.err) {
			t.Errorf("%q: %v", tc.doc, err)
		}
	}
}

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario("")

	if err != nil {
		t.Fatal(err)
	}

	if sc.Name != "supervisor smoke test" {
		t.Errorf("default scenario %q", sc.Name)
	}

	path := filepath.Join(t.TempDir(), "scenario.yaml")

	if err = os.WriteFile(path, []byte("name: file\nsteps: [{jump: 0x80000000}]\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if sc, err = LoadScenario(path); err != nil || sc.Name != "file" {
		t.Errorf("%+v, %v", sc, err)
	}

	if _, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("missing file loaded")
	}
}

func TestDefaultScenario(t *testing.T) {
	var out bytes.Buffer

	s, err := newSession(&options{})

	if err != nil {
		t.Fatal(err)
	}

	s.Output = &out

	sys, err := s.boot()

	if err != nil {
		t.Fatalf("%v\n%s", err, out.String())
	}

	if sys.Kind != reset.Shutdown {
		t.Errorf("power operation %s", sys.Kind)
	}

	st := sys.Dispatcher.Stats()

	if st.Emulated != 2 || st.Interrupts == 0 || st.Reflected != 0 {
		t.Errorf("%+v", st)
	}

	for _, exp := range []string{
		"supervisor started\n",
		"timer fired\n",
		"fw supervisor exited, shutdown (no reason)",
	} {
		if !strings.Contains(out.String(), exp) {
			t.Errorf("missing %q in\n%s", exp, out.String())
		}
	}

	if summary := s.summary(); !strings.Contains(summary, "power:shutdown") {
		t.Errorf("summary %q", summary)
	}
}

func TestScenarioFault(t *testing.T) {
	var out bytes.Buffer

	sc, err := ParseScenario([]byte("name: fault\nsteps: [{raw: {cause: 24}}]\n"))

	if err != nil {
		t.Fatal(err)
	}

	s := &session{opts: &options{}, scenario: sc, Output: &out}

	if _, err = s.boot(); !errors.Is(err, errFault) {
		t.Errorf("%v", err)
	}

	if !strings.Contains(out.String(), "unrecoverable error") {
		t.Errorf("missing fault banner in\n%s", out.String())
	}
}

func TestScenarioCheckFailure(t *testing.T) {
	sc, err := ParseScenario([]byte(`
steps:
  - expect: {reg: 10, val: 1}
  - ecall: {eid: 0x53525354, fid: 0, args: [0, 0]}
`))

	if err != nil {
		t.Fatal(err)
	}

	s := &session{opts: &options{}, scenario: sc, Output: &bytes.Buffer{}}

	sys, err := s.boot()

	if err == nil || sys == nil || len(sys.Hart.Errors) != 1 {
		t.Errorf("%v", err)
	}
}
