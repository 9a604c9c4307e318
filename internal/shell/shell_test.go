// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package shell

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"

	"golang.org/x/term"
)

type pipe struct {
	in  io.Reader
	out bytes.Buffer
}

func (p *pipe) Read(b []byte) (int, error) {
	return p.in.Read(b)
}

func (p *pipe) Write(b []byte) (int, error) {
	return p.out.Write(b)
}

func newShell() *Shell {
	s := &Shell{Banner: "test console", Prompt: "> "}

	s.Add(Cmd{
		Name: "ping",
		Help: "liveness check",
		Fn: func(_ *term.Terminal, _ []string) (string, error) {
			return "pong", nil
		},
	})

	s.Add(Cmd{
		Name:    "add",
		Args:    2,
		Pattern: regexp.MustCompile(`^add (\d+) (\d+)$`),
		Syntax:  "<a> <b>",
		Help:    "echo operands",
		Fn: func(_ *term.Terminal, arg []string) (string, error) {
			return strings.Join(arg, "+"), nil
		},
	})

	s.Add(Cmd{
		Name:    "exit, quit",
		Args:    1,
		Pattern: regexp.MustCompile(`^(exit|quit)$`),
		Help:    "close session",
		Fn: func(_ *term.Terminal, _ []string) (string, error) {
			return "logout", io.EOF
		},
	})

	return s
}

func TestHandle(t *testing.T) {
	s := newShell()

	for _, tc := range []struct {
		line string
		res  string
		err  error
	}{
		{"ping", "pong", nil},
		{"add 1 2", "1+2", nil},
		{"quit", "logout", io.EOF},
		{"add 1", "", ErrUnknown},
		{"ping ", "", ErrUnknown},
		{"", "", ErrUnknown},
	} {
		res, err := s.Handle(nil, tc.line)

		if !errors.Is(err, tc.err) || res != tc.res {
			t.Errorf("%q: %q, %v", tc.line, res, err)
		}
	}
}

func TestHelp(t *testing.T) {
	help := newShell().Help(nil)

	add := strings.Index(help, "add")
	ping := strings.Index(help, "ping")

	if add < 0 || ping < 0 || add > ping {
		t.Errorf("unsorted help:\n%s", help)
	}

	if !strings.Contains(help, "# echo operands") {
		t.Errorf("missing help text:\n%s", help)
	}
}

func TestRun(t *testing.T) {
	p := &pipe{in: strings.NewReader("ping\radd 2 3\rbogus\rexit\rping\r")}

	newShell().Run(term.NewTerminal(p, "> "))

	out := p.out.String()

	for _, s := range []string{"test console", "pong", "2+3", "command error (bogus)"} {
		if !strings.Contains(out, s) {
			t.Errorf("missing %q in output:\n%s", s, out)
		}
	}

	if strings.Count(out, "pong") != 1 {
		t.Errorf("command executed after exit:\n%s", out)
	}
}
