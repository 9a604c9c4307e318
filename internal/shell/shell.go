// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package shell implements a line oriented command console over a terminal.
package shell

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"text/tabwriter"

	"golang.org/x/term"
)

// ErrUnknown is returned for lines matching no command.
var ErrUnknown = errors.New("unknown command, type `help`")

// CmdFn represents a command handler, returning io.EOF closes the session.
type CmdFn func(term *term.Terminal, arg []string) (res string, err error)

// Cmd represents a console command.
type Cmd struct {
	Name    string
	Args    int
	Pattern *regexp.Regexp
	Syntax  string
	Help    string
	Fn      CmdFn
}

// Shell represents a set of console commands.
type Shell struct {
	Banner string
	Prompt string

	cmds map[string]*Cmd
}

// Add registers a command, replacing any with the same name.
func (s *Shell) Add(cmd Cmd) {
	if s.cmds == nil {
		s.cmds = make(map[string]*Cmd)
	}

	s.cmds[cmd.Name] = &cmd
}

// Help returns the command list, colored when term is not nil.
func (s *Shell) Help(term *term.Terminal) string {
	var help bytes.Buffer
	var names []string

	for name := range s.cmds {
		names = append(names, name)
	}

	sort.Strings(names)

	t := tabwriter.NewWriter(&help, 16, 8, 0, '\t', tabwriter.TabIndent)

	for _, name := range names {
		cmd := s.cmds[name]
		_, _ = fmt.Fprintf(t, "%s\t%s\t # %s\n", cmd.Name, cmd.Syntax, cmd.Help)
	}

	_ = t.Flush()

	if term == nil {
		return help.String()
	}

	return string(term.Escape.Cyan) + help.String() + string(term.Escape.Reset)
}

// Handle runs the command matching line.
func (s *Shell) Handle(term *term.Terminal, line string) (res string, err error) {
	var match *Cmd
	var arg []string

	for _, cmd := range s.cmds {
		if cmd.Pattern == nil {
			if cmd.Name == line {
				match = cmd
				break
			}

			continue
		}

		if m := cmd.Pattern.FindStringSubmatch(line); len(m) > 0 && len(m)-1 == cmd.Args {
			match = cmd
			arg = m[1:]
			break
		}
	}

	if match == nil {
		return "", ErrUnknown
	}

	return match.Fn(term, arg)
}

// Run reads and executes commands until the session is closed.
func (s *Shell) Run(term *term.Terminal) {
	term.SetPrompt(string(term.Escape.Red) + s.Prompt + string(term.Escape.Reset))

	fmt.Fprintf(term, "\n%s\n\n", s.Banner)
	fmt.Fprintf(term, "%s\n", s.Help(term))

	for {
		line, err := term.ReadLine()

		if err == io.EOF {
			break
		}

		if err != nil {
			fmt.Fprintf(term, "readline error, %v\n", err)
			continue
		}

		res, err := s.Handle(term, line)

		if err == io.EOF {
			break
		}

		if err != nil {
			fmt.Fprintf(term, "command error (%s), %v\n", line, err)
			continue
		}

		if len(res) > 0 {
			fmt.Fprintf(term, "%s\n", res)
		}
	}
}
