// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"runtime/debug"
	"runtime/pprof"
	"strconv"

	"golang.org/x/term"

	"github.com/usbarmory/GoTEE-firmware/internal/csr"
	"github.com/usbarmory/GoTEE-firmware/internal/introspect"
	"github.com/usbarmory/GoTEE-firmware/internal/pmp"
	"github.com/usbarmory/GoTEE-firmware/internal/shell"
	"github.com/usbarmory/GoTEE-firmware/internal/sim"
)

const maxBufferSize = 102400

var errNotBooted = errors.New("machine not booted, use `boot`")

// printer collects introspection output.
type printer struct {
	bytes.Buffer
}

func (p *printer) Printf(format string, a ...interface{}) error {
	_, err := fmt.Fprintf(p, format+"\n", a...)
	return err
}

func newConsole(s *session) *shell.Shell {
	c := &shell.Shell{Prompt: "> "}

	c.Add(shell.Cmd{
		Name: "help",
		Help: "this help",
		Fn: func(term *term.Terminal, _ []string) (string, error) {
			return c.Help(term), nil
		},
	})

	c.Add(shell.Cmd{
		Name:    "exit, quit",
		Args:    1,
		Pattern: regexp.MustCompile(`^(exit|quit)$`),
		Help:    "close session",
		Fn:      exitCmd,
	})

	c.Add(shell.Cmd{
		Name: "stack",
		Help: "stack trace of current goroutine",
		Fn:   stackCmd,
	})

	c.Add(shell.Cmd{
		Name: "stackall",
		Help: "stack trace of all goroutines",
		Fn:   stackallCmd,
	})

	c.Add(shell.Cmd{
		Name: "boot",
		Help: "boot the firmware running the scenario",
		Fn:   s.bootCmd,
	})

	c.Add(shell.Cmd{
		Name:    "load",
		Args:    1,
		Pattern: regexp.MustCompile(`^load (\S+)$`),
		Syntax:  "<path>",
		Help:    "load scenario",
		Fn:      s.loadCmd,
	})

	c.Add(shell.Cmd{
		Name: "stats",
		Help: "last run summary",
		Fn: func(_ *term.Terminal, _ []string) (string, error) {
			return s.summary(), nil
		},
	})

	c.Add(shell.Cmd{
		Name: "csr",
		Help: "machine CSRs and PMP table",
		Fn:   s.csrCmd,
	})

	c.Add(shell.Cmd{
		Name:    "pmp",
		Args:    1,
		Pattern: regexp.MustCompile(`^pmp (\d+)$`),
		Syntax:  "<index>",
		Help:    "read PMP CSR",
		Fn:      s.pmpCmd,
	})

	c.Add(shell.Cmd{
		Name:    "peek",
		Args:    2,
		Pattern: regexp.MustCompile(`^peek ([[:xdigit:]]+) (\d+)$`),
		Syntax:  "<hex offset> <size>",
		Help:    "memory display",
		Fn:      s.memReadCmd,
	})

	c.Add(shell.Cmd{
		Name:    "poke",
		Args:    2,
		Pattern: regexp.MustCompile(`^poke ([[:xdigit:]]+) ([[:xdigit:]]+)$`),
		Syntax:  "<hex offset> <hex value>",
		Help:    "memory write (32-bit, little endian)",
		Fn:      s.memWriteCmd,
	})

	return c
}

func exitCmd(_ *term.Terminal, _ []string) (string, error) {
	return "logout", io.EOF
}

func stackCmd(_ *term.Terminal, _ []string) (string, error) {
	return string(debug.Stack()), nil
}

func stackallCmd(_ *term.Terminal, _ []string) (string, error) {
	buf := new(bytes.Buffer)
	pprof.Lookup("goroutine").WriteTo(buf, 1)

	return buf.String(), nil
}

func (s *session) bootCmd(_ *term.Terminal, _ []string) (res string, err error) {
	if _, err = s.boot(); err != nil {
		return
	}

	return s.summary(), nil
}

func (s *session) loadCmd(_ *term.Terminal, arg []string) (res string, err error) {
	sc, err := LoadScenario(arg[0])

	if err != nil {
		return
	}

	s.scenario = sc
	s.sys = nil

	return fmt.Sprintf("loaded %q, %d steps", sc.Name, len(sc.Steps)), nil
}

func (s *session) csrCmd(_ *term.Terminal, _ []string) (res string, err error) {
	if s.sys == nil {
		return "", errNotBooted
	}

	p := &printer{}
	introspect.Dump(p, s.sys.Hart.CSR, pmp.MaxEntries)

	return p.String(), nil
}

func (s *session) pmpCmd(_ *term.Terminal, arg []string) (res string, err error) {
	if s.sys == nil {
		return "", errNotBooted
	}

	i, err := strconv.ParseUint(arg[0], 10, 8)

	if err != nil {
		return "", fmt.Errorf("invalid index, %v", err)
	}

	if i >= pmp.MaxEntries {
		return "", fmt.Errorf("index must be < %d", pmp.MaxEntries)
	}

	regs := s.sys.Hart.CSR
	addrs := make([]uint64, i+1)

	for n := range addrs {
		addrs[n] = regs.Read(csr.Pmpaddr(n))
	}

	e := pmp.Decode(regs.Read(csr.Pmpcfg0), addrs)[i]

	return fmt.Sprintf("PMP:%.2d %s", i, e), nil
}

func (s *session) memory(addr uint64, size int) (*sim.Memory, error) {
	if s.sys == nil {
		return nil, errNotBooted
	}

	for _, m := range []*sim.Memory{s.sys.DRAM, s.sys.Env} {
		if addr >= m.Base && addr+uint64(size) <= m.Base+uint64(len(m.Data)) {
			return m, nil
		}
	}

	return nil, fmt.Errorf("%#x-%#x outside simulated memory", addr, addr+uint64(size))
}

func (s *session) memReadCmd(_ *term.Terminal, arg []string) (res string, err error) {
	addr, err := strconv.ParseUint(arg[0], 16, 64)

	if err != nil {
		return "", fmt.Errorf("invalid address, %v", err)
	}

	size, err := strconv.ParseUint(arg[1], 10, 32)

	if err != nil {
		return "", fmt.Errorf("invalid size, %v", err)
	}

	if size > maxBufferSize {
		return "", fmt.Errorf("size argument must be <= %d", maxBufferSize)
	}

	m, err := s.memory(addr, int(size))

	if err != nil {
		return
	}

	buf := make([]byte, size)

	if err = m.Read(addr, buf); err != nil {
		return
	}

	return hex.Dump(buf), nil
}

func (s *session) memWriteCmd(_ *term.Terminal, arg []string) (res string, err error) {
	addr, err := strconv.ParseUint(arg[0], 16, 64)

	if err != nil {
		return "", fmt.Errorf("invalid address, %v", err)
	}

	val, err := strconv.ParseUint(arg[1], 16, 32)

	if err != nil {
		return "", fmt.Errorf("invalid data, %v", err)
	}

	m, err := s.memory(addr, 4)

	if err != nil {
		return
	}

	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(val))

	err = m.Write(addr, buf)

	return
}
