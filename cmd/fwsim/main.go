// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// fwsim boots the firmware on a simulated single-hart machine, running a
// scripted supervisor described by a YAML scenario.
package main

import (
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"

	"golang.org/x/term"

	"github.com/usbarmory/GoTEE-firmware/internal/reset"
	"github.com/usbarmory/GoTEE-firmware/internal/sim/system"
	"github.com/usbarmory/GoTEE-firmware/util"
)

//go:embed default.yaml
var defaultScenario []byte

// errFault is returned when the firmware halted without a power operation.
var errFault = errors.New("firmware fault")

type options struct {
	scenario    string
	elf         string
	interactive bool
	debug       bool
	introspect  bool
}

// session holds the scenario under test and the last booted machine.
type session struct {
	opts     *options
	scenario *Scenario
	annotate func(pc uint64) string

	// Output receives both firmware and supervisor consoles.
	Output io.Writer
	// Terminal, when set, colors console output by source.
	Terminal *term.Terminal

	sys *system.System
}

func newSession(opts *options) (s *session, err error) {
	s = &session{
		opts:   opts,
		Output: os.Stdout,
	}

	if s.scenario, err = LoadScenario(opts.scenario); err != nil {
		return nil, err
	}

	if opts.elf != "" {
		buf, err := os.ReadFile(opts.elf)

		if err != nil {
			return nil, err
		}

		dbg, err := util.NewDebugger(buf)

		if err != nil {
			return nil, fmt.Errorf("invalid supervisor ELF, %v", err)
		}

		s.annotate = dbg.Annotate
	}

	return
}

// boot runs the scenario on a fresh machine.
func (s *session) boot() (sys *system.System, err error) {
	cfg, err := s.scenario.Config()

	if err != nil {
		return
	}

	console := &util.BufferedLog{
		Output:   s.Output,
		Terminal: s.Terminal,
	}

	cfg.Output = console.Writer(util.Firmware)
	cfg.Log = console
	cfg.Annotate = s.annotate
	cfg.Debug = cfg.Debug || s.opts.debug
	cfg.Introspect = cfg.Introspect || s.opts.introspect

	if sys, err = system.New(cfg); err != nil {
		return
	}

	sys.Boot()
	console.Flush()

	s.sys = sys

	for _, err := range sys.Hart.Errors {
		log.Printf("fwsim supervisor check failed, %v", err)
	}

	if !sys.Finished {
		return sys, errFault
	}

	if len(sys.Hart.Errors) > 0 {
		return sys, fmt.Errorf("%d failed supervisor checks", len(sys.Hart.Errors))
	}

	return
}

func (s *session) summary() string {
	if s.sys == nil {
		return "not booted"
	}

	st := s.sys.Dispatcher.Stats()
	kind := "none"

	if s.sys.Finished {
		kind = s.sys.Kind.String()
	}

	return fmt.Sprintf("scenario:%q state:%s power:%s traps:%d calls:%d emulated:%d reflected:%d interrupts:%d delegated:%d",
		s.scenario.Name, s.sys.Dispatcher.State(), kind,
		st.Traps, st.Calls, st.Emulated, st.Reflected, st.Interrupts, len(s.sys.Hart.Delegated))
}

func interactive(s *session) (err error) {
	fd := int(os.Stdin.Fd())

	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)

		if err != nil {
			return err
		}

		defer term.Restore(fd, state)
	}

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, "")

	if w, h, err := term.GetSize(fd); err == nil {
		_ = t.SetSize(w, h)
	}

	s.Output = t
	s.Terminal = t

	log.SetOutput(t)
	defer log.SetOutput(os.Stderr)

	console := newConsole(s)
	console.Banner = fmt.Sprintf("%s/%s (%s) • firmware simulator", runtime.GOOS, runtime.GOARCH, runtime.Version())
	console.Run(t)

	return
}

func main() {
	opts := &options{}

	flag.StringVar(&opts.scenario, "s", "", "scenario file (YAML), the built-in one when empty")
	flag.StringVar(&opts.elf, "e", "", "supervisor ELF used to annotate fatal traps")
	flag.BoolVar(&opts.interactive, "i", false, "interactive console")
	flag.BoolVar(&opts.debug, "d", false, "log every trap")
	flag.BoolVar(&opts.introspect, "c", false, "dump machine CSRs before entering the supervisor")
	flag.Parse()

	log.SetFlags(0)

	s, err := newSession(opts)

	if err != nil {
		log.Fatalf("fwsim: %v", err)
	}

	if opts.interactive {
		if err = interactive(s); err != nil {
			log.Fatalf("fwsim: %v", err)
		}

		return
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		s.Terminal = term.NewTerminal(struct {
			io.Reader
			io.Writer
		}{os.Stdin, os.Stdout}, "")
	}

	sys, err := s.boot()

	if sys != nil {
		log.Print(s.summary())
	}

	if err != nil {
		log.Fatalf("fwsim: %v", err)
	}

	if sys.Kind != reset.Shutdown {
		os.Exit(int(sys.Kind))
	}
}
