// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/usbarmory/GoTEE-firmware/internal/sbi"
	"github.com/usbarmory/GoTEE-firmware/internal/sim"
	"github.com/usbarmory/GoTEE-firmware/internal/sim/system"
)

var errStep = errors.New("step must hold exactly one action")

// Scenario represents a scripted supervisor run.
type Scenario struct {
	Name string `yaml:"name"`

	DRAM     int    `yaml:"dram"`
	Quantum  uint64 `yaml:"quantum"`
	Limit    int    `yaml:"limit"`
	UARTBusy int    `yaml:"uart_busy"`

	Introspect bool `yaml:"introspect"`
	Debug      bool `yaml:"debug"`

	Steps []Step `yaml:"steps"`
}

// EcallStep represents a supervisor firmware call.
type EcallStep struct {
	EID  uint64   `yaml:"eid"`
	FID  uint64   `yaml:"fid"`
	Args []uint64 `yaml:"args"`
}

// RawStep represents an arbitrary exception.
type RawStep struct {
	Cause uint64 `yaml:"cause"`
	Tval  uint64 `yaml:"tval"`
}

// MisalignedStep represents a misaligned memory access.
type MisalignedStep struct {
	Store bool   `yaml:"store"`
	Insn  uint32 `yaml:"insn"`
	Addr  uint64 `yaml:"addr"`
}

// RegStep represents a general purpose register value.
type RegStep struct {
	Reg int    `yaml:"reg"`
	Val uint64 `yaml:"val"`
}

// WriteStep represents a supervisor memory store.
type WriteStep struct {
	Addr uint64 `yaml:"addr"`
	Val  uint64 `yaml:"val"`
}

// Step represents a single scenario action, only one field is set.
type Step struct {
	Print      string          `yaml:"print"`
	Ecall      *EcallStep      `yaml:"ecall"`
	Raw        *RawStep        `yaml:"raw"`
	Illegal    *uint32         `yaml:"illegal"`
	Misaligned *MisalignedStep `yaml:"misaligned"`
	Set        *RegStep        `yaml:"set"`
	Expect     *RegStep        `yaml:"expect"`
	Write      *WriteStep      `yaml:"write"`
	Jump       *uint64         `yaml:"jump"`
	Wait       *uint64         `yaml:"wait"`
}

func (s *Step) actions() (n int) {
	if s.Print != "" {
		n++
	}

	for _, set := range []bool{
		s.Ecall != nil, s.Raw != nil, s.Illegal != nil, s.Misaligned != nil,
		s.Set != nil, s.Expect != nil, s.Write != nil, s.Jump != nil, s.Wait != nil,
	} {
		if set {
			n++
		}
	}

	return
}

// Program converts the step to simulated supervisor steps, a print step
// expands to one legacy console call per character.
func (s *Step) Program() (steps []sim.Step, err error) {
	if s.actions() != 1 {
		return nil, errStep
	}

	switch {
	case s.Print != "":
		for _, c := range []byte(s.Print) {
			steps = append(steps, sim.Ecall(sbi.EXT_LEGACY_PUTCHAR, 0, uint64(c)))
		}
	case s.Ecall != nil:
		if len(s.Ecall.Args) > 6 {
			return nil, fmt.Errorf("%d call arguments", len(s.Ecall.Args))
		}

		steps = append(steps, sim.Ecall(s.Ecall.EID, s.Ecall.FID, s.Ecall.Args...))
	case s.Raw != nil:
		steps = append(steps, sim.Raw(s.Raw.Cause, s.Raw.Tval))
	case s.Illegal != nil:
		steps = append(steps, sim.Illegal(*s.Illegal))
	case s.Misaligned != nil:
		steps = append(steps, sim.Misaligned(s.Misaligned.Store, s.Misaligned.Insn, s.Misaligned.Addr))
	case s.Set != nil:
		if s.Set.Reg < 0 || s.Set.Reg > 31 {
			return nil, fmt.Errorf("invalid register x%d", s.Set.Reg)
		}

		steps = append(steps, sim.Set(s.Set.Reg, s.Set.Val))
	case s.Expect != nil:
		if s.Expect.Reg < 0 || s.Expect.Reg > 31 {
			return nil, fmt.Errorf("invalid register x%d", s.Expect.Reg)
		}

		steps = append(steps, sim.ExpectReg(s.Expect.Reg, s.Expect.Val))
	case s.Write != nil:
		steps = append(steps, sim.Write(s.Write.Addr, s.Write.Val))
	case s.Jump != nil:
		steps = append(steps, sim.Jump(*s.Jump))
	case s.Wait != nil:
		steps = append(steps, sim.WaitFor(*s.Wait))
	}

	return
}

// Program returns the simulated supervisor.
func (sc *Scenario) Program() (program []sim.Step, err error) {
	for i := range sc.Steps {
		steps, err := sc.Steps[i].Program()

		if err != nil {
			return nil, fmt.Errorf("step %d, %w", i, err)
		}

		program = append(program, steps...)
	}

	return
}

// Config returns the simulated machine configuration.
func (sc *Scenario) Config() (cfg *system.Config, err error) {
	program, err := sc.Program()

	if err != nil {
		return
	}

	cfg = &system.Config{
		Program:    program,
		DRAMSize:   sc.DRAM,
		Quantum:    sc.Quantum,
		Limit:      sc.Limit,
		UARTBusy:   sc.UARTBusy,
		Introspect: sc.Introspect,
		Debug:      sc.Debug,
	}

	return
}

// ParseScenario decodes a YAML scenario.
func ParseScenario(buf []byte) (sc *Scenario, err error) {
	sc = &Scenario{}

	if err = yaml.Unmarshal(buf, sc); err != nil {
		return nil, fmt.Errorf("invalid scenario, %v", err)
	}

	if _, err = sc.Program(); err != nil {
		return nil, err
	}

	return
}

// LoadScenario reads a YAML scenario, the built-in one is returned when path
// is empty.
func LoadScenario(path string) (*Scenario, error) {
	if path == "" {
		return ParseScenario(defaultScenario)
	}

	buf, err := os.ReadFile(path)

	if err != nil {
		return nil, err
	}

	return ParseScenario(buf)
}
