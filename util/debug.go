// Copyright 2022 The Armored Witness OS authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package util

import (
	"bytes"
	"debug/elf"
	"debug/gosym"
	"errors"
	"fmt"
)

// Debugger resolves program counters of a Go ELF image, used to annotate
// fatal supervisor traps.
type Debugger struct {
	symTable *gosym.Table
}

func section(exe *elf.File, name string) (*elf.Section, error) {
	if s := exe.Section(name); s != nil {
		return s, nil
	}

	return nil, fmt.Errorf("missing %s section", name)
}

func goSymTable(buf []byte) (symTable *gosym.Table, err error) {
	exe, err := elf.NewFile(bytes.NewReader(buf))

	if err != nil {
		return
	}

	text, err := section(exe, ".text")

	if err != nil {
		return
	}

	pclntab, err := section(exe, ".gopclntab")

	if err != nil {
		return
	}

	lineTableData, err := pclntab.Data()

	if err != nil {
		return
	}

	lineTable := gosym.NewLineTable(lineTableData, text.Addr)

	var symTableData []byte

	if symtab := exe.Section(".gosymtab"); symtab != nil {
		if symTableData, err = symtab.Data(); err != nil {
			return
		}
	}

	return gosym.NewTable(symTableData, lineTable)
}

// NewDebugger parses the symbol tables of an ELF image.
func NewDebugger(buf []byte) (d *Debugger, err error) {
	symTable, err := goSymTable(buf)

	if err != nil {
		return
	}

	return &Debugger{symTable: symTable}, nil
}

// PCToLine returns the source position of pc.
func (d *Debugger) PCToLine(pc uint64) (s string, err error) {
	file, line, fn := d.symTable.PCToLine(pc)

	if fn == nil {
		return "", errors.New("pc not found")
	}

	return fmt.Sprintf("%s:%d %s", file, line, fn.Name), nil
}

// Annotate returns the source position of pc, or an empty string if it
// cannot be resolved.
func (d *Debugger) Annotate(pc uint64) string {
	s, _ := d.PCToLine(pc)
	return s
}
