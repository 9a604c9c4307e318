// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sim

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrBusFault is returned on accesses outside simulated memory.
var ErrBusFault = errors.New("bus fault")

// Memory represents a simulated physical memory region.
type Memory struct {
	Base uint64
	Data []byte
}

// NewMemory returns a zero filled region of size bytes at base.
func NewMemory(base uint64, size int) *Memory {
	return &Memory{
		Base: base,
		Data: make([]byte, size),
	}
}

func (m *Memory) slice(addr uint64, n int) ([]byte, error) {
	if addr < m.Base || addr-m.Base+uint64(n) > uint64(len(m.Data)) {
		return nil, fmt.Errorf("%w, addr:%#x size:%d", ErrBusFault, addr, n)
	}

	off := addr - m.Base

	return m.Data[off : off+uint64(n)], nil
}

// Read implements hart.Bus.
func (m *Memory) Read(addr uint64, buf []byte) error {
	b, err := m.slice(addr, len(buf))

	if err != nil {
		return err
	}

	copy(buf, b)

	return nil
}

// Write implements hart.Bus.
func (m *Memory) Write(addr uint64, buf []byte) error {
	b, err := m.slice(addr, len(buf))

	if err != nil {
		return err
	}

	copy(b, buf)

	return nil
}

// Read64 reads a little-endian word.
func (m *Memory) Read64(addr uint64) (uint64, error) {
	buf := make([]byte, 8)

	if err := m.Read(addr, buf); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(buf), nil
}

// Write64 writes a little-endian word.
func (m *Memory) Write64(addr uint64, val uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, val)

	return m.Write(addr, buf)
}

// Write32 writes a little-endian half word pair, as used for instructions.
func (m *Memory) Write32(addr uint64, val uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, val)

	return m.Write(addr, buf)
}

// Write16 writes a compressed instruction.
func (m *Memory) Write16(addr uint64, val uint16) error {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, val)

	return m.Write(addr, buf)
}

// Fill sets every byte of the region to c.
func (m *Memory) Fill(c byte) {
	for i := range m.Data {
		m.Data[i] = c
	}
}
