// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sim

import (
	"bytes"
	"io"

	"github.com/usbarmory/GoTEE-firmware/internal/board"
	"github.com/usbarmory/GoTEE-firmware/internal/logging"
)

// UART represents a simulated serial transmitter with a one byte FIFO that
// is not ready every Busy bytes.
type UART struct {
	// Busy, when non zero, makes the transmitter report not ready once
	// every Busy attempts.
	Busy int
	// Fault, when set, is returned on any transmission.
	Fault error
	// Output, when set, receives every transmitted byte.
	Output io.Writer

	attempts int
	pending  []byte
	buf      bytes.Buffer
}

// WriteByte implements io.ByteWriter.
func (u *UART) WriteByte(c byte) error {
	if u.Fault != nil {
		return u.Fault
	}

	u.attempts++

	if u.Busy > 0 && u.attempts%u.Busy == 0 {
		return logging.ErrWouldBlock
	}

	u.pending = append(u.pending, c)

	return nil
}

// Flush implements logging.Transmitter.
func (u *UART) Flush() error {
	if u.Fault != nil {
		return u.Fault
	}

	u.buf.Write(u.pending)

	if u.Output != nil {
		_, _ = u.Output.Write(u.pending)
	}

	u.pending = u.pending[:0]

	return nil
}

// String returns all flushed output.
func (u *UART) String() string {
	return u.buf.String()
}

// Board represents a simulated platform.
type Board struct {
	UART *UART

	Clocks board.Clocks
	Serial board.SerialConfig
	Ready  bool
	Status bool
}

// Init implements board.Board.
func (b *Board) Init(clocks board.Clocks, serial board.SerialConfig) (logging.Transmitter, error) {
	if b.UART == nil {
		b.UART = &UART{}
	}

	b.Clocks = clocks
	b.Serial = serial
	b.Ready = true

	return b.UART, nil
}

// LED implements board.Board.
func (b *Board) LED(on bool) error {
	b.Status = on
	return nil
}
