// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

package platform

import (
	"fmt"
	"io"

	"github.com/usbarmory/tamago/board/qemu/sifive_u"

	"github.com/usbarmory/GoTEE-firmware/internal/board"
	"github.com/usbarmory/GoTEE-firmware/internal/logging"
)

// Transmitter adapts a blocking UART to the console.
type Transmitter struct {
	UART io.Writer
}

// WriteByte implements io.ByteWriter.
func (t *Transmitter) WriteByte(c byte) (err error) {
	if _, err = t.UART.Write([]byte{c}); err != nil {
		return &logging.Error{Op: "write", Err: err}
	}

	return
}

// Flush implements logging.Transmitter, the UART transmits synchronously.
func (t *Transmitter) Flush() error {
	return nil
}

// Board represents the QEMU sifive_u machine.
type Board struct{}

// Init implements board.Board. The emulated UART ignores clock and line
// settings, only the default configuration is accepted.
func (Board) Init(clocks board.Clocks, serial board.SerialConfig) (logging.Transmitter, error) {
	if serial != board.DefaultSerial() {
		return nil, fmt.Errorf("unsupported serial configuration %s", serial)
	}

	if serial.Divisor(clocks.APB1) == 0 {
		return nil, fmt.Errorf("invalid UART clock %s", clocks.APB1)
	}

	return &Transmitter{UART: sifive_u.UART0}, nil
}

// LED implements board.Board, the machine has no LEDs.
func (Board) LED(on bool) error {
	return nil
}
