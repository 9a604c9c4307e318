// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package board defines the peripheral bring-up contract between the
// firmware and its platform.
package board

import (
	"fmt"

	"github.com/usbarmory/GoTEE-firmware/internal/logging"
)

// Hz represents a frequency.
type Hz uint32

// MHz returns a frequency expressed in megahertz.
func MHz(n uint32) Hz {
	return Hz(n * 1000000)
}

func (f Hz) String() string {
	if f%1000000 == 0 {
		return fmt.Sprintf("%dMHz", uint32(f)/1000000)
	}

	return fmt.Sprintf("%dHz", uint32(f))
}

// Clocks represents the bus clock rates consumed by peripheral setup.
type Clocks struct {
	// PSI is the AHB/APB0 parent clock.
	PSI Hz
	// APB1 clocks the UARTs.
	APB1 Hz
}

// DefaultClocks returns the clock tree selected at boot.
func DefaultClocks() Clocks {
	return Clocks{
		PSI:  MHz(600),
		APB1: MHz(24),
	}
}

// Parity modes
const (
	ParityNone = iota
	ParityOdd
	ParityEven
)

// SerialConfig represents the diagnostic serial port line configuration.
type SerialConfig struct {
	Baud     uint32
	DataBits int
	Parity   int
	StopBits int
}

// DefaultSerial returns the 115200 8N1 configuration of the debug console.
func DefaultSerial() SerialConfig {
	return SerialConfig{
		Baud:     115200,
		DataBits: 8,
		Parity:   ParityNone,
		StopBits: 1,
	}
}

func (c SerialConfig) String() string {
	return fmt.Sprintf("%d %d%c%d", c.Baud, c.DataBits, "NOE"[c.Parity%3], c.StopBits)
}

// Divisor returns the UART baud rate divisor for a 16x oversampling UART
// clocked at clk.
func (c SerialConfig) Divisor(clk Hz) uint32 {
	if c.Baud == 0 {
		return 0
	}

	return (uint32(clk) + 8*c.Baud) / (16 * c.Baud)
}

// Board represents the platform peripherals brought up by the firmware.
type Board interface {
	// Init configures clocks, pin functions and the debug serial port,
	// returning its transmitter.
	Init(clocks Clocks, serial SerialConfig) (logging.Transmitter, error)
	// LED sets the status LED.
	LED(on bool) error
}
