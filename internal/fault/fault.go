// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package fault implements the single terminal sink for unrecoverable
// firmware conditions.
package fault

import (
	"fmt"

	"github.com/usbarmory/GoTEE-firmware/internal/logging"
)

var (
	// WaitForInterrupt is the power-saving wait instruction, the platform
	// replaces it with the real one.
	WaitForInterrupt = func() {}

	// Halt parks the hart forever, it is mocked by tests.
	Halt = func() {
		for {
			WaitForInterrupt()
		}
	}

	// Console receives the fault banner.
	Console = logging.Default
)

const ruler = "-----------------------------------"

// Fatal reports err on the console, if available without waiting, and halts
// the hart. No cleanup is attempted.
func Fatal(err error) {
	_ = Console.TryWith(func(w *logging.Writer) error {
		msg := "\r\n" + ruler + "\r\n"

		if err != nil {
			msg += fmt.Sprintf("[fw] unrecoverable error: %v\r\n", err)
		}

		msg += "*** firmware halted ***\r\n" + ruler + "\r\n"

		return w.WriteString(msg)
	})

	Halt()
}

// Fatalf formats the fault cause and calls Fatal.
func Fatalf(format string, a ...interface{}) {
	Fatal(fmt.Errorf(format, a...))
}
