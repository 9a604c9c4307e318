// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package power carries out the power operation requested at the end of a
// supervisor run.
package power

import (
	"errors"
	"fmt"

	"github.com/usbarmory/GoTEE-firmware/internal/fault"
	"github.com/usbarmory/GoTEE-firmware/internal/reset"
)

var (
	// ErrNotImplemented is the placeholder for platform reset sequences
	// that do not exist yet.
	ErrNotImplemented = errors.New("not implemented")

	// ErrInconsistent is raised for reset kinds outside the defined set.
	ErrInconsistent = errors.New("internal consistency failure")
)

// Finish performs the hardware action matching kind. It never returns on
// hardware.
func Finish(kind reset.Kind) {
	switch kind {
	case reset.Shutdown:
		fault.Halt()
	case reset.ColdReboot, reset.WarmReboot:
		// TODO: sunxi watchdog reset sequence for cold and warm reboot
		fault.Fatal(fmt.Errorf("%s, %w", kind, ErrNotImplemented))
	default:
		fault.Fatal(fmt.Errorf("%w, unknown %s", ErrInconsistent, kind))
	}
}
