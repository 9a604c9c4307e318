// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package reset defines the power operations a supervisor can request.
package reset

import (
	"fmt"
)

// Kind represents a power operation, the values match the SBI System Reset
// extension reset types.
type Kind uint32

// Reset kinds
const (
	Shutdown   Kind = 0
	ColdReboot Kind = 1
	WarmReboot Kind = 2
)

// SBI System Reset extension reset reasons
const (
	ReasonNone          = 0x00000000
	ReasonSystemFailure = 0x00000001
	ReasonSBIStart      = 0xe0000000
	ReasonVendorStart   = 0xf0000000
)

// Valid reports whether k is one of the defined reset kinds.
func (k Kind) Valid() bool {
	return k <= WarmReboot
}

func (k Kind) String() string {
	switch k {
	case Shutdown:
		return "shutdown"
	case ColdReboot:
		return "cold reboot"
	case WarmReboot:
		return "warm reboot"
	default:
		return fmt.Sprintf("reset kind %#x", uint32(k))
	}
}

// Reason converts an SBI reset reason code to text.
func Reason(code uint32) string {
	switch {
	case code == ReasonNone:
		return "no reason"
	case code == ReasonSystemFailure:
		return "system failure"
	case code >= ReasonVendorStart:
		return fmt.Sprintf("vendor specific reason %#x", code)
	case code >= ReasonSBIStart:
		return fmt.Sprintf("SBI implementation specific reason %#x", code)
	default:
		return fmt.Sprintf("reserved reason %#x", code)
	}
}
