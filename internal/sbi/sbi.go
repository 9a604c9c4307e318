// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package sbi implements the RISC-V Supervisor Binary Interface services
// offered by the firmware to a single-hart supervisor.
//
// A call is identified by the extension ID in a7 and the function ID in a6,
// arguments are passed in a0-a5. Results are returned as an error code in a0
// and a value in a1, legacy extensions return a single value in a0.
package sbi

import (
	"errors"
	"fmt"

	"github.com/usbarmory/GoTEE-firmware/internal/csr"
	"github.com/usbarmory/GoTEE-firmware/internal/hart"
	"github.com/usbarmory/GoTEE-firmware/internal/reset"
)

// Extension IDs
const (
	EXT_LEGACY_SET_TIMER = 0x00
	EXT_LEGACY_PUTCHAR   = 0x01
	EXT_LEGACY_GETCHAR   = 0x02
	EXT_LEGACY_CLEAR_IPI = 0x03
	EXT_LEGACY_SEND_IPI  = 0x04
	EXT_LEGACY_SHUTDOWN  = 0x08
	EXT_BASE             = 0x10
	EXT_TIME             = 0x54494d45 // "TIME"
	EXT_IPI              = 0x00735049 // "sPI"
	EXT_RFENCE           = 0x52464e43 // "RFNC"
	EXT_HSM              = 0x0048534d // "HSM"
	EXT_SRST             = 0x53525354 // "SRST"
	EXT_LEGACY_LAST      = 0x0f
)

// Base extension function IDs
const (
	BASE_GET_SPEC_VERSION = iota
	BASE_GET_IMPL_ID
	BASE_GET_IMPL_VERSION
	BASE_PROBE_EXTENSION
	BASE_GET_MVENDORID
	BASE_GET_MARCHID
	BASE_GET_MIMPID
)

// Function IDs of the remaining extensions
const (
	TIME_SET_TIMER      = 0
	IPI_SEND_IPI        = 0
	RFENCE_FENCE_I      = 0
	RFENCE_SFENCE_VMA   = 1
	RFENCE_SFENCE_ASID  = 2
	HSM_HART_START      = 0
	HSM_HART_STOP       = 1
	HSM_HART_GET_STATUS = 2
	SRST_SYSTEM_RESET   = 0
)

// Error codes
const (
	SUCCESS               = 0
	ERR_FAILED            = -1
	ERR_NOT_SUPPORTED     = -2
	ERR_INVALID_PARAM     = -3
	ERR_DENIED            = -4
	ERR_INVALID_ADDRESS   = -5
	ERR_ALREADY_AVAILABLE = -6
)

const (
	// SpecVersion is SBI v1.0.
	SpecVersion = 1 << 24
	// ImplID is the SBI implementation ID assigned to oreboot.
	ImplID = 10
	// ImplVersion is the implementation version.
	ImplVersion = 1
)

// HSM hart states
const hartStarted = 0

// ErrResetKind is raised for system reset requests outside the defined reset
// types.
var ErrResetKind = errors.New("invalid reset type")

// Call represents a firmware call issued by the supervisor.
type Call struct {
	EID  uint64
	FID  uint64
	Args [6]uint64
}

// NewCall extracts a firmware call from a saved context.
func NewCall(f *hart.Frame) *Call {
	c := &Call{
		EID: f.A(7),
		FID: f.A(6),
	}

	for i := range c.Args {
		c.Args[i] = f.A(i)
	}

	return c
}

func (c *Call) String() string {
	return fmt.Sprintf("eid:%#x fid:%d a0:%#x a1:%#x", c.EID, c.FID, c.Args[0], c.Args[1])
}

// Legacy reports whether the call belongs to the legacy (v0.1) extensions.
func (c *Call) Legacy() bool {
	return c.EID <= EXT_LEGACY_LAST
}

// Result represents a firmware call outcome, legacy calls only return
// Error.
type Result struct {
	Error int64
	Value uint64
}

// Reset represents a system reset request.
type Reset struct {
	Kind   reset.Kind
	Reason string
}

// Extension represents a platform provided extension implementation, it
// takes precedence over the built-in one.
type Extension func(c *Call) (Result, error)

// Handler serves firmware calls.
type Handler struct {
	// CSR gives access to the interrupt pending and enable registers.
	CSR csr.File
	// Clint drives the machine timer and software interrupt.
	Clint hart.Clint
	// Console receives legacy console output.
	Console func(c byte)
	// HartID is the only hart identifier.
	HartID uint64

	// Extensions holds platform overrides, indexed by extension ID.
	Extensions map[uint64]Extension
}

// Register installs a platform extension.
func (h *Handler) Register(eid uint64, ext Extension) {
	if h.Extensions == nil {
		h.Extensions = make(map[uint64]Extension)
	}

	h.Extensions[eid] = ext
}

func (h *Handler) supported(eid uint64) bool {
	if _, ok := h.Extensions[eid]; ok {
		return true
	}

	switch eid {
	case EXT_LEGACY_SET_TIMER, EXT_LEGACY_PUTCHAR, EXT_LEGACY_GETCHAR,
		EXT_LEGACY_CLEAR_IPI, EXT_LEGACY_SEND_IPI, EXT_LEGACY_SHUTDOWN,
		EXT_BASE, EXT_TIME, EXT_IPI, EXT_RFENCE, EXT_HSM, EXT_SRST:
		return true
	}

	return false
}

// Handle serves a firmware call. A non-nil Reset is returned when the
// supervisor requests a power operation, a non-nil error is fatal.
func (h *Handler) Handle(c *Call) (res Result, req *Reset, err error) {
	if ext, ok := h.Extensions[c.EID]; ok {
		res, err = ext(c)
		return
	}

	switch c.EID {
	case EXT_LEGACY_SET_TIMER:
		h.setTimer(c.Args[0])
	case EXT_LEGACY_PUTCHAR:
		if h.Console != nil {
			h.Console(byte(c.Args[0]))
		}
	case EXT_LEGACY_GETCHAR:
		// no console input
		res.Error = -1
	case EXT_LEGACY_CLEAR_IPI:
		hart.ClearBits(h.CSR, csr.Mip, csr.SSIP)
	case EXT_LEGACY_SEND_IPI:
		hart.SetBits(h.CSR, csr.Mip, csr.SSIP)
	case EXT_LEGACY_SHUTDOWN:
		req = &Reset{Kind: reset.Shutdown, Reason: "legacy shutdown"}
	case EXT_BASE:
		res = h.base(c)
	case EXT_TIME:
		res = h.time(c)
	case EXT_IPI:
		res = h.ipi(c)
	case EXT_RFENCE:
		res = h.rfence(c)
	case EXT_HSM:
		res = h.hsm(c)
	case EXT_SRST:
		return h.srst(c)
	default:
		res.Error = ERR_NOT_SUPPORTED
	}

	return
}

func (h *Handler) base(c *Call) (res Result) {
	switch c.FID {
	case BASE_GET_SPEC_VERSION:
		res.Value = SpecVersion
	case BASE_GET_IMPL_ID:
		res.Value = ImplID
	case BASE_GET_IMPL_VERSION:
		res.Value = ImplVersion
	case BASE_PROBE_EXTENSION:
		if h.supported(c.Args[0]) {
			res.Value = 1
		}
	case BASE_GET_MVENDORID:
		res.Value = h.CSR.Read(csr.Mvendorid)
	case BASE_GET_MARCHID:
		res.Value = h.CSR.Read(csr.Marchid)
	case BASE_GET_MIMPID:
		res.Value = h.CSR.Read(csr.Mimpid)
	default:
		res.Error = ERR_NOT_SUPPORTED
	}

	return
}

func (h *Handler) setTimer(val uint64) {
	h.Clint.SetCompare(val)

	// the supervisor timer interrupt is raised again by the machine timer
	// interrupt once mtime reaches the new comparator
	hart.ClearBits(h.CSR, csr.Mip, csr.STIP)
	hart.SetBits(h.CSR, csr.Mie, csr.MTIP)
}

func (h *Handler) time(c *Call) (res Result) {
	if c.FID != TIME_SET_TIMER {
		res.Error = ERR_NOT_SUPPORTED
		return
	}

	h.setTimer(c.Args[0])

	return
}

// targets reports whether a hart mask, relative to base, includes this hart.
func (h *Handler) targets(mask uint64, base uint64) (bool, bool) {
	if base == ^uint64(0) {
		return true, true
	}

	if base > h.HartID || h.HartID-base >= 64 {
		return false, mask == 0
	}

	return mask&(1<<(h.HartID-base)) != 0, mask&^(1<<(h.HartID-base)) == 0
}

func (h *Handler) ipi(c *Call) (res Result) {
	if c.FID != IPI_SEND_IPI {
		res.Error = ERR_NOT_SUPPORTED
		return
	}

	self, valid := h.targets(c.Args[0], c.Args[1])

	if !valid {
		res.Error = ERR_INVALID_PARAM
		return
	}

	if self {
		hart.SetBits(h.CSR, csr.Mip, csr.SSIP)
	}

	return
}

func (h *Handler) rfence(c *Call) (res Result) {
	switch c.FID {
	case RFENCE_FENCE_I, RFENCE_SFENCE_VMA, RFENCE_SFENCE_ASID:
		// single hart, the caller fences locally
		if _, valid := h.targets(c.Args[0], c.Args[1]); !valid {
			res.Error = ERR_INVALID_PARAM
		}
	default:
		res.Error = ERR_NOT_SUPPORTED
	}

	return
}

func (h *Handler) hsm(c *Call) (res Result) {
	switch c.FID {
	case HSM_HART_START:
		if c.Args[0] == h.HartID {
			res.Error = ERR_ALREADY_AVAILABLE
		} else {
			res.Error = ERR_INVALID_PARAM
		}
	case HSM_HART_GET_STATUS:
		if c.Args[0] == h.HartID {
			res.Value = hartStarted
		} else {
			res.Error = ERR_INVALID_PARAM
		}
	default:
		res.Error = ERR_NOT_SUPPORTED
	}

	return
}

func (h *Handler) srst(c *Call) (res Result, req *Reset, err error) {
	if c.FID != SRST_SYSTEM_RESET {
		res.Error = ERR_NOT_SUPPORTED
		return
	}

	kind := c.Args[0]

	if kind > uint64(^uint32(0)) || !reset.Kind(kind).Valid() {
		return res, nil, fmt.Errorf("%w %#x", ErrResetKind, kind)
	}

	req = &Reset{
		Kind:   reset.Kind(kind),
		Reason: reset.Reason(uint32(c.Args[1])),
	}

	return
}
