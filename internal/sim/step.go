// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sim

import (
	"fmt"

	"github.com/usbarmory/GoTEE-firmware/internal/csr"
	"github.com/usbarmory/GoTEE-firmware/internal/hart"
)

// Ecall issues a supervisor environment call, the call arguments are placed
// in a0 onwards.
func Ecall(eid uint64, fid uint64, args ...uint64) Step {
	return func(h *Hart, f *hart.Frame) Action {
		f.SetA(7, eid)
		f.SetA(6, fid)

		for i := 0; i < 6; i++ {
			var val uint64

			if i < len(args) {
				val = args[i]
			}

			f.SetA(i, val)
		}

		f.Tval = 0
		f.Cause = csr.EcallFromS

		return Trap
	}
}

// Raw raises an arbitrary exception.
func Raw(cause uint64, tval uint64) Step {
	return func(h *Hart, f *hart.Frame) Action {
		f.Cause = cause
		f.Tval = tval
		return Trap
	}
}

// Illegal raises an illegal instruction exception, with mtval holding the
// instruction bits.
func Illegal(insn uint32) Step {
	return Raw(csr.IllegalInstruction, uint64(insn))
}

// Misaligned places insn at the current program counter and raises a
// misaligned access exception for addr. Instructions with the two low bits
// set are 32-bit wide, others compressed.
func Misaligned(store bool, insn uint32, addr uint64) Step {
	return func(h *Hart, f *hart.Frame) Action {
		var err error

		if insn&3 == 3 {
			err = h.Mem.Write32(f.PC, insn)
		} else {
			err = h.Mem.Write16(f.PC, uint16(insn))
		}

		if err != nil {
			h.Errors = append(h.Errors, err)
		}

		f.Tval = addr
		f.Cause = csr.LoadMisaligned

		if store {
			f.Cause = csr.StoreMisaligned
		}

		return Trap
	}
}

// Set assigns a general purpose register.
func Set(reg int, val uint64) Step {
	return func(h *Hart, f *hart.Frame) Action {
		f.SetX(reg, val)
		return Next
	}
}

// Jump moves the program counter.
func Jump(pc uint64) Step {
	return func(h *Hart, f *hart.Frame) Action {
		f.PC = pc
		return Next
	}
}

// Expect checks the context after the firmware resumed the supervisor.
func Expect(check func(f *hart.Frame) error) Step {
	return func(h *Hart, f *hart.Frame) Action {
		if err := check(f); err != nil {
			h.Errors = append(h.Errors, fmt.Errorf("step %d: %w", h.pc, err))
		}

		return Next
	}
}

// ExpectReg checks a general purpose register value.
func ExpectReg(reg int, val uint64) Step {
	return Expect(func(f *hart.Frame) error {
		if f.X[reg] != val {
			return fmt.Errorf("x%d = %#x, expected %#x", reg, f.X[reg], val)
		}

		return nil
	})
}

// WaitFor spins until any of the mip bits is pending.
func WaitFor(mip uint64) Step {
	return func(h *Hart, f *hart.Frame) Action {
		if h.CSR.Read(csr.Mip)&mip == 0 {
			return Repeat
		}

		return Next
	}
}

// Write stores a little-endian word in memory.
func Write(addr uint64, val uint64) Step {
	return func(h *Hart, f *hart.Frame) Action {
		if err := h.Mem.Write64(addr, val); err != nil {
			h.Errors = append(h.Errors, err)
		}

		return Next
	}
}
