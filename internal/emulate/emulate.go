// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package emulate implements machine-mode emulation of supervisor
// instructions the hart cannot execute natively: misaligned loads and stores
// and reads of the time CSR.
//
// Memory is accessed physically, emulation is refused when the supervisor
// runs with address translation enabled and the fault is reflected instead.
// Every access is checked against the supervisor PMP table first, as machine
// mode is not itself subject to it.
package emulate

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/usbarmory/GoTEE-firmware/internal/csr"
	"github.com/usbarmory/GoTEE-firmware/internal/hart"
	"github.com/usbarmory/GoTEE-firmware/internal/pmp"
)

// ErrUnsupported is returned for instructions which cannot be emulated.
var ErrUnsupported = errors.New("instruction not emulated")

const (
	opLoad   = 0x03
	opStore  = 0x23
	opSystem = 0x73
)

// access describes a decoded memory instruction.
type access struct {
	store  bool
	size   int
	signed bool
	// destination (loads) or source (stores) register
	reg int
	// instruction length
	len uint64
}

// AccessFault is returned when the supervisor PMP table denies an emulated
// access, the supervisor is owed the access fault Cause for Addr.
type AccessFault struct {
	Cause uint64
	Addr  uint64
}

func (e *AccessFault) Error() string {
	return fmt.Sprintf("access fault %d at %#x", e.Cause, e.Addr)
}

// Emulator holds the hart resources used during emulation.
type Emulator struct {
	CSR   csr.Reader
	Bus   hart.Bus
	Clint hart.Clint
	// PMP is the table applied to the supervisor, an empty one permits
	// every access.
	PMP pmp.Table
}

func (e *Emulator) check(addr uint64, size int, perm pmp.Perm, cause uint64) error {
	if !e.PMP.Permits(addr, uint64(size), perm) {
		return &AccessFault{Cause: cause, Addr: addr}
	}

	return nil
}

func (e *Emulator) translated() bool {
	return e.CSR.Read(csr.Satp)>>60 != 0
}

// fetch reads the instruction at pc, returning it with its length.
func (e *Emulator) fetch(pc uint64) (insn uint32, n uint64, err error) {
	buf := make([]byte, 4)

	if err = e.check(pc, 2, pmp.X, csr.InstructionFault); err != nil {
		return
	}

	if err = e.Bus.Read(pc, buf[0:2]); err != nil {
		return
	}

	if buf[0]&3 != 3 {
		return uint32(binary.LittleEndian.Uint16(buf)), 2, nil
	}

	if err = e.check(pc+2, 2, pmp.X, csr.InstructionFault); err != nil {
		return
	}

	if err = e.Bus.Read(pc+2, buf[2:4]); err != nil {
		return
	}

	return binary.LittleEndian.Uint32(buf), 4, nil
}

func decode(insn uint32, n uint64) (a access, err error) {
	a.len = n

	if n == 4 {
		funct3 := (insn >> 12) & 7

		switch insn & 0x7f {
		case opLoad:
			a.reg = int(insn>>7) & 0x1f

			switch funct3 {
			case 1, 2, 3:
				a.size, a.signed = 1<<funct3, true
			case 5, 6:
				a.size = 1 << (funct3 - 4)
			default:
				err = ErrUnsupported
			}
		case opStore:
			a.store = true
			a.reg = int(insn>>20) & 0x1f

			switch funct3 {
			case 1, 2, 3:
				a.size = 1 << funct3
			default:
				err = ErrUnsupported
			}
		default:
			err = ErrUnsupported
		}

		return
	}

	// compressed register (rd'/rs2') and stack pointer relative forms
	funct3 := (insn >> 13) & 7
	regC := 8 + int(insn>>2)&7

	switch insn & 3 {
	case 0:
		a.reg = regC

		switch funct3 {
		case 2: // c.lw
			a.size, a.signed = 4, true
		case 3: // c.ld
			a.size = 8
		case 6: // c.sw
			a.size, a.store = 4, true
		case 7: // c.sd
			a.size, a.store = 8, true
		default:
			err = ErrUnsupported
		}
	case 2:
		switch funct3 {
		case 2: // c.lwsp
			a.size, a.signed, a.reg = 4, true, int(insn>>7)&0x1f
		case 3: // c.ldsp
			a.size, a.reg = 8, int(insn>>7)&0x1f
		case 6: // c.swsp
			a.size, a.store, a.reg = 4, true, int(insn>>2)&0x1f
		case 7: // c.sdsp
			a.size, a.store, a.reg = 8, true, int(insn>>2)&0x1f
		default:
			err = ErrUnsupported
		}
	default:
		err = ErrUnsupported
	}

	return
}

// Misaligned emulates the load or store which raised a misaligned address
// exception, the faulting address is taken from mtval. On success the
// destination register and the program counter of f are updated.
func (e *Emulator) Misaligned(f *hart.Frame) error {
	if e.translated() {
		return fmt.Errorf("%w, translation enabled", ErrUnsupported)
	}

	insn, n, err := e.fetch(f.PC)

	if err != nil {
		return err
	}

	a, err := decode(insn, n)

	if err != nil {
		return fmt.Errorf("%w, %#x", err, insn)
	}

	if a.store != (f.Cause == csr.StoreMisaligned) {
		return fmt.Errorf("%w, %#x does not match cause %d", ErrUnsupported, insn, f.Cause)
	}

	if a.store {
		err = e.check(f.Tval, a.size, pmp.W, csr.StoreFault)
	} else {
		err = e.check(f.Tval, a.size, pmp.R, csr.LoadFault)
	}

	if err != nil {
		return err
	}

	buf := make([]byte, 8)

	if a.store {
		binary.LittleEndian.PutUint64(buf, f.X[a.reg])

		if err = e.Bus.Write(f.Tval, buf[:a.size]); err != nil {
			return err
		}
	} else {
		if err = e.Bus.Read(f.Tval, buf[:a.size]); err != nil {
			return err
		}

		val := binary.LittleEndian.Uint64(buf)

		if shift := uint(64 - 8*a.size); a.signed && shift > 0 {
			val = uint64(int64(val<<shift) >> shift)
		}

		f.SetX(a.reg, val)
	}

	f.PC += a.len

	return nil
}

// Illegal emulates reads of the time CSR (rdtime), which the hart may not
// implement.
func (e *Emulator) Illegal(f *hart.Frame) error {
	insn := uint32(f.Tval)

	// mtval may not hold the instruction bits
	if insn == 0 {
		if e.translated() {
			return fmt.Errorf("%w, translation enabled", ErrUnsupported)
		}

		var n uint64
		var err error

		if insn, n, err = e.fetch(f.PC); err != nil {
			return err
		}

		if n != 4 {
			return fmt.Errorf("%w, %#x", ErrUnsupported, insn)
		}
	}

	funct3 := (insn >> 12) & 7
	rs1 := (insn >> 15) & 0x1f

	// csrrs rd, time, x0
	if insn&0x7f != opSystem || funct3 != 2 || rs1 != 0 || uint16(insn>>20) != csr.Time {
		return fmt.Errorf("%w, %#x", ErrUnsupported, insn)
	}

	f.SetX(int(insn>>7)&0x1f, e.Clint.Now())
	f.PC += 4

	return nil
}
