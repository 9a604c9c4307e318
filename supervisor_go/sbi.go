// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

package main

import (
	"github.com/usbarmory/GoTEE-firmware/internal/reset"
	"github.com/usbarmory/GoTEE-firmware/internal/sbi"
)

// defined in sbi_riscv64.s
func ecall(eid uint64, fid uint64, a0 uint64, a1 uint64) (err int64, val uint64)

func putchar(c byte) {
	ecall(sbi.EXT_LEGACY_PUTCHAR, 0, uint64(c), 0)
}

func implementation() (id uint64, version uint64) {
	_, id = ecall(sbi.EXT_BASE, sbi.BASE_GET_IMPL_ID, 0, 0)
	_, version = ecall(sbi.EXT_BASE, sbi.BASE_GET_IMPL_VERSION, 0, 0)

	return
}

func systemReset(kind reset.Kind, reason uint32) int64 {
	err, _ := ecall(sbi.EXT_SRST, sbi.SRST_SYSTEM_RESET, uint64(kind), uint64(reason))
	return err
}
