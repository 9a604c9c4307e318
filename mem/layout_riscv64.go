// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago

package mem

import (
	"github.com/usbarmory/tamago/dma"
)

var SupervisorRegion *dma.Region

func Init() {
	dma.Init(FirmwareDMAStart, FirmwareDMASize)

	SupervisorRegion, _ = dma.NewRegion(SupervisorStart, SupervisorSize, false)
	SupervisorRegion.Reserve(SupervisorSize, 0)
}
