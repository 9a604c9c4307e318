// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mem

import (
	"testing"

	"github.com/usbarmory/GoTEE-firmware/internal/pmp"
)

func TestLayout(t *testing.T) {
	regions := []struct {
		name        string
		start, size uint64
	}{
		{"supervisor", SupervisorStart, SupervisorSize},
		{"firmware", FirmwareStart, FirmwareSize},
		{"dma", FirmwareDMAStart, FirmwareDMASize},
		{"env", EnvStart, EnvSize},
	}

	for i := 1; i < len(regions); i++ {
		prev, r := regions[i-1], regions[i]

		if prev.start+prev.size != r.start {
			t.Errorf("%s end %#x, %s start %#x", prev.name, prev.start+prev.size, r.name, r.start)
		}
	}

	if HeapStart < EnvStackStart+EnvStackSize || HeapStart+HeapSize > EnvStart+EnvSize {
		t.Errorf("heap %#x-%#x outside environment", HeapStart, HeapStart+HeapSize)
	}

	if HeapStart%HeapSize != 0 {
		t.Errorf("heap %#x not aligned to its size", HeapStart)
	}
}

func TestDefaultPMP(t *testing.T) {
	table, err := DefaultPMP()

	if err != nil {
		t.Fatal(err)
	}

	entries := table.Entries()

	if len(entries) != 4 {
		t.Fatalf("%d entries", len(entries))
	}

	// the firmware is the only region denied to the supervisor
	for i, e := range entries {
		denied := e.Perm == pmp.None

		if denied != (e.Boundary == FirmwareEnd) {
			t.Errorf("entry %d %s", i, e)
		}
	}

	if entries[1].Boundary != FirmwareStart {
		t.Errorf("firmware protection starts at %#x", entries[1].Boundary)
	}
}
