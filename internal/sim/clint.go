// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sim

// Clint represents a simulated core local interruptor, mtime advances by
// Quantum on every supervisor run.
type Clint struct {
	Quantum uint64

	Mtime    uint64
	Mtimecmp uint64
	Msip     bool
}

// NewClint returns a CLINT with the comparator parked.
func NewClint(quantum uint64) *Clint {
	return &Clint{
		Quantum:  quantum,
		Mtimecmp: ^uint64(0),
	}
}

// Now implements hart.Clint.
func (c *Clint) Now() uint64 {
	return c.Mtime
}

// SetCompare implements hart.Clint.
func (c *Clint) SetCompare(val uint64) {
	c.Mtimecmp = val
}

// SetSoftware implements hart.Clint.
func (c *Clint) SetSoftware(pending bool) {
	c.Msip = pending
}

// Tick advances mtime.
func (c *Clint) Tick() {
	c.Mtime += c.Quantum
}

// TimerPending reports whether the machine timer interrupt is raised.
func (c *Clint) TimerPending() bool {
	return c.Mtime >= c.Mtimecmp
}

// CPU represents the simulated hart stack pointer.
type CPU struct {
	SP uint64
}

// SetStack implements boot.CPU.
func (c *CPU) SetStack(sp uint64) {
	c.SP = sp
}
