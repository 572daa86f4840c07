package sim

import "math"

// CLINT models the core-local interruptor: one free running mtime shared by
// all harts, a compare register and a software interrupt bit per hart.
type CLINT struct {
	mtime    uint64
	mtimecmp []uint64
	msip     []bool
	raised   uint64
}

func NewCLINT(harts int) *CLINT {
	c := &CLINT{
		mtimecmp: make([]uint64, harts),
		msip:     make([]bool, harts),
	}
	for i := range c.mtimecmp {
		c.mtimecmp[i] = math.MaxUint64
	}
	return c
}

func (c *CLINT) ReadTime() uint64 {
	return c.mtime
}

// SetDelay writes mtimecmp, which also clears a pending timer interrupt when
// the deadline lies in the future.
func (c *CLINT) SetDelay(core uint32, deadline uint64) {
	c.mtimecmp[core] = deadline
}

// Raise sets msip for hart.
func (c *CLINT) Raise(hart uint32) {
	c.msip[hart] = true
	c.raised++
}

func (c *CLINT) Advance(units uint64) {
	c.mtime += units
}

func (c *CLINT) TimerPending(hart uint32) bool {
	return c.mtime >= c.mtimecmp[hart]
}

func (c *CLINT) SoftPending(hart uint32) bool {
	return c.msip[hart]
}

func (c *CLINT) ClearSoft(hart uint32) {
	c.msip[hart] = false
}

func (c *CLINT) Deadline(hart uint32) uint64 {
	return c.mtimecmp[hart]
}
