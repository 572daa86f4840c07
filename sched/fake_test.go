package sched

import (
	"omibyte.io/rvk/arch"
)

// cpu is a register file per hart standing in for the trampoline.
type cpu struct {
	regs     [][arch.NumRegs]uint32
	pc       []uint32
	switches int
	saves    int
}

func newCPU(harts int) *cpu {
	return &cpu{regs: make([][arch.NumRegs]uint32, harts), pc: make([]uint32, harts)}
}

func (c *cpu) SaveFrom(hart uint32, ctx *arch.Context) {
	c.saves++
	ctx.Regs = c.regs[hart]
	ctx.SP = c.regs[hart][arch.SP]
	ctx.PC = c.pc[hart]
}

func (c *cpu) SwitchTo(hart uint32, ctx *arch.Context) {
	c.switches++
	c.regs[hart] = ctx.Regs
	c.regs[hart][arch.SP] = ctx.SP
	c.pc[hart] = ctx.PC
}

type clock struct {
	now       uint64
	deadlines map[uint32]uint64
}

func (c *clock) ReadTime() uint64 { return c.now }

func (c *clock) SetDelay(core uint32, deadline uint64) {
	if c.deadlines == nil {
		c.deadlines = map[uint32]uint64{}
	}
	c.deadlines[core] = deadline
}

// bump hands out regions downward from top until it reaches bottom.
type bump struct {
	top, bottom uint32
}

func (b *bump) Alloc(size uint32) (arch.Region, bool) {
	if size == 0 || b.top-b.bottom < size {
		return arch.Region{}, false
	}
	r := arch.Region{Top: b.top, Bottom: b.top - size}
	b.top -= size
	return r, true
}

type softIRQ struct {
	raised []uint32
}

func (s *softIRQ) Raise(hart uint32) {
	s.raised = append(s.raised, hart)
}
