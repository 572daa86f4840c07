package sim

import "omibyte.io/rvk/arch"

// Hart is one simulated core: a live register file, a program counter and
// the trap frame the entry stub spills into.
type Hart struct {
	ID    uint32
	Regs  [arch.NumRegs]uint32
	PC    uint32
	Frame *arch.TrapFrame

	steps     uint64
	idleSteps uint64
}

// trampoline switches tasks by rewriting the trap frame; the trap return
// path then loads the hart from it.
type trampoline struct {
	harts []*Hart
}

func (t *trampoline) SaveFrom(hart uint32, ctx *arch.Context) {
	f := t.harts[hart].Frame
	ctx.Regs = f.Regs
	ctx.SP = f.Regs[arch.SP]
	ctx.PC = f.EPC
}

func (t *trampoline) SwitchTo(hart uint32, ctx *arch.Context) {
	f := t.harts[hart].Frame
	f.Regs = ctx.Regs
	f.Regs[arch.Zero] = 0
	f.Regs[arch.SP] = ctx.SP
	f.EPC = ctx.PC
}
