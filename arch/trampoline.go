package arch

// Trampoline is the architecture primitive that moves register state between
// a hart and a Context. The context is passed by address as a plain argument
// and never through a fixed calling-convention register.
//
// On hardware SwitchTo does not return: execution resumes at ctx.PC and the
// kernel is next entered from a trap. Host implementations return, and the
// caller must not touch the outgoing task after SwitchTo.
type Trampoline interface {
	// SwitchTo restores every register from ctx on hart and jumps to ctx.PC.
	SwitchTo(hart uint32, ctx *Context)

	// SaveFrom captures the live register state of hart into ctx.
	SaveFrom(hart uint32, ctx *Context)
}
