package arch

import "unsafe"

// LayoutVersion identifies the byte layout of Context and TrapFrame. Any
// change to an Off* constant must bump it, since hand-written trampolines
// index these records by offset.
const LayoutVersion = 1

const (
	NumRegs   = 32
	FlagBytes = 7
)

// Context offsets, in bytes.
const (
	OffRegs         = 0
	OffAddressSpace = 128
	OffPC           = 136
	OffSP           = 140
	OffFlags        = 144
	OffIR           = 151
	ContextSize     = 152
)

// Context is the saved register state of one task. The trampoline reads and
// writes it by address, so the field order is fixed.
type Context struct {
	Regs [NumRegs]uint32

	// AddressSpace is the (stack top, stack bottom) pair of the task's memory
	// region.
	AddressSpace [2]uint32

	PC    uint32
	SP    uint32
	Flags [FlagBytes]uint8

	// IR is reserved for the instruction register; nothing reads it yet.
	IR uint8
}

// The index expressions below fail to compile if the Go layout drifts away
// from the Off* constants.
var (
	_ = [1]struct{}{}[unsafe.Sizeof(Context{})-ContextSize]
	_ = [1]struct{}{}[unsafe.Offsetof(Context{}.AddressSpace)-OffAddressSpace]
	_ = [1]struct{}{}[unsafe.Offsetof(Context{}.PC)-OffPC]
	_ = [1]struct{}{}[unsafe.Offsetof(Context{}.SP)-OffSP]
	_ = [1]struct{}{}[unsafe.Offsetof(Context{}.Flags)-OffFlags]
	_ = [1]struct{}{}[unsafe.Offsetof(Context{}.IR)-OffIR]
)

// Region is the bounds of a task's memory region as handed out by the
// allocator. The stack grows down from Top.
type Region struct {
	Top    uint32
	Bottom uint32
}

func (r Region) Size() uint32 {
	return r.Top - r.Bottom
}

// Init builds the initial context of a task. The register file is always
// zero so that nothing leaks between tasks that reuse a region.
func Init(bounds Region, entry uint32) Context {
	return Context{
		AddressSpace: [2]uint32{bounds.Top, bounds.Bottom},
		PC:           entry,
		SP:           bounds.Top,
	}
}

// StackTop returns the top of the task's region.
func (c *Context) StackTop() uint32 {
	return c.AddressSpace[0]
}

// StackBottom returns the lowest address of the task's region.
func (c *Context) StackBottom() uint32 {
	return c.AddressSpace[1]
}
