package arch

import "fmt"

// Cause is the raw value of the mcause register.
type Cause uint32

// InterruptBit distinguishes asynchronous interrupts from synchronous
// exceptions.
const InterruptBit Cause = 1 << 31

// Interrupt codes.
const (
	IRQSupervisorSoftware = 1
	IRQMachineSoftware    = 3
	IRQSupervisorTimer    = 5
	IRQMachineTimer       = 7
	IRQSupervisorExternal = 9
	IRQMachineExternal    = 11
)

// Exception codes.
const (
	ExcInstructionMisaligned  = 0
	ExcInstructionAccessFault = 1
	ExcIllegalInstruction     = 2
	ExcBreakpoint             = 3
	ExcLoadMisaligned         = 4
	ExcLoadAccessFault        = 5
	ExcStoreMisaligned        = 6
	ExcStoreAccessFault       = 7
	ExcEcallU                 = 8
	ExcEcallS                 = 9
	ExcEcallM                 = 11
	ExcInstructionPageFault   = 12
	ExcLoadPageFault          = 13
	ExcStorePageFault         = 15
)

// BadEPC is the all-ones program counter that never belongs to valid code.
const BadEPC uint32 = 0xFFFF_FFFF

func InterruptCause(code uint32) Cause {
	return InterruptBit | Cause(code)
}

func ExceptionCause(code uint32) Cause {
	return Cause(code) &^ InterruptBit
}

func (c Cause) Interrupt() bool {
	return c&InterruptBit != 0
}

func (c Cause) Code() uint32 {
	return uint32(c &^ InterruptBit)
}

var interruptNames = map[uint32]string{
	IRQSupervisorSoftware: "supervisor software interrupt",
	IRQMachineSoftware:    "machine software interrupt",
	IRQSupervisorTimer:    "supervisor timer interrupt",
	IRQMachineTimer:       "machine timer interrupt",
	IRQSupervisorExternal: "supervisor external interrupt",
	IRQMachineExternal:    "machine external interrupt",
}

var exceptionNames = map[uint32]string{
	ExcInstructionMisaligned:  "instruction address misaligned",
	ExcInstructionAccessFault: "instruction access fault",
	ExcIllegalInstruction:     "illegal instruction",
	ExcBreakpoint:             "breakpoint",
	ExcLoadMisaligned:         "load address misaligned",
	ExcLoadAccessFault:        "load access fault",
	ExcStoreMisaligned:        "store address misaligned",
	ExcStoreAccessFault:       "store access fault",
	ExcEcallU:                 "environment call from U-mode",
	ExcEcallS:                 "environment call from S-mode",
	ExcEcallM:                 "environment call from M-mode",
	ExcInstructionPageFault:   "instruction page fault",
	ExcLoadPageFault:          "load page fault",
	ExcStorePageFault:         "store page fault",
}

func (c Cause) String() string {
	names := exceptionNames
	kind := "exception"
	if c.Interrupt() {
		names = interruptNames
		kind = "interrupt"
	}
	if name, ok := names[c.Code()]; ok {
		return name
	}
	return fmt.Sprintf("unknown %s %d", kind, c.Code())
}
