package arch

import "unsafe"

// TrapFrame offsets, in bytes.
const (
	OffFrameRegs      = 0
	OffFrameFRegs     = 128
	OffFrameSATP      = 256
	OffFrameTrapStack = 260
	OffFrameHartID    = 264
	OffFrameEPC       = 268
	TrapFrameSize     = 272
)

// TrapFrame is the per-hart scratch record used by the trap entry path. The
// entry code spills the interrupted register file here and switches to
// TrapStack before it touches anything belonging to the interrupted task.
type TrapFrame struct {
	Regs      [NumRegs]uint32
	FRegs     [NumRegs]uint32
	SATP      uint32
	TrapStack uint32
	HartID    uint32
	EPC       uint32
}

var (
	_ = [1]struct{}{}[unsafe.Sizeof(TrapFrame{})-TrapFrameSize]
	_ = [1]struct{}{}[unsafe.Offsetof(TrapFrame{}.FRegs)-OffFrameFRegs]
	_ = [1]struct{}{}[unsafe.Offsetof(TrapFrame{}.SATP)-OffFrameSATP]
	_ = [1]struct{}{}[unsafe.Offsetof(TrapFrame{}.TrapStack)-OffFrameTrapStack]
	_ = [1]struct{}{}[unsafe.Offsetof(TrapFrame{}.HartID)-OffFrameHartID]
	_ = [1]struct{}{}[unsafe.Offsetof(TrapFrame{}.EPC)-OffFrameEPC]
)

// NewTrapFrame returns the frame for hart with its dedicated trap stack.
func NewTrapFrame(hart uint32, trapStack uint32) *TrapFrame {
	return &TrapFrame{
		TrapStack: trapStack,
		HartID:    hart,
	}
}

// Spill copies an interrupted register file into the frame. This is what the
// assembly entry stub does on hardware.
func (f *TrapFrame) Spill(regs *[NumRegs]uint32, epc uint32) {
	f.Regs = *regs
	f.Regs[Zero] = 0
	f.EPC = epc
}
