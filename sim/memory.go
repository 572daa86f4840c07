package sim

import (
	"fmt"

	"omibyte.io/rvk/arch"
)

// stackAlign is the RISC-V psABI stack alignment.
const stackAlign = 16

// Memory hands out task regions from the top of RAM downwards. Regions are
// never returned.
type Memory struct {
	base uint64
	top  uint64
	next uint64
}

func NewMemory(base uint32, size uint32) (*Memory, error) {
	top := uint64(base) + uint64(size)
	if size == 0 || top > 1<<32 {
		return nil, fmt.Errorf("bad RAM range %#x+%#x", base, size)
	}
	// A region top must fit a 32-bit register.
	if top == 1<<32 {
		top -= stackAlign
	}
	top &^= stackAlign - 1
	return &Memory{base: uint64(base), top: top, next: top}, nil
}

// Alloc reserves size bytes, rounded up to the stack alignment.
func (m *Memory) Alloc(size uint32) (arch.Region, bool) {
	if size == 0 {
		return arch.Region{}, false
	}
	n := (uint64(size) + stackAlign - 1) &^ (stackAlign - 1)
	top := m.next
	if top < m.base+n {
		return arch.Region{}, false
	}
	m.next = top - n
	return arch.Region{Top: uint32(top), Bottom: uint32(m.next)}, true
}

// Used returns the number of bytes handed out.
func (m *Memory) Used() uint64 {
	return m.top - m.next
}

func (m *Memory) Free() uint64 {
	return m.next - m.base
}
