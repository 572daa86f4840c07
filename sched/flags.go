package sched

import (
	"fmt"
	"sync/atomic"
)

// Reason records why a reschedule was requested.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonTick
	ReasonYield
	ReasonSleep
	ReasonExit
	ReasonWake
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonTick:
		return "tick"
	case ReasonYield:
		return "yield"
	case ReasonSleep:
		return "sleep"
	case ReasonExit:
		return "exit"
	case ReasonWake:
		return "wake"
	}
	return fmt.Sprintf("reason(%d)", uint8(r))
}

// Flag word layout: bit 0 initialized, bit 1 reschedule needed, bits 8-15
// reason code of the pending reschedule.
const (
	flagInitialized = 1 << 0
	flagResched     = 1 << 1
	reasonShift     = 8
	reasonMask      = 0xff << reasonShift
)

// Flags holds one 16-bit word per core. Drivers set the reschedule bit from
// interrupt context and the trap path consumes it, so every access is atomic.
type Flags struct {
	words []atomic.Uint32
}

func NewFlags(cores int) *Flags {
	return &Flags{words: make([]atomic.Uint32, cores)}
}

func (f *Flags) update(core uint32, fn func(uint32) uint32) {
	w := &f.words[core]
	for {
		old := w.Load()
		if w.CompareAndSwap(old, fn(old)&0xffff) {
			return
		}
	}
}

// SetInitialized marks the scheduler of core as running.
func (f *Flags) SetInitialized(core uint32) {
	f.update(core, func(old uint32) uint32 { return old | flagInitialized })
}

func (f *Flags) Initialized(core uint32) bool {
	return f.words[core].Load()&flagInitialized != 0
}

// NeedReschedule asks for a dispatch on core. A later request overwrites the
// reason of an earlier one that has not been consumed.
func (f *Flags) NeedReschedule(core uint32, reason Reason) {
	f.update(core, func(old uint32) uint32 {
		return old&^reasonMask | flagResched | uint32(reason)<<reasonShift
	})
}

// ClearReschedule drops a pending request and its reason.
func (f *Flags) ClearReschedule(core uint32) {
	f.update(core, func(old uint32) uint32 { return old &^ (flagResched | reasonMask) })
}

// ReadNeedReschedule reports whether a reschedule is pending and why.
func (f *Flags) ReadNeedReschedule(core uint32) (bool, Reason) {
	w := f.words[core].Load()
	return w&flagResched != 0, Reason((w & reasonMask) >> reasonShift)
}

// Raw returns the flag word of core.
func (f *Flags) Raw(core uint32) uint16 {
	return uint16(f.words[core].Load())
}
