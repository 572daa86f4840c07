// Package trap is the single entry point for every hardware trap. It
// classifies the cause, runs the sanity checks and either drives the
// scheduler or halts.
package trap

import (
	"fmt"
	"sync/atomic"

	"omibyte.io/rvk/arch"
	"omibyte.io/rvk/klog"
	"omibyte.io/rvk/sched"
)

// Scheduler is the part of sched.Scheduler the trap path drives.
type Scheduler interface {
	AdvanceTick() uint64
	Dispatch(hart uint32)
	NeedReschedule(core uint32, reason sched.Reason)
	ClearReschedule(core uint32)
	ReadNeedReschedule(core uint32) (bool, sched.Reason)
}

type Config struct {
	// TrapVector is the address of the trap entry routine. A trap whose
	// epc equals it means the entry routine trapped into itself.
	TrapVector uint32

	// Quantum is the number of timer units between two ticks.
	Quantum uint64

	Harts int

	// TickHart is the hart whose timer advances the global tick. Timer
	// interrupts on other harts only preempt.
	TickHart uint32
}

type Stats struct {
	Traps      uint64
	TimerIRQs  uint64
	SoftIRQs   uint64
	Spurious   uint64
	Exceptions uint64
}

type Dispatcher struct {
	cfg    Config
	sched  Scheduler
	timer  sched.Timer
	log    *klog.Logger
	active []atomic.Bool

	traps     atomic.Uint64
	timerIRQs atomic.Uint64
	softIRQs  atomic.Uint64
	spurious  atomic.Uint64
	faults    atomic.Uint64
}

func New(cfg Config, s Scheduler, timer sched.Timer, log *klog.Logger) (*Dispatcher, error) {
	if cfg.Harts <= 0 {
		return nil, fmt.Errorf("harts must be positive, got %d", cfg.Harts)
	}
	if cfg.Quantum == 0 {
		return nil, fmt.Errorf("quantum must be positive")
	}
	if s == nil || timer == nil {
		return nil, fmt.Errorf("trap dispatcher needs a scheduler and a timer")
	}
	return &Dispatcher{
		cfg:    cfg,
		sched:  s,
		timer:  timer,
		log:    log,
		active: make([]atomic.Bool, cfg.Harts),
	}, nil
}

// Handle is invoked for every trap with the raw cause, the program counter
// of the interrupted instruction and the hart id. Every case it does not
// handle panics with a *Fault.
func (d *Dispatcher) Handle(cause arch.Cause, epc uint32, hart uint32) {
	if int(hart) >= len(d.active) {
		d.fatal(hart, cause, epc, fmt.Errorf("%w: trap on unknown hart", ErrUnhandledIRQ))
	}
	if !d.active[hart].CompareAndSwap(false, true) {
		d.fatal(hart, cause, epc, fmt.Errorf("%w: trap taken while handling a trap", ErrReentrant))
	}
	defer d.active[hart].Store(false)
	d.traps.Add(1)

	switch epc {
	case 0:
		d.fatal(hart, cause, epc, fmt.Errorf("%w: zero", ErrBadEPC))
	case arch.BadEPC:
		d.fatal(hart, cause, epc, fmt.Errorf("%w: all ones", ErrBadEPC))
	case d.cfg.TrapVector:
		d.fatal(hart, cause, epc, fmt.Errorf("%w: trap vector trapped into itself", ErrReentrant))
	}

	if !cause.Interrupt() {
		d.faults.Add(1)
		d.fatal(hart, cause, epc, ErrException)
	}

	switch cause.Code() {
	case arch.IRQMachineTimer:
		d.timerIRQs.Add(1)
		d.timerTick(hart)
	case arch.IRQMachineSoftware:
		d.softIRQs.Add(1)
		if pending, _ := d.sched.ReadNeedReschedule(hart); !pending {
			// A timer trap between the request and the IPI already
			// consumed it.
			d.spurious.Add(1)
			d.log.Debugf("hart %d: spurious software interrupt at epc %#x", hart, epc)
			return
		}
		d.reschedule(hart)
	default:
		d.fatal(hart, cause, epc, ErrUnhandledIRQ)
	}
}

// timerTick counts the tick, re-arms the deadline and preempts.
func (d *Dispatcher) timerTick(hart uint32) {
	if hart == d.cfg.TickHart {
		d.sched.AdvanceTick()
	}
	d.timer.SetDelay(hart, d.timer.ReadTime()+d.cfg.Quantum)
	d.sched.NeedReschedule(hart, sched.ReasonTick)
	d.reschedule(hart)
}

// reschedule consumes the pending request before dispatching, since on
// hardware the dispatch does not come back.
func (d *Dispatcher) reschedule(hart uint32) {
	_, reason := d.sched.ReadNeedReschedule(hart)
	d.sched.ClearReschedule(hart)
	d.log.Debugf("hart %d: reschedule (%s)", hart, reason)
	d.sched.Dispatch(hart)
}

func (d *Dispatcher) fatal(hart uint32, cause arch.Cause, epc uint32, err error) {
	f := &Fault{Hart: hart, Cause: cause, EPC: epc, Err: err}
	d.log.Errorf("FATAL %v", f)
	panic(f)
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Traps:      d.traps.Load(),
		TimerIRQs:  d.timerIRQs.Load(),
		SoftIRQs:   d.softIRQs.Load(),
		Spurious:   d.spurious.Load(),
		Exceptions: d.faults.Load(),
	}
}
