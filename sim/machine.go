// Package sim is a host model of an rv32 board running the kernel: RAM, a
// CLINT, harts with trap frames and a UART console. Task code is written as
// Go programs that execute one step at a time out of their registers.
package sim

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/exp/slices"

	"omibyte.io/rvk/arch"
	"omibyte.io/rvk/klog"
	"omibyte.io/rvk/sched"
	"omibyte.io/rvk/targets"
	"omibyte.io/rvk/task"
	"omibyte.io/rvk/trap"
)

var (
	ErrNotBooted = errors.New("machine not booted")
	ErrBooted    = errors.New("machine already booted")
)

const (
	defaultStepsPerTick = 10
	defaultConsoleFIFO  = 256
	trapStackSize       = 512
)

type Config struct {
	Target targets.TargetInfo

	// StepsPerTick is how many instructions each hart runs per kernel tick.
	StepsPerTick int

	Console     io.Writer
	ConsoleFIFO int
	LogLevel    slog.Level
}

type program struct {
	name  string
	entry uint32
	size  uint32
	fn    Program
}

type usage struct {
	steps     uint64
	wakeAt    uint64
	sleeping  bool
	latencies []float64
}

type Machine struct {
	target  targets.TargetInfo
	mem     *Memory
	clint   *CLINT
	harts   []*Hart
	console *Console
	log     *klog.Logger
	sched   *sched.Scheduler
	trap    *trap.Dispatcher

	programs  []program
	nextEntry uint32
	wfi       uint32
	stepUnits uint64

	stats  map[task.PID]*usage
	steps  uint64
	booted bool
	halted error
}

func New(cfg Config) (*Machine, error) {
	t := cfg.Target
	opts, err := t.Options()
	if err != nil {
		return nil, err
	}
	if cfg.StepsPerTick <= 0 {
		cfg.StepsPerTick = defaultStepsPerTick
	}
	if cfg.ConsoleFIFO <= 0 {
		cfg.ConsoleFIFO = defaultConsoleFIFO
	}

	m := &Machine{
		target:    t,
		clint:     NewCLINT(t.Harts),
		console:   NewConsole(cfg.Console, cfg.ConsoleFIFO),
		wfi:       targets.IdleEntry(t),
		nextEntry: t.TrapVector + codeWindow,
		stats:     map[task.PID]*usage{},
	}
	m.log = klog.New(m.console, cfg.LogLevel).With("target", t.Name)
	m.stepUnits = opts.Quantum / uint64(cfg.StepsPerTick)
	if m.stepUnits == 0 {
		m.stepUnits = 1
	}

	if m.mem, err = NewMemory(t.RAMBase, t.RAMSize); err != nil {
		return nil, err
	}
	tramp := &trampoline{}
	for i := 0; i < t.Harts; i++ {
		stack, ok := m.mem.Alloc(trapStackSize)
		if !ok {
			return nil, fmt.Errorf("no memory for the trap stack of hart %d", i)
		}
		h := &Hart{ID: uint32(i), PC: m.wfi, Frame: arch.NewTrapFrame(uint32(i), stack.Top)}
		m.harts = append(m.harts, h)
	}
	tramp.harts = m.harts

	if m.sched, err = sched.New(opts, m.mem, tramp, m.clint, m.clint, m.log.With("component", "sched")); err != nil {
		return nil, err
	}
	m.trap, err = trap.New(trap.Config{
		TrapVector: t.TrapVector,
		Quantum:    opts.Quantum,
		Harts:      t.Harts,
	}, m.sched, m.clint, m.log.With("component", "trap"))
	if err != nil {
		return nil, err
	}
	m.programs = append(m.programs, program{name: "wfi", entry: m.wfi, size: 4, fn: wfi})
	return m, nil
}

// Spawn loads fn at a fresh code address and creates a task running it.
// When the task could be created but not queued the pid is returned with
// the error.
func (m *Machine) Spawn(name string, priority uint8, fn Program) (task.PID, error) {
	entry := m.nextEntry
	m.nextEntry += codeWindow
	// Entries only grow, so programs stays sorted for lookup.
	m.programs = append(m.programs, program{name: name, entry: entry, size: codeWindow, fn: fn})

	pid, err := m.sched.TaskCreate(name, entry, priority, m.target.StackSize)
	if pid != task.NoPID {
		m.stats[pid] = &usage{}
	}
	return pid, err
}

// Load spawns every spec, naming tasks after their kind.
func (m *Machine) Load(specs []TaskSpec) error {
	for i, spec := range specs {
		fn, err := spec.Program()
		if err != nil {
			return err
		}
		if _, err := m.Spawn(fmt.Sprintf("%s%d", spec.Kind, i), spec.Priority, fn); err != nil {
			return err
		}
	}
	return nil
}

// Boot starts the scheduler on every hart.
func (m *Machine) Boot() error {
	if m.booted {
		return ErrBooted
	}
	for _, h := range m.harts {
		if err := m.sched.Start(h.ID); err != nil {
			return err
		}
		if pid := m.sched.IdlePID(h.ID); pid != task.NoPID {
			m.stats[pid] = &usage{}
		}
		m.resume(h)
	}
	m.booted = true
	return nil
}

// Step advances mtime by one instruction time and runs one instruction on
// every hart, taking pending interrupts after it.
func (m *Machine) Step() error {
	if m.halted != nil {
		return m.halted
	}
	if !m.booted {
		return ErrNotBooted
	}
	m.clint.Advance(m.stepUnits)
	for _, h := range m.harts {
		if err := m.execute(h); err != nil {
			return m.halt(err)
		}
		if err := m.poll(h); err != nil {
			return m.halt(err)
		}
	}
	m.steps++
	return m.console.Flush()
}

// Run steps until ticks more kernel ticks have passed.
func (m *Machine) Run(ticks uint64) error {
	end := m.sched.Tick() + ticks
	for m.sched.Tick() < end {
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) halt(err error) error {
	m.halted = err
	m.log.Errorf("machine halted: %v", err)
	m.console.Flush()
	return err
}

func (m *Machine) lookup(pc uint32) *program {
	i, found := slices.BinarySearchFunc(m.programs, pc, func(p program, pc uint32) int {
		switch {
		case p.entry < pc:
			return -1
		case p.entry > pc:
			return 1
		}
		return 0
	})
	if !found {
		i--
	}
	if i < 0 || pc-m.programs[i].entry >= m.programs[i].size {
		return nil
	}
	return &m.programs[i]
}

func (m *Machine) usage(pid task.PID) *usage {
	u, ok := m.stats[pid]
	if !ok {
		u = &usage{}
		m.stats[pid] = u
	}
	return u
}

// idle reports whether pid is no task or any hart's idle task.
func (m *Machine) idle(pid task.PID) bool {
	if pid == task.NoPID {
		return true
	}
	for _, h := range m.harts {
		if pid == m.sched.IdlePID(h.ID) {
			return true
		}
	}
	return false
}

// execute runs the instruction at the hart's pc.
func (m *Machine) execute(h *Hart) error {
	h.steps++
	pid := m.sched.Current(h.ID)
	if m.idle(pid) {
		h.idleSteps++
	}
	p := m.lookup(h.PC)
	if p == nil {
		return m.takeTrap(h, arch.ExceptionCause(arch.ExcInstructionAccessFault))
	}
	if pid != task.NoPID {
		u := m.usage(pid)
		u.steps++
		if u.sleeping {
			u.sleeping = false
			// Negative when the sleep was refused and the task woke early.
			u.latencies = append(u.latencies, float64(m.sched.Tick())-float64(u.wakeAt))
		}
	}
	p.fn(&CPU{m: m, h: h, pid: pid})
	h.PC = p.entry + (h.PC-p.entry+4)%p.size
	return nil
}

// poll takes pending interrupts in priority order, software before timer.
func (m *Machine) poll(h *Hart) error {
	for {
		switch {
		case m.clint.SoftPending(h.ID):
			m.clint.ClearSoft(h.ID)
			if err := m.takeTrap(h, arch.InterruptCause(arch.IRQMachineSoftware)); err != nil {
				return err
			}
		case m.clint.TimerPending(h.ID):
			if err := m.takeTrap(h, arch.InterruptCause(arch.IRQMachineTimer)); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (m *Machine) takeTrap(h *Hart, cause arch.Cause) (err error) {
	h.Frame.Spill(&h.Regs, h.PC)
	func() {
		defer func() {
			if r := recover(); r != nil {
				f, ok := r.(*trap.Fault)
				if !ok {
					panic(r)
				}
				err = f
			}
		}()
		m.trap.Handle(cause, h.PC, h.ID)
	}()
	if err == nil {
		m.resume(h)
	}
	return err
}

// resume is the trap return: the hart continues from its frame, or parks in
// the idle loop when the kernel left it without a task.
func (m *Machine) resume(h *Hart) {
	if m.sched.Current(h.ID) == task.NoPID {
		h.Regs = [arch.NumRegs]uint32{}
		h.PC = m.wfi
		return
	}
	h.Regs = h.Frame.Regs
	h.PC = h.Frame.EPC
}

func (m *Machine) Scheduler() *sched.Scheduler { return m.sched }

func (m *Machine) Dispatcher() *trap.Dispatcher { return m.trap }

func (m *Machine) Harts() []*Hart { return m.harts }

func (m *Machine) Target() targets.TargetInfo { return m.target }

func (m *Machine) Logger() *klog.Logger { return m.log }

func (m *Machine) Halted() error { return m.halted }

// WriteState prints the tick, what each hart runs and both queues.
func (m *Machine) WriteState(w io.Writer) {
	fmt.Fprintf(w, "tick %d  mtime %d  steps %d\n", m.sched.Tick(), m.clint.ReadTime(), m.steps)
	for _, h := range m.harts {
		pid := m.sched.Current(h.ID)
		name := "-"
		if t, err := m.sched.Task(pid); err == nil {
			name = t.NameString()
		}
		fmt.Fprintf(w, "hart %d  pid %d (%s)  pc %#08x  s1 %d  next deadline %d\n",
			h.ID, pid, name, h.PC, h.Regs[arch.S1], m.clint.Deadline(h.ID))
	}
	fmt.Fprintf(w, "ready  %v\n", m.sched.ReadyPIDs())
	fmt.Fprintf(w, "sleep ")
	for _, s := range m.sched.Sleepers() {
		fmt.Fprintf(w, " %d@%d", s.PID, s.WakeAt)
	}
	fmt.Fprintln(w)
}
