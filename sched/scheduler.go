// Package sched decides which task runs next on each hart and performs the
// switch through the architecture trampoline.
package sched

import (
	"errors"
	"fmt"
	"sync"

	"omibyte.io/rvk/arch"
	"omibyte.io/rvk/klog"
	"omibyte.io/rvk/queue"
	"omibyte.io/rvk/task"
)

// Allocator hands out one memory region per task.
type Allocator interface {
	Alloc(size uint32) (arch.Region, bool)
}

// Timer is the per-core deadline timer.
type Timer interface {
	ReadTime() uint64
	SetDelay(core uint32, deadline uint64)
}

// SoftIRQ raises a software interrupt on a hart. When a scheduler has one,
// Yield, SleepUntil and Exit only request the reschedule and the trap path
// performs the dispatch.
type SoftIRQ interface {
	Raise(hart uint32)
}

// Stats is a snapshot of the scheduler counters.
type Stats struct {
	Ticks      uint64
	Dispatches uint64
	Switches   uint64
	Wakes      uint64
	TableFull  uint64
	ReadyFull  uint64
	SleepFull  uint64
	NoMemory   uint64
	NoRunnable uint64
}

// Scheduler owns the task table, both queues and the per-core flags.
type Scheduler struct {
	mu sync.Mutex

	opts    Options
	table   *task.Table
	ready   *queue.Ready
	sleep   *queue.Sleep
	flags   *Flags
	current []task.PID
	idle    []task.PID
	tick    uint64
	stats   Stats

	alloc Allocator
	tramp arch.Trampoline
	timer Timer
	irq   SoftIRQ
	log   *klog.Logger
}

// New builds a scheduler. irq may be nil, in which case reschedule requests
// dispatch immediately on the calling hart.
func New(opts Options, alloc Allocator, tramp arch.Trampoline, timer Timer, irq SoftIRQ, log *klog.Logger) (*Scheduler, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if alloc == nil || tramp == nil || timer == nil {
		return nil, errors.New("scheduler needs an allocator, a trampoline and a timer")
	}
	s := &Scheduler{
		opts:    opts,
		table:   task.NewTable(opts.MaxTasks, log),
		ready:   queue.NewReady(opts.ReadyCap, opts.TieBreak, log),
		sleep:   queue.NewSleep(opts.SleepCap, log),
		flags:   NewFlags(opts.Harts),
		current: make([]task.PID, opts.Harts),
		idle:    make([]task.PID, opts.Harts),
		alloc:   alloc,
		tramp:   tramp,
		timer:   timer,
		irq:     irq,
		log:     log,
	}
	return s, nil
}

func (s *Scheduler) checkHart(hart uint32) {
	if int(hart) >= len(s.current) {
		panic(fmt.Errorf("%w: hart %d out of range (%d harts)", ErrInvariant, hart, len(s.current)))
	}
}

func (s *Scheduler) mustGet(pid task.PID) *task.Task {
	t, err := s.table.Get(pid)
	if err != nil {
		panic(fmt.Errorf("%w: %v", ErrInvariant, err))
	}
	return t
}

func (s *Scheduler) mustTransition(t *task.Task, to task.State) {
	if err := t.Transition(to); err != nil {
		panic(fmt.Errorf("%w: %v", ErrInvariant, err))
	}
}

// TaskCreate allocates a region of size bytes, builds the task's initial
// context and queues it as Ready.
func (s *Scheduler) TaskCreate(name string, entry uint32, priority uint8, size uint32) (task.PID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(name, entry, priority, size)
}

func (s *Scheduler) createLocked(name string, entry uint32, priority uint8, size uint32) (task.PID, error) {
	region, ok := s.alloc.Alloc(size)
	if !ok {
		s.stats.NoMemory++
		s.log.Warnf("task %q: no region of %d bytes", name, size)
		return task.NoPID, fmt.Errorf("%w: %q needs %d bytes", ErrNoMemory, name, size)
	}

	pid, err := s.table.Add(task.NewTask(name, entry, priority, region))
	if err != nil {
		s.stats.TableFull++
		return task.NoPID, err
	}

	if err := s.ready.Push(uint32(pid), uint32(priority)); err != nil {
		s.stats.ReadyFull++
		s.log.Warnf("task %d %q created but not runnable: %v", pid, name, err)
		return pid, err
	}
	s.mustTransition(s.mustGet(pid), task.Ready)
	s.log.Debugf("task %d %q created (prio %d, stack %#x-%#x, entry %#x)",
		pid, name, priority, region.Bottom, region.Top, entry)
	return pid, nil
}

// Start initializes the scheduler on hart, arms the first timer deadline and
// performs the first dispatch.
func (s *Scheduler) Start(hart uint32) error {
	s.checkHart(hart)
	s.mu.Lock()
	if s.flags.Initialized(hart) {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started on hart %d", hart)
	}
	if s.opts.Idle {
		pid, err := s.createLocked(fmt.Sprintf("idle%d", hart), s.opts.IdleEntry, 0, s.opts.IdleStack)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("idle task for hart %d: %w", hart, err)
		}
		s.idle[hart] = pid
	}
	s.flags.SetInitialized(hart)
	s.timer.SetDelay(hart, s.timer.ReadTime()+s.opts.Quantum)
	s.mu.Unlock()

	s.log.Infof("scheduler started on hart %d (%d tasks)", hart, s.TaskCount())
	s.Dispatch(hart)
	return nil
}

// Dispatch saves the task running on hart, re-queues it according to its
// state, wakes every due sleeper and switches to the head of the ready
// queue. If nothing is runnable the hart is left without a current task.
func (s *Scheduler) Dispatch(hart uint32) {
	s.checkHart(hart)
	s.mu.Lock()
	ctx := s.dispatchLocked(hart)
	s.mu.Unlock()

	// On hardware this does not return; the next kernel entry is a trap.
	if ctx != nil {
		s.tramp.SwitchTo(hart, ctx)
	}
}

func (s *Scheduler) dispatchLocked(hart uint32) *arch.Context {
	s.stats.Dispatches++
	prev := s.current[hart]
	s.current[hart] = task.NoPID

	if prev != task.NoPID {
		t := s.mustGet(prev)
		s.tramp.SaveFrom(hart, &t.Context)
		s.requeue(t)
	}

	s.wakeDue()

	next, ok := s.ready.Pop()
	if !ok {
		s.stats.NoRunnable++
		s.log.Errorf("hart %d: ready queue empty at tick %d, nothing to run", hart, s.tick)
		return nil
	}
	t := s.mustGet(task.PID(next))
	s.mustTransition(t, task.Running)
	t.Dispatches++
	s.current[hart] = t.PID
	if t.PID != prev {
		s.stats.Switches++
	}
	s.log.Debugf("hart %d: tick %d switch %d -> %d (%s)", hart, s.tick, prev, t.PID, t.NameString())
	return &t.Context
}

// requeue files the outgoing task by state: running tasks become Ready,
// blocked tasks go to the sleep queue, terminated tasks are dropped.
func (s *Scheduler) requeue(t *task.Task) {
	switch t.State {
	case task.Running:
		s.mustTransition(t, task.Ready)
		s.pushReady(t)
	case task.Blocked:
		err := s.sleep.Push(s.tick, uint32(t.PID), t.Block.WakeAt)
		if err == nil {
			return
		}
		// A sleeper that cannot be queued would never wake; it loses its
		// sleep instead.
		s.stats.SleepFull++
		s.log.Warnf("task %d: sleep until %d refused (%v), waking early", t.PID, t.Block.WakeAt, err)
		s.mustTransition(t, task.Ready)
		s.pushReady(t)
	case task.Terminated:
		s.log.Debugf("task %d terminated, not requeued", t.PID)
	default:
		panic(fmt.Errorf("%w: current task %d in state %s", ErrInvariant, t.PID, t.State))
	}
}

func (s *Scheduler) pushReady(t *task.Task) {
	if err := s.ready.Push(uint32(t.PID), uint32(t.Priority)); err != nil {
		s.stats.ReadyFull++
		s.log.Warnf("task %d: ready but not queued (%v), it will starve", t.PID, err)
	}
}

func (s *Scheduler) wakeDue() {
	for {
		id, ok := s.sleep.PopDue(s.tick)
		if !ok {
			return
		}
		t := s.mustGet(task.PID(id))
		s.mustTransition(t, task.Ready)
		s.stats.Wakes++
		s.pushReady(t)
		s.log.Debugf("task %d woke at tick %d", t.PID, s.tick)
	}
}

// AdvanceTick counts one timer tick and returns the new tick.
func (s *Scheduler) AdvanceTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick++
	s.stats.Ticks++
	return s.tick
}

// Tick returns the current tick.
func (s *Scheduler) Tick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// SleepUntil blocks the task running on hart until tick and reschedules.
func (s *Scheduler) SleepUntil(hart uint32, tick uint64) error {
	s.checkHart(hart)
	s.mu.Lock()
	pid := s.current[hart]
	if pid == task.NoPID {
		s.mu.Unlock()
		return fmt.Errorf("%w: hart %d", ErrNoCurrent, hart)
	}
	if s.isIdle(pid) {
		s.mu.Unlock()
		return fmt.Errorf("%w: idle task %d cannot sleep", ErrIdle, pid)
	}
	if err := s.mustGet(pid).SleepUntil(tick); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.reschedule(hart, ReasonSleep)
	return nil
}

// Yield gives up the rest of the current task's tick.
func (s *Scheduler) Yield(hart uint32) {
	s.checkHart(hart)
	s.reschedule(hart, ReasonYield)
}

// Exit terminates the task running on hart. Its table slot is never reused.
func (s *Scheduler) Exit(hart uint32) error {
	s.checkHart(hart)
	s.mu.Lock()
	pid := s.current[hart]
	if pid == task.NoPID {
		s.mu.Unlock()
		return fmt.Errorf("%w: hart %d", ErrNoCurrent, hart)
	}
	if s.isIdle(pid) {
		s.mu.Unlock()
		return fmt.Errorf("%w: idle task %d cannot exit", ErrIdle, pid)
	}
	s.mustTransition(s.mustGet(pid), task.Terminated)
	s.mu.Unlock()

	s.log.Infof("task %d exited on hart %d", pid, hart)
	s.reschedule(hart, ReasonExit)
	return nil
}

// isIdle reports whether pid is the idle task of any hart. Idle tasks share
// the ready queue, so one may run on another hart than its own.
func (s *Scheduler) isIdle(pid task.PID) bool {
	for _, idle := range s.idle {
		if idle != task.NoPID && idle == pid {
			return true
		}
	}
	return false
}

func (s *Scheduler) reschedule(hart uint32, reason Reason) {
	s.flags.NeedReschedule(hart, reason)
	if s.irq != nil {
		s.irq.Raise(hart)
		return
	}
	s.Dispatch(hart)
	s.flags.ClearReschedule(hart)
}

// NeedReschedule lets a driver request a dispatch on core without
// performing it.
func (s *Scheduler) NeedReschedule(core uint32, reason Reason) {
	s.checkHart(core)
	s.flags.NeedReschedule(core, reason)
}

func (s *Scheduler) ClearReschedule(core uint32) {
	s.checkHart(core)
	s.flags.ClearReschedule(core)
}

func (s *Scheduler) ReadNeedReschedule(core uint32) (bool, Reason) {
	s.checkHart(core)
	return s.flags.ReadNeedReschedule(core)
}

func (s *Scheduler) Flags() *Flags {
	return s.flags
}

// Current returns the pid running on hart, or task.NoPID.
func (s *Scheduler) Current(hart uint32) task.PID {
	s.checkHart(hart)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current[hart]
}

// Task returns a copy of the task with the given pid.
func (s *Scheduler) Task(pid task.PID) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table.Get(pid)
	if err != nil {
		return task.Task{}, err
	}
	return *t, nil
}

// Tasks returns copies of every task in creation order.
func (s *Scheduler) Tasks() []task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]task.Task, 0, s.table.Size())
	s.table.Each(func(t *task.Task) bool {
		out = append(out, *t)
		return true
	})
	return out
}

func (s *Scheduler) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Size()
}

// ReadyPIDs returns the ready queue in dequeue order.
func (s *Scheduler) ReadyPIDs() []task.PID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []task.PID
	s.ready.Each(func(n queue.Node) bool {
		out = append(out, task.PID(n.ID))
		return true
	})
	return out
}

// Sleeper is one sleep queue entry with its absolute wake tick.
type Sleeper struct {
	PID    task.PID
	WakeAt uint64
}

// Sleepers returns the sleep queue in wake order.
func (s *Scheduler) Sleepers() []Sleeper {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Sleeper
	s.sleep.Each(func(id uint32, wake uint64) bool {
		out = append(out, Sleeper{task.PID(id), wake})
		return true
	})
	return out
}

// IdlePID returns the idle task of hart, or task.NoPID without one.
func (s *Scheduler) IdlePID(hart uint32) task.PID {
	s.checkHart(hart)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle[hart]
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Scheduler) Options() Options {
	return s.opts
}

// LogStats writes the counters through the stats channel.
func (s *Scheduler) LogStats() {
	st := s.Stats()
	s.log.Statsf("sched", "ticks=%d dispatches=%d switches=%d wakes=%d", st.Ticks, st.Dispatches, st.Switches, st.Wakes)
	s.log.Statsf("capacity", "table_full=%d ready_full=%d sleep_full=%d no_memory=%d no_runnable=%d",
		st.TableFull, st.ReadyFull, st.SleepFull, st.NoMemory, st.NoRunnable)
}
