package task

import (
	"fmt"

	"omibyte.io/rvk/arch"
)

// PID identifies a task. PIDs are handed out monotonically starting at 1.
type PID uint32

// NoPID marks a hart with no current task.
const NoPID PID = 0

// NameLen is the fixed size of a task label.
const NameLen = 16

type State uint8

const (
	New State = iota
	Ready
	Running
	Blocked
	Terminated
)

func (s State) String() string {
	switch s {
	case New:
		return "new"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// transitions lists the legal target states of every state.
var transitions = map[State][]State{
	New:     {Ready},
	Ready:   {Running},
	Running: {Ready, Blocked, Terminated},
	Blocked: {Ready},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type BlockKind uint8

const (
	NotBlocked BlockKind = iota
	SleepUntil
)

// BlockReason says why a task is Blocked. It is the zero value otherwise.
type BlockReason struct {
	Kind   BlockKind
	WakeAt uint64
}

// Task is one schedulable unit.
type Task struct {
	PID      PID
	Name     [NameLen]byte
	Priority uint8
	State    State
	Context  arch.Context
	Entry    uint32
	Stack    arch.Region
	Block    BlockReason

	// Dispatches counts how many times the task was switched to.
	Dispatches uint64
}

// NewTask returns a task in the New state with its initial context built
// from stack and entry.
func NewTask(name string, entry uint32, priority uint8, stack arch.Region) Task {
	t := Task{
		Priority: priority,
		State:    New,
		Context:  arch.Init(stack, entry),
		Entry:    entry,
		Stack:    stack,
	}
	t.SetName(name)
	return t
}

// SetName stores name, truncated to NameLen bytes.
func (t *Task) SetName(name string) {
	t.Name = [NameLen]byte{}
	copy(t.Name[:], name)
}

func (t *Task) NameString() string {
	n := 0
	for n < NameLen && t.Name[n] != 0 {
		n++
	}
	return string(t.Name[:n])
}

// Transition moves the task to state to. Leaving Blocked clears the block
// reason.
func (t *Task) Transition(to State) error {
	if !CanTransition(t.State, to) {
		return fmt.Errorf("%w: pid %d %s -> %s", ErrBadTransition, t.PID, t.State, to)
	}
	if t.State == Blocked {
		t.Block = BlockReason{}
	}
	t.State = to
	return nil
}

// SleepUntil blocks a running task until tick.
func (t *Task) SleepUntil(tick uint64) error {
	if err := t.Transition(Blocked); err != nil {
		return err
	}
	t.Block = BlockReason{Kind: SleepUntil, WakeAt: tick}
	return nil
}

func (t *Task) String() string {
	return fmt.Sprintf("%d:%s(prio %d, %s)", t.PID, t.NameString(), t.Priority, t.State)
}
