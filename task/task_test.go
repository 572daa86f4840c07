package task

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"omibyte.io/rvk/arch"
	"omibyte.io/rvk/klog"
)

var stack = arch.Region{Top: 0x8000_2000, Bottom: 0x8000_1000}

func TestNewTask(t *testing.T) {
	tk := NewTask("blinker", 0x8000_0200, 3, stack)
	if tk.State != New {
		t.Errorf("state = %s, want new", tk.State)
	}
	if tk.Context.PC != 0x8000_0200 || tk.Context.SP != stack.Top {
		t.Errorf("context PC=%#x SP=%#x", tk.Context.PC, tk.Context.SP)
	}
	if tk.NameString() != "blinker" {
		t.Errorf("name = %q", tk.NameString())
	}

	long := NewTask("a-very-long-task-name", 0, 0, stack)
	if got := long.NameString(); got != "a-very-long-task" {
		t.Errorf("truncated name = %q", got)
	}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{New, Ready, true},
		{New, Running, false},
		{Ready, Running, true},
		{Ready, Blocked, false},
		{Running, Ready, true},
		{Running, Blocked, true},
		{Running, Terminated, true},
		{Blocked, Ready, true},
		{Blocked, Running, false},
		{Terminated, Ready, false},
	}
	for _, tc := range tests {
		tk := Task{State: tc.from}
		err := tk.Transition(tc.to)
		if (err == nil) != tc.ok {
			t.Errorf("%s -> %s: err = %v, want ok=%v", tc.from, tc.to, err, tc.ok)
		}
		if err != nil && !errors.Is(err, ErrBadTransition) {
			t.Errorf("%s -> %s: err = %v, want ErrBadTransition", tc.from, tc.to, err)
		}
	}
}

func TestSleepUntilSetsAndClearsReason(t *testing.T) {
	tk := Task{State: Running}
	if err := tk.SleepUntil(42); err != nil {
		t.Fatalf("SleepUntil: %v", err)
	}
	if tk.State != Blocked || tk.Block.Kind != SleepUntil || tk.Block.WakeAt != 42 {
		t.Errorf("blocked task = %+v", tk.Block)
	}
	if err := tk.Transition(Ready); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if tk.Block != (BlockReason{}) {
		t.Errorf("block reason kept after wake: %+v", tk.Block)
	}
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	tb := NewTable(2, klog.New(&buf, slog.LevelWarn))

	a, err := tb.Add(NewTask("a", 0x100, 1, stack))
	if err != nil || a != 1 {
		t.Fatalf("Add(a) = %d, %v", a, err)
	}
	b, err := tb.Add(NewTask("b", 0x200, 1, stack))
	if err != nil || b != 2 {
		t.Fatalf("Add(b) = %d, %v", b, err)
	}
	if _, err := tb.Add(NewTask("c", 0x300, 1, stack)); !errors.Is(err, ErrTableFull) {
		t.Errorf("Add beyond capacity = %v, want ErrTableFull", err)
	}
	if !strings.Contains(buf.String(), "full") {
		t.Errorf("overflow not logged: %q", buf.String())
	}
	if tb.Size() != 2 {
		t.Errorf("size = %d, want 2", tb.Size())
	}

	tk, err := tb.Get(b)
	if err != nil || tk.NameString() != "b" {
		t.Fatalf("Get(b) = %v, %v", tk, err)
	}
	tk.State = Ready
	if again, _ := tb.Get(b); again.State != Ready {
		t.Errorf("Get did not return the stored task")
	}

	copyOfA := *mustGet(t, tb, a)
	copyOfA.Priority = 9
	copyOfA.PID = 77
	if err := tb.Update(a, copyOfA); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := mustGet(t, tb, a); got.Priority != 9 || got.PID != a {
		t.Errorf("after update: %v", got)
	}

	if _, err := tb.Get(99); !errors.Is(err, ErrNoTask) {
		t.Errorf("Get(99) = %v, want ErrNoTask", err)
	}
	if err := tb.Update(99, Task{}); !errors.Is(err, ErrNoTask) {
		t.Errorf("Update(99) = %v, want ErrNoTask", err)
	}
	if tb.Count(Ready) != 1 || tb.Count(New) != 1 {
		t.Errorf("counts ready=%d new=%d", tb.Count(Ready), tb.Count(New))
	}
}

func mustGet(t *testing.T, tb *Table, pid PID) *Task {
	t.Helper()
	tk, err := tb.Get(pid)
	if err != nil {
		t.Fatalf("Get(%d): %v", pid, err)
	}
	return tk
}
