// Package task defines the task control block and the fixed-capacity table
// that stores them.
package task

import (
	"fmt"

	"omibyte.io/rvk/klog"
)

// Table is the TCB store. Lookups are linear scans; the table is small and
// is not a hash map. There is no removal: terminated tasks keep their slot.
// A Table is not safe for concurrent use.
type Table struct {
	tasks []Task
	n     int
	next  PID
	log   *klog.Logger
}

// NewTable returns an empty table with room for capacity tasks.
func NewTable(capacity int, log *klog.Logger) *Table {
	if capacity <= 0 {
		panic("task table capacity must be positive")
	}
	return &Table{
		tasks: make([]Task, capacity),
		next:  NoPID + 1,
		log:   log,
	}
}

// Add stores t under the next pid and returns that pid.
func (tb *Table) Add(t Task) (PID, error) {
	if tb.n == len(tb.tasks) {
		tb.log.Warnf("task table: full (%d tasks), %q dropped", len(tb.tasks), t.NameString())
		return NoPID, fmt.Errorf("%w: capacity %d", ErrTableFull, len(tb.tasks))
	}
	t.PID = tb.next
	tb.next++
	tb.tasks[tb.n] = t
	tb.n++
	return t.PID, nil
}

// Get returns the stored task for in-place mutation.
func (tb *Table) Get(pid PID) (*Task, error) {
	for i := 0; i < tb.n; i++ {
		if tb.tasks[i].PID == pid {
			return &tb.tasks[i], nil
		}
	}
	return nil, fmt.Errorf("%w: pid %d", ErrNoTask, pid)
}

// Update overwrites the stored task for pid with t.
func (tb *Table) Update(pid PID, t Task) error {
	stored, err := tb.Get(pid)
	if err != nil {
		return err
	}
	t.PID = pid
	*stored = t
	return nil
}

// Size returns the number of stored tasks, terminated ones included.
func (tb *Table) Size() int {
	return tb.n
}

func (tb *Table) Cap() int {
	return len(tb.tasks)
}

// Each calls fn on every stored task in creation order until fn returns
// false.
func (tb *Table) Each(fn func(*Task) bool) {
	for i := 0; i < tb.n; i++ {
		if !fn(&tb.tasks[i]) {
			return
		}
	}
}

// Count returns the number of tasks in state s.
func (tb *Table) Count(s State) int {
	c := 0
	for i := 0; i < tb.n; i++ {
		if tb.tasks[i].State == s {
			c++
		}
	}
	return c
}
