package sched

import "errors"

var (
	ErrNoMemory  = errors.New("allocator has no region for task")
	ErrNoCurrent = errors.New("no task is running on hart")
	ErrInvariant = errors.New("scheduler invariant violated")
	ErrIdle      = errors.New("operation not allowed on an idle task")
)
