package task

import "errors"

var (
	ErrTableFull     = errors.New("task table is full")
	ErrNoTask        = errors.New("no such task")
	ErrBadTransition = errors.New("illegal task state transition")
)
