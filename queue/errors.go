package queue

import "errors"

var (
	ErrFull      = errors.New("queue is full")
	ErrDuplicate = errors.New("id is already queued")
	ErrCorrupt   = errors.New("queue links are corrupted")
)

const nilIndex = -1
