package sched

import (
	"fmt"

	"omibyte.io/rvk/queue"
)

type Options struct {
	Harts    int
	MaxTasks int
	ReadyCap int
	SleepCap int

	// Quantum is the number of timer units between two ticks.
	Quantum uint64

	TieBreak queue.Policy

	// Idle creates one priority 0 task per hart at Start, so the ready queue
	// is never empty while that hart runs.
	Idle      bool
	IdleEntry uint32
	IdleStack uint32
}

func DefaultOptions() Options {
	return Options{
		Harts:     1,
		MaxTasks:  16,
		ReadyCap:  16,
		SleepCap:  16,
		Quantum:   10_000,
		TieBreak:  queue.TieFIFO,
		IdleStack: 1024,
	}
}

func (o Options) validate() error {
	switch {
	case o.Harts <= 0:
		return fmt.Errorf("harts must be positive, got %d", o.Harts)
	case o.MaxTasks <= 0 || o.ReadyCap <= 0 || o.SleepCap <= 0:
		return fmt.Errorf("capacities must be positive (tasks %d, ready %d, sleep %d)",
			o.MaxTasks, o.ReadyCap, o.SleepCap)
	case o.Quantum == 0:
		return fmt.Errorf("quantum must be positive")
	case o.Idle && o.IdleEntry == 0:
		return fmt.Errorf("idle task enabled without an entry address")
	}
	return nil
}
