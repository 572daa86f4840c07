// Package targets holds the machine descriptions the kernel can be
// configured for.
package targets

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"omibyte.io/rvk/queue"
	"omibyte.io/rvk/sched"
)

//go:embed targets.yaml
var rawTargets []byte

var targets Targets

var (
	ErrTargetNotFound = errors.New("target not found")
	ErrInvalidTarget  = errors.New("invalid target description")
)

func All() Targets {
	return targets
}

type Targets []TargetInfo
type TargetInfo struct {
	Name         string   `yaml:"name"`
	Aliases      []string `yaml:"aliases"`
	Architecture string   `yaml:"architecture"`
	Harts        int      `yaml:"harts"`
	Timebase     uint64   `yaml:"timebase"`
	TickHz       uint64   `yaml:"tickHz"`
	RAMBase      uint32   `yaml:"ramBase"`
	RAMSize      uint32   `yaml:"ramSize"`
	TrapVector   uint32   `yaml:"trapVector"`
	MaxTasks     int      `yaml:"maxTasks"`
	ReadyCap     int      `yaml:"readyCap"`
	SleepCap     int      `yaml:"sleepCap"`
	StackSize    uint32   `yaml:"stackSize"`
	TieBreak     string   `yaml:"tieBreak"`
	Idle         bool     `yaml:"idle"`
}

// Quantum is the number of timer units per kernel tick.
func (t TargetInfo) Quantum() uint64 {
	if t.TickHz == 0 {
		return 0
	}
	return t.Timebase / t.TickHz
}

// RAMTop is the first address past the end of RAM.
func (t TargetInfo) RAMTop() uint64 {
	return uint64(t.RAMBase) + uint64(t.RAMSize)
}

func (t TargetInfo) Validate() error {
	switch {
	case t.Name == "":
		return fmt.Errorf("%w: missing name", ErrInvalidTarget)
	case t.Harts <= 0:
		return fmt.Errorf("%w: %s: harts must be positive", ErrInvalidTarget, t.Name)
	case t.Quantum() == 0:
		return fmt.Errorf("%w: %s: timebase %d cannot produce %d ticks per second", ErrInvalidTarget, t.Name, t.Timebase, t.TickHz)
	case t.RAMSize == 0 || t.RAMTop() > 1<<32:
		return fmt.Errorf("%w: %s: bad RAM range", ErrInvalidTarget, t.Name)
	case t.StackSize == 0 || t.StackSize%16 != 0:
		return fmt.Errorf("%w: %s: stack size must be a non-zero multiple of 16", ErrInvalidTarget, t.Name)
	}
	if _, err := queue.ParsePolicy(t.TieBreak); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidTarget, t.Name, err)
	}
	return nil
}

// Options converts the description into scheduler options.
func (t TargetInfo) Options() (sched.Options, error) {
	if err := t.Validate(); err != nil {
		return sched.Options{}, err
	}
	tie, _ := queue.ParsePolicy(t.TieBreak)
	opts := sched.DefaultOptions()
	opts.Harts = t.Harts
	opts.MaxTasks = t.MaxTasks
	opts.ReadyCap = t.ReadyCap
	opts.SleepCap = t.SleepCap
	opts.Quantum = t.Quantum()
	opts.TieBreak = tie
	opts.Idle = t.Idle
	if t.Idle {
		opts.IdleEntry = IdleEntry(t)
		opts.IdleStack = t.StackSize
	}
	return opts, nil
}

// IdleEntry is the address of the idle loop, placed right after the trap
// vector.
func IdleEntry(t TargetInfo) uint32 {
	return t.TrapVector + 0x100
}

func (t Targets) FindByName(name string) (TargetInfo, error) {
	name = strings.ToLower(name)
	for _, target := range t {
		if target.Name == name || slices.Contains(target.Aliases, name) {
			return target, nil
		}
	}
	return TargetInfo{}, fmt.Errorf("%w: %q", ErrTargetNotFound, name)
}

func (t Targets) Names() []string {
	names := make([]string, 0, len(t))
	for _, target := range t {
		names = append(names, target.Name)
	}
	slices.Sort(names)
	return names
}

func parse(raw []byte) (Targets, error) {
	var t struct {
		Elements []TargetInfo `yaml:"targets"`
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	for _, target := range t.Elements {
		if err := target.Validate(); err != nil {
			return nil, err
		}
	}
	return t.Elements, nil
}

func init() {
	var err error
	if targets, err = parse(rawTargets); err != nil {
		panic(err)
	}
}
