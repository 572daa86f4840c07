package sim

import (
	"fmt"
	"strconv"
	"strings"

	"omibyte.io/rvk/arch"
	"omibyte.io/rvk/task"
)

// codeWindow is the address range each loaded program occupies. The program
// counter walks it four bytes per step.
const codeWindow = 0x1000

// Program is the body of one simulated instruction. All state a program
// keeps between steps must live in its registers, which the kernel saves
// and restores across switches.
type Program func(c *CPU)

// CPU is what a program sees while it executes on a hart.
type CPU struct {
	m   *Machine
	h   *Hart
	pid task.PID
}

func (c *CPU) Hart() uint32 { return c.h.ID }

func (c *CPU) PID() task.PID { return c.pid }

func (c *CPU) Reg(r int) uint32 { return c.h.Regs[r] }

func (c *CPU) SetReg(r int, v uint32) {
	if r != arch.Zero {
		c.h.Regs[r] = v
	}
}

// Tick returns the kernel tick.
func (c *CPU) Tick() uint64 {
	return c.m.sched.Tick()
}

func (c *CPU) Yield() {
	c.m.sched.Yield(c.h.ID)
}

// Sleep blocks the task for ticks kernel ticks.
func (c *CPU) Sleep(ticks uint64) error {
	wake := c.m.sched.Tick() + ticks
	if err := c.m.sched.SleepUntil(c.h.ID, wake); err != nil {
		return err
	}
	c.m.usage(c.pid).wakeAt = wake
	c.m.usage(c.pid).sleeping = true
	return nil
}

func (c *CPU) Exit() error {
	return c.m.sched.Exit(c.h.ID)
}

// Printf writes to the console.
func (c *CPU) Printf(format string, args ...any) {
	fmt.Fprintf(c.m.console, format, args...)
}

// Spin counts in s1 and never gives up the hart.
func Spin() Program {
	return func(c *CPU) {
		c.SetReg(arch.S1, c.Reg(arch.S1)+1)
	}
}

// Yielder counts in s1 and yields every n steps.
func Yielder(n uint32) Program {
	if n == 0 {
		n = 1
	}
	return func(c *CPU) {
		s := c.Reg(arch.S1) + 1
		c.SetReg(arch.S1, s)
		if s%n == 0 {
			c.Yield()
		}
	}
}

// Sleeper runs one step and then sleeps for ticks.
func Sleeper(ticks uint64) Program {
	return func(c *CPU) {
		c.SetReg(arch.S1, c.Reg(arch.S1)+1)
		if err := c.Sleep(ticks); err != nil {
			c.m.log.Warnf("task %d: sleep: %v", c.pid, err)
		}
	}
}

// Finite runs n steps and exits.
func Finite(n uint32) Program {
	return func(c *CPU) {
		s := c.Reg(arch.S1) + 1
		c.SetReg(arch.S1, s)
		if s >= n {
			if err := c.Exit(); err != nil {
				c.m.log.Warnf("task %d: exit: %v", c.pid, err)
			}
		}
	}
}

// wfi is the body of the idle loop.
func wfi(*CPU) {}

// TaskSpec describes one task to load, parsed from "kind[:priority[:arg]]".
type TaskSpec struct {
	Kind     string
	Priority uint8
	Arg      uint64
}

func (s TaskSpec) Program() (Program, error) {
	switch s.Kind {
	case "spin":
		return Spin(), nil
	case "yield":
		return Yielder(uint32(s.Arg)), nil
	case "sleep":
		return Sleeper(s.Arg), nil
	case "once":
		return Finite(uint32(s.Arg)), nil
	}
	return nil, fmt.Errorf("unknown program %q", s.Kind)
}

var defaultArgs = map[string]uint64{
	"yield": 4,
	"sleep": 5,
	"once":  20,
}

// DefaultTasks is the task mix the CLI loads when none is given.
const DefaultTasks = "sleep:3:4,once:2:30,spin:1,spin:1"

// ParseTasks parses a comma separated list of task specs.
func ParseTasks(list string) ([]TaskSpec, error) {
	var specs []TaskSpec
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		fields := strings.Split(item, ":")
		if len(fields) > 3 {
			return nil, fmt.Errorf("task %q: too many fields", item)
		}
		spec := TaskSpec{Kind: fields[0], Priority: 1, Arg: defaultArgs[fields[0]]}
		if len(fields) > 1 {
			p, err := strconv.ParseUint(fields[1], 10, 8)
			if err != nil {
				return nil, fmt.Errorf("task %q: priority: %w", item, err)
			}
			spec.Priority = uint8(p)
		}
		if len(fields) > 2 {
			a, err := strconv.ParseUint(fields[2], 0, 32)
			if err != nil {
				return nil, fmt.Errorf("task %q: argument: %w", item, err)
			}
			spec.Arg = a
		}
		if _, err := spec.Program(); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
