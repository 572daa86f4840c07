package sim

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	"omibyte.io/rvk/arch"
	"omibyte.io/rvk/targets"
	"omibyte.io/rvk/task"
	"omibyte.io/rvk/trap"
)

func testTarget(harts int, idle bool) targets.TargetInfo {
	return targets.TargetInfo{
		Name:       "test",
		Harts:      harts,
		Timebase:   1000,
		TickHz:     100,
		RAMBase:    0x8000_0000,
		RAMSize:    0x1_0000,
		TrapVector: 0x8000_0100,
		MaxTasks:   8,
		ReadyCap:   8,
		SleepCap:   8,
		StackSize:  0x400,
		TieBreak:   "fifo",
		Idle:       idle,
	}
}

func newMachine(t *testing.T, target targets.TargetInfo) (*Machine, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	m, err := New(Config{Target: target, Console: &out, LogLevel: slog.LevelWarn})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, &out
}

func spawn(t *testing.T, m *Machine, name string, prio uint8, fn Program) task.PID {
	t.Helper()
	pid, err := m.Spawn(name, prio, fn)
	if err != nil {
		t.Fatalf("Spawn %s: %v", name, err)
	}
	return pid
}

func taskReport(t *testing.T, r Report, pid task.PID) TaskReport {
	t.Helper()
	for _, tr := range r.Tasks {
		if tr.PID == pid {
			return tr
		}
	}
	t.Fatalf("no report for task %d", pid)
	return TaskReport{}
}

func TestMemoryAlloc(t *testing.T) {
	m, err := NewMemory(0x1000, 0x100)
	if err != nil {
		t.Fatal(err)
	}
	r, ok := m.Alloc(0x40)
	if !ok || r.Top != 0x1100 || r.Bottom != 0x10c0 {
		t.Errorf("Alloc(0x40) = %+v, %v", r, ok)
	}
	r, ok = m.Alloc(1)
	if !ok || r.Size() != stackAlign {
		t.Errorf("Alloc(1) = %+v, %v", r, ok)
	}
	if _, ok := m.Alloc(0x100); ok {
		t.Errorf("allocation past the end of RAM succeeded")
	}
	if m.Used() != 0x50 || m.Free() != 0xb0 {
		t.Errorf("Used = %#x, Free = %#x", m.Used(), m.Free())
	}

	top, err := NewMemory(0xffff_0000, 0x1_0000)
	if err != nil {
		t.Fatal(err)
	}
	if r, ok := top.Alloc(0x10); !ok || r.Top != 0xffff_fff0 {
		t.Errorf("Alloc at the end of the address space = %+v, %v", r, ok)
	}
	if _, err := NewMemory(0xffff_0000, 0x2_0000); err == nil {
		t.Errorf("wrapping RAM accepted")
	}
}

func TestCLINT(t *testing.T) {
	c := NewCLINT(2)
	if c.TimerPending(0) {
		t.Errorf("timer pending before a deadline was set")
	}
	c.SetDelay(0, 5)
	c.Advance(4)
	if c.TimerPending(0) {
		t.Errorf("timer pending early")
	}
	c.Advance(1)
	if !c.TimerPending(0) || c.TimerPending(1) {
		t.Errorf("pending = %v %v, want true false", c.TimerPending(0), c.TimerPending(1))
	}
	c.Raise(1)
	if !c.SoftPending(1) || c.SoftPending(0) {
		t.Errorf("msip routed to the wrong hart")
	}
	c.ClearSoft(1)
	if c.SoftPending(1) {
		t.Errorf("msip not cleared")
	}
}

func TestConsoleDrainsWhenFull(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out, 4)
	msg := "hello, world\n"
	if n, err := c.Write([]byte(msg)); n != len(msg) || err != nil {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if c.Pending() == 0 || c.Pending() > 4 {
		t.Errorf("Pending = %d", c.Pending())
	}
	if err := c.Flush(); err != nil {
		t.Fatal(err)
	}
	if out.String() != msg {
		t.Errorf("console output %q, want %q", out.String(), msg)
	}
}

func TestRoundRobinPreservesRegisters(t *testing.T) {
	m, _ := newMachine(t, testTarget(1, false))
	a := spawn(t, m, "a", 1, Spin())
	b := spawn(t, m, "b", 1, Spin())
	if err := m.Boot(); err != nil {
		t.Fatal(err)
	}
	if err := m.Run(4); err != nil {
		t.Fatal(err)
	}

	r := m.Report()
	ra, rb := taskReport(t, r, a), taskReport(t, r, b)
	if ra.Steps != 20 || rb.Steps != 20 {
		t.Errorf("steps a=%d b=%d, want 20 each", ra.Steps, rb.Steps)
	}
	if cur := m.Scheduler().Current(0); cur != a {
		t.Fatalf("current = %d, want %d", cur, a)
	}
	if got := m.Harts()[0].Regs[arch.S1]; uint64(got) != ra.Steps {
		t.Errorf("running task s1 = %d, want %d", got, ra.Steps)
	}
	tb, err := m.Scheduler().Task(b)
	if err != nil {
		t.Fatal(err)
	}
	if got := tb.Context.Regs[arch.S1]; uint64(got) != rb.Steps {
		t.Errorf("saved s1 = %d, want %d", got, rb.Steps)
	}
	if r.Trap.TimerIRQs != 4 {
		t.Errorf("timer interrupts = %d, want 4", r.Trap.TimerIRQs)
	}
}

func TestSleeperWakesOnTime(t *testing.T) {
	m, _ := newMachine(t, testTarget(1, true))
	sleeper := spawn(t, m, "sleeper", 3, Sleeper(2))
	spin := spawn(t, m, "spin", 1, Spin())
	if err := m.Boot(); err != nil {
		t.Fatal(err)
	}
	if err := m.Run(10); err != nil {
		t.Fatal(err)
	}

	r := m.Report()
	rs := taskReport(t, r, sleeper)
	if rs.Wakes < 3 {
		t.Fatalf("wakes = %d, want at least 3", rs.Wakes)
	}
	if rs.LatencyMean != 0 || rs.LatencyStdDev != 0 {
		t.Errorf("latency = %v ± %v, want 0", rs.LatencyMean, rs.LatencyStdDev)
	}
	if rp := taskReport(t, r, spin); rp.Steps <= rs.Steps {
		t.Errorf("spin ran %d steps, sleeper %d", rp.Steps, rs.Steps)
	}
	if r.IdleShare != 0 {
		t.Errorf("idle share = %v with a spinning task", r.IdleShare)
	}
	if r.Trap.SoftIRQs == 0 {
		t.Errorf("sleeping did not go through the software interrupt")
	}
}

func TestFiniteTaskExits(t *testing.T) {
	m, _ := newMachine(t, testTarget(1, false))
	once := spawn(t, m, "once", 2, Finite(5))
	spin := spawn(t, m, "spin", 1, Spin())
	if err := m.Boot(); err != nil {
		t.Fatal(err)
	}
	if err := m.Run(3); err != nil {
		t.Fatal(err)
	}

	r := m.Report()
	ro := taskReport(t, r, once)
	if ro.State != task.Terminated || ro.Steps != 5 {
		t.Errorf("once: state %s, steps %d", ro.State, ro.Steps)
	}
	if m.Scheduler().Current(0) != spin {
		t.Errorf("current = %d, want %d", m.Scheduler().Current(0), spin)
	}
}

func TestNothingToRun(t *testing.T) {
	m, _ := newMachine(t, testTarget(1, false))
	if err := m.Boot(); err != nil {
		t.Fatal(err)
	}
	if err := m.Run(2); err != nil {
		t.Fatal(err)
	}
	r := m.Report()
	if r.IdleShare != 1 {
		t.Errorf("idle share = %v, want 1", r.IdleShare)
	}
	if r.Sched.NoRunnable == 0 {
		t.Errorf("empty ready queue not counted")
	}
	if m.Harts()[0].PC != targets.IdleEntry(m.Target()) {
		t.Errorf("hart not parked in the idle loop")
	}
}

func TestMultiHart(t *testing.T) {
	m, _ := newMachine(t, testTarget(2, false))
	var pids []task.PID
	for _, name := range []string{"a", "b", "c"} {
		pids = append(pids, spawn(t, m, name, 1, Spin()))
	}
	if err := m.Boot(); err != nil {
		t.Fatal(err)
	}
	if err := m.Run(6); err != nil {
		t.Fatal(err)
	}
	r := m.Report()
	for _, pid := range pids {
		if taskReport(t, r, pid).Steps == 0 {
			t.Errorf("task %d never ran", pid)
		}
	}
	if r.Ticks != 6 {
		t.Errorf("ticks = %d, want 6", r.Ticks)
	}
	if m.Scheduler().Current(0) == m.Scheduler().Current(1) {
		t.Errorf("both harts run task %d", m.Scheduler().Current(0))
	}
}

func TestBadFetchHalts(t *testing.T) {
	m, out := newMachine(t, testTarget(1, false))
	spawn(t, m, "a", 1, Spin())
	if err := m.Step(); !errors.Is(err, ErrNotBooted) {
		t.Errorf("Step before Boot: %v", err)
	}
	if err := m.Boot(); err != nil {
		t.Fatal(err)
	}
	if err := m.Boot(); !errors.Is(err, ErrBooted) {
		t.Errorf("second Boot: %v", err)
	}

	m.Harts()[0].PC = 0x10
	err := m.Step()
	var f *trap.Fault
	if !errors.As(err, &f) || !errors.Is(err, trap.ErrException) {
		t.Fatalf("Step = %v, want an exception fault", err)
	}
	if f.EPC != 0x10 || f.Cause != arch.ExceptionCause(arch.ExcInstructionAccessFault) {
		t.Errorf("fault = %+v", f)
	}
	if err := m.Step(); !errors.Is(err, trap.ErrException) {
		t.Errorf("halted machine stepped: %v", err)
	}
	if !strings.Contains(out.String(), "halted") {
		t.Errorf("halt not logged: %q", out.String())
	}
}

func TestParseTasks(t *testing.T) {
	specs, err := ParseTasks("sleep:3:4, spin ,once:2:0x10")
	if err != nil {
		t.Fatal(err)
	}
	want := []TaskSpec{{"sleep", 3, 4}, {"spin", 1, 0}, {"once", 2, 16}}
	if len(specs) != len(want) {
		t.Fatalf("specs = %+v", specs)
	}
	for i := range want {
		if specs[i] != want[i] {
			t.Errorf("spec %d = %+v, want %+v", i, specs[i], want[i])
		}
	}

	for _, bad := range []string{"jump", "spin:300", "spin:1:x", "spin:1:2:3"} {
		if _, err := ParseTasks(bad); err == nil {
			t.Errorf("ParseTasks(%q) accepted", bad)
		}
	}
	if _, err := ParseTasks(DefaultTasks); err != nil {
		t.Errorf("default tasks: %v", err)
	}
}

func TestLoadAndReport(t *testing.T) {
	m, _ := newMachine(t, testTarget(1, true))
	specs, err := ParseTasks(DefaultTasks)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Load(specs); err != nil {
		t.Fatal(err)
	}
	if err := m.Boot(); err != nil {
		t.Fatal(err)
	}
	if err := m.Run(20); err != nil {
		t.Fatal(err)
	}

	r := m.Report()
	var share float64
	for _, tr := range r.Tasks {
		share += tr.Share
	}
	// Every step belongs to a task because the idle task always exists.
	if math.Abs(share-1) > 1e-9 {
		t.Errorf("CPU shares add up to %v", share)
	}

	var buf bytes.Buffer
	n, err := r.WriteTo(&buf)
	if err != nil || n != int64(buf.Len()) {
		t.Fatalf("WriteTo = %d, %v", n, err)
	}
	for _, want := range []string{"target test", "sleep0", "once1", "spin2", "idle0"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("report lacks %q:\n%s", want, buf.String())
		}
	}
}
