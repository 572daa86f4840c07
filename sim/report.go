package sim

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"gonum.org/v1/gonum/stat"

	"omibyte.io/rvk/sched"
	"omibyte.io/rvk/task"
	"omibyte.io/rvk/trap"
)

type TaskReport struct {
	PID        task.PID
	Name       string
	Priority   uint8
	State      task.State
	Dispatches uint64
	Steps      uint64

	// Share is the fraction of all hart steps the task ran.
	Share float64

	// Wake latency in ticks between the requested wake tick and the first
	// step after it. NaN without samples.
	Wakes         int
	LatencyMean   float64
	LatencyStdDev float64
}

type Report struct {
	Target    string
	Harts     int
	Ticks     uint64
	Steps     uint64
	IdleShare float64
	Sched     sched.Stats
	Trap      trap.Stats
	Tasks     []TaskReport
}

func (m *Machine) Report() Report {
	r := Report{
		Target: m.target.Name,
		Harts:  len(m.harts),
		Ticks:  m.sched.Tick(),
		Steps:  m.steps,
		Sched:  m.sched.Stats(),
		Trap:   m.trap.Stats(),
	}

	var total, idle uint64
	for _, h := range m.harts {
		total += h.steps
		idle += h.idleSteps
	}
	if total > 0 {
		r.IdleShare = float64(idle) / float64(total)
	}

	for _, t := range m.sched.Tasks() {
		tr := TaskReport{
			PID:           t.PID,
			Name:          t.NameString(),
			Priority:      t.Priority,
			State:         t.State,
			Dispatches:    t.Dispatches,
			LatencyMean:   math.NaN(),
			LatencyStdDev: math.NaN(),
		}
		if u, ok := m.stats[t.PID]; ok {
			tr.Steps = u.steps
			tr.Wakes = len(u.latencies)
			if len(u.latencies) > 0 {
				tr.LatencyMean = stat.Mean(u.latencies, nil)
			}
			if len(u.latencies) > 1 {
				tr.LatencyStdDev = stat.StdDev(u.latencies, nil)
			}
		}
		if total > 0 {
			tr.Share = float64(tr.Steps) / float64(total)
		}
		r.Tasks = append(r.Tasks, tr)
	}
	return r
}

func (r Report) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	fmt.Fprintf(cw, "target %s, %d hart(s), %d ticks, %d steps, idle %.1f%%\n",
		r.Target, r.Harts, r.Ticks, r.Steps, 100*r.IdleShare)
	fmt.Fprintf(cw, "dispatches %d, switches %d, wakes %d, traps %d (timer %d, software %d)\n",
		r.Sched.Dispatches, r.Sched.Switches, r.Sched.Wakes, r.Trap.Traps, r.Trap.TimerIRQs, r.Trap.SoftIRQs)
	if r.Sched.TableFull+r.Sched.ReadyFull+r.Sched.SleepFull+r.Sched.NoMemory+r.Sched.NoRunnable > 0 {
		fmt.Fprintf(cw, "refused: table %d, ready %d, sleep %d, memory %d, empty ready queue %d\n",
			r.Sched.TableFull, r.Sched.ReadyFull, r.Sched.SleepFull, r.Sched.NoMemory, r.Sched.NoRunnable)
	}

	tw := tabwriter.NewWriter(cw, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tNAME\tPRIO\tSTATE\tDISPATCHES\tSTEPS\tCPU\tWAKES\tLATENCY")
	for _, t := range r.Tasks {
		latency := "-"
		if t.Wakes > 0 {
			latency = fmt.Sprintf("%.2f", t.LatencyMean)
			if !math.IsNaN(t.LatencyStdDev) {
				latency += fmt.Sprintf(" ±%.2f", t.LatencyStdDev)
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%d\t%d\t%.1f%%\t%d\t%s\n",
			t.PID, t.Name, t.Priority, t.State, t.Dispatches, t.Steps, 100*t.Share, t.Wakes, latency)
	}
	if err := tw.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, cw.err
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}
