package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"omibyte.io/rvk/sim"
)

var (
	ticks        uint64
	taskList     string
	stepsPerTick int

	simCmd = &cobra.Command{
		Use:   "sim",
		Short: "Run the kernel for a number of ticks and print a report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("ticks") {
				t, err := env.Ticks()
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "warning:", err)
				}
				ticks = t
			}
			m, err := newMachine(cmd)
			if err != nil {
				return err
			}
			runErr := m.Run(ticks)
			m.Scheduler().LogStats()
			if _, err := m.Report().WriteTo(cmd.OutOrStdout()); err != nil {
				return err
			}
			return runErr
		},
	}
)

func init() {
	simCmd.Flags().Uint64VarP(&ticks, "ticks", "n", defaultTicks, "kernel ticks to run (default from RVK_TICKS)")
	for _, c := range []*cobra.Command{simCmd, monitorCmd} {
		c.Flags().StringVar(&taskList, "tasks", sim.DefaultTasks, "tasks to load as kind[:priority[:arg]],...")
		c.Flags().IntVar(&stepsPerTick, "steps-per-tick", 10, "instructions per hart per tick")
	}
}

// newMachine builds, loads and boots a machine from the command line.
func newMachine(cmd *cobra.Command) (*sim.Machine, error) {
	target, err := selectedTarget()
	if err != nil {
		return nil, err
	}
	specs, err := sim.ParseTasks(taskList)
	if err != nil {
		return nil, err
	}
	m, err := sim.New(sim.Config{
		Target:       target,
		StepsPerTick: stepsPerTick,
		Console:      cmd.ErrOrStderr(),
		LogLevel:     selectedLevel(cmd),
	})
	if err != nil {
		return nil, err
	}
	if err := m.Load(specs); err != nil {
		return nil, err
	}
	if err := m.Boot(); err != nil {
		return nil, err
	}
	return m, nil
}
