package main

import (
	"fmt"

	"github.com/mattn/go-tty"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Step the kernel interactively",
	Long: `Step the kernel from the terminal:

	space, n    run one tick
	r           run ten ticks
	s           print the machine state
	q           quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newMachine(cmd)
		if err != nil {
			return err
		}

		t, err := tty.Open()
		if err != nil {
			return fmt.Errorf("monitor needs a terminal: %w", err)
		}
		defer t.Close()

		out := cmd.OutOrStdout()
		m.WriteState(out)
		for {
			r, err := t.ReadRune()
			if err != nil {
				return err
			}
			var n uint64
			switch r {
			case ' ', 'n':
				n = 1
			case 'r':
				n = 10
			case 's':
				m.WriteState(out)
				continue
			case 'q', 3:
				m.Scheduler().LogStats()
				_, err := m.Report().WriteTo(out)
				return err
			default:
				continue
			}
			if err := m.Run(n); err != nil {
				m.WriteState(out)
				return err
			}
			fmt.Fprintf(out, "tick %d\n", m.Scheduler().Tick())
		}
	},
}
