package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"omibyte.io/rvk/targets"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List the known machine descriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tARCH\tHARTS\tTICK\tQUANTUM\tRAM\tTASKS\tTIE\tIDLE\tALIASES")
		for _, name := range targets.All().Names() {
			t, err := targets.All().FindByName(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%dHz\t%d\t%#x+%#x\t%d\t%s\t%v\t%v\n",
				t.Name, t.Architecture, t.Harts, t.TickHz, t.Quantum(), t.RAMBase, t.RAMSize,
				t.MaxTasks, t.TieBreak, t.Idle, t.Aliases)
		}
		return tw.Flush()
	},
}
