package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"omibyte.io/rvk/arch"
)

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Print the context and trap frame offsets used by the assembly trampoline",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "context layout v%d\t\t\n", arch.LayoutVersion)
		rows := []struct {
			name string
			off  int
			size int
		}{
			{"regs", arch.OffRegs, arch.NumRegs * 4},
			{"address_space", arch.OffAddressSpace, 8},
			{"pc", arch.OffPC, 4},
			{"sp", arch.OffSP, 4},
			{"flags", arch.OffFlags, arch.FlagBytes},
			{"ir", arch.OffIR, 1},
		}
		for _, r := range rows {
			fmt.Fprintf(tw, "  %s\t%d\t%d\n", r.name, r.off, r.size)
		}
		fmt.Fprintf(tw, "  size\t%d\t\n", arch.ContextSize)

		fmt.Fprintln(tw, "trap frame\t\t")
		frame := []struct {
			name string
			off  int
		}{
			{"regs", arch.OffFrameRegs},
			{"fregs", arch.OffFrameFRegs},
			{"satp", arch.OffFrameSATP},
			{"trap_stack", arch.OffFrameTrapStack},
			{"hart_id", arch.OffFrameHartID},
			{"epc", arch.OffFrameEPC},
		}
		for _, r := range frame {
			fmt.Fprintf(tw, "  %s\t%d\t\n", r.name, r.off)
		}
		fmt.Fprintf(tw, "  size\t%d\t\n", arch.TrapFrameSize)
		return tw.Flush()
	},
}
