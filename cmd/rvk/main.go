package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"omibyte.io/rvk/klog"
	"omibyte.io/rvk/targets"
)

var (
	env        = Environment()
	targetName string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "rvk",
		Short: "rvk runs the kernel core on a host model of an rv32 board",
		Long: `rvk is the host harness of a preemptible kernel core for rv32 targets.
It runs the scheduler and trap dispatcher against a simulated CLINT and
prints what the kernel did.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&targetName, "target", "t", env.Value("RVK_TARGET"), "machine description to use")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", env.Value("RVK_LOG_LEVEL"), "kernel log level (DEBUG, INFO, STATS, WARN, ERROR)")
	rootCmd.AddCommand(simCmd, monitorCmd, targetsCmd, layoutCmd, envCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func selectedTarget() (targets.TargetInfo, error) {
	return targets.All().FindByName(targetName)
}

func selectedLevel(cmd *cobra.Command) slog.Level {
	level, err := klog.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", err)
	}
	return level
}
