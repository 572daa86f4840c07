package main

import "github.com/spf13/cobra"

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print rvk environment information",
	Run: func(cmd *cobra.Command, args []string) {
		env.Print(cmd.OutOrStdout())
	},
}
