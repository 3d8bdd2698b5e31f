package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ktb-community/board/cmd/do/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "do",
		Short: "Development and operations tools for the board backend",
	}

	rootCmd.AddCommand(cmd.DevCmd())
	rootCmd.AddCommand(cmd.BuildCmd())
	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.ReapCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
