package main

import (
	"os"

	"github.com/mercatolabs/mercato/cmd"
	"github.com/mercatolabs/mercato/cmd/run"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	rootCmd.AddCommand(run.NewRunCommand())
	rootCmd.AddCommand(cmd.NewMigrateCommand())
	rootCmd.AddCommand(cmd.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
