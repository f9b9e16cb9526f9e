package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/mercatolabs/mercato/internal/build"
)

// NewVersionCommand returns the command to get the mercato version.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Return the Mercato version",
		Long:  "Return the Mercato version.",
		RunE:  version,
		Args:  cobra.NoArgs,
	}
}

func version(_ *cobra.Command, _ []string) error {
	log.Printf("Mercato version %s date %s commit id %s", build.Version, build.Date, build.Commit)
	return nil
}
