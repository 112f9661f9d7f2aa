package main

import (
	"github.com/spf13/cobra"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove the project's local images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, done, err := setupPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			return p.Clean(cmd.Context())
		},
	}
}
