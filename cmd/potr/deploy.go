package main

import (
	"github.com/spf13/cobra"
)

func newDeployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Build the deploy image, labeled with build container provenance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, done, err := setupPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			return p.Deploy(cmd.Context())
		},
	}
}
