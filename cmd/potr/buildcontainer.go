package main

import (
	"github.com/spf13/cobra"
)

func newBuildContainerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build-container",
		Short: "Build the build container and verify its content fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, done, err := setupPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			_, err = p.BuildContainer(cmd.Context())
			return err
		},
	}
}
