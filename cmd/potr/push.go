package main

import (
	"github.com/spf13/cobra"
)

func newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Push the deploy image and print the artifact record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, done, err := setupPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			artifact, err := p.Push(cmd.Context())
			if err != nil {
				return err
			}
			return artifact.Print()
		},
	}
}
