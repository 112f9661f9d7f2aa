package main

import (
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "run [command...]",
		Short: "Run a build step inside the build container",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, done, err := setupPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			return p.Run(cmd.Context(), args)
		},
	}
	// flags after the command belong to the command, potr run make -j4
	c.Flags().SetInterspersed(false)
	return c
}
