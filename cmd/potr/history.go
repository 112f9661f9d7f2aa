package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/turbokube/potr/pkg/history"
)

var historyLimit int

func newHistoryCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "history",
		Short: "List recent build container verifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer setupLogger()()
			config, root, err := setupConfig()
			if err != nil {
				return err
			}
			if config.History.Path == "" {
				return errors.New("history.path is not configured")
			}
			log, err := history.Open(resolve(root, config.History.Path))
			if err != nil {
				return err
			}
			defer log.Close()
			entries, err := log.Recent(cmd.Context(), historyLimit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s\t%-11s\t%s\t%s\n",
					e.CreatedAt.Local().Format(time.RFC3339), e.Result, e.Fingerprint, e.ImageRef)
			}
			return nil
		},
	}
	c.Flags().IntVar(&historyLimit, "limit", 20, "max verifications listed")
	return c
}
