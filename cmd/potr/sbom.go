package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/turbokube/potr/pkg/lockfile"
	"github.com/turbokube/potr/pkg/sbom"
	"github.com/turbokube/potr/pkg/schema"
)

var sbomOutput string

func newSbomCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "sbom",
		Short: "Emit an SPDX document for the locked build container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer setupLogger()()
			config, root, err := setupConfig()
			if err != nil {
				return err
			}
			lock := lockfile.New(resolve(root, config.BuildContainer.Lock))
			fp, found, err := lock.Read()
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no %s, run build-container first", config.BuildContainer.Lock)
			}
			doc := sbom.Document(schema.BuildContainerTag(config), fp, BUILD)
			out := os.Stdout
			if sbomOutput != "" {
				f, err := os.OpenFile(sbomOutput, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return sbom.Write(doc, out)
		},
	}
	c.Flags().StringVarP(&sbomOutput, "output", "o", "", "write the document to a file instead of stdout")
	return c
}
