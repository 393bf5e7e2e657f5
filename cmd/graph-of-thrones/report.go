package main

import (
	"github.com/spf13/cobra"

	"github.com/evnp/graph-of-thrones/pkg/output"
)

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the strongest relationships for the configured filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			idx, diag, err := loadCorpus(cfg)
			if err != nil {
				return err
			}

			d := newDiagram(cfg, idx)
			view, err := d.Apply(cmd.Context(), cfg.Filter)
			if err != nil {
				return err
			}

			output.PrintReport(cmd.OutOrStdout(), output.Report{
				Source:      cfg.Data,
				View:        view,
				Diagnostics: diag,
				Top:         cfg.Top,
			})
			return nil
		},
	}
}
