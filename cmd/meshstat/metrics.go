package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/chazu/meshstat/pkg/metrics"
)

func newMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "List the available metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"metric", "table", "description"})
			for _, m := range metrics.Metrics() {
				k, help, _ := metrics.Lookup(m)
				t.AppendRow(table.Row{string(m), k.String(), help})
			}
			t.Render()
			return nil
		},
	}
}
