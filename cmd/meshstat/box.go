package main

import (
	"github.com/spf13/cobra"

	"github.com/chazu/meshstat/internal/errors"
	"github.com/chazu/meshstat/pkg/kernel/sdfx"
	"github.com/chazu/meshstat/pkg/meshdb"
	"github.com/chazu/meshstat/pkg/tessellate"
)

func newBoxCmd() *cobra.Command {
	var (
		a    analysis
		size []float64
	)
	cmd := &cobra.Command{
		Use:   "box",
		Short: "Tessellate a box and report its metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := getConfig(cmd)
			if err != nil {
				return err
			}
			if len(size) == 1 {
				size = []float64{size[0], size[0], size[0]}
			}
			if len(size) != 3 {
				return errors.Newf("--size takes 1 or 3 values, got %d", len(size))
			}

			k := sdfx.New()
			solid, err := k.Box(size[0], size[1], size[2])
			if err != nil {
				return err
			}
			mesh, err := k.ToMesh(solid, cfg.Tessellate.Cells)
			if err != nil {
				return err
			}
			mesh.Name = "box"

			store := meshdb.New()
			gt, err := meshdb.LoadGeomTags(store, true)
			if err != nil {
				return err
			}
			if _, err := tessellate.Import(store, gt, mesh, cfg.TessellateOptions()); err != nil {
				return err
			}
			return a.run(cmd, cfg, store)
		},
	}
	cmd.Flags().Float64SliceVar(&size, "size", []float64{10}, "edge length, or x,y,z sizes")
	addAnalysisFlags(cmd, &a)
	return cmd
}
