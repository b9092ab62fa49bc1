package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/meshstat/internal/errors"
	"github.com/chazu/meshstat/pkg/engine"
	"github.com/chazu/meshstat/pkg/meshdb"
)

func newStatsCmd() *cobra.Command {
	var (
		a     analysis
		names []string
	)
	cmd := &cobra.Command{
		Use:   "stats <script.lisp>",
		Short: "Evaluate a mesh script and report its metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig(cmd)
			if err != nil {
				return err
			}

			src, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrapf(err, "read script")
			}

			eng := engine.NewEngine(
				engine.WithCells(cfg.Tessellate.Cells),
				engine.WithTessellation(cfg.TessellateOptions()),
			)
			store, evalErrs, err := eng.Evaluate(string(src))
			if err != nil {
				return err
			}
			if len(evalErrs) > 0 {
				for _, e := range evalErrs {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", args[0], e.Error())
				}
				return errors.Newf("%s: %d evaluation error(s)", args[0], len(evalErrs))
			}

			a.selections, err = lookupAll(store, names)
			if err != nil {
				return err
			}
			return a.run(cmd, cfg, store)
		},
	}
	cmd.Flags().StringSliceVarP(&names, "select", "s", nil, "named surfaces or volumes to analyse (default: whole mesh)")
	addAnalysisFlags(cmd, &a)
	return cmd
}

// lookupAll resolves set names to handles.
func lookupAll(store *meshdb.Store, names []string) ([]meshdb.Handle, error) {
	hs := make([]meshdb.Handle, 0, len(names))
	for _, n := range names {
		h, ok := store.Lookup(n)
		if !ok {
			return nil, errors.Wrapf(errors.ErrNotFound, "no set named %q", n)
		}
		hs = append(hs, h)
	}
	return hs, nil
}
