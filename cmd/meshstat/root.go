package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/meshstat/internal/config"
	"github.com/chazu/meshstat/internal/errors"
	"github.com/chazu/meshstat/internal/logger"
	"github.com/chazu/meshstat/internal/report"
	"github.com/chazu/meshstat/pkg/meshdb"
	"github.com/chazu/meshstat/pkg/metrics"
)

// configKey stores the loaded config in the command context.
type configKey struct{}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "meshstat",
		Short: "Mesh quality metrics for surface meshes",
		Long: `meshstat computes triangle counts, areas, aspect ratios, angles,
coarseness and curvature-based roughness for triangle meshes organised
into surfaces and volumes.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			if err := logger.Initialize(cfg.Log.JSON, cfg.Log.Level); err != nil {
				return errors.Wrap(err, "initialize logger")
			}
			if cfg.File != "" {
				logger.Logger.Debugw("config loaded", "file", cfg.File)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./meshstat.yaml)")
	pf.String("log-level", "info", "log level (debug|info|warn|error)")
	pf.Bool("log-json", false, "log as JSON")
	pf.StringP("format", "o", config.FormatTable, "report format (table|json|csv)")
	pf.Bool("ignore-zero", true, "drop vertices without triangles from tri_per_vert")
	pf.String("boundary", "classify", "curvature reference for open fans (classify|ignore)")
	pf.Int("cells", 64, "marching cubes resolution for solids")
	pf.Float64("normal-tolerance", 10, "largest normal deviation in degrees within one imported surface")

	_ = root.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.FormatTable, config.FormatJSON, config.FormatCSV}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = root.RegisterFlagCompletionFunc("boundary", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"classify", "ignore"}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(newStatsCmd())
	root.AddCommand(newBoxCmd())
	root.AddCommand(newMetricsCmd())
	return root
}

// getConfig returns the config loaded by PersistentPreRunE, loading it
// from the command's flags when the hook did not run.
func getConfig(cmd *cobra.Command) (*config.Config, error) {
	if ctx := cmd.Context(); ctx != nil {
		if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
			return c, nil
		}
	}
	cfg, err := config.Load("", cmd.Flags())
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	return cfg, nil
}

// analysis is what one metrics run needs besides the store.
type analysis struct {
	selections []meshdb.Handle
	metrics    []string
	exports    []string
}

// run computes the requested metrics over store and renders the report.
func (a analysis) run(cmd *cobra.Command, cfg *config.Config, store meshdb.MeshStore) error {
	q, err := metrics.New(store, cfg.MetricsOptions(), a.selections...)
	if err != nil {
		return err
	}

	if len(a.metrics) > 0 {
		ms := make([]metrics.Metric, len(a.metrics))
		for i, name := range a.metrics {
			ms[i] = metrics.Metric(name)
		}
		if err := q.CalcAll(ms...); err != nil {
			return err
		}
	} else {
		// Dependencies computed along the way are not requested again.
		for _, m := range metrics.Metrics() {
			if q.Status(m) == metrics.Computed {
				continue
			}
			if err := q.Calc(m); err != nil {
				return err
			}
		}
	}

	for _, spec := range a.exports {
		kindName, column, ok := strings.Cut(spec, ":")
		if !ok {
			return errors.WithHint(errors.Newf("bad export %q", spec), "use table:column, e.g. triangle:area")
		}
		k, ok := metrics.ParseKind(kindName)
		if !ok {
			return errors.Newf("bad export %q: unknown table %q", spec, kindName)
		}
		tag, err := q.ExportColumn(k, column, meshdb.TypeDouble)
		if err != nil {
			return err
		}
		logger.Logger.Infow("column exported", "tag", tag.Name, "table", k.String())
	}

	return report.Render(cmd.OutOrStdout(), report.FromQuery(q), cfg.Report.Format)
}

// addAnalysisFlags registers the flags shared by commands that run metrics.
func addAnalysisFlags(cmd *cobra.Command, a *analysis) {
	cmd.Flags().StringSliceVarP(&a.metrics, "metric", "m", nil, "metrics to compute (default: all)")
	cmd.Flags().StringSliceVar(&a.exports, "export", nil, "write a computed column as a tag, as table:column")
}
