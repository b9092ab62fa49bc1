// Package config loads meshstat settings from defaults, a YAML file, the
// environment and command-line flags, in increasing precedence.
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/chazu/meshstat/internal/errors"
	"github.com/chazu/meshstat/pkg/curvature"
	"github.com/chazu/meshstat/pkg/metrics"
	"github.com/chazu/meshstat/pkg/tessellate"
)

// EnvPrefix prefixes environment overrides: MESHSTAT_QUERY_IGNORE_ZERO sets
// query.ignore_zero.
const EnvPrefix = "MESHSTAT_"

// Report formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
)

// configNames are searched in the working directory when no file is given.
var configNames = []string{"meshstat.yaml", "meshstat.yml"}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"log-level":        "log.level",
	"log-json":         "log.json",
	"ignore-zero":      "query.ignore_zero",
	"boundary":         "query.boundary",
	"format":           "report.format",
	"cells":            "tessellate.cells",
	"normal-tolerance": "tessellate.normal_tolerance",
}

// Config holds all settings.
type Config struct {
	Log        LogConfig        `koanf:"log"`
	Query      QueryConfig      `koanf:"query"`
	Report     ReportConfig     `koanf:"report"`
	Tessellate TessellateConfig `koanf:"tessellate"`

	// File is the config file that was loaded, if any.
	File string `koanf:"-"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

type QueryConfig struct {
	IgnoreZero bool   `koanf:"ignore_zero"`
	Boundary   string `koanf:"boundary"`
}

type ReportConfig struct {
	Format string `koanf:"format"`
}

type TessellateConfig struct {
	Cells           int     `koanf:"cells"`
	NormalTolerance float64 `koanf:"normal_tolerance"`
}

func defaults() map[string]interface{} {
	t := tessellate.DefaultOptions()
	return map[string]interface{}{
		"log.level":                   "info",
		"log.json":                    false,
		"query.ignore_zero":           true,
		"query.boundary":              "classify",
		"report.format":               FormatTable,
		"tessellate.cells":            64,
		"tessellate.normal_tolerance": t.NormalTolerance,
	}
}

// findConfigFile returns explicit, or the first config file present in the
// working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range configNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// envKey maps MESHSTAT_SECTION_SOME_KEY to section.some_key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Load builds the configuration. Precedence (highest to lowest): flags >
// env vars > config file > defaults. Only flags that were set explicitly
// override lower layers. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "load defaults")
	}

	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", used)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "load environment")
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, errors.Wrap(err, "load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.File = used

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated values and ranges.
func (c *Config) Validate() error {
	if _, err := curvature.ParseBoundaryMode(c.Query.Boundary); err != nil {
		return errors.Wrap(err, "query.boundary")
	}
	switch c.Report.Format {
	case FormatTable, FormatJSON, FormatCSV:
	default:
		return errors.WithHintf(errors.Newf("report.format: unknown format %q", c.Report.Format),
			"use one of %s, %s, %s", FormatTable, FormatJSON, FormatCSV)
	}
	if c.Tessellate.Cells < 0 {
		return errors.Newf("tessellate.cells: must not be negative, got %d", c.Tessellate.Cells)
	}
	if c.Tessellate.NormalTolerance <= 0 || c.Tessellate.NormalTolerance >= 180 {
		return errors.Newf("tessellate.normal_tolerance: must be in (0, 180) degrees, got %g", c.Tessellate.NormalTolerance)
	}
	return nil
}

// MetricsOptions returns the query options selected by the config.
func (c *Config) MetricsOptions() metrics.Options {
	opts := metrics.DefaultOptions()
	opts.IgnoreZero = c.Query.IgnoreZero
	// Validate has already accepted the mode.
	opts.Boundary, _ = curvature.ParseBoundaryMode(c.Query.Boundary)
	return opts
}

// TessellateOptions returns the solid import options selected by the config.
func (c *Config) TessellateOptions() tessellate.Options {
	opts := tessellate.DefaultOptions()
	opts.NormalTolerance = c.Tessellate.NormalTolerance
	return opts
}
