package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/meshstat/internal/meshtest"
)

func examplesDir() string {
	return filepath.Join("..", "..", "examples")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type jsonReport struct {
	Tables []struct {
		Kind    string   `json:"kind"`
		Columns []string `json:"columns"`
		Rows    []struct {
			Handle uint64 `json:"handle"`
			Values []any  `json:"values"`
		} `json:"rows"`
	} `json:"tables"`
	Globals []struct {
		Name  string `json:"name"`
		Value any    `json:"value"`
	} `json:"globals"`
	Diagnostics []struct {
		Code string `json:"code"`
	} `json:"diagnostics"`
}

func (r jsonReport) global(name string) (any, bool) {
	for _, g := range r.Globals {
		if g.Name == name {
			return g.Value, true
		}
	}
	return nil, false
}

func TestStatsCube(t *testing.T) {
	out, err := execute(t, "stats", filepath.Join(examplesDir(), "cube.lisp"),
		"-o", "json", "--metric", "tri_per_vert,coarseness")
	require.NoError(t, err)

	var r jsonReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))

	ave, ok := r.global("tri_per_vert_ave")
	require.True(t, ok)
	assert.InDelta(t, 4.5, ave, 1e-9)

	c, ok := r.global("coarseness_ave")
	require.True(t, ok)
	assert.InDelta(t, 0.02, c, 1e-9)
	assert.Empty(t, r.Diagnostics)
}

func TestStatsAllMetricsOnPyramid(t *testing.T) {
	out, err := execute(t, "stats", filepath.Join(examplesDir(), "pyramid.lisp"), "-o", "json")
	require.NoError(t, err)

	var r jsonReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	require.Len(t, r.Tables, 4)

	rough, ok := r.global("roughness_ave")
	require.True(t, ok)
	assert.InDelta(t, meshtest.PyramidAverageRoughness, rough, 1e-9)

	// Every metric is computed once, so no duplicate warnings.
	for _, d := range r.Diagnostics {
		assert.NotEqual(t, "duplicate_computation", d.Code)
	}
}

func TestStatsSelection(t *testing.T) {
	out, err := execute(t, "stats", filepath.Join(examplesDir(), "cube.lisp"),
		"-o", "json", "--select", "top,bottom", "-m", "tri_per_surf")
	require.NoError(t, err)

	var r jsonReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	require.Len(t, r.Tables, 1)
	assert.Equal(t, "surface", r.Tables[0].Kind)
	assert.Len(t, r.Tables[0].Rows, 2)

	_, err = execute(t, "stats", filepath.Join(examplesDir(), "cube.lisp"), "--select", "lid")
	assert.Error(t, err)
}

func TestStatsExport(t *testing.T) {
	_, err := execute(t, "stats", filepath.Join(examplesDir(), "cube.lisp"),
		"-m", "area", "--export", "triangle:area")
	require.NoError(t, err)

	_, err = execute(t, "stats", filepath.Join(examplesDir(), "cube.lisp"),
		"-m", "area", "--export", "triangle:roughness")
	assert.Error(t, err)

	_, err = execute(t, "stats", filepath.Join(examplesDir(), "cube.lisp"),
		"-m", "area", "--export", "area")
	assert.Error(t, err)

	_, err = execute(t, "stats", filepath.Join(examplesDir(), "cube.lisp"),
		"--export", "triangle:roughness", "--export", "vertex:roughness")
	require.NoError(t, err)

	_, err = execute(t, "stats", filepath.Join(examplesDir(), "cube.lisp"),
		"-m", "area", "--export", "triangle:area", "--export", "triangle:area")
	assert.Error(t, err)
}

func TestStatsScriptErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.lisp")
	require.NoError(t, os.WriteFile(path, []byte("(vertex 0 0 0)\n(tri 1 2)\n"), 0o644))

	out, err := execute(t, "stats", path)
	require.Error(t, err)
	assert.Contains(t, out, "tri")

	_, err = execute(t, "stats", filepath.Join(t.TempDir(), "missing.lisp"))
	assert.Error(t, err)

	_, err = execute(t, "stats", filepath.Join(examplesDir(), "cube.lisp"), "-m", "volume_fraction")
	assert.Error(t, err)
}

func TestBoxCSV(t *testing.T) {
	out, err := execute(t, "box", "--size", "10", "--cells", "12", "-o", "csv", "-m", "surf_per_vol")
	require.NoError(t, err)
	assert.Contains(t, out, "handle,surf_per_vol")

	_, err = execute(t, "box", "--size", "1,2")
	assert.Error(t, err)
}

func TestMetricsList(t *testing.T) {
	out, err := execute(t, "metrics")
	require.NoError(t, err)
	assert.Contains(t, out, "tri_roughness")
	assert.Contains(t, out, "volume")
}

func TestBadFormat(t *testing.T) {
	_, err := execute(t, "metrics", "-o", "xml")
	assert.Error(t, err)
}

func TestGetConfigWithoutHook(t *testing.T) {
	cmd := &cobra.Command{Use: "bare"}
	cmd.Flags().String("boundary", "classify", "")

	cfg, err := getConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "classify", cfg.Query.Boundary)

	require.NoError(t, cmd.Flags().Set("boundary", "sometimes"))
	cfg, err = getConfig(cmd)
	assert.Error(t, err)
	assert.Nil(t, cfg)
}
