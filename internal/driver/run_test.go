package driver_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klibexport/internal/buildpipeline"
	"klibexport/internal/diag"
	"klibexport/internal/driver"
	"klibexport/internal/fixture"
	"klibexport/internal/klib"
	"klibexport/internal/naming"
	"klibexport/internal/project"
	"klibexport/internal/testkit"
)

const coreSrc = `
name: core
packages:
  org.core:
    - class: Item
      members:
        - constructor: ["id: Int"]
        - val: id
          type: Int
    - fun: describe
      params: ["item: Item"]
      returns: String
`

const featureSrc = `
name: feature
depends: [core]
packages:
  org.feature:
    - class: Item
    - fun: first
      params: ["items: List<org.core.Item>"]
      returns: org.core.Item?
`

// writeKlibs stores each description as an unpacked klib and returns the paths.
func writeKlibs(t *testing.T, srcs ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(srcs))
	for i, src := range srcs {
		m, err := fixture.Parse([]byte(src))
		require.NoError(t, err)
		p := filepath.Join(dir, strings.Repeat("k", i+1)+"-"+m.Name)
		require.NoError(t, klib.Write(p, m))
		paths = append(paths, p)
	}
	return paths
}

func exported(paths ...string) []driver.Input {
	out := make([]driver.Input, len(paths))
	for i, p := range paths {
		out[i] = driver.Input{Path: p, Exported: true}
	}
	return out
}

func TestRunExportsEveryModule(t *testing.T) {
	paths := writeKlibs(t, featureSrc, coreSrc)
	var rec buildpipeline.Recorder
	res, err := driver.Run(context.Background(), driver.Request{
		Inputs:   exported(paths...),
		Jobs:     2,
		Progress: &rec,
	})
	require.NoError(t, err)

	// зависимости первыми
	require.Len(t, res.Table.Modules(), 2)
	assert.Equal(t, "core", res.Table.Modules()[0].Name)
	require.Len(t, res.Units, 2)
	assert.Equal(t, "core.swift", res.Units[0].Path)
	assert.Equal(t, "feature.swift", res.Units[1].Path)

	feature := string(res.Units[1].Text)
	assert.True(t, strings.HasPrefix(feature, "import KotlinRuntime\nimport core\n"), feature)
	assert.Contains(t, feature, "public final class Item : KotlinRuntime.KotlinBase")
	assert.Contains(t, feature, "core.org.core.Item?")
	for _, u := range res.Units {
		require.NoError(t, testkit.CheckUnitInvariants(u.Text), u.Path)
	}

	assert.False(t, res.Bag.HasErrors())
	require.Len(t, res.ModuleHashes, 2)
	assert.Len(t, res.Inputs(), 2)

	for _, p := range paths {
		last := rec.Last()[p]
		assert.Equal(t, buildpipeline.StageEmit, last.Stage, p)
		assert.Equal(t, buildpipeline.StatusDone, last.Status, p)
	}
}

func TestRunDeterministic(t *testing.T) {
	paths := writeKlibs(t, coreSrc, featureSrc)
	run := func(jobs int) *driver.Result {
		res, err := driver.Run(context.Background(), driver.Request{Inputs: exported(paths...), Jobs: jobs})
		require.NoError(t, err)
		return res
	}
	a, b := run(1), run(4)
	require.Len(t, b.Units, len(a.Units))
	for i := range a.Units {
		assert.Equal(t, string(a.Units[i].Text), string(b.Units[i].Text))
	}
	assert.Equal(t, a.ModuleHashes, b.ModuleHashes)
	assert.Equal(t, diag.FormatShortDiagnostics(a.Bag.Items(), true), diag.FormatShortDiagnostics(b.Bag.Items(), true))
}

func TestRunDependencyOnlyModule(t *testing.T) {
	paths := writeKlibs(t, coreSrc, featureSrc)
	res, err := driver.Run(context.Background(), driver.Request{Inputs: []driver.Input{
		{Path: paths[0]},
		{Path: paths[1], Exported: true, SwiftName: "Feature"},
	}})
	require.NoError(t, err)
	require.Len(t, res.Units, 1)
	assert.Equal(t, "Feature", res.Units[0].Module)
	assert.Contains(t, string(res.Units[0].Text), "import core\n")
}

func TestRunSingleModule(t *testing.T) {
	paths := writeKlibs(t, coreSrc, featureSrc)
	res, err := driver.Run(context.Background(), driver.Request{
		Inputs:       exported(paths...),
		SingleModule: true,
		ModuleName:   "Shared",
	})
	require.NoError(t, err)
	require.Len(t, res.Units, 1)
	assert.Equal(t, "Shared.swift", res.Units[0].Path)
	assert.Equal(t, []string{"core", "feature"}, res.Units[0].Sources)
	assert.NotContains(t, string(res.Units[0].Text), "import core")
}

func TestRunMissingInputIsFatal(t *testing.T) {
	paths := writeKlibs(t, coreSrc)
	missing := filepath.Join(t.TempDir(), "absent.klib")
	var rec buildpipeline.Recorder
	res, err := driver.Run(context.Background(), driver.Request{
		Inputs:   exported(paths[0], missing),
		Progress: &rec,
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, klib.ErrRead), "%+v", err)
	assert.Equal(t, diag.ReadIO, klib.CodeOf(err))
	assert.Equal(t, buildpipeline.StatusError, rec.Last()[missing].Status)
}

func TestRunDuplicateModuleIsFatal(t *testing.T) {
	paths := writeKlibs(t, coreSrc, coreSrc)
	_, err := driver.Run(context.Background(), driver.Request{Inputs: exported(paths...)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, klib.ErrRead))
	assert.Equal(t, diag.ReadDuplicateModule, klib.CodeOf(err))
}

func TestRunCycleIsFatal(t *testing.T) {
	paths := writeKlibs(t, "name: a\ndepends: [b]\n", "name: b\ndepends: [a]\n")
	_, err := driver.Run(context.Background(), driver.Request{Inputs: exported(paths...)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, project.ErrConfiguration))
}

func TestRunInvalidOverrideIsFatal(t *testing.T) {
	paths := writeKlibs(t, coreSrc)
	_, err := driver.Run(context.Background(), driver.Request{
		Inputs: exported(paths...),
		Policy: naming.Policy{Overrides: map[string]string{"org.absent": "Absent"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, naming.ErrConfiguration))
	code, ok := naming.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, diag.ConfMissingTarget, code)
}

func TestRunWithoutInputs(t *testing.T) {
	_, err := driver.Run(context.Background(), driver.Request{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, project.ErrConfiguration))
}

func TestRunNothingExported(t *testing.T) {
	paths := writeKlibs(t, coreSrc)
	res, err := driver.Run(context.Background(), driver.Request{Inputs: []driver.Input{{Path: paths[0]}}})
	require.NoError(t, err)
	assert.Empty(t, res.Units)
	assert.True(t, res.Bag.HasWarnings())
	var codes []diag.Code
	for _, d := range res.Bag.Items() {
		codes = append(codes, d.Code)
	}
	assert.Contains(t, codes, diag.ConfNoExported)
}

func TestRunCancelled(t *testing.T) {
	paths := writeKlibs(t, coreSrc)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := driver.Run(ctx, driver.Request{Inputs: exported(paths...)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunTimings(t *testing.T) {
	paths := writeKlibs(t, coreSrc)
	var phases []string
	res, err := driver.Run(context.Background(), driver.Request{
		Inputs:  exported(paths...),
		Timings: true,
		Observer: func(ev driver.PhaseEvent) {
			if ev.Status == driver.PhaseEnd {
				phases = append(phases, ev.Name)
			}
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"load", "link", "classify", "names", "emit"}, phases)

	var timing *diag.Diagnostic
	for i, d := range res.Bag.Items() {
		if d.Code == diag.ObsTimings {
			timing = &res.Bag.Items()[i]
		}
	}
	require.NotNil(t, timing)
	require.Len(t, timing.Notes, 1)
	var payload struct {
		Kind    string `json:"kind"`
		Modules int    `json:"modules"`
		Phases  []struct {
			Name string `json:"name"`
		} `json:"phases"`
	}
	require.NoError(t, json.Unmarshal([]byte(timing.Notes[0].Msg), &payload))
	assert.Equal(t, "export", payload.Kind)
	assert.Equal(t, 1, payload.Modules)
	assert.Len(t, payload.Phases, 5)
}

func TestRunUsesCaches(t *testing.T) {
	paths := writeKlibs(t, coreSrc, featureSrc)
	cache, err := driver.OpenDiskCacheAt(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)

	req := driver.Request{Inputs: exported(paths...), Cache: cache}
	cold, err := driver.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, cold.CacheHits)

	warm, err := driver.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, warm.CacheHits)
	require.Len(t, warm.Units, len(cold.Units))
	for i := range cold.Units {
		assert.Equal(t, string(cold.Units[i].Text), string(warm.Units[i].Text))
	}

	memo := driver.NewModuleCache(2)
	req.Memo = memo
	_, err = driver.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, memo.Len())
	again, err := driver.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, again.CacheHits)
}
