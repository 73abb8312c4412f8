package ui

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klibexport/internal/buildpipeline"
)

func TestProgressRows(t *testing.T) {
	events := make(chan buildpipeline.Event)
	core := filepath.Join("build", "core.klib")
	feature := filepath.Join("build", "feature.klib")
	m := NewProgressModel("klibexport", []string{core, feature}, events).(*progressModel)
	assert.Zero(t, m.percent())

	m.apply(buildpipeline.Event{Module: core, Stage: buildpipeline.StageLoad, Status: buildpipeline.StatusDone, Elapsed: 12 * time.Millisecond})
	assert.Equal(t, "loading", m.rows[0].label())
	assert.InDelta(t, 0.1, m.percent(), 1e-9)

	m.apply(buildpipeline.Event{Module: feature, Stage: buildpipeline.StageLoad, Status: buildpipeline.StatusError, Err: errors.New("corrupt zip")})
	m.apply(buildpipeline.Event{Module: feature, Stage: buildpipeline.StageEmit, Status: buildpipeline.StatusDone})
	assert.Equal(t, "failed", m.rows[1].label(), "error is sticky")

	m.apply(buildpipeline.Event{Module: core, Stage: buildpipeline.StageEmit, Status: buildpipeline.StatusDone})
	m.apply(buildpipeline.Event{Module: "unknown.klib", Stage: buildpipeline.StageEmit, Status: buildpipeline.StatusDone})
	assert.Equal(t, 1.0, m.percent())

	view := m.View()
	assert.Contains(t, view, "build/core.klib")
	assert.Contains(t, view, "12ms")
	assert.Contains(t, view, "corrupt zip")
	assert.Equal(t, 2, strings.Count(view, "done")+strings.Count(view, "failed"))
}

func TestRowFraction(t *testing.T) {
	row := klibRow{stage: buildpipeline.StageClassify, status: buildpipeline.StatusWorking}
	assert.InDelta(t, 0.5, row.fraction(), 1e-9)
	row.status = buildpipeline.StatusDone
	assert.InDelta(t, 0.6, row.fraction(), 1e-9)
	require.Equal(t, "classifying", (&klibRow{stage: buildpipeline.StageClassify, status: buildpipeline.StatusWorking}).label())
}

func TestFit(t *testing.T) {
	assert.Equal(t, "short", fit("short", 10))
	got := fit("a-very-long-module-path.klib", 10)
	assert.LessOrEqual(t, len([]rune(got)), 10)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Equal(t, "core.klib", displayName("core.klib"))
}
