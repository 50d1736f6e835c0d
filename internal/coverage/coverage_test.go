package coverage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackIncrementsHitCount(t *testing.T) {
	e := New()
	require.Nil(t, e.Init(Config{}))

	e.Track("widget_test.lua", 10)
	e.Track("widget_test.lua", 10)

	data := e.GetData()
	assert.Equal(t, 2, data["widget_test.lua"][10].HitCount)
	assert.False(t, data["widget_test.lua"][10].Verified)
}

func TestTrackNoopWhenInactive(t *testing.T) {
	e := New()
	e.Track("widget_test.lua", 10)

	assert.Empty(t, e.GetData())
}

func TestMarkLineCoveredDoesNotRequireAHit(t *testing.T) {
	e := New()
	require.Nil(t, e.Init(Config{}))

	e.MarkLineCovered("widget_test.lua", 5)

	data := e.GetData()
	assert.True(t, data["widget_test.lua"][5].Verified)
	assert.Equal(t, 0, data["widget_test.lua"][5].HitCount)
}

func TestMarkLineCoveredIsIdempotent(t *testing.T) {
	e := New()
	require.Nil(t, e.Init(Config{}))

	e.MarkLineCovered("widget_test.lua", 5)
	e.MarkLineCovered("widget_test.lua", 5)

	data := e.GetData()
	assert.True(t, data["widget_test.lua"][5].Verified)
}

func TestHitCountAloneNeverSetsVerified(t *testing.T) {
	e := New()
	require.Nil(t, e.Init(Config{}))

	for i := 0; i < 50; i++ {
		e.Track("widget_test.lua", 1)
	}

	data := e.GetData()
	assert.Equal(t, 50, data["widget_test.lua"][1].HitCount)
	assert.False(t, data["widget_test.lua"][1].Verified)
}

func TestPauseStopsRecordingWithoutResettingData(t *testing.T) {
	e := New()
	require.Nil(t, e.Init(Config{}))

	e.Track("a.lua", 1)
	e.Pause()
	e.Track("a.lua", 1)
	assert.False(t, e.IsActive())

	data := e.GetData()
	assert.Equal(t, 1, data["a.lua"][1].HitCount)

	e.Resume()
	assert.True(t, e.IsActive())
	e.Track("a.lua", 1)

	data = e.GetData()
	assert.Equal(t, 2, data["a.lua"][1].HitCount)
}

func TestIncludeExcludePatterns(t *testing.T) {
	e := New()
	require.Nil(t, e.Init(Config{
		IncludePatterns: []string{"*_test.lua"},
		ExcludePatterns: []string{"vendor_*"},
	}))

	e.Track("widget_test.lua", 1)
	e.Track("helper.lua", 1)
	e.Track("vendor_test.lua", 1)

	data := e.GetData()
	assert.Contains(t, data, "widget_test.lua")
	assert.NotContains(t, data, "helper.lua")
	assert.NotContains(t, data, "vendor_test.lua")
}

func TestSaveStatsThenLoadStatsMergesHitCountsAndOrsVerified(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")

	first := New()
	require.Nil(t, first.Init(Config{}))
	first.Track("a.lua", 1)
	first.MarkLineCovered("a.lua", 1)
	require.Nil(t, first.SaveStats(path))

	second := New()
	require.Nil(t, second.Init(Config{StatsFile: path}))
	second.Track("a.lua", 1)

	data := second.GetData()
	assert.Equal(t, 2, data["a.lua"][1].HitCount)
	assert.True(t, data["a.lua"][1].Verified)
}

func TestLoadStatsMissingFileIsNotAnError(t *testing.T) {
	e := New()
	err := e.LoadStats(filepath.Join(t.TempDir(), "absent.json"))
	assert.Nil(t, err)
}

func TestResetClearsDataAndWriteFailureSuppression(t *testing.T) {
	e := New()
	require.Nil(t, e.Init(Config{}))
	e.Track("a.lua", 1)
	e.writeFailureSeen = true

	e.Reset()

	assert.Empty(t, e.GetData())
	assert.False(t, e.writeFailureSeen)
}

func TestShutdownFlushesStatsAndDeactivates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	e := New()
	require.Nil(t, e.Init(Config{StatsFile: path}))
	e.Track("a.lua", 1)

	require.Nil(t, e.Shutdown())
	assert.False(t, e.IsActive())

	reloaded := New()
	require.Nil(t, reloaded.LoadStats(path))
	assert.Equal(t, 1, reloaded.GetData()["a.lua"][1].HitCount)
}
