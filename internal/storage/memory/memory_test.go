package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pathsim/bikesim/internal/config"
	"github.com/pathsim/bikesim/internal/storage"
	"github.com/pathsim/bikesim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ storage.Backend  = (*Backend)(nil)
	_ storage.Exporter = (*Backend)(nil)
)

func testRun() *core.RunInfo {
	return &core.RunInfo{
		Name:      "Morning Climb",
		Source:    "climb.csv",
		StartedAt: time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC),
		Rider:     core.RiderProfile{AveragePower: 200, Mass: 80},
		TimeStep:  0.1,
		Path:      core.Path{{Position: 0, Altitude: 0}, {Position: 1000, Altitude: 20}},
	}
}

func TestStartRun_ResetsSamples(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartRun(testRun()))
	require.NoError(t, b.RecordSample(&core.Sample{Time: 1}))
	assert.Len(t, b.Samples(), 1)

	require.NoError(t, b.StartRun(testRun()))
	assert.Empty(t, b.Samples())
}

func TestRecordSample_WithoutRun(t *testing.T) {
	b := New(config.MemoryConfig{})
	assert.Error(t, b.RecordSample(&core.Sample{}))
	assert.Error(t, b.EndRun(&core.Result{}))
}

func TestExportJSON(t *testing.T) {
	tempDir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: tempDir, CompressOutput: false})

	require.NoError(t, b.StartRun(testRun()))
	require.NoError(t, b.RecordSample(&core.Sample{Time: 1, Position: 2, Altitude: 0.04, Velocity: 3, Slope: 0.02, PowerMargin: 50}))
	require.NoError(t, b.RecordSample(&core.Sample{Time: 2, Position: 6, Altitude: 0.12, Velocity: 5, Slope: 0.02, PowerMargin: 20}))
	require.NoError(t, b.EndRun(&core.Result{TotalElapsedTime: 212.5, Steps: 2125}))

	want := filepath.Join(tempDir, "Morning_Climb_20240315_143000.json")
	assert.Equal(t, want, b.ExportedFilePath())

	data, err := os.ReadFile(want)
	require.NoError(t, err)

	var export RunExport
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, "Morning Climb", export.Name)
	assert.Equal(t, "climb.csv", export.Source)
	assert.Equal(t, 1000.0, export.Length)
	assert.Equal(t, 20.0, export.Climb)
	assert.Equal(t, 212.5, export.Result.TotalElapsedTime)
	assert.Equal(t, 2125, export.Result.Steps)
	require.Len(t, export.Samples, 2)
	assert.Equal(t, SampleJSON{2, 6, 0.12, 5, 0.02, 20}, export.Samples[1])
}

func TestExportGzipJSON(t *testing.T) {
	tempDir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: tempDir, CompressOutput: true})

	require.NoError(t, b.StartRun(testRun()))
	require.NoError(t, b.EndRun(&core.Result{Aborted: true}))

	path := b.ExportedFilePath()
	assert.Equal(t, "Morning_Climb_20240315_143000.json.gz", filepath.Base(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	var export RunExport
	require.NoError(t, json.NewDecoder(gz).Decode(&export))
	assert.True(t, export.Result.Aborted)
	assert.Empty(t, export.Samples)
}

func TestExportCreatesOutputDir(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "nested", "runs")
	b := New(config.MemoryConfig{OutputDir: outDir})

	require.NoError(t, b.StartRun(testRun()))
	require.NoError(t, b.EndRun(&core.Result{}))

	_, err := os.Stat(b.ExportedFilePath())
	assert.NoError(t, err)
}

func TestFileName(t *testing.T) {
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name     string
		compress bool
		want     string
	}{
		{"Hill Repeats", false, "Hill_Repeats_20250102_030405.json"},
		{"a:b", true, "a_b_20250102_030405.json.gz"},
		{"", false, "run_20250102_030405.json"},
	}
	for _, tt := range tests {
		got := fileName(&core.RunInfo{Name: tt.name, StartedAt: start}, tt.compress)
		assert.Equal(t, tt.want, got)
	}
}
