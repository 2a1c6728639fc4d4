// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pathsim/bikesim/pkg/core"
)

// RunExport is the root JSON structure
type RunExport struct {
	Name      string            `json:"name"`
	Source    string            `json:"source"`
	StartedAt string            `json:"startedAt"`
	Rider     core.RiderProfile `json:"rider"`
	TimeStep  float64           `json:"timeStep"`
	Length    float64           `json:"length"`
	Climb     float64           `json:"climb"`
	Path      core.Path         `json:"path"`
	Track     []core.GeoPoint   `json:"track,omitempty"`
	Samples   []SampleJSON      `json:"samples"`
	Result    ResultJSON        `json:"result"`
}

// SampleJSON is one sample as [time, position, altitude, velocity, slope, powerMargin]
type SampleJSON [6]float64

// ResultJSON is the outcome of the run
type ResultJSON struct {
	TotalElapsedTime float64              `json:"totalElapsedTime"`
	Aborted          bool                 `json:"aborted"`
	Steps            int                  `json:"steps"`
	Final            core.SimulationState `json:"final"`
}

// fileName builds <name>_<timestamp>.json[.gz] from the run metadata.
func fileName(info *core.RunInfo, compress bool) string {
	name := info.Name
	if name == "" {
		name = "run"
	}
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	timestamp := info.StartedAt.Format("20060102_150405")

	if compress {
		return fmt.Sprintf("%s_%s.json.gz", name, timestamp)
	}
	return fmt.Sprintf("%s_%s.json", name, timestamp)
}

// exportJSON writes the run data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON(result *core.Result) error {
	export := b.buildExport(result)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(b.cfg.OutputDir, fileName(b.run, b.cfg.CompressOutput))

	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport(result *core.Result) RunExport {
	export := RunExport{
		Name:      b.run.Name,
		Source:    b.run.Source,
		StartedAt: b.run.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		Rider:     b.run.Rider,
		TimeStep:  b.run.TimeStep,
		Length:    b.run.Path.Length(),
		Climb:     b.run.Path.Climb(),
		Path:      b.run.Path,
		Track:     b.run.Track,
		Samples:   make([]SampleJSON, 0, len(b.samples)),
	}

	for _, s := range b.samples {
		export.Samples = append(export.Samples,
			SampleJSON{s.Time, s.Position, s.Altitude, s.Velocity, s.Slope, s.PowerMargin})
	}

	if result != nil {
		export.Result = ResultJSON{
			TotalElapsedTime: result.TotalElapsedTime,
			Aborted:          result.Aborted,
			Steps:            result.Steps,
			Final:            result.Final,
		}
	}
	return export
}

func writeJSON(path string, data RunExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data RunExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}
