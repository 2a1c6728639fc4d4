// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pathsim/bikesim/internal/geo"
	"github.com/pathsim/bikesim/internal/model"
	"github.com/pathsim/bikesim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// optionsToJSON converts run options to datatypes.JSON for DB storage.
func optionsToJSON(options any) datatypes.JSON {
	if options == nil {
		return datatypes.JSON("{}")
	}
	data, err := json.Marshal(options)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToRun converts run metadata to a GORM model.Run. The track is left
// empty when the run has no GPS coordinates.
func CoreToRun(info core.RunInfo, options any) (model.Run, error) {
	profile, err := geo.ProfileLineString(info.Path)
	if err != nil {
		return model.Run{}, fmt.Errorf("profile: %w", err)
	}

	track := geom.Geometry{}
	if len(info.Track) > 0 {
		ls, err := geo.TrackLineString(info.Track)
		if err != nil {
			return model.Run{}, fmt.Errorf("track: %w", err)
		}
		track = ls.AsGeometry()
	}

	return model.Run{
		Name:         info.Name,
		Source:       info.Source,
		StartedAt:    info.StartedAt,
		AveragePower: info.Rider.AveragePower,
		Mass:         info.Rider.Mass,
		TimeStep:     info.TimeStep,
		Options:      optionsToJSON(options),
		Waypoints:    len(info.Path),
		Length:       info.Path.Length(),
		Climb:        info.Path.Climb(),
		Profile:      profile.AsGeometry(),
		Track:        track,
	}, nil
}

// CoreToSample converts a core.Sample to a GORM model.Sample of run runID.
func CoreToSample(runID uint, s core.Sample) model.Sample {
	return model.Sample{
		RunID:       runID,
		Time:        s.Time,
		Point:       geo.SamplePoint(s),
		Position:    s.Position,
		Altitude:    s.Altitude,
		Velocity:    s.Velocity,
		Slope:       s.Slope,
		PowerMargin: s.PowerMargin,
	}
}

// ApplyResult copies the outcome of a run onto its row.
func ApplyResult(run *model.Run, res core.Result, sampleCount int, endedAt time.Time) {
	run.TotalElapsedTime = sql.NullFloat64{Float64: res.TotalElapsedTime, Valid: true}
	run.Aborted = res.Aborted
	run.Steps = res.Steps
	run.FinalVelocity = res.Final.Velocity
	run.SampleCount = sampleCount
	run.EndedAt = sql.NullTime{Time: endedAt, Valid: true}
}
