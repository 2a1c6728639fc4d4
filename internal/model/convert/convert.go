package convert

import (
	"github.com/pathsim/bikesim/internal/model"
	"github.com/pathsim/bikesim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// lineStringToPath converts a profile geometry back to waypoints.
func lineStringToPath(g geom.Geometry) core.Path {
	ls, ok := g.AsLineString()
	if !ok {
		return nil
	}
	seq := ls.Coordinates()
	if seq.Length() == 0 {
		return nil
	}
	path := make(core.Path, seq.Length())
	for i := 0; i < seq.Length(); i++ {
		pt := seq.GetXY(i)
		path[i] = core.Waypoint{Position: pt.X, Altitude: pt.Y}
	}
	return path
}

// SampleToCore converts a GORM Sample to a core.Sample.
func SampleToCore(s model.Sample) core.Sample {
	return core.Sample{
		Time:        s.Time,
		Position:    s.Position,
		Altitude:    s.Altitude,
		Velocity:    s.Velocity,
		Slope:       s.Slope,
		PowerMargin: s.PowerMargin,
	}
}

// RunToCore converts a GORM Run to run metadata. The GPS track is not
// restored since only its projection is stored.
func RunToCore(r model.Run) core.RunInfo {
	return core.RunInfo{
		ID:        r.ID,
		Name:      r.Name,
		Source:    r.Source,
		StartedAt: r.StartedAt,
		Rider:     core.RiderProfile{AveragePower: r.AveragePower, Mass: r.Mass},
		TimeStep:  r.TimeStep,
		Path:      lineStringToPath(r.Profile),
	}
}

// RunToResult converts the outcome columns of a GORM Run to a core.Result.
func RunToResult(r model.Run) core.Result {
	res := core.Result{
		TotalElapsedTime: r.TotalElapsedTime.Float64,
		Aborted:          r.Aborted,
		Steps:            r.Steps,
	}
	res.Final.Velocity = r.FinalVelocity
	res.Final.Elapsed = r.TotalElapsedTime.Float64
	if len(r.Samples) > 0 {
		res.Samples = make([]core.Sample, len(r.Samples))
		for i, s := range r.Samples {
			res.Samples[i] = SampleToCore(s)
		}
	}
	return res
}
