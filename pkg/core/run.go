// pkg/core/run.go
package core

import "time"

// RiderProfile is the immutable rider input for one run.
type RiderProfile struct {
	AveragePower float64 `json:"averagePower"` // watts
	Mass         float64 `json:"mass"`         // rider + bicycle, kg
}

// SimulationState is the point-mass state advanced by the integrator.
type SimulationState struct {
	Elapsed      float64 `json:"elapsed"`      // seconds
	Position     float64 `json:"position"`     // metres
	Altitude     float64 `json:"altitude"`     // metres
	Velocity     float64 `json:"velocity"`     // m/s
	Acceleration float64 `json:"acceleration"` // m/s^2
}

// Sample is one emitted observation of a running simulation.
type Sample struct {
	Time        float64 `json:"time"`        // seconds since start
	Position    float64 `json:"position"`    // metres
	Altitude    float64 `json:"altitude"`    // metres
	Velocity    float64 `json:"velocity"`    // m/s
	Slope       float64 `json:"slope"`       // dimensionless grade
	PowerMargin float64 `json:"powerMargin"` // watts, rider power minus required power
}

// SpeedKmh returns the sample velocity in km/h.
func (s Sample) SpeedKmh() float64 {
	return s.Velocity * 3.6
}

// Result is the outcome of a simulation run.
type Result struct {
	TotalElapsedTime float64         `json:"totalElapsedTime"` // seconds
	Aborted          bool            `json:"aborted"`          // velocity went negative
	Steps            int             `json:"steps"`
	Final            SimulationState `json:"final"`
	Samples          []Sample        `json:"samples,omitempty"`
}

// RunInfo describes a run for recording backends.
type RunInfo struct {
	ID        uint         `json:"id"`
	Name      string       `json:"name"`
	Source    string       `json:"source"` // path file the waypoints came from
	StartedAt time.Time    `json:"startedAt"`
	Rider     RiderProfile `json:"rider"`
	TimeStep  float64      `json:"timeStep"`
	Path      Path         `json:"path"`
	Track     []GeoPoint   `json:"track,omitempty"`
}
