// Package sim advances a rider along a path with fixed-step forward Euler integration.
package sim

import (
	"fmt"
	"log/slog"

	"github.com/pathsim/bikesim/internal/physics"
	"github.com/pathsim/bikesim/internal/track"
	"github.com/pathsim/bikesim/pkg/core"
)

// Integrator runs simulations with a fixed resistance model and constants.
// A single Integrator may run any number of simulations; each run owns its state.
type Integrator struct {
	Model  physics.Model
	Params Params
	Logger *slog.Logger
}

// NewIntegrator returns an integrator with the default constants.
func NewIntegrator(model physics.Model, logger *slog.Logger) *Integrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Integrator{
		Model:  model,
		Params: DefaultParams(),
		Logger: logger,
	}
}

// Run integrates until the rider passes the last waypoint or starts rolling
// backwards. dt must be positive and the tracker freshly created.
func (in *Integrator) Run(tr *track.Tracker, rider core.RiderProfile, dt float64, opts Options) core.Result {
	logger := in.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	start := tr.SegmentStart()
	state := core.SimulationState{
		Position: start.Position,
		Altitude: start.Altitude,
	}
	slope := tr.Slope()
	segment := tr.Segment()

	pacer := opts.pacer()
	clock := newSampleClock(opts.sampleInterval(), in.Params.WatermarkEpsilon)

	var result core.Result
	for !tr.Done() {
		if pacer != nil {
			pacer.Pause(dt)
		}

		state.Position += state.Velocity * dt
		state.Altitude = slope*(state.Position-start.Position) + start.Altitude
		state.Velocity += state.Acceleration * dt

		required := in.Model.RequiredPower(state.Velocity*physics.KmhPerMs, slope, rider.Mass)
		if state.Velocity >= in.Params.StationarySpeed {
			state.Acceleration = (rider.AveragePower - required) / (state.Velocity * rider.Mass)
		} else {
			state.Acceleration = in.Params.PushOffAcceleration
		}

		state.Elapsed += dt
		result.Steps++

		if opts.Verbose && clock.tick(state.Elapsed) {
			s := core.Sample{
				Time:        state.Elapsed,
				Position:    state.Position,
				Altitude:    state.Altitude,
				Velocity:    state.Velocity,
				Slope:       slope,
				PowerMargin: rider.AveragePower - required,
			}
			result.Samples = append(result.Samples, s)
			if opts.Observer != nil {
				opts.Observer.OnSample(s)
			}
		}

		if next, nextSlope := tr.AdvanceIfNeeded(state.Position); next != segment {
			segment, slope = next, nextSlope
			start = tr.SegmentStart()
			logger.Debug("Entered segment",
				"segment", segment,
				"position", state.Position,
				"slope", slope,
				"elapsed", state.Elapsed)
		}

		if state.Velocity < 0 {
			result.Aborted = true
			break
		}
	}

	result.TotalElapsedTime = state.Elapsed
	result.Final = state
	return result
}

// Simulate validates its inputs, builds a tracker for path and runs it.
func (in *Integrator) Simulate(path core.Path, rider core.RiderProfile, dt float64, opts Options) (core.Result, error) {
	if dt <= 0 {
		return core.Result{}, &core.InvalidParameterError{
			Name:  "time step",
			Value: fmt.Sprint(dt),
			Rule:  "must be positive",
		}
	}
	tr, err := track.New(path)
	if err != nil {
		return core.Result{}, err
	}
	return in.Run(tr, rider, dt, opts), nil
}

// Simulate runs path with the default model and constants.
func Simulate(path core.Path, rider core.RiderProfile, dt float64, opts Options) (core.Result, error) {
	return NewIntegrator(physics.DefaultModel(), nil).Simulate(path, rider, dt, opts)
}
