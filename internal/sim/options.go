package sim

import "github.com/pathsim/bikesim/pkg/core"

// DefaultSampleInterval is the simulated time between emitted samples.
const DefaultSampleInterval = 1.0

// Observer receives samples as the integrator emits them.
type Observer interface {
	OnSample(s core.Sample)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(core.Sample)

// OnSample calls f(s).
func (f ObserverFunc) OnSample(s core.Sample) {
	f(s)
}

// Options configures a single run.
type Options struct {
	Verbose        bool    // emit samples
	RealTime       bool    // pace steps against the wall clock
	SampleInterval float64 // seconds of simulated time between samples, 0 means DefaultSampleInterval
	Pacer          Pacer   // nil means SleepPacer when RealTime is set
	Observer       Observer
}

// Params are the fixed constants of the integration loop.
type Params struct {
	StationarySpeed     float64 // m/s, below it acceleration is PushOffAcceleration
	PushOffAcceleration float64 // m/s^2
	WatermarkEpsilon    float64 // added before truncating elapsed time into a sample tick
}

// DefaultParams returns the constants the model was calibrated with.
func DefaultParams() Params {
	return Params{
		StationarySpeed:     1.5,
		PushOffAcceleration: 1.0,
		WatermarkEpsilon:    1e-9,
	}
}

func (o Options) sampleInterval() float64 {
	if o.SampleInterval <= 0 {
		return DefaultSampleInterval
	}
	return o.SampleInterval
}

func (o Options) pacer() Pacer {
	if !o.RealTime {
		return nil
	}
	if o.Pacer == nil {
		return SleepPacer{}
	}
	return o.Pacer
}
