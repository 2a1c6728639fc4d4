package sim

import (
	"errors"
	"math"
	"testing"

	"github.com/pathsim/bikesim/internal/physics"
	"github.com/pathsim/bikesim/internal/track"
	"github.com/pathsim/bikesim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rider150 = core.RiderProfile{AveragePower: 150, Mass: 90}

func hilly() core.Path {
	return core.Path{{0, 240}, {200, 243}, {500, 235}, {600, 240}}
}

// referenceRun is a literal forward Euler loop over the path, used to pin the
// integrator to the update rule step by step.
func referenceRun(p core.Path, power, mass, dt float64) (elapsed float64, aborted bool) {
	x, v, a := p[0].Position, 0.0, 0.0
	i := 0
	slope := (p[1].Altitude - p[0].Altitude) / (p[1].Position - p[0].Position)
	for {
		x += v * dt
		v += a * dt
		kmh := v * 3.6
		w := 3.1*(mass/90)*kmh + 0.0065*kmh*kmh*kmh + (kmh/3.6)*slope*mass*9.81
		if v >= 1.5 {
			a = (power - w) / (v * mass)
		} else {
			a = 1
		}
		elapsed += dt
		if x > p[i+1].Position {
			if i == len(p)-2 {
				return elapsed, false
			}
			i++
			slope = (p[i+1].Altitude - p[i].Altitude) / (p[i+1].Position - p[i].Position)
		}
		if v < 0 {
			return elapsed, true
		}
	}
}

func TestSimulate_ConcreteScenario(t *testing.T) {
	res, err := Simulate(hilly(), rider150, 0.1, Options{})
	require.NoError(t, err)

	assert.False(t, res.Aborted)
	assert.Greater(t, res.TotalElapsedTime, 0.0)
	assert.False(t, math.IsInf(res.TotalElapsedTime, 0))
	assert.Greater(t, res.Final.Position, 600.0)
	assert.Nil(t, res.Samples)

	want, aborted := referenceRun(hilly(), 150, 90, 0.1)
	assert.False(t, aborted)
	assert.InDelta(t, want, res.TotalElapsedTime, 1e-9)
	assert.InDelta(t, float64(res.Steps)*0.1, res.TotalElapsedTime, 1e-6)
}

func TestSimulate_Deterministic(t *testing.T) {
	a, err := Simulate(hilly(), rider150, 0.05, Options{})
	require.NoError(t, err)
	b, err := Simulate(hilly(), rider150, 0.05, Options{})
	require.NoError(t, err)

	assert.Equal(t, a.TotalElapsedTime, b.TotalElapsedTime)
	assert.Equal(t, a.Final, b.Final)
}

func TestSimulate_FlatPathApproachesTerminalSpeed(t *testing.T) {
	path := core.Path{{0, 100}, {2000, 100}}
	res, err := Simulate(path, rider150, 0.1, Options{Verbose: true})
	require.NoError(t, err)
	require.NotEmpty(t, res.Samples)
	assert.False(t, res.Aborted)

	for i := 1; i < len(res.Samples); i++ {
		assert.GreaterOrEqual(t, res.Samples[i].Velocity, res.Samples[i-1].Velocity,
			"velocity dropped at t=%v", res.Samples[i].Time)
		assert.Equal(t, 100.0, res.Samples[i].Altitude)
	}

	terminal := physics.DefaultModel().TerminalSpeed(150, 0, 90)
	last := res.Samples[len(res.Samples)-1]
	assert.InDelta(t, terminal, last.SpeedKmh(), 0.1)
	assert.LessOrEqual(t, last.SpeedKmh(), terminal+1e-6)
	assert.InDelta(t, 0, last.PowerMargin, 1)
}

func TestSimulate_TwoWaypointsTerminatesPastEnd(t *testing.T) {
	const length = 300.0
	res, err := Simulate(core.Path{{0, 0}, {length, 0}}, rider150, 0.1, Options{Verbose: true})
	require.NoError(t, err)

	// speed only grows on the flat, so the overshooting step moved less
	// than the final velocity times dt
	assert.False(t, res.Aborted)
	assert.Greater(t, res.Final.Position, length)
	assert.Less(t, res.Final.Position, length+res.Final.Velocity*0.1+1e-9)
	for _, s := range res.Samples {
		assert.Zero(t, s.Slope)
	}
}

func TestSimulate_AbortsOnNegativeVelocity(t *testing.T) {
	// a wall of 100% grade with a coarse step overshoots into negative speed
	path := core.Path{{0, 0}, {100, 100}}
	res, err := Simulate(path, core.RiderProfile{AveragePower: 30, Mass: 90}, 1.0, Options{})
	require.NoError(t, err)

	assert.True(t, res.Aborted)
	assert.Less(t, res.Final.Velocity, 0.0)
	assert.Less(t, res.Final.Position, 100.0)
	assert.InDelta(t, 4.0, res.TotalElapsedTime, 1e-9)
	assert.Equal(t, 4, res.Steps)

	want, aborted := referenceRun(path, 30, 90, 1.0)
	assert.True(t, aborted)
	assert.InDelta(t, want, res.TotalElapsedTime, 1e-9)
}

func TestSimulate_LargeStepAdvancesOneSegmentPerStep(t *testing.T) {
	path := core.Path{{0, 0}, {1, 0}, {2, 0}, {3, 0}, {4, 0}}
	res, err := Simulate(path, rider150, 10, Options{})
	require.NoError(t, err)

	// step 3 already overshoots the whole path, the cursor still needs
	// one step for each remaining boundary
	assert.False(t, res.Aborted)
	assert.Equal(t, 6, res.Steps)
	assert.Greater(t, res.Final.Position, 100.0)
}

func TestSimulate_AltitudeUsesSegmentBeforeAdvance(t *testing.T) {
	path := core.Path{{0, 0}, {10, 1}, {1000, 1}}
	res, err := Simulate(path, core.RiderProfile{AveragePower: 400, Mass: 80}, 0.5, Options{Verbose: true, SampleInterval: 0.5})
	require.NoError(t, err)
	require.False(t, res.Aborted)

	var straddled bool
	for _, s := range res.Samples {
		if s.Position > 10 && s.Slope == 0.1 {
			// still on the first segment's slope for the straddling step
			assert.InDelta(t, 0.1*s.Position, s.Altitude, 1e-9)
			straddled = true
		}
	}
	assert.True(t, straddled)
}

func TestSimulate_SampleThrottling(t *testing.T) {
	var observed []core.Sample
	res, err := Simulate(hilly(), rider150, 0.1, Options{
		Verbose:  true,
		Observer: ObserverFunc(func(s core.Sample) { observed = append(observed, s) }),
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Samples), 3)
	assert.Equal(t, res.Samples, observed)

	assert.InDelta(t, 1.0, res.Samples[0].Time, 1e-9)
	assert.InDelta(t, 2.0, res.Samples[1].Time, 1e-9)
	assert.InDelta(t, 3.0, res.Samples[2].Time, 1e-9)
	for i := 1; i < len(res.Samples); i++ {
		assert.GreaterOrEqual(t, res.Samples[i].Time-res.Samples[i-1].Time, 1.0-1e-9)
	}

	expected := int(math.Floor(res.TotalElapsedTime + 1e-9))
	assert.Equal(t, expected, len(res.Samples))

	for _, s := range res.Samples {
		assert.InDelta(t, 150-physics.RequiredPower(s.SpeedKmh(), s.Slope, 90), s.PowerMargin, 1e-9)
	}
}

func TestSimulate_SampleInterval(t *testing.T) {
	res, err := Simulate(hilly(), rider150, 0.1, Options{Verbose: true, SampleInterval: 10})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Samples), 2)
	assert.InDelta(t, 10.0, res.Samples[0].Time, 1e-9)
	assert.InDelta(t, 20.0, res.Samples[1].Time, 1e-9)
}

func TestSimulate_RealTimeUsesPacer(t *testing.T) {
	var pauses int
	var total float64
	pacer := PacerFunc(func(dt float64) {
		pauses++
		total += dt
	})

	res, err := Simulate(hilly(), rider150, 0.5, Options{RealTime: true, Pacer: pacer})
	require.NoError(t, err)
	assert.Equal(t, res.Steps, pauses)
	assert.InDelta(t, res.TotalElapsedTime, total, 1e-9)

	// pacing never changes the numbers
	plain, err := Simulate(hilly(), rider150, 0.5, Options{})
	require.NoError(t, err)
	assert.Equal(t, plain.TotalElapsedTime, res.TotalElapsedTime)
}

func TestSimulate_NoPacingWithoutRealTime(t *testing.T) {
	var pauses int
	_, err := Simulate(hilly(), rider150, 0.5, Options{Pacer: PacerFunc(func(float64) { pauses++ })})
	require.NoError(t, err)
	assert.Zero(t, pauses)
}

func TestSimulate_InvalidInput(t *testing.T) {
	_, err := Simulate(core.Path{{0, 0}}, rider150, 0.1, Options{})
	var pathErr *core.InvalidPathError
	assert.True(t, errors.As(err, &pathErr))

	_, err = Simulate(hilly(), rider150, 0, Options{})
	var paramErr *core.InvalidParameterError
	assert.True(t, errors.As(err, &paramErr))
}

func TestIntegrator_CustomParams(t *testing.T) {
	in := NewIntegrator(physics.DefaultModel(), nil)
	in.Params.PushOffAcceleration = 2

	tr, err := track.New(hilly())
	require.NoError(t, err)
	fast := in.Run(tr, rider150, 0.1, Options{})

	slow, err := Simulate(hilly(), rider150, 0.1, Options{})
	require.NoError(t, err)
	assert.Less(t, fast.TotalElapsedTime, slow.TotalElapsedTime)
}

func TestSampleClock(t *testing.T) {
	c := newSampleClock(1, 1e-9)
	assert.False(t, c.tick(0.1))
	assert.False(t, c.tick(0.5))
	assert.True(t, c.tick(0.9999999999999999))
	assert.False(t, c.tick(1.5))
	assert.True(t, c.tick(3.2))
	assert.False(t, c.tick(3.9))
}
