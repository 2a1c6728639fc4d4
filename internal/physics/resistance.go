package physics

// KmhPerMs converts metres per second to kilometres per hour.
const KmhPerMs = 3.6

// Model holds the coefficients of the rolling, drag and climb terms.
type Model struct {
	Friction      float64 // rolling term, W per km/h at ReferenceMass
	Drag          float64 // aerodynamic term, W per (km/h)^3
	ReferenceMass float64 // kg the friction coefficient was measured at
	Gravity       float64 // m/s^2
}

// DefaultModel returns the calibrated road bike coefficients.
func DefaultModel() Model {
	return Model{
		Friction:      3.1,
		Drag:          0.0065,
		ReferenceMass: 90,
		Gravity:       9.81,
	}
}

// RequiredPower returns the watts needed to hold speedKmh on the given grade.
// The climb term is negative on descents, so the result can be negative too.
func (m Model) RequiredPower(speedKmh, slope, mass float64) float64 {
	resistance := m.Friction*(mass/m.ReferenceMass)*speedKmh + m.Drag*speedKmh*speedKmh*speedKmh
	climb := (speedKmh / KmhPerMs) * slope * mass * m.Gravity
	return resistance + climb
}

// TerminalSpeed returns the speed in km/h at which RequiredPower equals power
// on the given grade, found by bisection on [0, 200] km/h. Returns 0 when
// power is not positive.
func (m Model) TerminalSpeed(power, slope, mass float64) float64 {
	if power <= 0 {
		return 0
	}
	lo, hi := 0.0, 200.0
	for range 100 {
		mid := (lo + hi) / 2
		if m.RequiredPower(mid, slope, mass) < power {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

var defaultModel = DefaultModel()

// RequiredPower evaluates the default model.
func RequiredPower(speedKmh, slope, mass float64) float64 {
	return defaultModel.RequiredPower(speedKmh, slope, mass)
}
