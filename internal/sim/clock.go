package sim

import "math"

// sampleClock throttles sample emission to one per interval of simulated time.
// The watermark starts at zero, so the first sample falls at one interval.
type sampleClock struct {
	interval float64
	epsilon  float64
	last     int64
}

func newSampleClock(interval, epsilon float64) sampleClock {
	return sampleClock{interval: interval, epsilon: epsilon}
}

// tick reports whether elapsed has crossed into an interval not yet emitted.
func (c *sampleClock) tick(elapsed float64) bool {
	w := int64(math.Floor((elapsed + c.epsilon) / c.interval))
	if w <= c.last {
		return false
	}
	c.last = w
	return true
}
