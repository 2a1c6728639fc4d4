// Package track keeps the cursor of the segment a rider currently occupies.
package track

import (
	"github.com/pathsim/bikesim/pkg/core"
)

// Tracker is a cursor over the segments of a path.
// It is owned by a single run and is not safe for concurrent use.
type Tracker struct {
	path    core.Path
	segment int
	slope   float64
	done    bool
}

// New returns a tracker positioned on the first segment.
func New(path core.Path) (*Tracker, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{
		path:  path,
		slope: path.Slope(0),
	}, nil
}

// SlopeOf returns the grade of segment i.
func (t *Tracker) SlopeOf(i int) float64 {
	return t.path.Slope(i)
}

// AdvanceIfNeeded moves the cursor forward by at most one segment when
// position lies past the end of the current segment. On the last segment
// it marks the path as complete instead.
func (t *Tracker) AdvanceIfNeeded(position float64) (int, float64) {
	if t.done || position <= t.path[t.segment+1].Position {
		return t.segment, t.slope
	}
	if t.segment == len(t.path)-2 {
		t.done = true
		return t.segment, t.slope
	}
	t.segment++
	t.slope = t.path.Slope(t.segment)
	return t.segment, t.slope
}

// Done reports whether the rider has passed the last waypoint.
func (t *Tracker) Done() bool {
	return t.done
}

// Segment returns the index of the current segment.
func (t *Tracker) Segment() int {
	return t.segment
}

// SegmentStart returns the lower waypoint of the current segment.
func (t *Tracker) SegmentStart() core.Waypoint {
	return t.path[t.segment]
}

// SegmentEnd returns the upper waypoint of the current segment.
func (t *Tracker) SegmentEnd() core.Waypoint {
	return t.path[t.segment+1]
}

// Slope returns the grade of the current segment.
func (t *Tracker) Slope() float64 {
	return t.slope
}

// Path returns the tracked path.
func (t *Tracker) Path() core.Path {
	return t.path
}
