// pkg/core/path.go
package core

import "fmt"

// Waypoint is a (position, altitude) sample of the ridden path, both in metres.
type Waypoint struct {
	Position float64 `json:"position"`
	Altitude float64 `json:"altitude"`
}

// Path is an ordered list of waypoints with strictly increasing position.
// Altitude between two consecutive waypoints is linear.
type Path []Waypoint

// MinWaypoints is the smallest number of waypoints that forms a segment.
const MinWaypoints = 2

// Validate checks the structural invariants the simulation relies on.
func (p Path) Validate() error {
	if len(p) < MinWaypoints {
		return &InvalidPathError{Reason: fmt.Sprintf("need at least %d waypoints, got %d", MinWaypoints, len(p))}
	}
	for i := 1; i < len(p); i++ {
		if p[i].Position <= p[i-1].Position {
			return &InvalidPathError{
				Line:   i + 1,
				Reason: fmt.Sprintf("position %g does not exceed previous position %g", p[i].Position, p[i-1].Position),
			}
		}
	}
	return nil
}

// Segments returns the number of segments in the path.
func (p Path) Segments() int {
	if len(p) < MinWaypoints {
		return 0
	}
	return len(p) - 1
}

// Length is the distance between the first and last waypoint.
func (p Path) Length() float64 {
	if len(p) < MinWaypoints {
		return 0
	}
	return p[len(p)-1].Position - p[0].Position
}

// Slope returns the grade of segment i as a dimensionless ratio.
// i must be in [0, Segments()).
func (p Path) Slope(i int) float64 {
	return (p[i+1].Altitude - p[i].Altitude) / (p[i+1].Position - p[i].Position)
}

// Climb returns the total positive altitude gain over the path.
func (p Path) Climb() float64 {
	var gain float64
	for i := 1; i < len(p); i++ {
		if d := p[i].Altitude - p[i-1].Altitude; d > 0 {
			gain += d
		}
	}
	return gain
}

// GeoPoint is a WGS84 coordinate of a waypoint, present when the path was
// read from a GPS track.
type GeoPoint struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}
