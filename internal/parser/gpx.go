package parser

import (
	"fmt"

	"github.com/pathsim/bikesim/pkg/core"
	"github.com/tkrajina/gpxgo/gpx"
)

// ParseGPX builds a route from the track points of a GPX document, falling
// back to its route points when it has no tracks. Position is the cumulative
// 3D distance; points that do not move the rider forward are dropped.
func (p *Parser) ParseGPX(data []byte, source string) (Route, error) {
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return Route{}, &core.InvalidPathError{Source: source, Reason: "unable to parse GPX", Err: err}
	}

	var (
		route    = Route{Source: source}
		previous *gpx.GPXPoint
		total    float64
		dropped  int
		index    int
	)

	processPoint := func(pt *gpx.GPXPoint) error {
		index++
		if !pt.Elevation.NotNull() {
			return &core.InvalidPathError{Source: source, Line: index, Reason: "point has no elevation"}
		}
		if previous != nil {
			d := previous.Distance3D(pt)
			if d <= 0 {
				dropped++
				return nil
			}
			total += d
		}
		route.Path = append(route.Path, core.Waypoint{Position: total, Altitude: pt.Elevation.Value()})
		route.Track = append(route.Track, core.GeoPoint{Longitude: pt.Longitude, Latitude: pt.Latitude})

		pCopy := *pt
		previous = &pCopy
		return nil
	}

	for _, track := range doc.Tracks {
		for _, segment := range track.Segments {
			for i := range segment.Points {
				if err := processPoint(&segment.Points[i]); err != nil {
					return Route{}, err
				}
			}
		}
	}

	if len(route.Path) == 0 {
		for _, rte := range doc.Routes {
			for i := range rte.Points {
				if err := processPoint(&rte.Points[i]); err != nil {
					return Route{}, err
				}
			}
		}
	}

	if err := route.Path.Validate(); err != nil {
		return Route{}, &core.InvalidPathError{Source: source, Reason: "GPX file does not contain a usable track", Err: err}
	}

	p.logger.Debug("Parsed GPX file",
		"source", source,
		"waypoints", len(route.Path),
		"dropped", dropped,
		"length", fmt.Sprintf("%.1f", route.Path.Length()))

	return route, nil
}
