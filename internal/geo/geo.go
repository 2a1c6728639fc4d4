package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/pathsim/bikesim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Two planes are stored:
// the elevation profile, X = distance along the path and Y = altitude, both in metres,
// and the map track, projected from WGS84 (4326) to web mercator (3857).
// SQLite has no spatial awareness so geometry is stored as WKB either way.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ProfilePoint returns the (position, altitude) point of a waypoint.
func ProfilePoint(w core.Waypoint) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: w.Position, Y: w.Altitude},
		Type: geom.DimXY,
	})
}

// SamplePoint returns the (position, altitude) point of a sample.
func SamplePoint(s core.Sample) geom.Point {
	return ProfilePoint(core.Waypoint{Position: s.Position, Altitude: s.Altitude})
}

// ProfileLineString builds the elevation profile of a path.
func ProfileLineString(path core.Path) (geom.LineString, error) {
	if len(path) < core.MinWaypoints {
		return geom.LineString{}, fmt.Errorf("profile must have at least %d points, got %d", core.MinWaypoints, len(path))
	}

	flatCoords := make([]float64, 0, len(path)*2)
	for _, w := range path {
		flatCoords = append(flatCoords, w.Position, w.Altitude)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	return geom.NewLineString(seq), nil
}

// Coords3857From4326 creates a GPS point from a longitude and latitude
func Coords3857From4326(
	longitude float64,
	latitude float64,
) (
	point geom.Point,
	err error,
) {
	if math.IsNaN(longitude) || math.IsNaN(latitude) ||
		longitude < -180 || longitude > 180 || latitude < -90 || latitude > 90 {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	x, y := project(longitude, latitude)
	point = geom.NewPoint(
		geom.Coordinates{
			XY: geom.XY{X: x, Y: y},
		},
	)
	return point, nil
}

// TrackLineString projects a GPS track to web mercator.
func TrackLineString(track []core.GeoPoint) (geom.LineString, error) {
	if len(track) < 2 {
		return geom.LineString{}, fmt.Errorf("track must have at least 2 points, got %d", len(track))
	}

	flatCoords := make([]float64, 0, len(track)*2)
	for i, p := range track {
		pt, err := Coords3857From4326(p.Longitude, p.Latitude)
		if err != nil {
			return geom.LineString{}, fmt.Errorf("track point %d: %w", i, err)
		}
		xy, _ := pt.XY()
		flatCoords = append(flatCoords, xy.X, xy.Y)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	return geom.NewLineString(seq), nil
}

var toMercator = wgs84.EPSG().Transform(4326, 3857)

func project(longitude, latitude float64) (x, y float64) {
	x, y, _ = toMercator(longitude, latitude, 0)
	return x, y
}
