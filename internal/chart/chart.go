// Package chart renders the route profile and the speed of a run as PNG images.
package chart

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pathsim/bikesim/pkg/core"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// File names written by Write.
const (
	ElevationFile = "elevation.png"
	SpeedFile     = "speed.png"
)

// image size in inches and resolution
const (
	widthIn  = 8.0
	heightIn = 4.5
	dpi      = 96
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("no data to plot")

// Write renders elevation.png from path and, when samples exist,
// speed.png from samples into dir. It returns the files written.
func Write(dir string, path core.Path, samples []core.Sample) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create directory: %w", err)
	}

	var written []string

	p, err := Elevation(path, samples)
	if err != nil {
		return nil, err
	}
	name := filepath.Join(dir, ElevationFile)
	if err := savePNG(p, name); err != nil {
		return nil, err
	}
	written = append(written, name)

	if len(samples) == 0 {
		return written, nil
	}

	p, err = Speed(samples)
	if err != nil {
		return written, err
	}
	name = filepath.Join(dir, SpeedFile)
	if err := savePNG(p, name); err != nil {
		return written, err
	}
	return append(written, name), nil
}

// Elevation plots altitude over distance for the waypoints, with the
// sampled positions as points on top.
func Elevation(path core.Path, samples []core.Sample) (*plot.Plot, error) {
	if len(path) == 0 {
		return nil, ErrNoData
	}

	p := plot.New()
	p.Title.Text = "Elevation profile"
	p.X.Label.Text = "distance (m)"
	p.Y.Label.Text = "altitude (m)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(path))
	for i, w := range path {
		pts[i].X = w.Position
		pts[i].Y = w.Altitude
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.LineStyle.Width = vg.Points(2)
	p.Add(line)

	if len(samples) > 0 {
		rider := make(plotter.XYs, len(samples))
		for i, s := range samples {
			rider[i].X = s.Position
			rider[i].Y = s.Altitude
		}
		scatter, err := plotter.NewScatter(rider)
		if err != nil {
			return nil, err
		}
		scatter.GlyphStyle.Radius = vg.Points(1.5)
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(scatter)
	}
	return p, nil
}

// Speed plots speed in km/h over time.
func Speed(samples []core.Sample) (*plot.Plot, error) {
	if len(samples) == 0 {
		return nil, ErrNoData
	}

	p := plot.New()
	p.Title.Text = "Speed"
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "speed (km/h)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		pts[i].X = s.Time
		pts[i].Y = s.SpeedKmh()
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.LineStyle.Width = vg.Points(2)
	p.Add(line)
	return p, nil
}

func savePNG(p *plot.Plot, filename string) error {
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(dpi),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return f.Close()
}
