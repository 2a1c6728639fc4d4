package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pathsim/bikesim/pkg/core"
)

// ErrNotFinite is returned for NaN and infinite numbers.
var ErrNotFinite = errors.New("number is not finite")

// parseFloat parses a trimmed decimal and rejects NaN and infinities,
// which would poison the integration.
func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("parseFloat: %q: %w", s, ErrNotFinite)
	}
	return f, nil
}

// Route is a parsed path plus where it came from.
type Route struct {
	Source string
	Path   core.Path
	Track  []core.GeoPoint // nil unless read from a GPS track
}

// Parser turns waypoint files into validated routes.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Parser{logger: logger}
}

// ParseFile reads name as GPX when it has a .gpx extension and as
// "position,altitude" lines otherwise.
func (p *Parser) ParseFile(name string) (Route, error) {
	if strings.EqualFold(filepath.Ext(name), ".gpx") {
		data, err := os.ReadFile(name)
		if err != nil {
			return Route{}, &core.InvalidPathError{Source: name, Reason: "unable to open file", Err: err}
		}
		return p.ParseGPX(data, name)
	}

	f, err := os.Open(name)
	if err != nil {
		return Route{}, &core.InvalidPathError{Source: name, Reason: "unable to open file", Err: err}
	}
	defer f.Close()

	return p.ParseCSV(f, name)
}

// ParseCSV reads one "position,altitude" pair per line. Blank lines and
// lines starting with '#' are skipped.
func (p *Parser) ParseCSV(r io.Reader, source string) (Route, error) {
	var path core.Path
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		w, err := ParseWaypoint(line)
		if err != nil {
			return Route{}, &core.InvalidPathError{Source: source, Line: lineNo, Err: err}
		}
		if n := len(path); n > 0 && w.Position <= path[n-1].Position {
			return Route{}, &core.InvalidPathError{
				Source: source,
				Line:   lineNo,
				Reason: fmt.Sprintf("path cannot go backwards, position %g after %g", w.Position, path[n-1].Position),
			}
		}
		path = append(path, w)
	}
	if err := scanner.Err(); err != nil {
		return Route{}, &core.InvalidPathError{Source: source, Reason: "read failed", Err: err}
	}

	if err := path.Validate(); err != nil {
		var pathErr *core.InvalidPathError
		if errors.As(err, &pathErr) {
			pathErr.Source = source
		}
		return Route{}, err
	}

	p.logger.Debug("Parsed waypoint file",
		"source", source,
		"waypoints", len(path),
		"length", path.Length(),
		"climb", path.Climb())

	return Route{Source: source, Path: path}, nil
}

// ParseWaypoint parses a single "position,altitude" pair.
func ParseWaypoint(line string) (core.Waypoint, error) {
	pos, alt, ok := strings.Cut(line, ",")
	if !ok {
		return core.Waypoint{}, fmt.Errorf("expected \"position,altitude\", got %q", line)
	}
	position, err := parseFloat(pos)
	if err != nil {
		return core.Waypoint{}, fmt.Errorf("error parsing position: %w", err)
	}
	altitude, err := parseFloat(alt)
	if err != nil {
		return core.Waypoint{}, fmt.Errorf("error parsing altitude: %w", err)
	}
	return core.Waypoint{Position: position, Altitude: altitude}, nil
}
