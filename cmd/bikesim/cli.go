package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pathsim/bikesim/internal/config"
	"github.com/pathsim/bikesim/pkg/core"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Lower bounds of the positional parameters.
const (
	minPower     = 25.0 // W
	minMass      = 30.0 // kg
	minPrecision = 1e-6 // s
)

var errTooFewArgs = errors.New("too few arguments")

// cliOptions is the parsed command line.
type cliOptions struct {
	DataFile  string
	Power     float64
	Mass      float64
	Precision float64

	Verbose  bool
	RealTime bool
	Quiet    bool
	Help     bool

	ConfigFile   string
	Name         string
	PlotDir      string
	ActivityFile string
}

func newFlagSet(opts *cliOptions) *pflag.FlagSet {
	fs := pflag.NewFlagSet(programName, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false

	fs.BoolVarP(&opts.Verbose, "verbose", "v", false, "print samples during the simulation")
	fs.BoolVarP(&opts.RealTime, "realtime", "r", false, "pace the simulation in real time (implies -v)")
	fs.BoolVarP(&opts.Help, "help", "h", false, "print this help message")
	fs.BoolVarP(&opts.Quiet, "quiet", "q", false, "only log errors")
	fs.StringVarP(&opts.ConfigFile, "config", "c", "", "read configuration from `FILE` instead of ./"+config.FileName)
	fs.StringVar(&opts.Name, "name", "", "run name used by the recording backends (default: data file name)")
	fs.StringVar(&opts.PlotDir, "plot", "", "write elevation.png and speed.png into `DIR`")
	fs.StringVar(&opts.ActivityFile, "activity", "", "write the ride as a FIT activity to `FILE`")

	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.Float64("sample-interval", 1.0, "simulated `SECONDS` between printed samples")
	fs.StringSlice("backend", nil, "recording backends: memory, sqlite, postgres, websocket, influx")
	return fs
}

// bindFlags lets explicitly set flags override the config file.
func bindFlags(fs *pflag.FlagSet) error {
	for key, flag := range map[string]string{
		"logLevel":         "log-level",
		"sampleInterval":   "sample-interval",
		"storage.backends": "backend",
	} {
		if err := viper.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// wantsHelp reports whether args ask for help anywhere before "--". A help
// request wins over every other check, including unknown flags.
func wantsHelp(args []string) bool {
	for _, a := range args {
		switch {
		case a == "--":
			return false
		case a == "--help":
			return true
		case len(a) > 1 && a[0] == '-' && a[1] != '-':
			group := a[1:]
			if strings.Trim(group, "vrqh") == "" && strings.ContainsRune(group, 'h') {
				return true
			}
		}
	}
	return false
}

// unrecognized converts pflag's unknown flag errors.
func unrecognized(err error) error {
	msg := err.Error()
	if name, ok := strings.CutPrefix(msg, "unknown flag: "); ok {
		return &core.UnrecognizedOptionError{Option: name, Err: err}
	}
	if rest, ok := strings.CutPrefix(msg, "unknown shorthand flag: "); ok {
		if c, err2 := strconv.Unquote(strings.SplitN(rest, " ", 2)[0]); err2 == nil {
			return &core.UnrecognizedOptionError{Option: "-" + c, Err: err}
		}
		return &core.UnrecognizedOptionError{Err: err}
	}
	return nil
}

// parseArgs parses flags and the four positional parameters. With -h the
// returned options have Help set and nothing else is validated.
func parseArgs(args []string) (*pflag.FlagSet, cliOptions, error) {
	var opts cliOptions
	fs := newFlagSet(&opts)

	if wantsHelp(args) {
		opts.Help = true
		return fs, opts, nil
	}

	if err := fs.Parse(positionalsLast(fs, args)); err != nil {
		if u := unrecognized(err); u != nil {
			return fs, opts, u
		}
		return fs, opts, err
	}
	if opts.RealTime {
		opts.Verbose = true
	}

	pos := fs.Args()
	if len(pos) < 4 {
		return fs, opts, errTooFewArgs
	}
	if len(pos) > 4 {
		return fs, opts, fmt.Errorf("unexpected argument %q", pos[4])
	}
	opts.DataFile = pos[0]

	var err error
	if opts.Power, err = parseParameter("power", pos[1], minPower, "W"); err != nil {
		return fs, opts, err
	}
	if opts.Mass, err = parseParameter("mass", pos[2], minMass, "kg"); err != nil {
		return fs, opts, err
	}
	if opts.Precision, err = parseParameter("precision", pos[3], minPrecision, "s"); err != nil {
		return fs, opts, err
	}
	return fs, opts, nil
}

// positionalsLast moves every positional argument behind a "--", keeping
// their order, so numbers such as "-1" reach range validation instead of
// being taken for shorthand flags.
func positionalsLast(fs *pflag.FlagSet, args []string) []string {
	var flags, positionals []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--":
			positionals = append(positionals, args[i+1:]...)
			i = len(args)
		case len(a) < 2 || a[0] != '-' || isNumber(a):
			positionals = append(positionals, a)
		case strings.HasPrefix(a, "--"):
			flags = append(flags, a)
			name, _, hasValue := strings.Cut(a[2:], "=")
			if f := fs.Lookup(name); f != nil && f.NoOptDefVal == "" && !hasValue && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		default:
			flags = append(flags, a)
			for j := 1; j < len(a); j++ {
				f := fs.ShorthandLookup(a[j : j+1])
				if f == nil || f.NoOptDefVal != "" {
					continue
				}
				// the rest of the group, or else the next argument, is the value
				if j == len(a)-1 && i+1 < len(args) {
					i++
					flags = append(flags, args[i])
				}
				break
			}
		}
	}
	return append(append(flags, "--"), positionals...)
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// sampleInterval returns the configured seconds between samples, which
// must be positive.
func sampleInterval() (float64, error) {
	raw := config.GetString("sampleInterval")
	v := config.GetFloat64("sampleInterval")
	if !(v > 0) || math.IsInf(v, 0) {
		return 0, &core.InvalidParameterError{
			Name:  "sample interval",
			Value: raw,
			Rule:  "must be greater than 0 s",
		}
	}
	return v, nil
}

// parseParameter parses a positional number that must exceed floor.
func parseParameter(name, value string, floor float64, unit string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, &core.InvalidParameterError{Name: name, Value: value, Rule: "not a number", Err: err}
	}
	if !(v > floor) || math.IsInf(v, 0) {
		return 0, &core.InvalidParameterError{
			Name:  name,
			Value: value,
			Rule:  fmt.Sprintf("must be greater than %g %s", floor, unit),
		}
	}
	return v, nil
}

func printUsage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: %s DATA_FILE POWER MASS PRECISION [OPTION]...\n", programName)
	fmt.Fprint(w, `Reads (position, altitude) pairs from DATA_FILE, one "position,altitude"
line per waypoint or a .gpx track, and estimates the time in seconds a rider
of total MASS kg pedaling POWER watts on average needs to ride the path,
simulating in steps of PRECISION seconds.

Arguments:
  POWER       average pedaling power in watts, more than 25
  MASS        rider and bicycle mass in kg, more than 30
  PRECISION   simulated seconds per step, more than 1e-6

Options:
`)
	fmt.Fprint(w, fs.FlagUsages())
}
