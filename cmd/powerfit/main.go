// Command powerfit fits a polynomial to power/speed samples by least squares.
package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/pathsim/bikesim/internal/parser"
	"github.com/pathsim/bikesim/internal/physics"
	"github.com/pathsim/bikesim/internal/regression"
	"github.com/spf13/pflag"
)

const programName = "powerfit"

// maxModelSpeed bounds the synthetic samples of --from-model, in km/h.
const maxModelSpeed = 60

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	fromModel float64
	maxSpeed  int
	help      bool
	model     bool // --from-model was given
}

// wantsHelp reports whether args ask for help before any "--", so help wins
// over every other error.
func wantsHelp(args []string) bool {
	for _, a := range args {
		switch a {
		case "--":
			return false
		case "-h", "--help":
			return true
		}
	}
	return false
}

func newFlagSet(opts *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet(programName, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false
	fs.Float64Var(&opts.fromModel, "from-model", 0, "fit the resistance model of a rider of `MASS` kg instead of files")
	fs.IntVar(&opts.maxSpeed, "max-speed", maxModelSpeed, "highest model speed in `KMH`")
	fs.BoolVarP(&opts.help, "help", "h", false, "print this help message")
	return fs
}

func usage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: %s X_FILE Y_FILE TERMS\n", programName)
	fmt.Fprintf(w, "       %s --from-model MASS TERMS\n", programName)
	fmt.Fprint(w, `Fits y = c0 + c1*x + ... with TERMS coefficients to the samples read from
X_FILE and Y_FILE and prints the coefficients, lowest order first, and the sum
of squared residuals.

Options:
`)
	fmt.Fprint(w, fs.FlagUsages())
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := newFlagSet(&opts)
	if wantsHelp(args) {
		usage(stdout, fs)
		return 0
	}
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", programName, err)
		return 1
	}
	opts.model = fs.Changed("from-model")

	x, y, terms, err := samples(opts, fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", programName, err)
		fmt.Fprintf(stderr, "Try '%s -h' for usage.\n", programName)
		return 1
	}

	fit, err := regression.Polynomial(x, y, terms)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", programName, err)
		return 1
	}

	for i, c := range fit.Coefficients {
		fmt.Fprintf(stdout, "c%d = %.10g\n", i, c)
	}
	fmt.Fprintf(stdout, "squared error = %.10g\n", fit.SquaredError)
	return 0
}

// samples returns the points to fit and the term count.
func samples(opts options, pos []string) (x, y []float64, terms int, err error) {
	want := 3
	if opts.model {
		want = 1
		if !(opts.fromModel > 0) || math.IsInf(opts.fromModel, 0) {
			return nil, nil, 0, fmt.Errorf("invalid mass %g: must be greater than 0 kg", opts.fromModel)
		}
	}
	if len(pos) != want {
		return nil, nil, 0, fmt.Errorf("expected %d arguments, got %d", want, len(pos))
	}

	terms, err = strconv.Atoi(pos[want-1])
	if err != nil || terms < 1 {
		return nil, nil, 0, fmt.Errorf("invalid terms %q: must be a positive integer", pos[want-1])
	}

	if opts.model {
		if opts.maxSpeed < 1 {
			return nil, nil, 0, errors.New("max speed must be at least 1 km/h")
		}
		x, y = regression.ModelSamples(physics.DefaultModel(), opts.fromModel, opts.maxSpeed)
		return x, y, terms, nil
	}

	if x, err = readSeries(pos[0]); err != nil {
		return nil, nil, 0, err
	}
	if y, err = readSeries(pos[1]); err != nil {
		return nil, nil, 0, err
	}
	return x, y, terms, nil
}

func readSeries(name string) ([]float64, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	values, err := parser.ReadSeries(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return values, nil
}
