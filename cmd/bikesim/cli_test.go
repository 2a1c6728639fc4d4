package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/pathsim/bikesim/pkg/core"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs_Positionals(t *testing.T) {
	_, opts, err := parseArgs([]string{"path.csv", "200", "80", "0.01"})
	require.NoError(t, err)

	assert.Equal(t, "path.csv", opts.DataFile)
	assert.Equal(t, 200.0, opts.Power)
	assert.Equal(t, 80.0, opts.Mass)
	assert.Equal(t, 0.01, opts.Precision)
	assert.False(t, opts.Verbose)
	assert.False(t, opts.RealTime)
}

func TestParseArgs_FlagsAnywhere(t *testing.T) {
	_, opts, err := parseArgs([]string{"-v", "path.csv", "200", "--name", "climb", "80", "0.01", "--plot", "out"})
	require.NoError(t, err)

	assert.True(t, opts.Verbose)
	assert.Equal(t, "climb", opts.Name)
	assert.Equal(t, "out", opts.PlotDir)
	assert.Equal(t, 0.01, opts.Precision)
}

func TestParseArgs_RealTimeImpliesVerbose(t *testing.T) {
	_, opts, err := parseArgs([]string{"path.csv", "200", "80", "0.01", "-r"})
	require.NoError(t, err)
	assert.True(t, opts.RealTime)
	assert.True(t, opts.Verbose)
}

func TestParseArgs_Help(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"alone", []string{"-h"}},
		{"long", []string{"--help"}},
		{"grouped", []string{"-vh"}},
		{"before bad power", []string{"path.csv", "1", "80", "0.01", "-h"}},
		{"with unknown flag", []string{"--bogus", "-h"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, opts, err := parseArgs(tt.args)
			require.NoError(t, err)
			assert.True(t, opts.Help)
		})
	}
}

func TestWantsHelp_StopsAtDoubleDash(t *testing.T) {
	assert.False(t, wantsHelp([]string{"--", "-h"}))
	assert.False(t, wantsHelp([]string{"-c", "x.json"}))
	assert.True(t, wantsHelp([]string{"-rqh"}))
}

func TestParseArgs_UnknownFlag(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		option string
	}{
		{"long", []string{"path.csv", "200", "80", "0.01", "--bogus"}, "--bogus"},
		{"short", []string{"path.csv", "200", "80", "0.01", "-x"}, "-x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseArgs(tt.args)
			require.Error(t, err)

			var unknown *core.UnrecognizedOptionError
			require.True(t, errors.As(err, &unknown))
			assert.Equal(t, tt.option, unknown.Option)
		})
	}
}

func TestParseArgs_TooFewArgs(t *testing.T) {
	_, _, err := parseArgs([]string{"path.csv", "200", "80"})
	assert.ErrorIs(t, err, errTooFewArgs)
}

func TestParseArgs_ExtraArg(t *testing.T) {
	_, _, err := parseArgs([]string{"path.csv", "200", "80", "0.01", "more"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unexpected argument "more"`)
}

func TestParseArgs_InvalidParameters(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		param string
	}{
		{"power at floor", []string{"p.csv", "25", "80", "0.01"}, "power"},
		{"power not a number", []string{"p.csv", "fast", "80", "0.01"}, "power"},
		{"power NaN", []string{"p.csv", "NaN", "80", "0.01"}, "power"},
		{"mass too low", []string{"p.csv", "200", "30", "0.01"}, "mass"},
		{"mass infinite", []string{"p.csv", "200", "Inf", "0.01"}, "mass"},
		{"precision zero", []string{"p.csv", "200", "80", "0"}, "precision"},
		{"precision at floor", []string{"p.csv", "200", "80", "1e-6"}, "precision"},
		{"negative precision", []string{"p.csv", "200", "80", "-1"}, "precision"},
		{"negative power", []string{"p.csv", "-200", "80", "0.01"}, "power"},
		{"negative mass before flag", []string{"-v", "p.csv", "200", "-80.5", "0.01"}, "mass"},
		{"negative infinity", []string{"p.csv", "200", "80", "-Inf"}, "precision"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseArgs(tt.args)
			require.Error(t, err)

			var invalid *core.InvalidParameterError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, tt.param, invalid.Name)
		})
	}
}

func TestPositionalsLast(t *testing.T) {
	var opts cliOptions
	fs := newFlagSet(&opts)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			"negative numbers stay positional",
			[]string{"p.csv", "-5", "80", "-1"},
			[]string{"--", "p.csv", "-5", "80", "-1"},
		},
		{
			"flag values stay with their flag",
			[]string{"--sample-interval", "-3", "p.csv", "-c", "cfg.json", "--name=x", "200"},
			[]string{"--sample-interval", "-3", "-c", "cfg.json", "--name=x", "--", "p.csv", "200"},
		},
		{
			"grouped shorthand with value",
			[]string{"-vc", "cfg.json", "p.csv", "-rq"},
			[]string{"-vc", "cfg.json", "-rq", "--", "p.csv"},
		},
		{
			"attached shorthand value",
			[]string{"-ccfg.json", "p.csv"},
			[]string{"-ccfg.json", "--", "p.csv"},
		},
		{
			"double dash",
			[]string{"-v", "--", "-x", "p.csv"},
			[]string{"-v", "--", "-x", "p.csv"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, positionalsLast(fs, tt.args))
		})
	}
}

func TestSampleInterval(t *testing.T) {
	t.Cleanup(viper.Reset)

	for _, v := range []any{0, -3.0, "abc"} {
		viper.Set("sampleInterval", v)
		_, err := sampleInterval()

		var invalid *core.InvalidParameterError
		require.True(t, errors.As(err, &invalid), "value %v", v)
		assert.Equal(t, "sample interval", invalid.Name)
	}

	viper.Set("sampleInterval", 0.25)
	v, err := sampleInterval()
	require.NoError(t, err)
	assert.Equal(t, 0.25, v)
}

func TestParseParameter_AboveFloor(t *testing.T) {
	v, err := parseParameter("power", " 25.5 ", minPower, "W")
	require.NoError(t, err)
	assert.Equal(t, 25.5, v)
}

func TestPrintUsage(t *testing.T) {
	fs, _, _ := parseArgs([]string{"-h"})

	var buf bytes.Buffer
	printUsage(&buf, fs)

	out := buf.String()
	assert.Contains(t, out, "Usage: bikesim DATA_FILE POWER MASS PRECISION")
	assert.Contains(t, out, "--realtime")
	assert.Contains(t, out, "--activity")
	assert.Contains(t, out, "--backend")
}
