// Command bikesim estimates how long a rider needs for a path of waypoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pathsim/bikesim/internal/activity"
	"github.com/pathsim/bikesim/internal/chart"
	"github.com/pathsim/bikesim/internal/config"
	"github.com/pathsim/bikesim/internal/dispatcher"
	"github.com/pathsim/bikesim/internal/logging"
	"github.com/pathsim/bikesim/internal/output"
	intOtel "github.com/pathsim/bikesim/internal/otel"
	"github.com/pathsim/bikesim/internal/parser"
	"github.com/pathsim/bikesim/internal/sim"
	"github.com/pathsim/bikesim/internal/storage"
	"github.com/pathsim/bikesim/pkg/core"
	"github.com/spf13/pflag"
)

// BuildDate can be set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

const (
	programName = "bikesim"

	// sinks are drained before EndRun, so a blocking queue only smooths bursts
	sinkBufferSize = 1024
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// session holds what one invocation sets up and tears down.
type session struct {
	start   time.Time
	level   string
	stderr  io.Writer
	logs    *logging.SlogManager
	logger  *slog.Logger
	logFile *os.File
	otel    *intOtel.Provider
	runCtx  *logging.RunContext
	closers []io.Closer
}

// run is main without the process exit, returning the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs, opts, err := parseArgs(args)
	if opts.Help {
		printUsage(stdout, fs)
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", programName, err)
		var unknown *core.UnrecognizedOptionError
		if errors.As(err, &unknown) || errors.Is(err, errTooFewArgs) {
			fmt.Fprintf(stderr, "Try '%s -h' for usage.\n", programName)
		}
		return 1
	}

	s, err := setup(fs, opts, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", programName, err)
		return 1
	}
	defer s.teardown()

	if err := simulate(s, opts, stdout); err != nil {
		s.logger.Error("Run failed", "error", err)
		fmt.Fprintf(stderr, "%s: %v\n", programName, err)
		return 1
	}
	return 0
}

// setup loads the configuration and wires logging and telemetry.
func setup(fs *pflag.FlagSet, opts cliOptions, stderr io.Writer) (_ *session, err error) {
	s := &session{start: time.Now(), stderr: stderr, runCtx: &logging.RunContext{}}
	defer func() {
		if err != nil {
			s.closeAll()
		}
	}()

	var cfgErr error
	if opts.ConfigFile != "" {
		if err := config.LoadFile(opts.ConfigFile); err != nil {
			return nil, err
		}
	} else {
		// a missing ./bikesim.cfg.json leaves the defaults
		cfgErr = config.Load(".")
	}
	if err := bindFlags(fs); err != nil {
		return nil, err
	}

	s.level = config.GetString("logLevel")
	if opts.Quiet {
		s.level = "error"
	}

	s.logs = logging.NewSlogManager(stderr)
	s.logs.UseContext(s.runCtx.Attrs)

	var fileOut io.Writer
	if dir := config.GetString("logsDir"); dir != "" {
		f, err := logging.OpenLogFile(dir, programName, s.start)
		if err != nil {
			return nil, err
		}
		s.logFile = f
		s.closers = append(s.closers, f)
		fileOut = f
	}

	if gc := config.GetGraylogConfig(); gc.Enabled {
		w, err := logging.DialGraylog(gc.Address)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, w)
		s.logs.UseGraylog(w)
	}

	oc := config.GetOTelConfig()
	provider, err := intOtel.New(intOtel.Config{
		Enabled:      oc.Enabled,
		ServiceName:  oc.ServiceName,
		BatchTimeout: oc.BatchTimeout,
		LogWriter:    fileOut,
		Endpoint:     oc.Endpoint,
		Insecure:     oc.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OTel: %w", err)
	}
	s.otel = provider

	s.logs.Setup(fileOut, s.level, provider.LoggerProvider())
	s.logger = s.logs.Logger()
	s.logger.Debug("Starting", "program", programName, "version", Version, "buildDate", BuildDate)

	if cfgErr != nil {
		s.logger.Warn("No config file, using defaults", "error", cfgErr)
	}
	return s, nil
}

func (s *session) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.otel != nil {
		if counters, err := s.otel.Counters(ctx); err == nil && len(counters) > 0 {
			s.logger.Debug("Sample counters", "counters", counters)
		}
	}
	if err := s.logs.Flush(ctx); err != nil {
		fmt.Fprintf(s.stderr, "%s: flushing logs: %v\n", programName, err)
	}
	if s.otel != nil {
		_ = s.otel.Shutdown(ctx)
	}
	s.closeAll()
}

func (s *session) closeAll() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i].Close()
	}
}

// simulate parses the path, runs the integrator and hands the samples to
// the printer and the recording backends.
func simulate(s *session, opts cliOptions, stdout io.Writer) error {
	interval, err := sampleInterval()
	if err != nil {
		return err
	}

	route, err := parser.NewParser(s.logger).ParseFile(opts.DataFile)
	if err != nil {
		return err
	}

	info := &core.RunInfo{
		Name:      runName(opts),
		Source:    route.Source,
		StartedAt: s.start,
		Rider:     core.RiderProfile{AveragePower: opts.Power, Mass: opts.Mass},
		TimeStep:  opts.Precision,
		Path:      route.Path,
		Track:     route.Track,
	}
	model := config.GetPhysicsModel()

	storageCfg := config.GetStorageConfig()
	if config.GetInfluxConfig().Enabled && !contains(storageCfg.Backends, storage.Influx) {
		storageCfg.Backends = append(storageCfg.Backends, storage.Influx)
	}
	for _, name := range storageCfg.Backends {
		if !storage.Known(name) {
			return fmt.Errorf("%w: %q", storage.ErrUnknownBackend, name)
		}
	}

	runOptions := map[string]any{
		"sampleInterval": interval,
		"physics":        model,
		"realTime":       opts.RealTime,
	}
	backends, err := openBackends(storageCfg, storageDeps{
		Logger:  s.logger,
		ZLog:    logging.NewZerolog(s.logOutput(), s.level, "storage"),
		Options: runOptions,
	})
	if err != nil {
		return err
	}
	defer closeBackends(backends, s.logger)

	for _, b := range backends {
		if err := b.StartRun(info); err != nil {
			return fmt.Errorf("storage backend %s: start run: %w", b.name, err)
		}
	}
	s.runCtx.Set(info.ID, info.Name)
	s.logger.Info("Run started",
		"source", info.Source,
		"waypoints", len(info.Path),
		"length", info.Path.Length(),
		"power", opts.Power,
		"mass", opts.Mass,
		"dt", opts.Precision,
	)

	d, err := dispatcher.New(logging.NewZerologAdapter(
		logging.NewZerolog(s.logOutput(), s.level, "dispatcher")))
	if err != nil {
		return err
	}

	printer := output.NewPrinter(stdout)
	if opts.Verbose {
		d.Register("stdout", func(sample core.Sample) error {
			return printer.PrintSample(sample)
		})
	}
	for _, b := range backends {
		d.Register(b.name, func(sample core.Sample) error {
			return b.RecordSample(&sample)
		}, dispatcher.Buffered(sinkBufferSize), dispatcher.Blocking(), dispatcher.Logged())
	}

	needSamples := d.Len() > 0 || opts.PlotDir != "" || opts.ActivityFile != ""
	integrator := sim.NewIntegrator(model, s.logger)
	result, err := integrator.Simulate(info.Path, info.Rider, opts.Precision, sim.Options{
		Verbose:        needSamples,
		RealTime:       opts.RealTime,
		SampleInterval: interval,
		Observer:       d,
	})
	d.Close()
	if err != nil {
		return err
	}
	if result.Aborted {
		s.logger.Warn("Velocity went negative, run aborted", "time", result.TotalElapsedTime, "position", result.Final.Position)
	}

	var errs []error
	if err := d.Err(); err != nil {
		errs = append(errs, fmt.Errorf("recording samples: %w", err))
	}
	for _, b := range backends {
		if err := b.EndRun(&result); err != nil {
			errs = append(errs, fmt.Errorf("storage backend %s: end run: %w", b.name, err))
			continue
		}
		if ex, ok := b.Backend.(storage.Exporter); ok && ex.ExportedFilePath() != "" {
			s.logger.Info("Run exported", "backend", b.name, "path", ex.ExportedFilePath())
		}
	}

	if opts.PlotDir != "" {
		files, err := chart.Write(opts.PlotDir, info.Path, result.Samples)
		if err != nil {
			errs = append(errs, fmt.Errorf("plot: %w", err))
		}
		for _, f := range files {
			s.logger.Info("Plot written", "path", f)
		}
	}
	if opts.ActivityFile != "" {
		if err := activity.WriteFile(opts.ActivityFile, *info, result); err != nil {
			errs = append(errs, fmt.Errorf("activity: %w", err))
		} else {
			s.logger.Info("Activity written", "path", opts.ActivityFile)
		}
	}

	if err := printer.PrintResult(result); err != nil {
		errs = append(errs, err)
	}
	s.logger.Info("Run finished",
		"elapsed", result.TotalElapsedTime,
		"aborted", result.Aborted,
		"steps", result.Steps,
	)
	return errors.Join(errs...)
}

// runName is --name or the data file name without extension.
func runName(opts cliOptions) string {
	if opts.Name != "" {
		return opts.Name
	}
	base := filepath.Base(opts.DataFile)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// logOutput is where the zerolog based components write.
func (s *session) logOutput() io.Writer {
	if s.logFile != nil {
		return s.logFile
	}
	return s.stderr
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
