// Package app provides the orchestration for the version-info tool.
//
// This package is responsible for coordinating the major components:
// structured logging initialization, configuration loading, probing the
// build environment, rendering the header and writing it to stdout or a
// file, and exporting probe metrics. It acts as the composition root,
// wiring the config, probe, stamp and metrics packages together.
//
// The tool runs once per build step. Probe failures degrade the header
// (empty values) but never fail the build; configuration and output errors
// do.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/afreidah/version-info/internal/config"
	"github.com/afreidah/version-info/internal/logging"
	"github.com/afreidah/version-info/internal/metrics"
	"github.com/afreidah/version-info/internal/probe"
	"github.com/afreidah/version-info/internal/runner"
	"github.com/afreidah/version-info/internal/stamp"
	"github.com/afreidah/version-info/internal/version"
	"github.com/spf13/pflag"
)

var loga = slog.Default().With("component", "app")

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// Configuration Setup
//
// This section handles logging initialization and configuration loading.
// Both happen before any external command runs.

// MustLoadConfig initializes logging, loads configuration from flags,
// environment and file, and validates it. On failure the error is logged
// and the process exits: status 2 for usage errors, 1 otherwise. --help
// exits 0.
func MustLoadConfig() *config.Config {
	logging.InitFromEnv(map[string]string{
		"service":    "version-info",
		"version":    version.Version,
		"commit":     version.Commit,
		"build_date": version.BuildTime,
	})
	loga = slog.Default().With("component", "app")

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		os.Exit(exitCode(err))
	}
	return cfg
}

// exitCode logs err and maps it to a process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, pflag.ErrHelp):
		return ExitOK
	case errors.Is(err, config.ErrUsage):
		loga.Error("invalid invocation", "err", err)
		return ExitUsage
	default:
		loga.Error("configuration error", "err", err)
		return ExitError
	}
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM, so a
// hung compiler is killed when the build is interrupted.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Run
//
// This section collects the facts, renders the header and writes it.

// Run probes the build environment with local processes and writes the
// header to stdout or cfg.Output.
func Run(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	r := &runner.Exec{Dir: cfg.WorkDir}
	return run(ctx, cfg, r, stdout, stampTime(os.Getenv, time.Now))
}

func run(ctx context.Context, cfg *config.Config, r runner.Runner, stdout io.Writer, at time.Time) error {
	start := time.Now()

	p := probe.New(r, probe.Options{
		HostEnv:         cfg.HostEnv,
		OSCommand:       cfg.OSCommand,
		OSLine:          cfg.OSLine,
		DefaultCompiler: cfg.DefaultCompiler,
		WorkDir:         cfg.WorkDir,
		Timeout:         cfg.Timeout,
	})

	facts, err := p.Collect(ctx, probe.Input{
		Compiler: cfg.Compiler,
		Target:   cfg.Target,
		Command:  cfg.BuildCommand,
	})
	if err != nil {
		return fmt.Errorf("collect build facts: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("interrupted while probing: %w", err)
	}

	s := stamp.New(cfg.Prefix, at)
	s.Fingerprint = cfg.Fingerprint
	s.Add(facts...)

	if err := writeOutput(cfg.Output, s, stdout); err != nil {
		return err
	}

	metrics.FactsEmitted.Set(float64(len(facts)))
	metrics.LastRun.Set(float64(time.Now().Unix()))
	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			loga.Warn("failed to write metrics", "path", cfg.MetricsFile, "err", err)
		}
	}

	loga.Info("version header generated",
		"facts", len(facts),
		"output", outputName(cfg.Output),
		"elapsed", time.Since(start).String(),
	)
	return nil
}

// stampTime honours SOURCE_DATE_EPOCH for reproducible builds and falls
// back to now.
func stampTime(getenv func(string) string, now func() time.Time) time.Time {
	if v := getenv("SOURCE_DATE_EPOCH"); v != "" {
		secs, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return time.Unix(secs, 0).UTC()
		}
		loga.Warn("ignoring invalid SOURCE_DATE_EPOCH", "value", v, "err", err)
	}
	return now().UTC()
}

// Output
//
// This section writes the rendered header. File output is atomic and skips
// the write when the content is unchanged, so make-style builds do not
// recompile everything that includes the header.

func writeOutput(path string, s *stamp.Stamp, stdout io.Writer) error {
	if path == "" {
		if err := s.Render(stdout); err != nil {
			return fmt.Errorf("write header to stdout: %w", err)
		}
		return nil
	}

	var buf bytes.Buffer
	if err := s.Render(&buf); err != nil {
		return fmt.Errorf("render header: %w", err)
	}

	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, buf.Bytes()) {
		loga.Debug("header unchanged, leaving file untouched", "path", path)
		return nil
	}

	return writeFileAtomic(path, buf.Bytes())
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".version-info-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op once renamed.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmpName, path, err)
	}
	return nil
}

func outputName(path string) string {
	if path == "" {
		return "stdout"
	}
	return path
}
