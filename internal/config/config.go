// -----------------------------------------------------------------------
// Configuration Management
// -----------------------------------------------------------------------
//
// Package config provides flexible configuration loading with multiple
// sources and clear precedence. Configuration is validated before any
// external command runs so a broken invocation fails the build step early
// instead of stamping a half-empty header.
//
// Precedence (highest to lowest): positional arguments, command-line
// flags, environment variables (VERSIONINFO_*), config file, default
// values.
//
// -----------------------------------------------------------------------

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
)

// ErrUsage marks errors caused by how the tool was invoked.
var ErrUsage = errors.New("usage error")

// EnvPrefix is the prefix of environment variables read as configuration.
const EnvPrefix = "VERSIONINFO_"

// maxPositional is the number of positional arguments:
// compiler, target and build command.
const maxPositional = 3

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// -----------------------------------------------------------------------
// Type Definitions
// -----------------------------------------------------------------------

// Config holds all application configuration values.
type Config struct {
	Compiler     string `koanf:"compiler"`
	Target       string `koanf:"target"`
	BuildCommand string `koanf:"build_command"`

	Prefix      string `koanf:"prefix"`
	Output      string `koanf:"output"`
	Fingerprint bool   `koanf:"fingerprint"`

	WorkDir         string        `koanf:"workdir"`
	HostEnv         string        `koanf:"host_env"`
	OSCommand       string        `koanf:"os_command"`
	OSLine          int           `koanf:"os_line"`
	DefaultCompiler string        `koanf:"default_compiler"`
	Timeout         time.Duration `koanf:"timeout"`

	MetricsFile string `koanf:"metrics_file"`
	ShowVersion bool   `koanf:"version"`
}

// PlatformDefaults are the defaults that differ between Windows and
// everything else.
type PlatformDefaults struct {
	HostEnv   string
	OSCommand string
	OSLine    int
}

// DefaultsFor returns the platform defaults for goos. "cmd /c ver" prints
// a blank line before the version, hence line 2.
func DefaultsFor(goos string) PlatformDefaults {
	if goos == "windows" {
		return PlatformDefaults{HostEnv: "COMPUTERNAME", OSCommand: "cmd /c ver", OSLine: 2}
	}
	return PlatformDefaults{HostEnv: "HOSTNAME", OSCommand: "uname -srvm", OSLine: 1}
}

// -----------------------------------------------------------------------
// Configuration Loading
// -----------------------------------------------------------------------

// Load reads configuration from multiple sources and returns a validated
// Config. args are the command-line arguments without the program name.
// Sources are loaded in reverse precedence order (lowest to highest
// priority). Returns a detailed error if any value is invalid.
func Load(args []string) (*Config, error) {
	k := koanf.New(".")
	def := DefaultsFor(runtime.GOOS)

	f := pflag.NewFlagSet("version-info", pflag.ContinueOnError)
	f.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: version-info [flags] <compiler> <target> <build-command>")
		f.PrintDefaults()
	}
	f.String("config", "", "path to YAML config file (optional)")
	f.String("prefix", "TBB", "macro prefix, emits __<prefix>_VERSION_STRINGS")
	f.String("output", "", "write the header to this file instead of stdout")
	f.Bool("fingerprint", false, "emit __<prefix>_VERSION_FINGERPRINT")
	f.String("workdir", ".", "directory for the scratch source file")
	f.String("host_env", def.HostEnv, "environment variable holding the host name")
	f.String("os_command", def.OSCommand, "command printing the OS version")
	f.Int("os_line", def.OSLine, "1-based line of os_command output to use")
	f.String("default_compiler", "cl", "compiler whose banner fills BUILD_CL")
	f.Duration("timeout", 60*time.Second, "timeout per external command (0 disables)")
	f.String("metrics_file", "", "write Prometheus textfile metrics here (optional)")
	f.Bool("version", false, "print version and exit")

	if err := f.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: error parsing command-line flags: %w", ErrUsage, err)
	}

	// Load config file if specified
	configPath, _ := f.GetString("config")
	if configPath != "" {
		expanded, err := homedir.Expand(configPath)
		if err != nil {
			return nil, fmt.Errorf("cannot expand config path %s: %w", configPath, err)
		}
		if _, err := os.Stat(expanded); err != nil {
			return nil, fmt.Errorf("config file not found: %s (error: %w)", expanded, err)
		}

		slog.Info("loading configuration from file", "path", expanded)
		if err := k.Load(file.Provider(expanded), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error parsing config file (%s): %w", expanded, err)
		}
	} else {
		slog.Debug("no config file specified, using defaults and environment")
	}

	// Load environment variables with VERSIONINFO_ prefix
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	// Load command-line flags (highest priority)
	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("error loading command-line flags: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling configuration: %w", err)
	}

	if cfg.ShowVersion {
		return cfg, nil
	}

	if err := cfg.applyPositional(f.Args()); err != nil {
		return nil, err
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Debug("configuration loaded successfully",
		"compiler", cfg.Compiler,
		"target", cfg.Target,
		"prefix", cfg.Prefix,
		"output", cfg.Output,
		"os_command", cfg.OSCommand,
		"timeout", cfg.Timeout.String(),
	)

	return cfg, nil
}

// applyPositional overrides compiler, target and build command with the
// positional arguments that were given.
func (c *Config) applyPositional(args []string) error {
	if len(args) > maxPositional {
		return fmt.Errorf(
			"%w: expected at most %d arguments, got %d\n"+
				"quote the build command: version-info gcc intel64 \"make -j8 tbb\"",
			ErrUsage, maxPositional, len(args))
	}

	fields := []*string{&c.Compiler, &c.Target, &c.BuildCommand}
	for i, arg := range args {
		*fields[i] = arg
	}
	return nil
}

// expandPaths resolves a leading ~ in every path setting.
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Output, &c.WorkDir, &c.MetricsFile} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("cannot expand path %s: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// -----------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------

// Validate checks that all configuration values are usable. Returns a
// descriptive error if any value is invalid to help users quickly identify
// and fix the build rule that calls this tool.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Compiler) == "" {
		return fmt.Errorf(
			"%w: compiler is required\n"+
				"use: version-info <compiler> <target> <build-command> or VERSIONINFO_COMPILER=gcc",
			ErrUsage)
	}

	if !identRE.MatchString(c.Prefix) {
		return fmt.Errorf(
			"invalid prefix %q: must be a C identifier\n"+
				"use: --prefix TBB or VERSIONINFO_PREFIX=TBB",
			c.Prefix)
	}

	if strings.TrimSpace(c.OSCommand) == "" {
		return fmt.Errorf(
			"os_command cannot be empty\n" +
				"use: --os_command \"cmd /c ver\" or --os_command \"uname -srvm\"")
	}

	if c.OSLine < 1 {
		return fmt.Errorf(
			"os_line must be at least 1, got %d\n"+
				"use: --os_line 2 or VERSIONINFO_OS_LINE=2",
			c.OSLine)
	}

	if strings.TrimSpace(c.DefaultCompiler) == "" {
		return fmt.Errorf(
			"default_compiler cannot be empty\n" +
				"use: --default_compiler cl")
	}

	if c.Timeout < 0 {
		return fmt.Errorf(
			"timeout cannot be negative, got %s\n"+
				"use: --timeout 60s (0 disables the limit)",
			c.Timeout)
	}

	if c.Timeout == 0 {
		slog.Warn("external commands run without a timeout")
	} else if c.Timeout > 10*time.Minute {
		slog.Warn("unusually long command timeout", "timeout", c.Timeout.String())
	}

	info, err := os.Stat(c.WorkDir)
	if err != nil {
		return fmt.Errorf("cannot access workdir (%s): %w", c.WorkDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("workdir is not a directory: %s", c.WorkDir)
	}

	return nil
}
