// -----------------------------------------------------------------------------
// Build Environment Probes
// -----------------------------------------------------------------------------
//
// This package collects the BUILD_* facts that end up in the version header.
// Each probe asks an external source (environment, OS version command,
// compiler front end) and turns its answer into a stamp.Fact.
//
// Compiler Branches:
//   The lowercase compiler argument selects exactly one branch:
//     - contains "gcc"   -> BUILD_GCC from "<compiler> --version"
//     - contains "clang" -> BUILD_CLANG from "<compiler> --version"
//     - anything else    -> MS/Intel path: compile an empty source file with
//                           cl (BUILD_CL) and, for icl, with the compiler
//                           itself (BUILD_COMPILER)
//   "gcc" is checked first, so a name containing both selects gcc.
//
// Failure Handling:
//   A probe never aborts the run. Failed or silent commands produce an empty
//   value, a warning log and a version_info_probe_failures_total increment.
//   Only failing to create the scratch source file is returned as an error.
//
// -----------------------------------------------------------------------------

package probe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/afreidah/version-info/internal/metrics"
	"github.com/afreidah/version-info/internal/runner"
	"github.com/afreidah/version-info/internal/stamp"
)

// -----------------------------------------------------------------------------
// Branch Constants
// -----------------------------------------------------------------------------

// Branch identifies which compiler probe path runs.
type Branch int

const (
	BranchMSIntel Branch = iota // cl / icl
	BranchGCC
	BranchClang
)

func (b Branch) String() string {
	switch b {
	case BranchGCC:
		return "gcc"
	case BranchClang:
		return "clang"
	default:
		return "ms_intel"
	}
}

// Classify picks the compiler branch by case-insensitive substring match.
func Classify(compiler string) Branch {
	lower := strings.ToLower(compiler)
	switch {
	case strings.Contains(lower, "gcc"):
		return BranchGCC
	case strings.Contains(lower, "clang"):
		return BranchClang
	default:
		return BranchMSIntel
	}
}

// IsIntel reports whether the MS path should also query the Intel compiler.
func IsIntel(compiler string) bool {
	return strings.Contains(strings.ToLower(compiler), "icl")
}

// -----------------------------------------------------------------------------
// Scratch Files
// -----------------------------------------------------------------------------

const (
	// SourceFile is compiled on the MS/Intel path to make the compiler print
	// its banner.
	SourceFile = "empty.cpp"

	sourceBody = "#define EMPTY 0\n"
)

// artifacts are removed after the MS/Intel path runs.
var artifacts = []string{SourceFile, "empty.obj", "empty.o"}

// -----------------------------------------------------------------------------
// Type Definitions
// -----------------------------------------------------------------------------

// Options configures the probes.
type Options struct {
	// HostEnv is the environment variable holding the host name.
	HostEnv string
	// OSCommand queries the OS version, e.g. "cmd /c ver".
	OSCommand string
	// OSLine is the 1-based line of OSCommand output used as BUILD_OS.
	OSLine int
	// DefaultCompiler prints the BUILD_CL banner on the MS/Intel path.
	DefaultCompiler string
	// WorkDir receives the scratch source file. The runner must use the
	// same directory.
	WorkDir string
	// Timeout bounds each external command; zero means no limit.
	Timeout time.Duration
}

// Input is the positional input of one run.
type Input struct {
	Compiler string
	Target   string
	Command  string
}

// Prober runs the probes against a Runner.
type Prober struct {
	run    runner.Runner
	opts   Options
	logger *slog.Logger

	lookupEnv func(string) (string, bool)
	hostname  func() (string, error)
}

// New returns a Prober using r for external commands.
func New(r runner.Runner, opts Options) *Prober {
	if opts.DefaultCompiler == "" {
		opts.DefaultCompiler = "cl"
	}
	if opts.OSLine < 1 {
		opts.OSLine = 1
	}
	return &Prober{
		run:       r,
		opts:      opts,
		logger:    slog.Default().With("component", "probe"),
		lookupEnv: os.LookupEnv,
		hostname:  os.Hostname,
	}
}

// -----------------------------------------------------------------------------
// Collection
// -----------------------------------------------------------------------------

// Collect runs every probe in output order: host, OS, compiler facts, target
// and command.
func (p *Prober) Collect(ctx context.Context, in Input) ([]stamp.Fact, error) {
	facts := []stamp.Fact{p.Host(), p.OS(ctx)}

	compilerFacts, err := p.Compiler(ctx, in.Compiler)
	if err != nil {
		return nil, err
	}
	facts = append(facts, compilerFacts...)

	facts = append(facts,
		stamp.Fact{Key: stamp.KeyTarget, Value: in.Target},
		stamp.Fact{Key: stamp.KeyCommand, Value: in.Command},
	)
	return facts, nil
}

// Host resolves the build host name from the environment, falling back to
// the kernel host name.
func (p *Prober) Host() stamp.Fact {
	start := time.Now()
	defer observe("host", start)

	fact := stamp.Fact{Key: stamp.KeyHost}
	if p.opts.HostEnv != "" {
		if v, ok := p.lookupEnv(p.opts.HostEnv); ok && v != "" {
			fact.Value = v
			return fact
		}
	}

	name, err := p.hostname()
	if err != nil || name == "" {
		p.fail("host", metrics.ReasonEmpty, err)
		return fact
	}
	fact.Value = name
	return fact
}

// OS runs the OS version command and returns the configured line.
func (p *Prober) OS(ctx context.Context) stamp.Fact {
	start := time.Now()
	defer observe("os", start)

	fact := stamp.Fact{Key: stamp.KeyOS}
	res, ok := p.exec(ctx, "os", p.opts.OSCommand)
	fact.Value = runner.Line(res.Stdout, p.opts.OSLine)
	if fact.Value == "" && ok {
		p.fail("os", metrics.ReasonEmpty, nil)
	}
	return fact
}

// Compiler returns the compiler facts for the branch selected by compiler.
func (p *Prober) Compiler(ctx context.Context, compiler string) ([]stamp.Fact, error) {
	branch := Classify(compiler)
	p.logger.Debug("compiler branch selected", "compiler", compiler, "branch", branch.String())

	switch branch {
	case BranchGCC:
		return []stamp.Fact{p.banner(ctx, "gcc", stamp.KeyGCC, compiler)}, nil
	case BranchClang:
		return []stamp.Fact{p.banner(ctx, "clang", stamp.KeyClang, compiler)}, nil
	default:
		return p.msIntel(ctx, compiler)
	}
}

// banner runs "<compiler> --version" and keeps the first stdout line.
func (p *Prober) banner(ctx context.Context, probe, key, compiler string) stamp.Fact {
	start := time.Now()
	defer observe(probe, start)

	fact := stamp.Fact{Key: key}
	res, ok := p.exec(ctx, probe, compiler, "--version")
	fact.Value = runner.FirstLine(res.Stdout)
	if fact.Value == "" && ok {
		p.fail(probe, metrics.ReasonEmpty, nil)
	}
	return fact
}

// msIntel compiles an empty source file so cl (and icl) print their banner
// on stderr, then removes the source and object files.
func (p *Prober) msIntel(ctx context.Context, compiler string) ([]stamp.Fact, error) {
	src := filepath.Join(p.opts.WorkDir, SourceFile)
	if err := os.WriteFile(src, []byte(sourceBody), 0o644); err != nil {
		return nil, fmt.Errorf("write scratch source %s: %w", src, err)
	}
	defer p.cleanup()

	cl := p.compileBanner(ctx, "cl", p.opts.DefaultCompiler)
	facts := []stamp.Fact{{Key: stamp.KeyCL, Value: cl}}

	if IsIntel(compiler) {
		facts = append(facts, stamp.Fact{
			Key:   stamp.KeyCompiler,
			Value: p.compileBanner(ctx, "compiler", compiler),
		})
	} else {
		// Matches the historical layout: the copied cl banner keeps two tabs.
		facts = append(facts, stamp.Fact{Key: stamp.KeyCompiler, Value: cl, Sep: stamp.SepLong})
	}
	return facts, nil
}

// compileBanner runs "<compiler> -c empty.cpp" and keeps the first stderr line.
func (p *Prober) compileBanner(ctx context.Context, probe, compiler string) string {
	start := time.Now()
	defer observe(probe, start)

	res, ok := p.exec(ctx, probe, compiler, "-c", SourceFile)
	v := runner.FirstLine(res.Stderr)
	if v == "" && ok {
		p.fail(probe, metrics.ReasonEmpty, nil)
	}
	return v
}

func (p *Prober) cleanup() {
	for _, name := range artifacts {
		path := filepath.Join(p.opts.WorkDir, name)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("failed to remove scratch file", "path", path, "err", err)
		}
	}
}

// -----------------------------------------------------------------------------
// Command Execution
// -----------------------------------------------------------------------------

// exec splits line, appends extra and runs it under the configured timeout.
// The result is returned even when the command fails.
func (p *Prober) exec(ctx context.Context, probe, line string, extra ...string) (runner.Result, bool) {
	words, err := commandWords(line)
	if err != nil {
		p.fail(probe, metrics.ReasonSplit, err)
		return runner.Result{}, false
	}

	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	args := append(words[1:], extra...)
	p.logger.Debug("running probe command", "probe", probe, "name", words[0], "args", args)

	res, err := p.run.Run(ctx, words[0], args...)
	if err != nil {
		p.fail(probe, metrics.ReasonExec, err)
		return res, false
	}
	return res, true
}

// commandWords splits a command line. Lines without quotes or whitespace are
// taken verbatim so Windows paths keep their backslashes.
func commandWords(line string) ([]string, error) {
	line = strings.TrimSpace(line)
	if line != "" && !strings.ContainsAny(line, " \t\"'") {
		return []string{line}, nil
	}
	return runner.Split(line)
}

func (p *Prober) fail(probe, reason string, err error) {
	metrics.ProbeFailures.WithLabelValues(probe, reason).Inc()
	if err != nil {
		p.logger.Warn("probe failed", "probe", probe, "reason", reason, "err", err)
		return
	}
	p.logger.Warn("probe failed", "probe", probe, "reason", reason)
}

func observe(probe string, start time.Time) {
	metrics.ProbeDuration.WithLabelValues(probe).Observe(time.Since(start).Seconds())
}
