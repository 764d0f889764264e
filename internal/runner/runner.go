// -----------------------------------------------------------------------------
// External Command Runner
// -----------------------------------------------------------------------------
//
// Package runner executes the external tools queried while stamping a build:
// the OS version command and compiler front ends. Stdout and stderr are
// captured separately because compilers such as cl and icl print their
// version banner on the diagnostic stream.
//
// A command that exits non-zero still returns whatever it printed. Callers
// decide whether partial output is good enough; for version banners it
// usually is (cl exits non-zero when given no sources but still prints).
//
// -----------------------------------------------------------------------------

package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

// Result holds the captured output of one command.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// Runner runs a command to completion and captures its output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// Exec runs commands as local processes.
type Exec struct {
	// Dir is the working directory; empty means the current directory.
	Dir string
	// Env, when non-nil, replaces the process environment.
	Env []string
}

// Run starts name with args and waits for it to exit or ctx to end.
func (e *Exec) Run(ctx context.Context, name string, args ...string) (Result, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.Dir
	cmd.Env = e.Env
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		return res, fmt.Errorf("%s: %w", name, err)
	}
	return res, nil
}

// -----------------------------------------------------------------------------
// Command Line Helpers
// -----------------------------------------------------------------------------

// Split parses a command line with shell word rules. "ccache gcc-13" yields
// ["ccache", "gcc-13"]; quoted paths keep their spaces.
func Split(line string) ([]string, error) {
	words, err := shellwords.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", line, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("parse command %q: empty command", line)
	}
	return words, nil
}

// Line returns the n-th line (1-based) of out with surrounding whitespace
// and carriage returns removed, or "" when out has fewer lines.
func Line(out []byte, n int) string {
	if n < 1 {
		return ""
	}
	lines := strings.Split(strings.ReplaceAll(string(out), "\r\n", "\n"), "\n")
	if n > len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[n-1])
}

// FirstLine returns the first line of out.
func FirstLine(out []byte) string {
	return Line(out, 1)
}
