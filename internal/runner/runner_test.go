// -----------------------------------------------------------------------------
// External Command Runner - Tests
// -----------------------------------------------------------------------------
//
// Test Coverage:
//   - Line extraction (CRLF, out of range, blank leading line)
//   - Shell word splitting
//   - Exec capturing stdout/stderr and surfacing exit errors
//
// The Exec tests shell out to /bin/sh and are skipped on Windows.
//
// -----------------------------------------------------------------------------

package runner

import (
	"context"
	"runtime"
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// Line Extraction Tests
// -----------------------------------------------------------------------------

func TestLine(t *testing.T) {
	// "cmd /c ver" prints an empty line before the version.
	ver := []byte("\r\nMicrosoft Windows [Version 10.0.19045.3693]\r\n")

	tests := []struct {
		name string
		out  []byte
		n    int
		want string
	}{
		{"ver first line is blank", ver, 1, ""},
		{"ver second line", ver, 2, "Microsoft Windows [Version 10.0.19045.3693]"},
		{"past end", ver, 5, ""},
		{"zero", ver, 0, ""},
		{"unix newline", []byte("gcc (GCC) 13.2.1\nCopyright\n"), 1, "gcc (GCC) 13.2.1"},
		{"no trailing newline", []byte("Linux 6.1.0"), 1, "Linux 6.1.0"},
		{"nil", nil, 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Line(tt.out, tt.n); got != tt.want {
				t.Errorf("Line(%q, %d) = %q, want %q", tt.out, tt.n, got, tt.want)
			}
		})
	}
}

func TestFirstLine(t *testing.T) {
	banner := "Intel(R) C++ Compiler for applications running on Intel(R) 64\r\nCopyright (C) 1985-2014\r\n"
	if got := FirstLine([]byte(banner)); got != "Intel(R) C++ Compiler for applications running on Intel(R) 64" {
		t.Errorf("FirstLine() = %q", got)
	}
}

// -----------------------------------------------------------------------------
// Split Tests
// -----------------------------------------------------------------------------

func TestSplit(t *testing.T) {
	tests := []struct {
		line      string
		want      []string
		shouldErr bool
	}{
		{"gcc", []string{"gcc"}, false},
		{"ccache gcc-13", []string{"ccache", "gcc-13"}, false},
		{`"C:/Program Files/LLVM/bin/clang.exe" -m64`, []string{"C:/Program Files/LLVM/bin/clang.exe", "-m64"}, false},
		{"", nil, true},
		{"   ", nil, true},
		{`gcc "unterminated`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Split(tt.line)
			if tt.shouldErr {
				if err == nil {
					t.Errorf("expected error for %q, got %v", tt.line, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Split(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Exec Tests
// -----------------------------------------------------------------------------

func TestExecCapturesStreams(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}

	r := &Exec{Dir: t.TempDir()}
	res, err := r.Run(context.Background(), "sh", "-c", "echo out; echo err 1>&2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if FirstLine(res.Stdout) != "out" {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if FirstLine(res.Stderr) != "err" {
		t.Errorf("stderr = %q", res.Stderr)
	}
}

// TestExecNonZeroKeepsOutput verifies output survives a failing exit status.
func TestExecNonZeroKeepsOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}

	r := &Exec{}
	res, err := r.Run(context.Background(), "sh", "-c", "echo banner 1>&2; exit 2")
	if err == nil {
		t.Fatal("expected error for exit status 2")
	}
	if FirstLine(res.Stderr) != "banner" {
		t.Errorf("stderr = %q, want banner", res.Stderr)
	}
}

func TestExecMissingBinary(t *testing.T) {
	r := &Exec{}
	_, err := r.Run(context.Background(), "definitely-not-a-real-compiler-xyz")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if !strings.Contains(err.Error(), "definitely-not-a-real-compiler-xyz") {
		t.Errorf("error should name the command: %v", err)
	}
}
