// -----------------------------------------------------------------------
// version-info - Main Entry Point
// -----------------------------------------------------------------------
//
// Package main implements the entry point of the build-time version
// stamper. It loads configuration, probes the host, OS and compiler, and
// writes a C preprocessor header describing the build environment:
//
//	version-info gcc intel64 "make tbb" > tbb_version.h
//
// -----------------------------------------------------------------------

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/afreidah/version-info/internal/app"
	"github.com/afreidah/version-info/internal/version"
)

func main() {
	cfg := app.MustLoadConfig()

	if cfg.ShowVersion {
		fmt.Println("version-info " + version.String())
		return
	}

	ctx, stop := app.SignalContext()
	err := app.Run(ctx, cfg, os.Stdout)
	stop()

	if err != nil {
		slog.Error("version-info failed", "err", err)
		os.Exit(app.ExitError)
	}
}
