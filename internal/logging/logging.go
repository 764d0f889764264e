// -----------------------------------------------------------------------------
// Structured Logging Setup
// -----------------------------------------------------------------------------
//
// This package initializes the structured logger (slog) for the tool. Logs
// always go to stderr: stdout carries the generated header and is usually
// redirected into a source file by the build system.
//
// Formats:
//   json    - default, one JSON object per line
//   text    - key=value lines for interactive use
//   journal - native systemd journal fields, for build agents running as
//             systemd units (falls back to json when journald is absent)
//
// Usage:
//   logger := logging.InitFromEnv(map[string]string{"version": version.Version})
//   logger.Info("header written", "path", out)
//
// -----------------------------------------------------------------------------

package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type Options struct {
	Level     slog.Level
	Format    string            // "json" (default) | "text" | "journal"
	Tags      map[string]string // static tags (service=...,version=...)
	AddSource bool              // include file:line
	Writer    io.Writer         // defaults to os.Stderr
}

// Init builds and installs a default slog.Logger with static tags.
func Init(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: opts.Level, AddSource: opts.AddSource}

	var h slog.Handler
	switch strings.ToLower(opts.Format) {
	case "text":
		h = slog.NewTextHandler(w, hopts)
	case "journal":
		if jh, ok := NewJournalHandler(opts.Level); ok {
			h = jh
		} else {
			h = slog.NewJSONHandler(w, hopts)
		}
	default:
		h = slog.NewJSONHandler(w, hopts)
	}

	attrs := make([]any, 0, len(opts.Tags)*2)
	for k, v := range opts.Tags {
		attrs = append(attrs, k, v)
	}

	logger := slog.New(h).With(attrs...)
	slog.SetDefault(logger)
	return logger
}

// InitFromEnv convenience:
//
//	LOG_LEVEL:  debug|info|warn|error   (default: warn)
//	LOG_FORMAT: json|text|journal       (default: json)
//	LOG_TAGS:   "k=v,k2=v2"             (applied to every log)
//	LOG_SOURCE: true|1                  (include file:line)
//
// The default level is warn so a healthy build step stays quiet.
func InitFromEnv(extraTags map[string]string) *slog.Logger {
	return Init(optionsFromEnv(os.Getenv, extraTags))
}

func optionsFromEnv(getenv func(string) string, extraTags map[string]string) Options {
	lvl := slog.LevelWarn
	switch strings.ToLower(getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	}
	addSource := strings.EqualFold(getenv("LOG_SOURCE"), "1") || strings.EqualFold(getenv("LOG_SOURCE"), "true")

	tags := parseTags(getenv("LOG_TAGS"))
	for k, v := range extraTags {
		tags[k] = v
	}

	return Options{
		Level:     lvl,
		Format:    getenv("LOG_FORMAT"),
		Tags:      tags,
		AddSource: addSource,
	}
}

func parseTags(s string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.TrimSpace(kv[0])
		v := strings.TrimSpace(kv[1])
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}
