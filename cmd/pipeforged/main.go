package main

import (
	"log/slog"
	"os"

	"github.com/pipeforge/pipeforged/internal/buildinfo"
	"github.com/pipeforge/pipeforged/internal/cli"
	"github.com/pipeforge/pipeforged/internal/logx"
)

// Starts the pipeforge build engine CLI.
//
// Initializes logging, parses flags, and dispatches to the selected
// subcommand (run, inspect, or version).
func main() {
	slog.SetDefault(logger())

	slog.Debug("build", "version", buildinfo.VersionString())
	slog.Debug("pipeforged is running",
		"pid", os.Getpid(),
		"cwd", cwd(),
		"args", os.Args,
	)

	if err := cli.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// Creates a buffered logger seeded from build-time linker flags. It is
// reconfigured after flag parsing via cli.Execute.
func logger() *slog.Logger {
	handler := logx.NewHandler()
	handler.SetLevel(logLevel())
	return slog.New(handler.WithGroup(buildinfo.Name))
}

func logLevel() slog.Level {
	if buildinfo.IsDebug() {
		return slog.LevelDebug
	}
	if buildinfo.IsQuiet() {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

func cwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "(unknown)"
	}
	return cwd
}
