package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/pipeforge/pipeforged/internal/buildinfo"
	"github.com/pipeforge/pipeforged/internal/logx"
)

// RootCmd is the daemon's top-level command set.
var RootCmd struct {
	Quiet   bool   `short:"q" help:"Suppress informational output."`
	Verbose bool   `short:"v" help:"Enable verbose output."`
	Debug   bool   `short:"d" help:"Enable debug output."`
	Config  string `short:"c" help:"Path to a YAML config file." placeholder:"PATH"`

	Run     RunCmd     `cmd:"" help:"Execute a pipeline manifest."`
	Inspect InspectCmd `cmd:"" help:"Resolve a manifest's identifiers without executing it."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// Execute parses arguments, configures logging, and runs the selected
// subcommand until completion or until a termination signal arrives.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(buildinfo.Name),
		kong.Description("The pipeforge build engine.\n\nCompiles and executes declarative pipeline manifests against a content-addressed object store."),
		kong.UsageOnError(),
		kong.Vars{"version": buildinfo.VersionString()},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	configureLogger()

	return kongCtx.Run()
}

func configureLogger() {
	handler, ok := slog.Default().Handler().(*logx.Handler)
	if !ok {
		return
	}

	debug := RootCmd.Debug || buildinfo.IsDebug()
	quiet := RootCmd.Quiet || buildinfo.IsQuiet()
	verbose := RootCmd.Verbose || buildinfo.IsVerbose()

	formatter := logx.NewPrettyFormatter(isatty(os.Stderr))
	formatter.SetVerbose(verbose)

	switch {
	case debug:
		handler.SetLevel(slog.LevelDebug)
	case quiet:
		handler.SetLevel(slog.LevelWarn)
	default:
		handler.SetLevel(slog.LevelInfo)
	}

	handler.SetFormatter(formatter)
	handler.SetStream(os.Stderr)
	handler.Flush()
}

func isatty(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
