// Package cli parses flags and configures logging for the pipeforged
// daemon.
//
// The daemon accepts the following global flags:
//
//	-q, --quiet     Suppress informational output.
//	-v, --verbose   Enable verbose output.
//	-d, --debug     Enable debug output.
//	-c, --config    Path to a YAML config file.
//
// Flags override build-time defaults set via linker flags. After parsing,
// the global logger is reconfigured to reflect the final level and
// verbosity before any subcommand runs.
package cli
