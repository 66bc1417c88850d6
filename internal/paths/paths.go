package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	// Name used for directory and file naming.
	daemonName = "pipeforged"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644
)

// Runtime returns the directory for runtime files (sockets, PIDs).
//
//	Linux:   $XDG_RUNTIME_DIR/pipeforged or /run/user/<uid>/pipeforged
//	macOS:   ~/Library/Caches/pipeforged/run
func Runtime() string {
	if xdg.RuntimeDir != "" {
		return filepath.Join(xdg.RuntimeDir, daemonName)
	}
	return filepath.Join(xdg.CacheHome, daemonName, "run")
}

// Store returns the default object store root.
//
//	Linux:   $XDG_DATA_HOME/pipeforged/store
//	macOS:   ~/Library/Application Support/pipeforged/store
func Store() string {
	return filepath.Join(xdg.DataHome, daemonName, "store")
}

// HostAPISockets returns <Runtime()>/hostapi. The engine does not place
// sockets here: each invocation's Host API socket is created inside that
// invocation's scratch directory under the store's tmp/.
func HostAPISockets() string {
	return filepath.Join(Runtime(), "hostapi")
}

// ConfigFile returns the default path to the engine's YAML configuration
// file.
//
//	Linux:   $XDG_CONFIG_HOME/pipeforged/config.yaml
func ConfigFile() string {
	return filepath.Join(xdg.ConfigHome, daemonName, "config.yaml")
}
