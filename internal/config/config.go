package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pipeforge/pipeforged/internal/paths"
)

// Config holds engine-wide settings loadable from a YAML file.
type Config struct {
	// StoreRoot is the object store directory. Empty uses paths.Store.
	StoreRoot string `yaml:"store_root"`

	// Libdir is the directory stage and source programs are resolved under,
	// relative to a pipeline's runtime root (<libdir>/stages/<name>,
	// <libdir>/sources/<type>).
	Libdir string `yaml:"libdir"`

	// KillGrace is how long a sandboxed process gets between SIGTERM and
	// SIGKILL during cancellation (§5).
	KillGrace time.Duration `yaml:"kill_grace"`

	// Snapshotter forces the store's clone strategy ("reflink", "hardlink",
	// or "deepcopy") instead of probing reflink support on first use. Empty
	// leaves the normal reflink -> hardlink -> deep copy probe-and-fallback
	// in place. Lets operators pin a conservative policy on filesystems
	// where reflink probing is expensive or known to misbehave.
	Snapshotter string `yaml:"snapshotter"`

	// MetricsAddr, if non-empty, is a loopback address to serve Prometheus
	// metrics on (e.g. "127.0.0.1:9110"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		StoreRoot: paths.Store(),
		Libdir:    "/usr/lib/pipeforge",
		KillGrace: 10 * time.Second,
	}
}

// Load reads a YAML config file, overlaying it onto Default(). A missing
// file is not an error; it simply yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
