// Package config loads the engine's optional YAML configuration file.
//
// Engine behavior (store root, snapshotter preference, stage kill grace
// period, default libdir) is controlled by flags, this file, or built-in
// defaults, in that order of precedence — the same layering the teacher
// applies to its own build-time linker flags versus CLI flags.
package config
