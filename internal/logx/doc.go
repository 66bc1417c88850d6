// Package logx provides the engine's slog.Handler.
//
// It mirrors the teacher's crex.Handler: a settable level, a pretty
// (TTY-aware) or JSON formatter, and grouping via slog's WithGroup. crex
// itself is an unfetchable monorepo sibling, so this reimplements the same
// call shape as an in-module package.
package logx
