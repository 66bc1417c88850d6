package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/pipeforge/pipeforged/internal/hostapi"
	"github.com/pipeforge/pipeforged/internal/store"
)

// invocationBackend answers one stage's Host API calls (§4.3). It is
// created fresh for every sandboxed invocation and discarded once the
// stage's sandbox is destroyed.
type invocationBackend struct {
	stageName string
	options   json.RawMessage

	// containerInputs maps each declared input name to its bind-mounted
	// path as seen from inside the sandbox, answered verbatim by
	// Arguments.
	containerInputs map[string]string

	scratchHost      string // host path of the mounted scratch directory
	scratchContainer string // its path as seen inside the sandbox

	mu       sync.Mutex
	metadata map[string]json.RawMessage
	excMsg   string
	excTrace string
}

func newInvocationBackend(stageName string, options json.RawMessage, containerInputs map[string]string, scratchHost, scratchContainer string) *invocationBackend {
	return &invocationBackend{
		stageName:        stageName,
		options:          options,
		containerInputs:  containerInputs,
		scratchHost:      scratchHost,
		scratchContainer: scratchContainer,
		metadata:         make(map[string]json.RawMessage),
	}
}

func (b *invocationBackend) Arguments() hostapi.ArgumentsResponse {
	return hostapi.ArgumentsResponse{
		Options: b.options,
		Inputs:  b.containerInputs,
		Tree:    "/",
	}
}

// Mkdtemp allocates a subdirectory of the already bind-mounted scratch
// directory. Since a bind mount is a live view of its host directory, a
// directory created here after the sandbox starts is immediately
// visible at the returned container path with no additional mount
// (§4.4).
func (b *invocationBackend) Mkdtemp(prefix string) (string, error) {
	name := fmt.Sprintf("%s-%s", prefix, uuid.NewString())
	if err := os.Mkdir(filepath.Join(b.scratchHost, name), 0755); err != nil {
		return "", err
	}
	return filepath.Join(b.scratchContainer, name), nil
}

// SourcePath answers where a previously fetched source blob lives inside
// the sandbox, below the read-only sources mount rooted at
// containerSources (§4.2).
func (b *invocationBackend) SourcePath(sourceType, hash string) (string, error) {
	h, err := store.ParseContentHash(hash)
	if err != nil {
		return "", err
	}
	return filepath.Join(containerSources, sourceType, h.Algo(), h.Hex()), nil
}

func (b *invocationBackend) RecordMetadata(key string, value json.RawMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metadata[key] = value
}

func (b *invocationBackend) Log(level, message string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.Log(context.Background(), lvl, message, "stage", b.stageName)
}

// Exception records a stage-reported unrecoverable error. If the stage
// subsequently exits non-zero, the engine attaches this verbatim to the
// resulting StageFailed error instead of just the bare exit code.
func (b *invocationBackend) Exception(message, trace string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.excMsg = message
	b.excTrace = trace
}

func (b *invocationBackend) pendingException() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.excMsg == "" {
		return "", false
	}
	if b.excTrace == "" {
		return b.excMsg, true
	}
	return fmt.Sprintf("%s\n%s", b.excMsg, b.excTrace), true
}

func (b *invocationBackend) recordedMetadata() map[string]json.RawMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.metadata) == 0 {
		return nil
	}
	out := make(map[string]json.RawMessage, len(b.metadata))
	for k, v := range b.metadata {
		out[k] = v
	}
	return out
}
