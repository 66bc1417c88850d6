package engine

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/pipeforge/pipeforged/internal/errs"
	"github.com/pipeforge/pipeforged/internal/hostapi"
	"github.com/pipeforge/pipeforged/internal/manifest"
	"github.com/pipeforge/pipeforged/internal/metrics"
	"github.com/pipeforge/pipeforged/internal/plan"
	"github.com/pipeforge/pipeforged/internal/sandbox"
	"github.com/pipeforge/pipeforged/internal/schema"
	"github.com/pipeforge/pipeforged/internal/store"
)

// Fixed in-container paths a sandboxed stage sees, all bind mounts set
// up by runSandboxed (§4.3, §4.4). None of these overlap with RootFS,
// which is the invocation's own build tree mounted at /.
const (
	containerLibdir     = "/run/libdir"
	containerScratch    = "/run/scratch"
	containerSources    = "/run/sources"
	containerInputsRoot = "/run/inputs"
)

// Config configures an Engine.
type Config struct {
	Store     *store.Store
	Schemas   *schema.Set
	Libdir    string
	Metrics   *metrics.Registry
	KillGrace time.Duration

	// Runtime is nil when the CLI runs with --no-sandbox and in any test
	// that only exercises built-in stages, since those never need a
	// sandbox.
	Runtime *sandbox.Runtime
}

// Engine drives a compiled Plan against the store, sandbox, and
// built-in stage registry (§5).
type Engine struct {
	store     *store.Store
	schemas   *schema.Set
	libdir    string
	metrics   *metrics.Registry
	killGrace time.Duration
	runtime   *sandbox.Runtime
}

// New creates an Engine from cfg.
func New(cfg Config) *Engine {
	if cfg.KillGrace == 0 {
		cfg.KillGrace = 10 * time.Second
	}
	return &Engine{
		store:     cfg.Store,
		schemas:   cfg.Schemas,
		libdir:    cfg.Libdir,
		metrics:   cfg.Metrics,
		killGrace: cfg.KillGrace,
		runtime:   cfg.Runtime,
	}
}

// Result is the outcome of a completed Run.
type Result struct {
	Plan     *plan.Plan
	FinalID  store.ObjectID
	Executed int // invocations actually run, excluding cache hits
}

// Run plans m, fetches every source-origin input referenced anywhere in
// its pipeline tree ahead of any stage running (§4.2, §7: "source
// failures abort before any stage executes"; S5), and then executes
// every invocation in order, stopping on the first failure. Objects
// already committed under their identifier are skipped (§5, "Caching").
// Objects committed before a later failure are retained, never rolled
// back (§7).
func (e *Engine) Run(ctx context.Context, m *manifest.Manifest) (*Result, error) {
	if e.schemas != nil {
		if err := manifest.Validate(m, e.schemas.Registry()); err != nil {
			return nil, errs.Wrap(ErrManifestInvalid, err)
		}
	}

	p, err := plan.Compile(m.Pipeline)
	if err != nil {
		return nil, errs.Wrap(ErrManifestInvalid, err)
	}

	if err := e.validateOptions(p, m); err != nil {
		return nil, err
	}

	if err := e.fetchSources(ctx, m); err != nil {
		return nil, err
	}

	executed := 0
	for _, inv := range p.Invocations {
		if e.store.Contains(inv.ID) {
			if e.metrics != nil {
				e.metrics.CacheHits.Inc()
			}
			slog.Debug("cache hit", "stage", inv.StageName, "id", inv.ID)
			continue
		}

		start := time.Now()
		if err := e.executeInvocation(ctx, inv); err != nil {
			return nil, errs.Wrapf(err, "stage %q (id %s)", inv.StageName, inv.ID)
		}
		if e.metrics != nil {
			e.metrics.ObserveStage(inv.StageName, time.Since(start))
		}
		executed++
	}

	return &Result{Plan: p, FinalID: p.FinalID, Executed: executed}, nil
}

// validateOptions checks every compiled invocation's stage options and
// every manifest-level source's options against their JSON Schemas, so a
// malformed options object is rejected before any source fetch or stage
// runs rather than surfacing as an opaque runtime failure.
func (e *Engine) validateOptions(p *plan.Plan, m *manifest.Manifest) error {
	if e.schemas == nil {
		return nil
	}
	for _, inv := range p.Invocations {
		if err := e.schemas.ValidateStageOptions(inv.StageName, inv.Options); err != nil {
			return errs.Wrap(ErrManifestInvalid, err)
		}
	}
	for sourceType, opts := range m.Sources {
		if err := e.schemas.ValidateSourceOptions(sourceType, opts); err != nil {
			return errs.Wrap(ErrManifestInvalid, err)
		}
	}
	return nil
}

// executeInvocation materializes the invocation's build tree and its
// resolved source-origin inputs, runs its stage program (built-in or
// sandboxed), and commits the result.
func (e *Engine) executeInvocation(ctx context.Context, inv plan.Invocation) error {
	tree, err := e.store.StageTree(inv.ID)
	if err != nil {
		return err
	}

	if inv.UpstreamID != nil {
		// StageTree already allocated an empty directory at tree, but
		// Snapshot requires its destination not to exist yet.
		if err := os.Remove(tree); err != nil {
			return err
		}
		if err := e.store.Snapshot(*inv.UpstreamID, tree); err != nil {
			return err
		}
	}

	inputsHost, inputsPaths, err := e.materializeInputs(inv)
	if err != nil {
		e.store.Discard(tree)
		return err
	}
	if inputsHost != "" {
		defer os.RemoveAll(inputsHost)
	}

	meta, err := e.runStage(ctx, inv, tree, inputsHost, inputsPaths)
	if err != nil {
		e.store.Discard(tree)
		return err
	}

	return e.store.Commit(inv.ID, tree, store.ObjectMeta{
		StageName:   inv.StageName,
		CommittedAt: time.Now(),
		Metadata:    meta,
	})
}

// materializeInputs hardlinks every source-origin input's resolved
// blobs into their own named subdirectory of a fresh scratch root, so a
// stage receives, per input, a directory containing exactly one file
// named for its content hash, hardlinked from the store (§4.4, S2).
// Pipeline-origin inputs need no materialization here: the referenced
// build pipeline's committed tree already became this invocation's
// runtime root via UpstreamID and Snapshot.
func (e *Engine) materializeInputs(inv plan.Invocation) (string, map[string]string, error) {
	sourceInputs := false
	for _, in := range inv.Inputs {
		if in.Origin == manifest.OriginSource {
			sourceInputs = true
			break
		}
	}
	if !sourceInputs {
		return "", nil, nil
	}

	root, err := e.store.Mkdtemp("inputs")
	if err != nil {
		return "", nil, err
	}

	paths := make(map[string]string, len(inv.Inputs))
	for name, in := range inv.Inputs {
		if in.Origin != manifest.OriginSource {
			continue
		}

		dir := filepath.Join(root, name)
		if err := os.MkdirAll(dir, 0755); err != nil {
			os.RemoveAll(root)
			return "", nil, err
		}

		for _, ref := range in.References.Items {
			hash, err := store.ParseContentHash(ref.Ref)
			if err != nil {
				os.RemoveAll(root)
				return "", nil, errs.Wrapf(ErrManifestInvalid, "input %q: %w", name, err)
			}
			src := e.store.SourcePath(in.Type, hash)
			dst := filepath.Join(dir, ref.Ref)
			if err := os.Link(src, dst); err != nil {
				os.RemoveAll(root)
				return "", nil, errs.Wrapf(ErrStageFailed, "materializing input %q: %w", name, err)
			}
		}
		paths[name] = dir
	}

	return root, paths, nil
}

// runStage resolves the stage program and runs it against tree: a
// built-in if no external program exists under libdir, a sandboxed exec
// otherwise. It returns any metadata the stage recorded about its
// output, for merging into the committed object's ObjectMeta.
func (e *Engine) runStage(ctx context.Context, inv plan.Invocation, tree, inputsHost string, inputsPaths map[string]string) (map[string]json.RawMessage, error) {
	programKind := "stages"
	if inv.IsAssembler {
		programKind = "assemblers"
	}
	programPath := filepath.Join(e.libdir, programKind, inv.StageName)

	if _, err := os.Stat(programPath); err != nil {
		registry := builtins
		if inv.IsAssembler {
			registry = assemblerBuiltins
		}
		fn, ok := registry[inv.StageName]
		if !ok {
			return nil, errs.Wrapf(ErrStageFailed, "no program or builtin for stage %q", inv.StageName)
		}
		return nil, fn(tree, stageOptionsFor(inv), inputsPaths)
	}

	return e.runSandboxed(ctx, inv, tree, programKind, inputsHost, inputsPaths)
}

// runSandboxed starts a per-invocation Host API server and sandbox with
// the invocation's resolved input trees and the store's source area
// bind mounted, then runs the stage program against the sandboxed tree
// (§4.3, §4.4).
func (e *Engine) runSandboxed(ctx context.Context, inv plan.Invocation, tree, programKind, inputsHost string, inputsPaths map[string]string) (map[string]json.RawMessage, error) {
	if e.runtime == nil {
		return nil, errs.Wrapf(ErrSandboxError, "stage %q requires a sandbox but no runtime is configured", inv.StageName)
	}

	scratchHost, err := e.store.Mkdtemp("scratch")
	if err != nil {
		return nil, errs.Wrap(ErrSandboxError, err)
	}
	defer os.RemoveAll(scratchHost)

	containerInputs := make(map[string]string, len(inputsPaths))
	for name := range inputsPaths {
		containerInputs[name] = filepath.Join(containerInputsRoot, name)
	}

	backend := newInvocationBackend(inv.StageName, stageOptionsFor(inv), containerInputs, scratchHost, containerScratch)

	socketPath := filepath.Join(scratchHost, "hostapi.sock")
	srv := hostapi.New(socketPath, backend)
	if err := srv.Start(); err != nil {
		return nil, errs.Wrap(ErrSandboxError, err)
	}
	defer srv.Stop()

	mounts := []sandbox.Mount{
		{Source: e.libdir, Destination: containerLibdir, ReadOnly: true},
		{Source: e.store.SourcesRoot(), Destination: containerSources, ReadOnly: true},
		{Source: scratchHost, Destination: containerScratch, ReadOnly: false},
	}
	if inputsHost != "" {
		mounts = append(mounts, sandbox.Mount{Source: inputsHost, Destination: containerInputsRoot, ReadOnly: true})
	}

	sb := e.runtime.Sandbox(sandboxID(inv), defaultPlatform())
	cfg := sandbox.Config{
		RootFS: tree,
		Mounts: mounts,
		Env:    []string{"PIPEFORGE_HOST_API_SOCKET=" + filepath.Join(containerScratch, "hostapi.sock")},
	}
	if err := sb.Start(ctx, cfg); err != nil {
		if e.metrics != nil {
			e.metrics.SandboxFailures.WithLabelValues(inv.StageName).Inc()
		}
		return nil, errs.Wrap(ErrSandboxError, err)
	}
	defer sb.Destroy(context.Background())

	containerProgram := filepath.Join(containerLibdir, programKind, inv.StageName)
	result, err := sb.Run(ctx, []string{containerProgram}, nil, "/", e.killGrace)
	if err != nil {
		return nil, errs.Wrap(ErrSandboxError, err)
	}
	if result.ExitCode != 0 {
		if excMsg, ok := backend.pendingException(); ok {
			return nil, errs.Wrapf(ErrStageFailed, "exit code %d: %s", result.ExitCode, excMsg)
		}
		return nil, errs.Wrapf(ErrStageFailed, "exit code %d: %s", result.ExitCode, result.Stderr)
	}

	return backend.recordedMetadata(), nil
}

// stageOptionsFor returns the invocation's raw options, defaulting to an
// empty JSON object so builtins can always unmarshal without a nil check.
func stageOptionsFor(inv plan.Invocation) json.RawMessage {
	if len(inv.Options) == 0 {
		return json.RawMessage(`{}`)
	}
	return inv.Options
}

// sandboxID derives a container ID from the invocation's own identifier
// plus a fresh UUID, so repeated runs of the same stage never collide on
// a still-tearing-down container from a previous attempt.
func sandboxID(inv plan.Invocation) string {
	return "pipeforge-" + hex.EncodeToString([]byte(inv.ID))[:16] + "-" + uuid.NewString()
}

func defaultPlatform() string {
	return "linux/amd64"
}
