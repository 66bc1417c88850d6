package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/pipeforge/pipeforged/internal/errs"
	"github.com/pipeforge/pipeforged/internal/manifest"
	"github.com/pipeforge/pipeforged/internal/sandbox"
	"github.com/pipeforge/pipeforged/internal/sources"
	"github.com/pipeforge/pipeforged/internal/store"
)

// fetchSandboxID derives a container ID for a source fetcher's scratch
// sandbox, namespaced separately from stage sandboxIDs since fetches
// have no plan.Invocation of their own.
func fetchSandboxID(sourceType string) string {
	return "pipeforge-fetch-" + sourceType + "-" + uuid.NewString()
}

// collectSourceRefs walks every pipeline in m's build-pipeline chain
// (top-level plus any nested Build pipelines, §6) and returns every
// distinct content hash referenced by a source-origin input, grouped by
// source type. Order is not meaningful; fetchSources only cares which
// hashes are missing.
func collectSourceRefs(p manifest.Pipeline) (map[string][]store.ContentHash, error) {
	seen := map[string]map[store.ContentHash]struct{}{}

	var walk func(p manifest.Pipeline) error
	walk = func(p manifest.Pipeline) error {
		if p.Build != nil {
			if err := walk(*p.Build); err != nil {
				return err
			}
		}

		stages := p.Stages
		if p.Assembler != nil {
			stages = append(append([]manifest.Stage(nil), stages...), *p.Assembler)
		}

		for _, stage := range stages {
			for _, in := range stage.Inputs {
				if in.Origin != manifest.OriginSource {
					continue
				}
				for _, ref := range in.References.Items {
					hash, err := store.ParseContentHash(ref.Ref)
					if err != nil {
						return errs.Wrapf(ErrManifestInvalid, "input %q: %w", in.Type, err)
					}
					if seen[in.Type] == nil {
						seen[in.Type] = map[store.ContentHash]struct{}{}
					}
					seen[in.Type][hash] = struct{}{}
				}
			}
		}
		return nil
	}

	if err := walk(p); err != nil {
		return nil, err
	}

	out := make(map[string][]store.ContentHash, len(seen))
	for sourceType, hashes := range seen {
		list := make([]store.ContentHash, 0, len(hashes))
		for h := range hashes {
			list = append(list, h)
		}
		out[sourceType] = list
	}
	return out, nil
}

// fetchSources resolves every source-origin input across m's full
// pipeline tree, fetching any hash not already present in the store
// before any stage runs (§4.2, §7: "source failures abort before any
// stage executes"; S5).
func (e *Engine) fetchSources(ctx context.Context, m *manifest.Manifest) error {
	refs, err := collectSourceRefs(m.Pipeline)
	if err != nil {
		return err
	}

	for sourceType, hashes := range refs {
		var missing []store.ContentHash
		for _, h := range hashes {
			if !e.store.HasSource(sourceType, h) {
				missing = append(missing, h)
			}
		}
		if len(missing) == 0 {
			continue
		}
		if err := e.fetchOne(ctx, sourceType, missing, m.Sources[sourceType]); err != nil {
			return err
		}
	}
	return nil
}

// fetchOne runs the fetcher program for sourceType inside a fresh
// scratch sandbox, stages its output into the store, and re-verifies
// every hash independent of the fetcher's own exit status (invariant 4).
func (e *Engine) fetchOne(ctx context.Context, sourceType string, hashes []store.ContentHash, options json.RawMessage) error {
	programPath := filepath.Join(e.libdir, "sources", sourceType)
	if _, err := os.Stat(programPath); err != nil {
		return errs.Wrapf(ErrSourceUnavailable, "no fetcher program for source %q", sourceType)
	}
	if e.runtime == nil {
		return errs.Wrapf(ErrSourceUnavailable, "source %q requires a sandbox but no runtime is configured", sourceType)
	}

	rootfs, err := e.store.Mkdtemp("fetch-root")
	if err != nil {
		return err
	}
	defer os.RemoveAll(rootfs)

	outputDir := filepath.Join(rootfs, "output")
	cacheDir := filepath.Join(rootfs, "cache")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return err
	}

	sb := e.runtime.Sandbox(fetchSandboxID(sourceType), defaultPlatform())
	cfg := sandbox.Config{
		RootFS: rootfs,
		Mounts: []sandbox.Mount{
			{Source: e.libdir, Destination: containerLibdir, ReadOnly: true},
		},
	}
	if err := sb.Start(ctx, cfg); err != nil {
		if e.metrics != nil {
			e.metrics.SandboxFailures.WithLabelValues("source:" + sourceType).Inc()
		}
		return errs.Wrap(ErrSandboxError, err)
	}
	defer sb.Destroy(context.Background())

	items := make([]string, len(hashes))
	for i, h := range hashes {
		items[i] = string(h)
	}

	req := sources.Request{
		Items:     items,
		Options:   options,
		Checksums: items,
		Cache:     "/cache",
		Output:    "/output",
	}

	fetcherArgs := []string{filepath.Join(containerLibdir, "sources", sourceType)}
	if err := sources.Fetch(ctx, sb, fetcherArgs, req, hashes, e.killGrace); err != nil {
		return errs.Wrap(ErrSourceUnavailable, err)
	}

	for _, h := range hashes {
		if err := e.commitFetchedSource(sourceType, h, outputDir); err != nil {
			return err
		}
	}

	return sources.Verify(e.store, sourceType, hashes)
}

// commitFetchedSource moves a fetcher's output file for hash from
// outputDir into the store's content-addressed source area, verifying
// its digest along the way (§4.2).
func (e *Engine) commitFetchedSource(sourceType string, hash store.ContentHash, outputDir string) error {
	produced := filepath.Join(outputDir, string(hash))
	if _, err := os.Stat(produced); err != nil {
		return errs.Wrapf(ErrSourceUnavailable, "%s: fetcher did not produce %s", sourceType, hash)
	}

	tmpPath, release, err := e.store.StageSource(sourceType, hash)
	if err != nil {
		return err
	}
	defer release()

	if err := copyFile(produced, tmpPath); err != nil {
		return errs.Wrap(ErrSourceUnavailable, err)
	}

	if err := e.store.CommitSource(sourceType, hash, tmpPath); err != nil {
		return errs.Wrap(ErrSourceUnavailable, err)
	}
	return nil
}
