package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pipeforge/pipeforged/internal/manifest"
	"github.com/pipeforge/pipeforged/internal/metrics"
	"github.com/pipeforge/pipeforged/internal/plan"
	"github.com/pipeforge/pipeforged/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func decodeManifest(t *testing.T, data string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Decode([]byte(data))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return m
}

// S1: a pipeline with a single no-op stage commits exactly one object,
// and re-running it is a pure cache hit.
func TestRunNoopPipelineCommitsOneObject(t *testing.T) {
	s := openTestStore(t)
	e := New(Config{Store: s, Metrics: metrics.New()})
	m := decodeManifest(t, `{"pipeline":{"stages":[{"name":"org.osbuild.noop"}]}}`)

	ctx := context.Background()
	res, err := e.Run(ctx, m)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Executed != 1 {
		t.Fatalf("expected 1 executed invocation, got %d", res.Executed)
	}
	if !s.Contains(res.FinalID) {
		t.Fatalf("final object %s not committed", res.FinalID)
	}

	res2, err := e.Run(ctx, m)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if res2.Executed != 0 {
		t.Fatalf("expected second run to be fully cached, executed %d", res2.Executed)
	}
	if res2.FinalID != res.FinalID {
		t.Fatalf("identifier changed across runs: %s != %s", res.FinalID, res2.FinalID)
	}
}

// S3: a two-stage chain caches the first stage when only the second
// stage's options change, and changing it doesn't affect the first
// stage's committed object.
func TestRunTwoStageChainCachesUnchangedPrefix(t *testing.T) {
	s := openTestStore(t)
	e := New(Config{Store: s, Metrics: metrics.New()})

	base := decodeManifest(t, `{"pipeline":{"stages":[
		{"name":"org.pipeforge.touch","options":{"path":"/hello"}},
		{"name":"org.pipeforge.append","options":{"path":"/hello","text":"a"}}
	]}}`)
	changed := decodeManifest(t, `{"pipeline":{"stages":[
		{"name":"org.pipeforge.touch","options":{"path":"/hello"}},
		{"name":"org.pipeforge.append","options":{"path":"/hello","text":"b"}}
	]}}`)

	ctx := context.Background()
	resBase, err := e.Run(ctx, base)
	if err != nil {
		t.Fatalf("Run base: %v", err)
	}
	if resBase.Executed != 2 {
		t.Fatalf("expected 2 executed invocations, got %d", resBase.Executed)
	}

	resChanged, err := e.Run(ctx, changed)
	if err != nil {
		t.Fatalf("Run changed: %v", err)
	}
	if resChanged.Executed != 1 {
		t.Fatalf("expected only the second stage to re-execute, got %d", resChanged.Executed)
	}

	firstID := resBase.Plan.Invocations[0].ID
	firstIDChanged := resChanged.Plan.Invocations[0].ID
	if firstID != firstIDChanged {
		t.Fatal("first stage identifier should be unaffected by the second stage's options")
	}
	if !s.Contains(firstID) {
		t.Fatal("first stage's object should remain committed")
	}

	tree, err := os.MkdirTemp(t.TempDir(), "check-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	os.Remove(tree)
	if err := s.Snapshot(resChanged.FinalID, tree); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(tree, "hello"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "b" {
		t.Fatalf("expected appended text %q, got %q", "b", data)
	}
}

// S4: a stage failure aborts the pipeline's remaining invocations while
// the prior stage's object stays committed and no object is produced
// under the failed stage's identifier.
func TestRunStageFailureAbortsRemainderPreservingPriorCommit(t *testing.T) {
	s := openTestStore(t)
	e := New(Config{Store: s, Metrics: metrics.New()})

	m := decodeManifest(t, `{"pipeline":{"stages":[
		{"name":"org.pipeforge.touch","options":{"path":"/hello"}},
		{"name":"org.pipeforge.missing-stage"}
	]}}`)

	ctx := context.Background()
	_, err := e.Run(ctx, m)
	if err == nil {
		t.Fatal("expected Run to fail")
	}

	p, compileErr := plan.Compile(m.Pipeline)
	if compileErr != nil {
		t.Fatalf("plan.Compile: %v", compileErr)
	}
	firstID := p.Invocations[0].ID
	secondID := p.Invocations[1].ID

	if !s.Contains(firstID) {
		t.Fatal("first stage's object should be retained after the second stage fails")
	}
	if s.Contains(secondID) {
		t.Fatal("failed stage must not produce a committed object")
	}

	tmp := filepath.Join(s.Root(), "tmp")
	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatalf("ReadDir tmp: %v", err)
	}
	for _, ent := range entries {
		if ent.Name() != ".lock" {
			t.Errorf("expected tmp/ to be clean after failure, found %s", ent.Name())
		}
	}
}
