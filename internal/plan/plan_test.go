package plan

import (
	"testing"

	"github.com/pipeforge/pipeforged/internal/manifest"
)

func mustDecode(t *testing.T, data string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Decode([]byte(data))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return m
}

func TestCompileNoopPipelineIsDeterministic(t *testing.T) {
	m := mustDecode(t, `{"pipeline":{"stages":[{"name":"org.osbuild.noop"}]}}`)

	p1, err := Compile(m.Pipeline)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	p2, err := Compile(m.Pipeline)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if p1.FinalID != p2.FinalID {
		t.Fatalf("identifiers not deterministic: %s != %s", p1.FinalID, p2.FinalID)
	}
	if len(p1.Invocations) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(p1.Invocations))
	}
}

func TestCompileChangingOptionsChangesIdentifier(t *testing.T) {
	m1 := mustDecode(t, `{"pipeline":{"stages":[{"name":"org.osbuild.noop","options":{"x":1}}]}}`)
	m2 := mustDecode(t, `{"pipeline":{"stages":[{"name":"org.osbuild.noop","options":{"x":2}}]}}`)

	p1, err := Compile(m1.Pipeline)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	p2, err := Compile(m2.Pipeline)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if p1.FinalID == p2.FinalID {
		t.Fatal("expected differing options to change the identifier")
	}
}

func TestCompileTwoStageChainPreservesEarlierIdentifier(t *testing.T) {
	base := mustDecode(t, `{"pipeline":{"stages":[
		{"name":"org.pipeforge.touch","options":{"path":"/hello"}},
		{"name":"org.pipeforge.append","options":{"path":"/hello","text":"a"}}
	]}}`)
	changed := mustDecode(t, `{"pipeline":{"stages":[
		{"name":"org.pipeforge.touch","options":{"path":"/hello"}},
		{"name":"org.pipeforge.append","options":{"path":"/hello","text":"b"}}
	]}}`)

	pBase, err := Compile(base.Pipeline)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	pChanged, err := Compile(changed.Pipeline)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if pBase.Invocations[0].ID != pChanged.Invocations[0].ID {
		t.Error("changing stage B's options should not change stage A's identifier")
	}
	if pBase.Invocations[1].ID == pChanged.Invocations[1].ID {
		t.Error("changing stage B's options should change stage B's identifier")
	}
}

func TestCompileOrderedInputSwapChangesIdentifier(t *testing.T) {
	a := mustDecode(t, `{"pipeline":{"stages":[{"name":"org.pipeforge.combine","inputs":{
		"files":{"type":"org.pipeforge.file","origin":"org.pipeforge.source","references":["sha256:`+zeros(64)+`","sha256:`+onesHash()+`"]}
	}}]}}`)
	b := mustDecode(t, `{"pipeline":{"stages":[{"name":"org.pipeforge.combine","inputs":{
		"files":{"type":"org.pipeforge.file","origin":"org.pipeforge.source","references":["sha256:`+onesHash()+`","sha256:`+zeros(64)+`"]}
	}}]}}`)

	pa, err := Compile(a.Pipeline)
	if err != nil {
		t.Fatalf("Compile a: %v", err)
	}
	pb, err := Compile(b.Pipeline)
	if err != nil {
		t.Fatalf("Compile b: %v", err)
	}
	if pa.FinalID == pb.FinalID {
		t.Error("swapping references in an ordered (array) input should change the identifier")
	}
}

func TestCompileUnorderedInputSwapIsIdentical(t *testing.T) {
	a := mustDecode(t, `{"pipeline":{"stages":[{"name":"org.pipeforge.combine","inputs":{
		"files":{"type":"org.pipeforge.file","origin":"org.pipeforge.source","references":{"sha256:`+zeros(64)+`":{},"sha256:`+onesHash()+`":{}}}
	}}]}}`)
	b := mustDecode(t, `{"pipeline":{"stages":[{"name":"org.pipeforge.combine","inputs":{
		"files":{"type":"org.pipeforge.file","origin":"org.pipeforge.source","references":{"sha256:`+onesHash()+`":{},"sha256:`+zeros(64)+`":{}}}
	}}]}}`)

	pa, err := Compile(a.Pipeline)
	if err != nil {
		t.Fatalf("Compile a: %v", err)
	}
	pb, err := Compile(b.Pipeline)
	if err != nil {
		t.Fatalf("Compile b: %v", err)
	}
	if pa.FinalID != pb.FinalID {
		t.Error("key order of an unordered (object) input must not affect the identifier")
	}
}

func zeros(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}

func onesHash() string {
	b := make([]byte, 64)
	for i := range b {
		b[i] = '1'
	}
	return string(b)
}
