package manifest

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeNoopPipeline(t *testing.T) {
	data := []byte(`{"pipeline":{"stages":[{"name":"org.pipeforge.noop"}]}}`)

	m, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(m.Pipeline.Stages) != 1 {
		t.Fatalf("stages = %d, want 1", len(m.Pipeline.Stages))
	}
	if m.Pipeline.Stages[0].Name != "org.pipeforge.noop" {
		t.Fatalf("stage name = %q", m.Pipeline.Stages[0].Name)
	}
}

func TestDecodeRejectsEmptyStageName(t *testing.T) {
	data := []byte(`{"pipeline":{"stages":[{"name":""}]}}`)
	if _, err := Decode(data); !errors.Is(err, ErrManifestInvalid) {
		t.Fatalf("err = %v, want ErrManifestInvalid", err)
	}
}

func TestDecodeRejectsUnknownOrigin(t *testing.T) {
	data := []byte(`{"pipeline":{"stages":[{"name":"x","inputs":{"in":{"type":"files","origin":"bogus","references":["sha256:abc"]}}}]}}`)
	if _, err := Decode(data); !errors.Is(err, ErrManifestInvalid) {
		t.Fatalf("err = %v, want ErrManifestInvalid", err)
	}
}

func TestReferencesArrayIsOrdered(t *testing.T) {
	data := []byte(`{"pipeline":{"stages":[{"name":"x","inputs":{"in":{"type":"files","origin":"org.pipeforge.source","references":["sha256:a","sha256:b"]}}}]}}`)
	m, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	refs := m.Pipeline.Stages[0].Inputs["in"].References
	if !refs.Ordered {
		t.Fatal("array form should be Ordered")
	}
	if got := refs.Canonical(); got[0] != "sha256:a" || got[1] != "sha256:b" {
		t.Fatalf("canonical = %v", got)
	}
}

func TestReferencesObjectIsSorted(t *testing.T) {
	data := []byte(`{"pipeline":{"stages":[{"name":"x","inputs":{"in":{"type":"files","origin":"org.pipeforge.source","references":{"sha256:b":{},"sha256:a":{}}}}}]}}`)
	m, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	refs := m.Pipeline.Stages[0].Inputs["in"].References
	if refs.Ordered {
		t.Fatal("object form should not be Ordered")
	}
	got := refs.Canonical()
	if got[0] != "sha256:a" || got[1] != "sha256:b" {
		t.Fatalf("canonical = %v, want sorted", got)
	}
}

func TestReferencesRejectsBadMetadataKey(t *testing.T) {
	data := []byte(`{"pipeline":{"stages":[{"name":"x","inputs":{"in":{"type":"files","origin":"org.pipeforge.source","references":{"sha256:a":{"metadata":{"bad key":"x"}}}}}}]}}`)
	if _, err := Decode(data); !errors.Is(err, ErrManifestInvalid) {
		t.Fatalf("err = %v, want ErrManifestInvalid", err)
	}
}

func TestValidateSuggestsNearMiss(t *testing.T) {
	data := []byte(`{"pipeline":{"stages":[{"name":"org.pipeforge.rmp"}]}}`)
	m, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	err = Validate(m, Registry{Stages: []string{"org.pipeforge.rpm"}})
	if !errors.Is(err, ErrManifestInvalid) {
		t.Fatalf("err = %v, want ErrManifestInvalid", err)
	}
	if got := err.Error(); !strings.Contains(got, "org.pipeforge.rpm") {
		t.Fatalf("error %q should suggest org.pipeforge.rpm", got)
	}
}
