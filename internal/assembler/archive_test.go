package assembler

import (
	"archive/tar"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteOCIArchiveProducesValidLayout(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "entrypoint"), []byte("#!/bin/sh\necho hi\n"), 0755); err != nil {
		t.Fatalf("seeding tree: %v", err)
	}

	out := filepath.Join(t.TempDir(), "image.tar")
	if err := WriteOCIArchive(root, out, "linux/amd64", []string{"/entrypoint"}); err != nil {
		t.Fatalf("WriteOCIArchive: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	defer f.Close()

	names := map[string]bool{}
	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err != nil {
			break
		}
		names[hdr.Name] = true
	}

	for _, want := range []string{"oci-layout", "index.json"} {
		if !names[want] {
			t.Errorf("archive missing %q, got %v", want, names)
		}
	}

	hasBlobs := false
	for name := range names {
		if filepath.Dir(name) == filepath.Join("blobs", "sha256") {
			hasBlobs = true
		}
	}
	if !hasBlobs {
		t.Errorf("archive missing blobs/sha256/* entries, got %v", names)
	}
}

func TestArchFromPlatform(t *testing.T) {
	cases := map[string]string{
		"linux/amd64": "amd64",
		"linux/arm64": "arm64",
		"amd64":       "amd64",
	}
	for in, want := range cases {
		if got := archFromPlatform(in); got != want {
			t.Errorf("archFromPlatform(%q) = %q, want %q", in, got, want)
		}
	}
}
