package assembler

import (
	"archive/tar"
	"encoding/json"
	"os"
	"path/filepath"

	digest "github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/pipeforge/pipeforged/internal/errs"
)

// WriteOCIArchive packages the tree at root into a single-layer OCI
// image and writes it as an OCI archive (the same container format
// produced by the teacher's client.Export with archive.WithImage) to
// outputPath. entrypoint, if non-empty, becomes the image's entrypoint,
// the same config field the teacher's Export mutates.
func WriteOCIArchive(root, outputPath, platform string, entrypoint []string) error {
	scratch, err := os.MkdirTemp(filepath.Dir(outputPath), "oci-build-*")
	if err != nil {
		return errs.Wrap(ErrAssemble, err)
	}
	defer os.RemoveAll(scratch)

	l, err := writeLayer(root, scratch)
	if err != nil {
		return err
	}

	manifest, config := buildImage(l, platform, entrypoint)

	blobsDir := filepath.Join(scratch, "blobs", "sha256")
	if err := os.MkdirAll(blobsDir, 0755); err != nil {
		return errs.Wrap(ErrAssemble, err)
	}

	configDesc, err := writeJSONBlob(blobsDir, ocispec.MediaTypeImageConfig, config)
	if err != nil {
		return err
	}
	manifest.Config = configDesc

	manifestDesc, err := writeJSONBlob(blobsDir, ocispec.MediaTypeImageManifest, manifest)
	if err != nil {
		return err
	}

	if err := linkLayerBlob(blobsDir, l); err != nil {
		return err
	}

	index := ocispec.Index{
		Versioned: manifest.Versioned,
		MediaType: ocispec.MediaTypeImageIndex,
		Manifests: []ocispec.Descriptor{manifestDesc},
	}
	if _, err := writeJSONBlob(blobsDir, ocispec.MediaTypeImageIndex, index); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(scratch, "index.json"), mustMarshal(index), 0644); err != nil {
		return errs.Wrap(ErrAssemble, err)
	}

	layout := ocispec.ImageLayout{Version: ocispec.ImageLayoutVersion}
	if err := os.WriteFile(filepath.Join(scratch, "oci-layout"), mustMarshal(layout), 0644); err != nil {
		return errs.Wrap(ErrAssemble, err)
	}

	return tarDirectory(scratch, outputPath)
}

func writeJSONBlob(blobsDir, mediaType string, v any) (ocispec.Descriptor, error) {
	data := mustMarshal(v)
	d := digest.Canonical.FromBytes(data)

	if err := os.WriteFile(filepath.Join(blobsDir, d.Encoded()), data, 0644); err != nil {
		return ocispec.Descriptor{}, errs.Wrap(ErrAssemble, err)
	}

	return ocispec.Descriptor{
		MediaType: mediaType,
		Digest:    d,
		Size:      int64(len(data)),
	}, nil
}

func linkLayerBlob(blobsDir string, l *layer) error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return errs.Wrap(ErrAssemble, err)
	}
	return os.WriteFile(filepath.Join(blobsDir, l.digest.Encoded()), data, 0644)
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// tarDirectory writes dir's contents as a plain (uncompressed) tar file
// at outputPath — the on-disk shape of an OCI image archive.
func tarDirectory(dir, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return errs.Wrap(ErrAssemble, err)
	}
	defer f.Close()

	tw := tar.NewWriter(f)
	if err := archiveTree(tw, dir); err != nil {
		return errs.Wrap(ErrAssemble, err)
	}
	return tw.Close()
}
