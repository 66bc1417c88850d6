package assembler

import (
	digest "github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// buildImage constructs a minimal single-platform OCI manifest and
// config around one layer, the same two structures the teacher mutates
// in place via updateImage/mutateManifest, built here from scratch
// instead of patched.
func buildImage(l *layer, platform string, entrypoint []string) (ocispec.Manifest, ocispec.Image) {
	config := ocispec.Image{
		Platform: ocispec.Platform{
			Architecture: archFromPlatform(platform),
			OS:           "linux",
		},
		RootFS: ocispec.RootFS{
			Type:    "layers",
			DiffIDs: []digest.Digest{l.diffID},
		},
	}
	if len(entrypoint) > 0 {
		config.Config.Entrypoint = entrypoint
	}

	manifest := ocispec.Manifest{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageManifest,
		Layers: []ocispec.Descriptor{
			{
				MediaType: l.mediaType,
				Digest:    l.digest,
				Size:      l.size,
			},
		},
	}

	return manifest, config
}

// archFromPlatform extracts the arch half of a "linux/amd64"-style
// platform string.
func archFromPlatform(platform string) string {
	for i := len(platform) - 1; i >= 0; i-- {
		if platform[i] == '/' {
			return platform[i+1:]
		}
	}
	return platform
}
