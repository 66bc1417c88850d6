// Package assembler implements the terminal, non-tree-producing stage
// kind (§6's Assembler): packaging a committed build tree into an OCI
// archive.
//
// The teacher daemon builds its exported images by diffing a running
// container's overlay snapshot against its parent (rootfs.CreateDiff)
// and patching the image's existing manifest and config blobs in
// containerd's content store (internal/runtime/export.go). An
// assembler invocation here has no running container or existing
// image to patch — its input is a plain directory already
// materialized by the object store — so instead the whole tree is
// archived as a single layer and a fresh single-platform OCI image is
// built around it, using the same manifest/config/digest types and
// libraries (opencontainers/image-spec, opencontainers/go-digest) the
// teacher uses for the patching step.
package assembler
