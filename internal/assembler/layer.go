package assembler

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"

	digest "github.com/opencontainers/go-digest"

	"github.com/pipeforge/pipeforged/internal/errs"
)

// layer is a single gzip-compressed tar blob written to a temp file, with
// both its compressed digest (what the OCI manifest's layer descriptor
// names) and its uncompressed diff ID (what the image config's
// RootFS.DiffIDs names) computed as it's written.
type layer struct {
	path       string
	digest     digest.Digest
	diffID     digest.Digest
	size       int64
	mediaType  string
}

// writeLayer archives root as a single tar+gzip layer into a new temp
// file under dir, mirroring how the teacher's snapshotDiff produces one
// layer descriptor and diff ID per Export call, except the layer here is
// the whole tree rather than a snapshot-versus-parent diff.
func writeLayer(root, dir string) (*layer, error) {
	f, err := os.CreateTemp(dir, "layer-*.tar.gz")
	if err != nil {
		return nil, errs.Wrap(ErrAssemble, err)
	}
	defer f.Close()

	digester := digest.Canonical.Digester()
	counting := &countingWriter{w: io.MultiWriter(f, digester.Hash())}

	gz := gzip.NewWriter(counting)
	diffDigester := digest.Canonical.Digester()
	tw := tar.NewWriter(io.MultiWriter(gz, diffDigester.Hash()))

	if err := archiveTree(tw, root); err != nil {
		return nil, errs.Wrap(ErrAssemble, err)
	}
	if err := tw.Close(); err != nil {
		return nil, errs.Wrap(ErrAssemble, err)
	}
	if err := gz.Close(); err != nil {
		return nil, errs.Wrap(ErrAssemble, err)
	}

	return &layer{
		path:      f.Name(),
		digest:    digester.Digest(),
		diffID:    diffDigester.Digest(),
		size:      counting.n,
		mediaType: "application/vnd.oci.image.layer.v1.tar+gzip",
	}, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func archiveTree(tw *tar.Writer, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		var link string
		if info.Mode()&os.ModeSymlink != 0 {
			link, err = os.Readlink(path)
			if err != nil {
				return err
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			if _, err := io.Copy(tw, f); err != nil {
				return err
			}
		}
		return nil
	})
}
