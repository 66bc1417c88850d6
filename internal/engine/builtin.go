package engine

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/pipeforge/pipeforged/internal/assembler"
	"github.com/pipeforge/pipeforged/internal/errs"
)

// builtinFunc runs a primitive tree operation directly in the engine
// process, used when no external program exists under
// <libdir>/{stages,assemblers}/<name>. inputs maps each declared input
// name to the host directory its resolved references were materialized
// into (§4.4); it is empty for stages that declare none.
type builtinFunc func(tree string, options json.RawMessage, inputs map[string]string) error

var builtins = map[string]builtinFunc{
	"org.osbuild.noop":      builtinNoop,
	"org.pipeforge.touch":   builtinTouch,
	"org.pipeforge.append":  builtinAppend,
	"org.pipeforge.combine": builtinCombine,
}

// assemblerBuiltins mirrors builtins for the assembler slot: stage names
// that produce a terminal artifact under tree instead of mutating it
// in place as a build step would.
var assemblerBuiltins = map[string]builtinFunc{
	"org.pipeforge.assembler.container": builtinContainerAssembler,
}

func builtinNoop(tree string, options json.RawMessage, inputs map[string]string) error {
	return nil
}

type pathOptions struct {
	Path string `json:"path"`
}

func builtinTouch(tree string, options json.RawMessage, inputs map[string]string) error {
	var opts pathOptions
	if err := json.Unmarshal(options, &opts); err != nil {
		return errs.Wrapf(ErrStageFailed, "org.pipeforge.touch: %w", err)
	}
	full := filepath.Join(tree, opts.Path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return errs.Wrapf(ErrStageFailed, "org.pipeforge.touch: %w", err)
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return errs.Wrapf(ErrStageFailed, "org.pipeforge.touch: %w", err)
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errs.Wrapf(ErrStageFailed, "org.pipeforge.touch: %w", err)
	}
	return f.Close()
}

type appendOptions struct {
	Path string `json:"path"`
	Text string `json:"text"`
}

func builtinAppend(tree string, options json.RawMessage, inputs map[string]string) error {
	var opts appendOptions
	if err := json.Unmarshal(options, &opts); err != nil {
		return errs.Wrapf(ErrStageFailed, "org.pipeforge.append: %w", err)
	}
	full := filepath.Join(tree, opts.Path)
	// Unlink and rewrite rather than appending in place: the existing file
	// may be a hardlink shared with a committed object.
	old, err := os.ReadFile(full)
	if err != nil && !os.IsNotExist(err) {
		return errs.Wrapf(ErrStageFailed, "org.pipeforge.append: %w", err)
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return errs.Wrapf(ErrStageFailed, "org.pipeforge.append: %w", err)
	}
	if err := os.WriteFile(full, append(old, opts.Text...), 0644); err != nil {
		return errs.Wrapf(ErrStageFailed, "org.pipeforge.append: %w", err)
	}
	return nil
}

// builtinCombine copies every resolved input's files into tree under a
// subdirectory named for the input, the in-process equivalent of a
// stage program that just wants its declared inputs laid out inside
// its build tree (§4.4, S2).
func builtinCombine(tree string, options json.RawMessage, inputs map[string]string) error {
	for name, dir := range inputs {
		dest := filepath.Join(tree, name)
		if err := os.MkdirAll(dest, 0755); err != nil {
			return errs.Wrapf(ErrStageFailed, "org.pipeforge.combine: %w", err)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return errs.Wrapf(ErrStageFailed, "org.pipeforge.combine: %w", err)
		}
		for _, ent := range entries {
			if err := copyFile(filepath.Join(dir, ent.Name()), filepath.Join(dest, ent.Name())); err != nil {
				return errs.Wrapf(ErrStageFailed, "org.pipeforge.combine: %w", err)
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// assemblerOptions configures the built-in container assembler.
type assemblerOptions struct {
	Entrypoint []string `json:"entrypoint,omitempty"`
	Platform   string   `json:"platform,omitempty"`
}

// builtinContainerAssembler packages tree into an OCI archive named
// image.tar inside tree itself, so the existing directory-based
// store.Commit flow applies to assembler output unmodified (§4.3's
// "assembler" stage kind).
func builtinContainerAssembler(tree string, options json.RawMessage, inputs map[string]string) error {
	var opts assemblerOptions
	if len(options) > 0 {
		if err := json.Unmarshal(options, &opts); err != nil {
			return errs.Wrapf(ErrStageFailed, "org.pipeforge.assembler.container: %w", err)
		}
	}
	platform := opts.Platform
	if platform == "" {
		platform = defaultPlatform()
	}

	// WriteOCIArchive tars tree's own contents as the image layer, so the
	// archive itself must be built outside tree before landing inside it
	// as the single committed file — otherwise the in-progress archive
	// would be swept up as part of the layer it is building.
	scratch, err := os.MkdirTemp("", "pipeforge-assemble-*")
	if err != nil {
		return errs.Wrapf(ErrStageFailed, "org.pipeforge.assembler.container: %w", err)
	}
	defer os.RemoveAll(scratch)

	built := filepath.Join(scratch, "image.tar")
	if err := assembler.WriteOCIArchive(tree, built, platform, opts.Entrypoint); err != nil {
		return errs.Wrapf(ErrStageFailed, "org.pipeforge.assembler.container: %w", err)
	}
	return copyFile(built, filepath.Join(tree, "image.tar"))
}
