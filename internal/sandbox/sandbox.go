package sandbox

import (
	"context"
	"log/slog"
	"syscall"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/oci"
	"github.com/containerd/errdefs"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/pipeforge/pipeforged/internal/errs"
)

// Mount is a single bind mount into a sandbox, used for resolved inputs
// and the per-invocation host API socket (§4's "Stage Sandbox").
type Mount struct {
	Source      string
	Destination string
	ReadOnly    bool
}

// Config describes the filesystem and environment a stage runs against.
type Config struct {
	// RootFS is a plain directory — the build tree already materialized
	// by the object store, not an OCI image — that becomes the
	// sandbox's / (§4: "oci.WithRootFSPath against a plain directory").
	RootFS string
	Mounts []Mount
	Env    []string
	Cwd    string
}

// Sandbox is a single stage's isolated mount namespace and running
// containerd task. Its lifecycle is linear: Start, any number of Run
// calls, then Destroy.
type Sandbox struct {
	client   *containerd.Client
	id       string
	platform string
}

// Start creates the sandbox's container and a long-running task (sleep
// infinity) so that Run can attach additional execs to it, the same
// pattern the host daemon uses to keep a container alive across
// multiple commands.
func (s *Sandbox) Start(ctx context.Context, cfg Config) error {
	s.remove(ctx)

	mounts := make([]specs.Mount, 0, len(cfg.Mounts))
	for _, m := range cfg.Mounts {
		opts := []string{"rbind"}
		if m.ReadOnly {
			opts = append(opts, "ro")
		} else {
			opts = append(opts, "rw")
		}
		mounts = append(mounts, specs.Mount{
			Source:      m.Source,
			Destination: m.Destination,
			Type:        "bind",
			Options:     opts,
		})
	}

	ctr, err := s.client.NewContainer(ctx, s.id,
		containerd.WithRuntime(ociRuntime, nil),
		containerd.WithNewSpec(
			oci.WithDefaultSpecForPlatform(s.platform),
			oci.WithRootFSPath(cfg.RootFS),
			oci.WithHostNamespace(specs.NetworkNamespace),
			oci.WithHostResolvconf,
			oci.WithMounts(mounts),
			oci.WithEnv(cfg.Env),
			oci.WithProcessArgs("sleep", "infinity"),
		),
	)
	if err != nil {
		return errs.Wrap(ErrSandbox, err)
	}

	task, err := ctr.NewTask(ctx, cio.NullIO)
	if err != nil {
		ctr.Delete(ctx)
		return errs.Wrap(ErrSandbox, err)
	}
	if err := task.Start(ctx); err != nil {
		task.Delete(ctx)
		ctr.Delete(ctx)
		return errs.Wrap(ErrSandbox, err)
	}

	slog.Debug("sandbox started", "id", s.id, "rootfs", cfg.RootFS)
	return nil
}

// Destroy kills the sandbox's task and removes the container. It is
// called on every exit path (stage success, stage failure, or a host
// API/sandbox error) so no containerd state outlives the invocation.
func (s *Sandbox) Destroy(ctx context.Context) {
	ctr, err := s.client.LoadContainer(ctx, s.id)
	if err != nil {
		if !errdefs.IsNotFound(err) {
			slog.Warn("failed to load sandbox for destruction", "id", s.id, "error", err)
		}
		return
	}

	if task, err := ctr.Task(ctx, nil); err == nil {
		task.Kill(ctx, syscall.SIGKILL)
		task.Delete(ctx, containerd.WithProcessKill)
	}

	if err := ctr.Delete(ctx); err != nil && !errdefs.IsNotFound(err) {
		slog.Warn("failed to delete sandbox during destruction", "id", s.id, "error", err)
	}
}

func (s *Sandbox) remove(ctx context.Context) {
	existing, err := s.client.LoadContainer(ctx, s.id)
	if err != nil {
		return
	}
	if task, err := existing.Task(ctx, nil); err == nil {
		task.Kill(ctx, syscall.SIGKILL)
		task.Delete(ctx, containerd.WithProcessKill)
	}
	existing.Delete(ctx)
}
