package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/containerd/containerd/v2/pkg/cio"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/pipeforge/pipeforged/internal/errs"
)

var execSeq uint64

func nextExecID() string {
	return fmt.Sprintf("stage-exec-%d", atomic.AddUint64(&execSeq, 1))
}

// Result is the outcome of running a stage program inside a sandbox.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Run executes args as an additional process inside the sandbox's
// running task and waits for it to exit. If the context is canceled
// before the process exits, Run sends SIGTERM, waits up to killGrace
// for a clean exit, and then sends SIGKILL — the "bounded grace period"
// signal forwarding described in §5.
func (s *Sandbox) Run(ctx context.Context, args []string, env []string, cwd string, killGrace time.Duration) (*Result, error) {
	return s.RunWithStdin(ctx, args, env, cwd, nil, killGrace)
}

// RunWithStdin is Run with a caller-supplied stdin stream, used by
// source fetchers, which read their request as JSON from stdin instead
// of talking to the Host API (§4.2).
func (s *Sandbox) RunWithStdin(ctx context.Context, args []string, env []string, cwd string, stdin io.Reader, killGrace time.Duration) (*Result, error) {
	ctr, err := s.client.LoadContainer(ctx, s.id)
	if err != nil {
		return nil, errs.Wrap(ErrSandbox, err)
	}

	task, err := ctr.Task(ctx, nil)
	if err != nil {
		return nil, errs.Wrap(ErrSandbox, err)
	}

	spec, err := ctr.Spec(ctx)
	if err != nil {
		return nil, errs.Wrap(ErrSandbox, err)
	}

	pspec := *spec.Process
	pspec.Terminal = false
	pspec.Args = args
	if len(env) > 0 {
		pspec.Env = mergeEnv(pspec.Env, env)
	}
	if cwd != "" {
		pspec.Cwd = cwd
	}

	var stdout, stderr bytes.Buffer
	process, err := task.Exec(ctx, nextExecID(), &pspec, cio.NewCreator(
		cio.WithStreams(stdin, &stdout, &stderr),
	))
	if err != nil {
		return nil, errs.Wrap(ErrSandbox, err)
	}
	defer process.Delete(context.Background())

	statusC, err := process.Wait(ctx)
	if err != nil {
		return nil, errs.Wrap(ErrSandbox, err)
	}
	if err := process.Start(ctx); err != nil {
		return nil, errs.Wrap(ErrSandbox, err)
	}

	select {
	case exitStatus := <-statusC:
		code, _, err := exitStatus.Result()
		if err != nil {
			return nil, errs.Wrap(ErrSandbox, err)
		}
		return &Result{ExitCode: int(code), Stdout: stdout.String(), Stderr: stderr.String()}, nil

	case <-ctx.Done():
		process.Kill(context.Background(), syscall.SIGTERM)
		select {
		case <-statusC:
		case <-time.After(killGrace):
			process.Kill(context.Background(), syscall.SIGKILL)
			<-statusC
		}
		return nil, errs.Wrap(ErrSandbox, ctx.Err())
	}
}

func mergeEnv(base, overrides []string) []string {
	merged := make(map[string]string, len(base)+len(overrides))
	for _, entry := range base {
		if k, v, ok := strings.Cut(entry, "="); ok {
			merged[k] = v
		}
	}
	for _, entry := range overrides {
		if k, v, ok := strings.Cut(entry, "="); ok {
			merged[k] = v
		}
	}
	result := make([]string, 0, len(merged))
	for k, v := range merged {
		result = append(result, k+"="+v)
	}
	return result
}
