package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pipeforge/pipeforged/internal/config"
	"github.com/pipeforge/pipeforged/internal/engine"
	"github.com/pipeforge/pipeforged/internal/manifest"
	"github.com/pipeforge/pipeforged/internal/metrics"
	"github.com/pipeforge/pipeforged/internal/sandbox"
	"github.com/pipeforge/pipeforged/internal/schema"
	"github.com/pipeforge/pipeforged/internal/store"
)

// RunCmd executes a manifest file's pipeline end to end.
type RunCmd struct {
	Manifest       string `arg:"" help:"Path to a pipeline manifest JSON file."`
	Store          string `help:"Override the object store root." placeholder:"PATH"`
	Libdir         string `help:"Override the directory stage/source programs are resolved under." placeholder:"PATH"`
	MetricsAddr    string `help:"Loopback address to serve Prometheus metrics on." placeholder:"HOST:PORT"`
	ContainerdAddr string `default:"/run/containerd/containerd.sock" help:"containerd socket address."`
	Namespace      string `default:"pipeforge" help:"containerd namespace for sandboxes."`
	NoSandbox      bool   `help:"Run only built-in stages; fail instead of connecting to containerd."`
}

// Run builds an Engine from the resolved config and executes the
// manifest, printing the final object identifier on success.
func (c *RunCmd) Run(ctx context.Context) error {
	eng, s, rt, err := buildEngine(ctx, c.Store, c.Libdir, c.MetricsAddr, c.ContainerdAddr, c.Namespace, c.NoSandbox)
	if err != nil {
		return err
	}
	defer s.Close()
	if rt != nil {
		defer rt.Close()
	}

	data, err := os.ReadFile(c.Manifest)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}
	m, err := manifest.Decode(data)
	if err != nil {
		return fmt.Errorf("decoding manifest: %w", err)
	}

	res, err := eng.Run(ctx, m)
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}

	slog.Info("pipeline complete", "id", res.FinalID, "executed", res.Executed)
	fmt.Println(res.FinalID)
	return nil
}

func buildEngine(ctx context.Context, storeOverride, libdirOverride, metricsAddr, containerdAddr, namespace string, noSandbox bool) (*engine.Engine, *store.Store, *sandbox.Runtime, error) {
	cfg, err := config.Load(RootCmd.Config)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if storeOverride != "" {
		cfg.StoreRoot = storeOverride
	}
	if libdirOverride != "" {
		cfg.Libdir = libdirOverride
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}

	s, err := store.Open(cfg.StoreRoot)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening store %s: %w", cfg.StoreRoot, err)
	}
	if err := s.Hint(cfg.Snapshotter); err != nil {
		s.Close()
		return nil, nil, nil, fmt.Errorf("applying snapshotter hint %q: %w", cfg.Snapshotter, err)
	}

	schemas, err := schema.Load(cfg.Libdir)
	if err != nil {
		s.Close()
		return nil, nil, nil, fmt.Errorf("loading schemas from %s: %w", cfg.Libdir, err)
	}

	reg := metrics.New()
	reg.Serve(ctx, cfg.MetricsAddr)

	var rt *sandbox.Runtime
	if !noSandbox {
		rt, err = sandbox.New(containerdAddr, namespace)
		if err != nil {
			s.Close()
			return nil, nil, nil, fmt.Errorf("connecting to containerd at %s: %w", containerdAddr, err)
		}
	}

	eng := engine.New(engine.Config{
		Store:     s,
		Schemas:   schemas,
		Libdir:    cfg.Libdir,
		Metrics:   reg,
		KillGrace: cfg.KillGrace,
		Runtime:   rt,
	})
	return eng, s, rt, nil
}
