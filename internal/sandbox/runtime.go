package sandbox

import (
	containerd "github.com/containerd/containerd/v2/client"

	"github.com/pipeforge/pipeforged/internal/errs"
)

// OCI runtime shim used to run every stage sandbox.
const ociRuntime = "io.containerd.runc.v2"

// Runtime connects to a containerd daemon and creates Sandboxes scoped
// to a single namespace, mirroring how every stage invocation in a
// pipeline shares one engine process but gets its own container.
type Runtime struct {
	client *containerd.Client
}

// New connects to the containerd socket at address, scoping all
// operations to namespace.
func New(address, namespace string) (*Runtime, error) {
	client, err := containerd.New(address, containerd.WithDefaultNamespace(namespace))
	if err != nil {
		return nil, errs.Wrap(ErrSandbox, err)
	}
	return &Runtime{client: client}, nil
}

// Close closes the containerd client connection.
func (rt *Runtime) Close() error {
	return rt.client.Close()
}

// Sandbox returns a handle for a not-yet-started sandbox with the given
// id, which becomes the containerd container ID.
func (rt *Runtime) Sandbox(id, platform string) *Sandbox {
	return &Sandbox{client: rt.client, id: id, platform: platform}
}
