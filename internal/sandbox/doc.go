// Package sandbox runs a single stage invocation inside an isolated
// containerd task (§4, "Stage Sandbox"). Unlike a conventional
// container, the sandbox's root filesystem is a plain directory already
// materialized by the object store (a clone of the upstream object, or
// an empty tree for the first stage of a pipeline) — there is no image
// to pull or snapshot to create, so the sandbox is built with
// oci.WithRootFSPath instead of oci.WithImageConfig plus
// containerd.WithNewSnapshot.
//
// A Sandbox starts a long-running task (sleep infinity, mirroring how
// the teacher daemon keeps a task alive for repeated Exec calls) with
// the build tree as its root filesystem, bind mounts whatever the caller
// lists (libdir, sources, resolved inputs, and the scratch directory
// holding the host API socket), and runs the stage program as an additional exec
// against that task. Destroying the sandbox tears down the task and
// releases its mount namespace; it never touches the store directly —
// committing or discarding the build tree is the executor's job.
package sandbox
