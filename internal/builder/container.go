package builder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"syscall"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/oci"
	"github.com/containerd/errdefs"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Sequence counter for generating unique exec process identifiers.
var execSeq uint64

// Returns a unique exec process identifier.
func nextExecID() string {
	return fmt.Sprintf("exec-%d", atomic.AddUint64(&execSeq, 1))
}

// A running build container backed by containerd.
type container struct {
	client      *containerd.Client
	id          string
	platform    string
	snapshotter string
}

// Output of a command execution inside the container.
type execResult struct {
	exitCode int
	stderr   string
}

// Starts a build container from the given image.
//
// Any stale container left behind by a previous run with the same ID is
// removed first. The container runs a long-lived task (sleep infinity) so
// that subsequent execs have a running process to attach to.
func (b *Containerd) startContainer(ctx context.Context, image containerd.Image, id string) (*container, error) {
	c := &container{
		client:      b.client,
		id:          id,
		platform:    b.platform,
		snapshotter: b.snapshotter,
	}

	c.remove(ctx)

	ctr, err := c.create(ctx, image)
	if err != nil {
		return nil, err
	}

	if err := c.startTask(ctx, ctr); err != nil {
		ctr.Delete(ctx, containerd.WithSnapshotCleanup)
		return nil, err
	}

	slog.Debug("container started", "id", id, "image", image.Name())
	return c, nil
}

// Creates the containerd container with the standard build configuration.
func (c *container) create(ctx context.Context, image containerd.Image) (containerd.Container, error) {
	return c.client.NewContainer(ctx, c.id,
		containerd.WithImage(image),
		containerd.WithSnapshotter(c.snapshotter),
		containerd.WithNewSnapshot(c.id, image),
		containerd.WithRuntime(ociRuntime, nil),
		containerd.WithNewSpec(
			oci.WithDefaultSpecForPlatform(c.platform),
			oci.WithImageConfig(image),
			oci.WithHostNamespace(specs.NetworkNamespace),
			oci.WithHostResolvconf,
			oci.WithProcessArgs("sleep", "infinity"),
		),
	)
}

// Starts the container's long-running task with no attached IO.
func (c *container) startTask(ctx context.Context, ctr containerd.Container) error {
	task, err := ctr.NewTask(ctx, cio.NullIO)
	if err != nil {
		return err
	}
	if err := task.Start(ctx); err != nil {
		task.Delete(ctx)
		return err
	}
	return nil
}

// Runs a command inside the container and waits for it to exit.
//
// A non-zero exit code is not an error; the caller decides how to handle
// it. The workdir overrides the container's OCI spec for this execution
// only.
func (c *container) exec(ctx context.Context, cmd string, args []string, workdir string) (*execResult, error) {
	pspec, err := c.buildProcessSpec(ctx, workdir, append([]string{cmd}, args...)...)
	if err != nil {
		return nil, err
	}

	var stderr bytes.Buffer
	exitCode, err := c.execProcess(ctx, pspec, nil, io.Discard, &stderr)
	if err != nil {
		return nil, err
	}

	return &execResult{exitCode: exitCode, stderr: stderr.String()}, nil
}

// Creates a directory inside the container, including parents.
func (c *container) mkdirAll(ctx context.Context, path string) error {
	return c.mustExec(ctx, "mkdir", nil, "mkdir", "-p", path)
}

// Copies a tar stream into the container's filesystem at destDir.
func (c *container) copyTo(ctx context.Context, r io.Reader, destDir string) error {
	return c.mustExec(ctx, "tar extract", r, "tar", "xf", "-", "-C", destDir)
}

// Runs a command inside the container, failing when the process exits
// non-zero.
func (c *container) mustExec(ctx context.Context, desc string, stdin io.Reader, args ...string) error {
	pspec, err := c.buildProcessSpec(ctx, "", args...)
	if err != nil {
		return err
	}

	var stderr bytes.Buffer
	exitCode, err := c.execProcess(ctx, pspec, stdin, io.Discard, &stderr)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return fmt.Errorf("%s failed with exit code %d (%s)", desc, exitCode, stderr.String())
	}
	return nil
}

// Builds an OCI process spec for running a command inside the container.
//
// The base values are copied from the container's own OCI spec; workdir is
// overridden when provided.
func (c *container) buildProcessSpec(ctx context.Context, workdir string, args ...string) (*specs.Process, error) {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return nil, err
	}

	spec, err := ctr.Spec(ctx)
	if err != nil {
		return nil, err
	}

	pspec := *spec.Process
	pspec.Terminal = false
	pspec.Args = args
	if workdir != "" {
		pspec.Cwd = workdir
	}

	return &pspec, nil
}

// Starts a process inside the container's running task, waits for it to
// exit, and returns the exit code.
//
// The process is attached as an additional exec, which requires the task
// started by startTask to still be running. When stdin is provided, the
// process stdin is closed after the reader returns EOF so the exec process
// receives the EOF signal; the containerd shim holds both ends of the stdin
// FIFO open and will not propagate EOF on its own.
func (c *container) execProcess(ctx context.Context, pspec *specs.Process, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	task, err := c.loadTask(ctx)
	if err != nil {
		return 0, err
	}

	var stdinDone <-chan struct{}
	if stdin != nil {
		dr := newDoneReader(stdin)
		stdin = dr
		stdinDone = dr.done
	}

	process, err := task.Exec(ctx, nextExecID(), pspec, cio.NewCreator(
		cio.WithStreams(stdin, stdout, stderr),
	))
	if err != nil {
		return 0, err
	}

	statusC, err := process.Wait(ctx)
	if err != nil {
		process.Delete(ctx)
		return 0, err
	}

	if err := process.Start(ctx); err != nil {
		process.Delete(ctx)
		return 0, err
	}

	if stdinDone != nil {
		go func() {
			<-stdinDone
			process.CloseIO(ctx, containerd.WithStdinCloser)
		}()
	}

	exitStatus := <-statusC
	process.Delete(ctx)

	code, _, err := exitStatus.Result()
	if err != nil {
		return 0, err
	}
	return int(code), nil
}

// Reader that signals EOF of the upload stream through a channel.
//
// execProcess needs to know when a stdin stream is exhausted so it can
// close the process's stdin FIFO; the done channel is closed exactly once
// on the first EOF. Non-EOF errors pass through without closing it.
type doneReader struct {
	r    io.Reader
	once sync.Once
	done chan struct{}
}

func newDoneReader(r io.Reader) *doneReader {
	return &doneReader{r: r, done: make(chan struct{})}
}

func (d *doneReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if err == io.EOF {
		d.once.Do(func() { close(d.done) })
	}
	return n, err
}

// Loads the container's running task.
func (c *container) loadTask(ctx context.Context) (containerd.Task, error) {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return nil, err
	}
	return ctr.Task(ctx, nil)
}

// Stops the container's task, preserving the container and its snapshot
// for the subsequent export. Stopping an already-stopped container is not
// an error.
func (c *container) stop(ctx context.Context) error {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return err
	}

	task, err := ctr.Task(ctx, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return err
	}

	task.Kill(ctx, syscall.SIGKILL)
	if _, err := task.Delete(ctx, containerd.WithProcessKill); err != nil && !errdefs.IsNotFound(err) {
		return err
	}
	return nil
}

// Removes the container and its resources. After destruction the handle is
// invalid.
func (c *container) destroy(ctx context.Context) {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		if !errdefs.IsNotFound(err) {
			slog.Warn("failed to load container for destruction", "id", c.id, "error", err)
		}
		return
	}

	if task, err := ctr.Task(ctx, nil); err == nil {
		task.Kill(ctx, syscall.SIGKILL)
		task.Delete(ctx, containerd.WithProcessKill)
	}

	if err := ctr.Delete(ctx, containerd.WithSnapshotCleanup); err != nil && !errdefs.IsNotFound(err) {
		slog.Warn("failed to delete container during destruction", "id", c.id, "error", err)
	}
}

// Removes an existing container with this ID, if one exists.
func (c *container) remove(ctx context.Context) {
	existing, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return
	}
	if task, err := existing.Task(ctx, nil); err == nil {
		task.Kill(ctx, syscall.SIGKILL)
		task.Delete(ctx, containerd.WithProcessKill)
	}
	existing.Delete(ctx, containerd.WithSnapshotCleanup)
}
