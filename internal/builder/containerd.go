package builder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
)

const (

	// Directory inside the build container where the staged context is
	// extracted and the script runs.
	workDir = "/strata/context"

	// OCI runtime shim for running build containers.
	ociRuntime = "io.containerd.runc.v2"
)

// Settings for the containerd-backed builder.
type Config struct {
	Address     string // Containerd socket address.
	Namespace   string // Containerd namespace scoping all operations.
	Snapshotter string // Snapshotter for container filesystems; defaults to overlayfs.
	Output      string // Directory receiving exported image archives.
	Platform    string // Target OCI platform; defaults to the host.
}

// Builds unit images by driving a containerd daemon.
//
// Each build pulls (or reuses) the base image, starts a container with a
// long-running task, streams the staged build context in as a tar, runs the
// composed script with "sh -e", commits the snapshot diff as a new layer,
// and exports the result as an OCI archive under the output directory.
type Containerd struct {
	client      *containerd.Client
	snapshotter string
	output      string
	platform    string
}

// Connects to containerd and returns a builder.
//
// The builder must be closed when no longer needed.
func NewContainerd(cfg Config) (*Containerd, error) {
	client, err := containerd.New(cfg.Address, containerd.WithDefaultNamespace(cfg.Namespace))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	snapshotter := cfg.Snapshotter
	if snapshotter == "" {
		snapshotter = "overlayfs"
	}
	platform := cfg.Platform
	if platform == "" {
		platform = defaultPlatform()
	}

	return &Containerd{
		client:      client,
		snapshotter: snapshotter,
		output:      cfg.Output,
		platform:    platform,
	}, nil
}

// Closes the containerd client connection.
func (b *Containerd) Close() error {
	return b.client.Close()
}

// Builds one unit image.
//
// The build container is destroyed when the build completes, whether it
// succeeded or not. Only a fully exported archive counts as success.
func (b *Containerd) Build(ctx context.Context, req Request) (*Image, error) {
	image, err := b.ensureImage(ctx, req.Base)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrImageResolve, req.Base, err)
	}

	ctr, err := b.startContainer(ctx, image, containerID(req.Unit))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContainer, err)
	}
	defer ctr.destroy(context.WithoutCancel(ctx))

	if err := ctr.mkdirAll(ctx, workDir); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContainer, err)
	}

	if req.ContextDir != "" {
		if err := b.uploadContext(ctx, ctr, req.ContextDir); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrContainer, err)
		}
	}

	slog.Debug("running build script", "unit", req.Unit, "bytes", len(req.Script))
	result, err := ctr.exec(ctx, "/bin/sh", []string{"-e", "-c", req.Script}, workDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContainer, err)
	}
	if result.exitCode != 0 {
		return nil, fmt.Errorf("%w: exit code %d: %s", ErrScriptFailed, result.exitCode, strings.TrimSpace(result.stderr))
	}

	if err := ctr.stop(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContainer, err)
	}

	outputDir := filepath.Join(b.output, req.Unit)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageExport, err)
	}

	archive, target, err := ctr.export(ctx, outputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageExport, err)
	}

	slog.Info("image exported", "unit", req.Unit, "path", archive)

	return &Image{
		Unit:    req.Unit,
		Archive: archive,
		Digest:  target.Digest,
	}, nil
}

// Resolves the base reference to a local image, pulling it when absent,
// and unpacks its layers for the configured snapshotter.
func (b *Containerd) ensureImage(ctx context.Context, ref string) (containerd.Image, error) {
	p, err := platforms.Parse(b.platform)
	if err != nil {
		return nil, err
	}

	img, err := b.client.GetImage(ctx, ref)
	if errdefs.IsNotFound(err) {
		slog.Info("pulling base image", "ref", ref)
		img, err = b.client.Pull(ctx, ref,
			containerd.WithPlatformMatcher(platforms.Only(p)),
			containerd.WithPullUnpack,
			containerd.WithPullSnapshotter(b.snapshotter),
		)
	}
	if err != nil {
		return nil, err
	}

	if err := img.Unpack(ctx, b.snapshotter); err != nil {
		return nil, err
	}
	return img, nil
}

// Streams the staged context directory into the build container's work
// directory as a tar archive.
func (b *Containerd) uploadContext(ctx context.Context, ctr *container, dir string) error {
	pr := tarDir(dir)
	return ctr.copyTo(ctx, pr, workDir)
}

// Returns the build container ID for a unit.
func containerID(unit string) string {
	return "strata-build-" + unit
}

// Returns the default OCI platform for the host architecture.
func defaultPlatform() string {
	return "linux/" + goruntime.GOARCH
}
