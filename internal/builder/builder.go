package builder

import (
	"context"

	"github.com/opencontainers/go-digest"
)

// A request to build one unit image.
type Request struct {
	Unit       string // Unit name, used for container and artifact naming.
	Base       string // Base image reference to build on top of.
	Script     string // Composed effective build script.
	ContextDir string // Staged effective build context, empty when the plan has none.
}

// The result of a successful build.
type Image struct {
	Unit    string        // Unit the image was built for.
	Archive string        // Path to the exported OCI archive.
	Digest  digest.Digest // Digest of the exported image target.
}

// Builds unit images.
//
// The orchestrator treats a Builder as an opaque, possibly slow, blocking
// capability: it is handed a composed script and a context directory and
// either produces an image or fails. Implementations must honor context
// cancellation and deadlines.
type Builder interface {
	Build(ctx context.Context, req Request) (*Image, error)
}
