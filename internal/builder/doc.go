// Package builder turns a unit's composed script into an OCI image.
//
// The [Builder] interface accepts a fully resolved [Request]: the unit
// name, the base image reference, the linearized shell script, and the
// staged build context directory. Implementations return an [Image]
// describing where the exported archive landed and its manifest digest.
//
// [Containerd] is the production implementation. It pulls the base
// image if absent, starts a build container with an overlayfs snapshot,
// uploads the context as a tar stream, runs the script under
// /bin/sh -e, commits the snapshot diff as a new layer, and exports the
// result as an OCI archive.
//
// Example usage:
//
//	b, err := builder.NewContainerd(builder.Config{
//	    Address:   "/run/containerd/containerd.sock",
//	    Namespace: "strata",
//	    Output:    "out",
//	})
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//
//	img, err := b.Build(ctx, builder.Request{
//	    Unit:   "app",
//	    Base:   "docker.io/library/alpine:3.20",
//	    Script: script,
//	})
package builder
