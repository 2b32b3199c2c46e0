package manifest

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/cruciblehq/strata/internal/unit"
)

// Shape of a single unit block in the manifest.
type unitBlock struct {
	Name        string   `hcl:"name,label"`
	Base        string   `hcl:"base,optional"`
	Requires    []string `hcl:"requires,optional"`
	Context     string   `hcl:"context,optional"`
	Build       string   `hcl:"build,optional"`
	Description string   `hcl:"description,optional"`
}

// Top-level manifest structure.
type root struct {
	Units []unitBlock `hcl:"unit,block"`
}

// Parses an HCL manifest file and registers every unit it declares.
//
// Parse and decode diagnostics carry file and line positions. Declaration
// order in the file becomes the registry's enumeration order.
func Load(path string) (*unit.Registry, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %w", ErrManifest, diags)
	}

	var r root
	if diags := gohcl.DecodeBody(file.Body, nil, &r); diags.HasErrors() {
		return nil, fmt.Errorf("%w: %w", ErrManifest, diags)
	}

	reg := unit.NewRegistry()
	for _, b := range r.Units {
		u := &unit.Unit{
			Name:        b.Name,
			Base:        b.Base,
			Requires:    b.Requires,
			ContextDir:  b.Context,
			Steps:       b.Build,
			Description: b.Description,
		}
		if err := reg.Register(u); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrManifest, path, err)
		}
	}

	return reg, nil
}
