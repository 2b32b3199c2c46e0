package unit

// A named image build recipe.
//
// Units are inert data: the orchestrator never interprets the recipe text,
// it only composes, fingerprints, and hands it to the builder.
type Unit struct {
	Name        string   // Unique identifier, the graph node key.
	Base        string   // Optional explicit base image reference.
	Requires    []string // Units this unit depends on, in inheritance order.
	ContextDir  string   // Optional directory scoping the unit's build context.
	Steps       string   // The unit's own recipe text, treated as opaque.
	Description string   // Free text, non-functional.
}
