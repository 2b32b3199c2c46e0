package fingerprint

import (
	"encoding/binary"
	"hash"
	"log/slog"

	"github.com/opencontainers/go-digest"

	"github.com/cruciblehq/strata/internal/graph"
)

// Computes content fingerprints for units.
//
// A unit's fingerprint is a digest over its effective build plan: for each
// plan entry, in plan order, the entry's name, base reference, recipe text,
// and build-context file set. Because the plan includes everything reachable
// from the unit, any upstream change reproduces in every descendant's
// fingerprint, and an unchanged tree always reproduces the same digest.
//
// One engine instance memoizes per-unit file-set digests, so a context
// directory shared by many descendants is hashed once per run.
type Engine struct {
	root     string                   // directory against which unit context dirs resolve
	filesets map[string]digest.Digest // unit name -> file-set digest
}

// Creates an engine resolving unit context directories against root.
func NewEngine(root string) *Engine {
	return &Engine{
		root:     root,
		filesets: make(map[string]digest.Digest),
	}
}

// Computes the fingerprint for the plan's target.
//
// Fails with [ErrUnreadableFile] when any file under any plan entry's
// context directory cannot be read. The caller should treat the unit's
// status as unknown rather than unchanged.
func (e *Engine) Fingerprint(g *graph.Graph, plan *graph.Plan) (digest.Digest, error) {
	digester := digest.Canonical.Digester()
	h := digester.Hash()

	for _, name := range plan.Units {
		u, err := g.Unit(name)
		if err != nil {
			return "", err
		}

		writeField(h, []byte(u.Name))
		writeField(h, []byte(u.Base))
		writeField(h, []byte(u.Steps))

		fs, err := e.fileset(u)
		if err != nil {
			return "", err
		}
		writeField(h, []byte(fs))
	}

	return digester.Digest(), nil
}

// Computes fingerprints for every named unit.
//
// Units whose fingerprint cannot be computed are omitted from the result
// and logged; the planner treats a missing fingerprint as "must rebuild".
func (e *Engine) All(g *graph.Graph, names []string) (map[string]digest.Digest, error) {
	fps := make(map[string]digest.Digest, len(names))
	for _, name := range names {
		plan, err := g.Linearize(name)
		if err != nil {
			return nil, err
		}
		fp, err := e.Fingerprint(g, plan)
		if err != nil {
			slog.Warn("fingerprint unavailable, unit will rebuild", "unit", name, "error", err)
			continue
		}
		fps[name] = fp
	}
	return fps, nil
}

// Writes a length-prefixed field into the digest hash.
//
// The prefix keeps adjacent fields unambiguous: no concatenation of two
// distinct field sequences can produce the same byte stream.
func writeField(h hash.Hash, data []byte) {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(len(data)))
	h.Write(prefix[:])
	h.Write(data)
}
