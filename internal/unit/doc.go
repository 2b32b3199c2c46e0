// Package unit defines image build units and the registry that holds them.
//
// A [Unit] is a named recipe with an ordered requires list linking it to the
// units it inherits build steps from. The [Registry] is the single owner of
// all unit definitions for a run; every other component refers to units by
// name through it.
package unit
