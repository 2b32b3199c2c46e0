package unit

import (
	"errors"
	"testing"
)

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	u := &Unit{Name: "base", Steps: "RUN true"}
	if err := r.Register(u); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := r.Lookup("base")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != u {
		t.Fatal("Lookup returned a different unit value")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&Unit{Name: "base"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	err := r.Register(&Unit{Name: "base"})
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("err = %v, want ErrDuplicateName", err)
	}
}

func TestLookupUnknown(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Lookup("missing"); !errors.Is(err, ErrUnknownUnit) {
		t.Fatalf("err = %v, want ErrUnknownUnit", err)
	}
}

func TestNamesInsertionOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(&Unit{Name: name}); err != nil {
			t.Fatalf("Register %q: %v", name, err)
		}
	}

	want := []string{"zeta", "alpha", "mid"}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("len(Names) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// Stable across repeated calls.
	again := r.Names()
	for i := range got {
		if again[i] != got[i] {
			t.Fatal("Names order changed between calls")
		}
	}
}

func TestNamesIsACopy(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&Unit{Name: "only"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	names := r.Names()
	names[0] = "mutated"
	if r.Names()[0] != "only" {
		t.Fatal("mutating the returned slice changed registry state")
	}
}
