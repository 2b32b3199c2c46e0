package record

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "records.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetAbsent(t *testing.T) {
	s := openStore(t)

	_, ok, err := s.Get("never-built")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("Get reported a record for a unit that was never built")
	}
}

func TestPutAndGet(t *testing.T) {
	s := openStore(t)

	fp := digest.FromString("recipe-v1")
	at := time.Unix(1756166400, 0)
	if err := s.Put("base", fp, at); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rec, ok, err := s.Get("base")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("record not found after Put")
	}
	if rec.Fingerprint != fp {
		t.Fatalf("fingerprint = %s, want %s", rec.Fingerprint, fp)
	}
	if !rec.BuiltAt.Equal(at) {
		t.Fatalf("builtAt = %v, want %v", rec.BuiltAt, at)
	}
}

func TestPutOverwrites(t *testing.T) {
	s := openStore(t)

	if err := s.Put("base", digest.FromString("v1"), time.Unix(100, 0)); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	want := digest.FromString("v2")
	if err := s.Put("base", want, time.Unix(200, 0)); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	rec, ok, err := s.Get("base")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if rec.Fingerprint != want {
		t.Fatalf("fingerprint = %s, want %s", rec.Fingerprint, want)
	}
}

func TestAll(t *testing.T) {
	s := openStore(t)

	units := map[string]digest.Digest{
		"base":   digest.FromString("a"),
		"python": digest.FromString("b"),
	}
	for name, fp := range units {
		if err := s.Put(name, fp, time.Unix(1, 0)); err != nil {
			t.Fatalf("Put %q: %v", name, err)
		}
	}

	all, err := s.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != len(units) {
		t.Fatalf("len(All) = %d, want %d", len(all), len(units))
	}
	for name, fp := range units {
		if all[name].Fingerprint != fp {
			t.Fatalf("All[%q].Fingerprint = %s, want %s", name, all[name].Fingerprint, fp)
		}
	}
}

func TestPersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	fp := digest.FromString("persisted")
	if err := s.Put("base", fp, time.Unix(42, 0)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	rec, ok, err := reopened.Get("base")
	if err != nil || !ok {
		t.Fatalf("Get after reopen: ok=%v err=%v", ok, err)
	}
	if rec.Fingerprint != fp {
		t.Fatalf("fingerprint = %s, want %s", rec.Fingerprint, fp)
	}
}
