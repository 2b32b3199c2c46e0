package fingerprint

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/opencontainers/go-digest"

	"github.com/cruciblehq/strata/internal/unit"
)

// Returns the digest of a unit's build-context file set, memoized per unit.
//
// The digest covers a sorted list of (relative path, content digest) pairs
// for every regular file under the unit's context directory. Sorting by
// path makes the result independent of filesystem enumeration order, and
// hashing contents makes it independent of timestamps. A unit without a
// context directory digests as an empty file set.
func (e *Engine) fileset(u *unit.Unit) (digest.Digest, error) {
	if fs, ok := e.filesets[u.Name]; ok {
		return fs, nil
	}

	digester := digest.Canonical.Digester()
	h := digester.Hash()

	if u.ContextDir != "" {
		dir := filepath.Join(e.root, u.ContextDir)
		files, err := listFiles(dir)
		if err != nil {
			return "", fmt.Errorf("%w: context of unit %q: %v", ErrUnreadableFile, u.Name, err)
		}

		for _, rel := range files {
			content, err := digestFile(filepath.Join(dir, filepath.FromSlash(rel)))
			if err != nil {
				return "", fmt.Errorf("%w: %s: %v", ErrUnreadableFile, rel, err)
			}
			writeField(h, []byte(rel))
			writeField(h, []byte(content))
		}
	}

	fs := digester.Digest()
	e.filesets[u.Name] = fs
	return fs, nil
}

// Lists every regular file under dir as a sorted slice of slash-separated
// paths relative to dir.
func listFiles(dir string) ([]string, error) {
	var files []string
	walk := func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	}
	if err := filepath.WalkDir(dir, walk); err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Returns the content digest of a single file.
func digestFile(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return digest.FromReader(f)
}
