package executor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cruciblehq/strata/internal/graph"
)

// Assembles the unit's effective build context under the staging root.
//
// Each plan entry's context directory is copied into its own subdirectory
// named after the entry, so files from sibling units can never shadow each
// other. The previous staging for the unit is removed first. Entries with
// no context directory contribute nothing.
func (e *Executor) stage(name string, plan *graph.Plan) (string, error) {
	dest := filepath.Join(e.opts.Staging, name)
	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStage, err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStage, err)
	}

	for _, entry := range plan.Units {
		u, err := e.graph.Unit(entry)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrStage, err)
		}
		if u.ContextDir == "" {
			continue
		}
		src := filepath.Join(e.opts.Root, u.ContextDir)
		if err := copyTree(src, filepath.Join(dest, entry)); err != nil {
			return "", fmt.Errorf("%w: %w", ErrStage, err)
		}
	}

	return dest, nil
}

// Copies a directory tree, preserving file modes.
func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
