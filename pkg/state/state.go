// Package state manages the runtime folder layout under the DB path.
package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the canonical runtime directories.
type Paths struct {
	Store     string
	Retention string
	Tmp       string
}

// PathsVar is populated by Init and read by the retention runner.
var PathsVar Paths

// Init ensures the canonical runtime folder layout exists under the
// provided DB path and records the resolved paths. It rejects symlinks
// and permissive modes.
func Init(dbPath string) error {
	storePath := filepath.Join(dbPath, "store")
	statePath := filepath.Join(dbPath, "state")
	retentionPath := filepath.Join(statePath, "retention")
	tmpPath := filepath.Join(statePath, "tmp")

	for _, p := range []string{storePath, retentionPath, tmpPath} {
		if err := ensureDir(p); err != nil {
			return err
		}
	}
	PathsVar = Paths{Store: storePath, Retention: retentionPath, Tmp: tmpPath}
	return nil
}

func ensureDir(p string) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("cannot create parent for %s: %w", p, err)
	}
	if fi, err := os.Lstat(p); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("path is a symlink: %s", p)
		}
		if !fi.IsDir() {
			return fmt.Errorf("path exists and is not a directory: %s", p)
		}
		if fi.Mode().Perm()&0o022 != 0 {
			return fmt.Errorf("path has permissive mode (group/other write): %s", p)
		}
	}
	if err := os.MkdirAll(p, 0o700); err != nil {
		return fmt.Errorf("cannot create path %s: %w", p, err)
	}
	// writability check
	tmp, err := os.CreateTemp(p, ".validate-*")
	if err != nil {
		return fmt.Errorf("path not writable: %s: %w", p, err)
	}
	tmp.Close()
	_ = os.Remove(tmp.Name())
	return nil
}
