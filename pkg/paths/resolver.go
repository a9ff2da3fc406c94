// Package paths normalizes raw syscall path arguments for display and
// matching, and classifies rename-family operations.
package paths

import (
	"os"
	"path/filepath"

	"github.com/jingkaihe/whatif/pkg/api"
)

// StatFunc checks for path existence. Injectable so the engine can be
// exercised without touching a real filesystem.
type StatFunc func(path string) (os.FileInfo, error)

// Resolver turns raw path arguments into absolute paths relative to the
// traced process's working directory. Normalization is purely lexical; only
// existence checks consult the (injected) filesystem.
type Resolver struct {
	workingDir string
	stat       StatFunc
}

// NewResolver builds a resolver rooted at workingDir. An empty workingDir
// falls back to the tracer host's current directory; a nil stat falls back
// to os.Stat.
func NewResolver(workingDir string, stat StatFunc) *Resolver {
	if workingDir == "" {
		workingDir, _ = os.Getwd()
	}
	if stat == nil {
		stat = os.Stat
	}
	return &Resolver{workingDir: workingDir, stat: stat}
}

// Abs normalizes path to absolute form against the working directory.
func (r *Resolver) Abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(r.workingDir, path)
}

// Exists reports whether the absolute path currently exists in the tracer
// host's filesystem view.
func (r *Resolver) Exists(path string) bool {
	_, err := r.stat(path)
	return err == nil
}

// ClassifyMove labels a rename-family call. Source and destination sharing a
// parent directory is a "rename" whose display target is just the final
// component; differing parents make it a "move" showing the full path.
func (r *Resolver) ClassifyMove(oldAbs, newAbs string) (label, target string) {
	if filepath.Dir(oldAbs) == filepath.Dir(newAbs) {
		return api.LabelRename, filepath.Base(newAbs)
	}
	return api.LabelMove, newAbs
}
