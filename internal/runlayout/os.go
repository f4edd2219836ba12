package runlayout

import (
	"os"
	"path/filepath"
)

func osExists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

// Cleanup deletes both the categorized and legacy-flat variants of a name,
// ignoring "not found" errors. Used when a run's artifacts must be cleared
// at the start of Send, and for manifest_files.csv at the start of
// Analyze (spec.md, Lifecycle).
func (r *Resolver) Cleanup(n Name) error {
	cat, legacy := r.Paths(n)

	for _, p := range []string{cat, legacy} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	return nil
}

// EnsureDirs creates the core/, telemetry/, and reports/ subdirectories
// under the run directory.
func EnsureDirs(runDir string) error {
	for _, cat := range []Category{CategoryCore, CategoryTelemetry, CategoryReports} {
		if err := os.MkdirAll(filepath.Join(runDir, string(cat)), 0o750); err != nil {
			return err
		}
	}

	return nil
}
