// Package analyze implements the Analyze workflow: a depth-first scan
// of an exam root directory that writes the selection manifest and
// computes the per-driver batch-size ceiling Send must respect
// (spec.md §4.5, SPEC_FULL.md §7).
package analyze

import (
	"path/filepath"
	"strings"

	"github.com/hexmed-tecnologia/dicomsync/internal/domain"
	"github.com/hexmed-tecnologia/dicomsync/internal/runconfig"
)

// Selection is the outcome of the per-file selection predicate
// (spec.md §4.5 step 2).
type Selection struct {
	Selected bool
	Reason   domain.SelectionReason
}

// SelectFile applies the selection predicate to one file name, given
// the active config and whether the run is in ToolF-folder-mode.
func SelectFile(cfg *runconfig.Config, toolFFolderMode bool, name string) Selection {
	if cfg.Toolkit == runconfig.ToolkitF && toolFFolderMode {
		return Selection{Selected: true, Reason: domain.SelectionIncludedAllFiles}
	}

	if !cfg.RestrictExtensions {
		return Selection{Selected: true, Reason: domain.SelectionIncludedAllFiles}
	}

	ext := strings.ToLower(filepath.Ext(name))

	if ext == "" {
		if cfg.IncludeNoExtension {
			return Selection{Selected: true, Reason: domain.SelectionIncludedNoExt}
		}

		return Selection{Selected: false, Reason: domain.SelectionExcludedExtension}
	}

	for _, allowed := range cfg.AllowedExtensions {
		if strings.ToLower(allowed) == ext {
			return Selection{Selected: true, Reason: domain.SelectionIncludedExt}
		}
	}

	return Selection{Selected: false, Reason: domain.SelectionExcludedExtension}
}
