// Package runlayout maps logical run-artifact names to the categorized
// on-disk run directory layout (core/, telemetry/, reports/), with
// backwards-compatible fallback to the legacy flat layout for reads.
package runlayout

import "path/filepath"

// Category groups artifacts by their subdirectory under a run directory.
type Category string

// Run directory categories.
const (
	CategoryCore      Category = "core"
	CategoryTelemetry Category = "telemetry"
	CategoryReports   Category = "reports"
)

// Name identifies a logical artifact independent of its on-disk location.
type Name struct {
	Category Category
	File     string
	// LegacyPreserve controls whether ResolveWrite will keep
	// appending to an existing legacy-flat file instead of migrating to
	// the categorized path. Reports/derived artifacts opt out.
	LegacyPreserve bool
}

// Well-known artifact names, per spec.md §3 and §6.
var (
	ManifestFiles   = Name{Category: CategoryCore, File: "manifest_files.csv", LegacyPreserve: true}
	ManifestFolders = Name{Category: CategoryCore, File: "manifest_folders.csv", LegacyPreserve: true}
	AnalysisSummary = Name{Category: CategoryCore, File: "analysis_summary.csv", LegacyPreserve: true}
	SendResults     = Name{Category: CategoryCore, File: "send_results_by_file.csv", LegacyPreserve: true}
	SendSummary     = Name{Category: CategoryCore, File: "send_summary.csv", LegacyPreserve: true}
	ValidationResults = Name{Category: CategoryCore, File: "validation_results.csv", LegacyPreserve: true}

	Events           = Name{Category: CategoryTelemetry, File: "events.csv", LegacyPreserve: true}
	ToolkitRawLog    = Name{Category: CategoryTelemetry, File: "storescu_execucao.log", LegacyPreserve: true}
	ReconciliationReport = Name{Category: CategoryReports, File: "reconciliation_report.csv", LegacyPreserve: false}
	ValidationFullReportA = Name{Category: CategoryReports, File: "validation_full_report_A.csv", LegacyPreserve: false}
	ValidationFullReportC = Name{Category: CategoryReports, File: "validation_full_report_C.csv", LegacyPreserve: false}
)

// CheckpointName returns the checkpoint artifact name for a driver/mode
// combination. The filename varies so switching driver on the same run
// directory cannot conflate progress (spec.md §3, Checkpoint).
func CheckpointName(suffix string) Name {
	return Name{Category: CategoryCore, File: "send_checkpoint_" + suffix + ".json", LegacyPreserve: true}
}

// statFunc abstracts os.Stat for testability.
type statFunc func(path string) (exists bool)

// Resolver maps logical artifact names to absolute paths under a run
// directory, per spec.md §4.2.
type Resolver struct {
	RunDir string
	Stat   statFunc
}

// New creates a Resolver backed by the real filesystem.
func New(runDir string) *Resolver {
	return &Resolver{RunDir: runDir, Stat: osExists}
}

func (r *Resolver) categorizedPath(n Name) string {
	return filepath.Join(r.RunDir, string(n.Category), n.File)
}

func (r *Resolver) legacyPath(n Name) string {
	return filepath.Join(r.RunDir, n.File)
}

func (r *Resolver) exists(path string) bool {
	if r.Stat == nil {
		return osExists(path)
	}

	return r.Stat(path)
}

// ResolveRead returns the path to read an artifact from: the categorized
// path if it exists, else the legacy-flat path if it exists, else the
// categorized path (which a subsequent write will create).
func (r *Resolver) ResolveRead(n Name) string {
	cat := r.categorizedPath(n)
	if r.exists(cat) {
		return cat
	}

	legacy := r.legacyPath(n)
	if r.exists(legacy) {
		return legacy
	}

	return cat
}

// ResolveWrite returns the path to write an artifact to: the categorized
// path if it already exists; else the legacy path if it exists and the
// name opts into legacy preservation; else the categorized path.
func (r *Resolver) ResolveWrite(n Name) string {
	cat := r.categorizedPath(n)
	if r.exists(cat) {
		return cat
	}

	legacy := r.legacyPath(n)
	if n.LegacyPreserve && r.exists(legacy) {
		return legacy
	}

	return cat
}

// Paths returns both the categorized and legacy-flat candidate paths for a
// name, used by Cleanup to remove both (one after the other).
func (r *Resolver) Paths(n Name) (categorized, legacy string) {
	return r.categorizedPath(n), r.legacyPath(n)
}
