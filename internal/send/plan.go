// Package send implements the Send workflow: plans batches from a
// manifest, re-splits them to respect the command-line budget, spawns
// the configured driver, classifies its output, and checkpoints after
// every item (spec.md §4.6, "the hardest subsystem").
package send

import (
	"sort"

	"github.com/hexmed-tecnologia/dicomsync/internal/analyze"
	"github.com/hexmed-tecnologia/dicomsync/internal/runconfig"
)

// Unit is one item the Send workflow schedules: a file path in
// file-unit mode, a folder path in ToolF-folder-mode.
type Unit struct {
	Path string
}

// Chunk is one sub-batch carrying both invocation counters the progress
// callback surfaces (spec.md §6, "Progress callback").
type Chunk struct {
	Units            []Unit
	AttemptChunkNo   int
	TechnicalChunkNo int
	Oversized        bool
}

// BuildUnitsFromFiles returns the ordered unit list for file-unit mode:
// manifest order, filtering out any path already present in
// alreadyDone (spec.md §4.6 Planning, resume skip).
func BuildUnitsFromFiles(manifestPaths []string, alreadyDone map[string]bool) []Unit {
	units := make([]Unit, 0, len(manifestPaths))

	for _, p := range manifestPaths {
		if alreadyDone[p] {
			continue
		}

		units = append(units, Unit{Path: p})
	}

	return units
}

// BuildUnitsFromFolders returns the ordered unit list for
// ToolF-folder-mode: the folders of folderOrder sorted ascending by path
// (spec.md §4.6 Planning). The input order is not preserved.
func BuildUnitsFromFolders(folderOrder []string) []Unit {
	keys := append([]string{}, folderOrder...)
	sort.Strings(keys)

	units := make([]Unit, len(keys))
	for i, k := range keys {
		units[i] = Unit{Path: k}
	}

	return units
}

// RawBatches splits units into fixed-size raw batches of batchSize,
// before the per-chunk command-length re-split (spec.md §4.6 Planning).
func RawBatches(units []Unit, batchSize int) [][]Unit {
	if batchSize < 1 {
		batchSize = 1
	}

	var batches [][]Unit

	for i := 0; i < len(units); i += batchSize {
		end := i + batchSize
		if end > len(units) {
			end = len(units)
		}

		batches = append(batches, units[i:end])
	}

	return batches
}

// SplitResult is the outcome of re-splitting one raw batch.
type SplitResult struct {
	Chunks    [][]Unit
	Oversized map[int]bool // index into Chunks whose lone unit exceeded budget
}

// SplitBatch re-splits one raw batch deterministically so that no
// resulting sub-chunk's hypothetical command line exceeds the active
// budget, per spec.md §4.6 Planning: "accumulate units into the current
// sub-batch while the hypothetical full command length stays <= budget;
// otherwise close the sub-batch and open a new one with the overflowing
// unit alone." ToolT and ToolF-argfile-direct modes are unconstrained
// (N/A / TOOLF_JAVA_ARGFILE) and always return a single chunk.
func SplitBatch(raw []Unit, cfg *runconfig.Config, baseCommandLen int) SplitResult {
	if cfg.Toolkit != runconfig.ToolkitF || cfg.ToolFPreferJavaDirect {
		return SplitResult{Chunks: [][]Unit{raw}, Oversized: map[int]bool{}}
	}

	budget := analyze.DirectBudgetChars
	if cfg.ToolFUseShellWrapper {
		budget = analyze.ShellWrappedBudgetChars
	}

	var (
		chunks    [][]Unit
		oversized = map[int]bool{}
		current   []Unit
		currLen   = baseCommandLen
	)

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, current)
			current = nil
			currLen = baseCommandLen
		}
	}

	for _, u := range raw {
		cost := analyze.QuoteArgLen(u.Path) + 1

		if len(current) > 0 && currLen+cost > budget {
			flush()
		}

		if len(current) == 0 && currLen+cost > budget {
			oversized[len(chunks)] = true
		}

		current = append(current, u)
		currLen += cost
	}

	flush()

	return SplitResult{Chunks: chunks, Oversized: oversized}
}
