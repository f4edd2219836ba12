package send_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexmed-tecnologia/dicomsync/internal/runconfig"
	"github.com/hexmed-tecnologia/dicomsync/internal/send"
)

func TestBuildUnitsFromFiles_SkipsAlreadyDone(t *testing.T) {
	t.Parallel()

	units := send.BuildUnitsFromFiles(
		[]string{"a.dcm", "b.dcm", "c.dcm"},
		map[string]bool{"b.dcm": true},
	)

	require.Len(t, units, 2)
	assert.Equal(t, "a.dcm", units[0].Path)
	assert.Equal(t, "c.dcm", units[1].Path)
}

func TestBuildUnitsFromFolders_SortsDeterministically(t *testing.T) {
	t.Parallel()

	units := send.BuildUnitsFromFolders([]string{"study_b", "study_a", "study_c"})

	require.Len(t, units, 3)
	assert.Equal(t, []string{"study_a", "study_b", "study_c"}, []string{units[0].Path, units[1].Path, units[2].Path})
}

func TestRawBatches_SplitsByBatchSize(t *testing.T) {
	t.Parallel()

	units := make([]send.Unit, 5)
	for i := range units {
		units[i] = send.Unit{Path: string(rune('a' + i))}
	}

	batches := send.RawBatches(units, 2)

	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 2)
	assert.Len(t, batches[2], 1)
}

func TestRawBatches_ClampsBatchSizeBelowOne(t *testing.T) {
	t.Parallel()

	units := []send.Unit{{Path: "a"}, {Path: "b"}}

	batches := send.RawBatches(units, 0)

	require.Len(t, batches, 2)
}

func TestSplitBatch_ToolTUnconstrained(t *testing.T) {
	t.Parallel()

	cfg := runconfig.Defaults()
	cfg.Toolkit = runconfig.ToolkitT

	raw := []send.Unit{{Path: "a.dcm"}, {Path: "b.dcm"}}

	result := send.SplitBatch(raw, &cfg, 0)

	require.Len(t, result.Chunks, 1)
	assert.Len(t, result.Chunks[0], 2)
	assert.Empty(t, result.Oversized)
}

func TestSplitBatch_ToolFDirectJavaUnconstrained(t *testing.T) {
	t.Parallel()

	cfg := runconfig.Defaults()
	cfg.Toolkit = runconfig.ToolkitF
	cfg.ToolFPreferJavaDirect = true

	raw := []send.Unit{{Path: "a.dcm"}, {Path: "b.dcm"}}

	result := send.SplitBatch(raw, &cfg, 0)

	require.Len(t, result.Chunks, 1)
}

func TestSplitBatch_ToolFShellWrappedRespectsBudget(t *testing.T) {
	t.Parallel()

	cfg := runconfig.Defaults()
	cfg.Toolkit = runconfig.ToolkitF
	cfg.ToolFPreferJavaDirect = false
	cfg.ToolFUseShellWrapper = true

	longPath := ""
	for i := 0; i < 200; i++ {
		longPath += "x"
	}

	raw := []send.Unit{{Path: longPath}, {Path: longPath}, {Path: longPath}}

	// A tiny budget forces every unit into its own sub-chunk.
	result := send.SplitBatch(raw, &cfg, 7600-210)

	assert.GreaterOrEqual(t, len(result.Chunks), 2)
}

func TestSplitBatch_OversizedSingleUnitFlagged(t *testing.T) {
	t.Parallel()

	cfg := runconfig.Defaults()
	cfg.Toolkit = runconfig.ToolkitF
	cfg.ToolFPreferJavaDirect = false
	cfg.ToolFUseShellWrapper = true

	huge := make([]byte, 8000)
	for i := range huge {
		huge[i] = 'x'
	}

	raw := []send.Unit{{Path: string(huge)}}

	result := send.SplitBatch(raw, &cfg, 100)

	require.Len(t, result.Chunks, 1)
	assert.True(t, result.Oversized[0])
}
