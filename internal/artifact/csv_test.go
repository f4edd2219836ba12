package artifact_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexmed-tecnologia/dicomsync/internal/artifact"
	"github.com/hexmed-tecnologia/dicomsync/internal/clockid"
)

func fixedClock() *clockid.Clock {
	t := time.Date(2026, 7, 31, 10, 15, 0, 0, time.UTC)

	return &clockid.Clock{Now: func() time.Time { return t }}
}

func TestAppendRow_WritesHeaderOnFirstWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "manifest_files.csv")

	w := &artifact.Writer{Clock: fixedClock()}
	fields := []string{"run_id", "seq", "file_path"}

	require.NoError(t, w.AppendRow(path, fields, map[string]string{
		"run_id": "r1", "seq": "1", "file_path": "/a.dcm",
	}))

	header, rows, err := artifact.ReadAll(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"run_id", "seq", "file_path", artifact.TimestampFieldBR, artifact.TimestampFieldISO}, header)
	require.Len(t, rows, 1)
	assert.Equal(t, "r1", rows[0]["run_id"])
	assert.Equal(t, "31/07/2026 10:15:00", rows[0][artifact.TimestampFieldBR])
}

func TestAppendRow_PreservesExistingSchemaOnReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "send_results_by_file.csv")

	w := &artifact.Writer{Clock: fixedClock()}

	require.NoError(t, w.AppendRow(path, []string{"run_id", "file_path"}, map[string]string{
		"run_id": "r1", "file_path": "/a.dcm",
	}))

	// Second writer instance, declared fields reordered/extended: the
	// on-disk header must still win (schema preservation).
	w2 := &artifact.Writer{Clock: fixedClock()}
	require.NoError(t, w2.AppendRow(path, []string{"file_path", "run_id", "extra"}, map[string]string{
		"run_id": "r1", "file_path": "/b.dcm", "extra": "ignored-because-not-in-header",
	}))

	header, rows, err := artifact.ReadAll(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"run_id", "file_path", artifact.TimestampFieldBR, artifact.TimestampFieldISO}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, "/b.dcm", rows[1]["file_path"])
}

func TestAppendRow_OrderPreservedAcrossCalls(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "events.csv")
	w := &artifact.Writer{Clock: fixedClock()}

	for i := 0; i < 5; i++ {
		require.NoError(t, w.AppendRow(path, []string{"seq"}, map[string]string{
			"seq": string(rune('0' + i)),
		}))
	}

	_, rows, err := artifact.ReadAll(path)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	for i, row := range rows {
		assert.Equal(t, string(rune('0'+i)), row["seq"])
	}
}

func TestRewriteTable_TruncatesPriorContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "manifest_folders.csv")
	w := &artifact.Writer{Clock: fixedClock()}

	require.NoError(t, w.RewriteTable(path, []string{"folder_path"}, []map[string]string{
		{"folder_path": "/a"}, {"folder_path": "/b"}, {"folder_path": "/c"},
	}))

	require.NoError(t, w.RewriteTable(path, []string{"folder_path"}, []map[string]string{
		{"folder_path": "/only"},
	}))

	_, rows, err := artifact.ReadAll(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "/only", rows[0]["folder_path"])
}

func TestReadAll_MissingFileIsNotAnError(t *testing.T) {
	t.Parallel()

	header, rows, err := artifact.ReadAll(filepath.Join(t.TempDir(), "nope.csv"))
	require.NoError(t, err)
	assert.Nil(t, header)
	assert.Nil(t, rows)
}
