package send

import (
	"strconv"

	"github.com/hexmed-tecnologia/dicomsync/internal/artifact"
	"github.com/hexmed-tecnologia/dicomsync/internal/clockid"
)

// resultFields is send_results_by_file.csv's declared field list
// (spec.md §3, "Send result row").
var resultFields = []string{
	"run_id", "file_path", "chunk_no", "toolkit", "ts_mode",
	"send_status", "status_detail", "sop_instance_uid",
	"source_ts_uid", "source_ts_name", "extract_status", "processed_at",
}

// ResultRow is one send_results_by_file.csv row.
type ResultRow struct {
	RunID         string
	FilePath      string
	ChunkNo       int
	Toolkit       string
	TSMode        string
	SendStatus    string
	StatusDetail  string
	SOPInstanceUID string
	SourceTSUID   string
	SourceTSName  string
	ExtractStatus string
}

// WriteResultRow appends one per-file outcome row (spec.md §4.6
// Execution step 4: "write the per-file result row").
func WriteResultRow(w *artifact.Writer, path string, clock *clockid.Clock, row ResultRow) error {
	return w.AppendRow(path, resultFields, map[string]string{
		"run_id":           row.RunID,
		"file_path":        row.FilePath,
		"chunk_no":         strconv.Itoa(row.ChunkNo),
		"toolkit":          row.Toolkit,
		"ts_mode":          row.TSMode,
		"send_status":      row.SendStatus,
		"status_detail":    row.StatusDetail,
		"sop_instance_uid": row.SOPInstanceUID,
		"source_ts_uid":    row.SourceTSUID,
		"source_ts_name":   row.SourceTSName,
		"extract_status":   row.ExtractStatus,
		"processed_at":     clock.NowBR(),
	})
}

// ExistingResults summarizes the current on-disk send_results_by_file.csv:
// the set of file paths with a row, the last-seen status per file (later
// rows win, per spec.md §4.6 Terminal summarization), and the distinct
// done-file count used by the pre-flight cross-check.
type ExistingResults struct {
	DoneFiles   int
	LastStatus  map[string]string
	LastDetail  map[string]string
	SeenPaths   map[string]bool
}

// ReadExistingResults loads send_results_by_file.csv if present.
func ReadExistingResults(path string) (ExistingResults, error) {
	_, rows, err := artifact.ReadAll(path)
	if err != nil {
		return ExistingResults{}, err
	}

	res := ExistingResults{
		LastStatus: make(map[string]string),
		LastDetail: make(map[string]string),
		SeenPaths:  make(map[string]bool),
	}

	for _, row := range rows {
		fp := row["file_path"]
		if !res.SeenPaths[fp] {
			res.DoneFiles++
		}

		res.SeenPaths[fp] = true
		res.LastStatus[fp] = row["send_status"]
		res.LastDetail[fp] = row["status_detail"]
	}

	return res, nil
}

// summaryFields is send_summary.csv's declared field list (spec.md §3,
// "Send summary").
var summaryFields = []string{
	"run_id", "toolkit", "send_mode", "chunk_unit",
	"files_total", "files_ok", "files_fail", "files_unknown",
	"duration_sec", "final_status", "generated_at",
}

// SummaryCounts are the terminal counters computed over the ground-
// truth result rows (spec.md §4.6 Terminal summarization step 1).
type SummaryCounts struct {
	FilesTotal   int
	FilesOK      int
	FilesFail    int
	FilesUnknown int
}

// CountByStatus tallies res's last-seen-status map into SummaryCounts.
func CountByStatus(res ExistingResults) SummaryCounts {
	var c SummaryCounts

	for _, status := range res.LastStatus {
		c.FilesTotal++

		switch status {
		case "SENT_OK":
			c.FilesOK++
		case "SEND_FAIL":
			c.FilesFail++
		default:
			c.FilesUnknown++
		}
	}

	return c
}

// FinalStatus computes the terminal send_summary.csv status, per
// spec.md §4.6 Terminal summarization step 2.
func FinalStatus(c SummaryCounts, cancelled bool) string {
	if cancelled {
		return "INTERRUPTED"
	}

	if c.FilesFail == 0 && c.FilesUnknown == 0 {
		return "PASS"
	}

	if c.FilesFail == 0 {
		return "PASS_WITH_WARNINGS"
	}

	return "FAIL"
}

// WriteSummary writes the single terminal send_summary.csv row.
func WriteSummary(
	w *artifact.Writer, path string, clock *clockid.Clock,
	runID, toolkit, sendMode, chunkUnit string, c SummaryCounts, durationSec float64, finalStatus string,
) error {
	return w.RewriteTable(path, summaryFields, []map[string]string{{
		"run_id":        runID,
		"toolkit":       toolkit,
		"send_mode":     sendMode,
		"chunk_unit":    chunkUnit,
		"files_total":   strconv.Itoa(c.FilesTotal),
		"files_ok":      strconv.Itoa(c.FilesOK),
		"files_fail":    strconv.Itoa(c.FilesFail),
		"files_unknown": strconv.Itoa(c.FilesUnknown),
		"duration_sec":  strconv.FormatFloat(durationSec, 'f', 3, 64),
		"final_status":  finalStatus,
		"generated_at":  clock.NowBR(),
	}})
}
