package validate

import (
	"sort"

	"github.com/hexmed-tecnologia/dicomsync/internal/artifact"
)

// iuidInfo is the subset of a send_results_by_file.csv row the
// consistency prefill and IUID grouping steps need.
type iuidInfo struct {
	SOPInstanceUID string
	SourceTSUID    string
	SourceTSName   string
	ExtractStatus  string
}

// sendRowsByFile indexes the raw send_results_by_file.csv rows by
// file_path, keeping the last-seen row for a path (later rows win, as in
// send_results_by_file.csv's own terminal-summarization rule).
func sendRowsByFile(rows []map[string]string) map[string]map[string]string {
	byFile := make(map[string]map[string]string, len(rows))

	for _, row := range rows {
		byFile[row["file_path"]] = row
	}

	return byFile
}

// iuidMapFromSendRows builds file_path -> iuidInfo for every row already
// carrying a non-empty sop_instance_uid (spec.md §4.8's consistency
// prefill operates only on the rows missing one).
func iuidMapFromSendRows(byFile map[string]map[string]string) map[string]iuidInfo {
	out := make(map[string]iuidInfo, len(byFile))

	for fp, row := range byFile {
		iuid := row["sop_instance_uid"]
		if iuid == "" {
			continue
		}

		out[fp] = iuidInfo{
			SOPInstanceUID: iuid,
			SourceTSUID:    row["source_ts_uid"],
			SourceTSName:   row["source_ts_name"],
			ExtractStatus:  row["extract_status"],
		}
	}

	return out
}

// applyConsistencyUpdates rewrites send_results_by_file.csv in place,
// replacing the IUID/TS/extract_status fields of every row named in
// updates. It preserves every other column and row untouched, including
// ones not selected for send or already carrying an IUID. Returns the
// number of rows updated.
func applyConsistencyUpdates(w *artifact.Writer, path string, updates map[string]iuidInfo) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	header, rows, err := artifact.ReadAll(path)
	if err != nil {
		return 0, err
	}

	updated := 0

	out := make([]map[string]string, len(rows))

	for i, row := range rows {
		fp := row["file_path"]

		info, ok := updates[fp]
		if !ok {
			out[i] = row
			continue
		}

		next := cloneRow(row)
		next["sop_instance_uid"] = info.SOPInstanceUID
		next["source_ts_uid"] = info.SourceTSUID
		next["source_ts_name"] = info.SourceTSName
		next["extract_status"] = info.ExtractStatus
		out[i] = next
		updated++
	}

	if updated == 0 {
		return 0, nil
	}

	if err := w.RewriteTable(path, header, out); err != nil {
		return 0, err
	}

	return updated, nil
}

func cloneRow(row map[string]string) map[string]string {
	out := make(map[string]string, len(row))
	for k, v := range row {
		out[k] = v
	}

	return out
}

// sortedKeys returns the keys of m in ascending order, used to make the
// per-IUID REST query loop's ordering deterministic.
func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
