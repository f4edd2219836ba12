package report

import (
	"github.com/hexmed-tecnologia/dicomsync/internal/artifact"
	"github.com/hexmed-tecnologia/dicomsync/internal/domain"
)

// iuidFill is one file's re-extracted IUID/TS metadata, persisted back
// to send_results_by_file.csv when the report export fills a gap Send
// and Validate both left behind.
type iuidFill struct {
	iuid   string
	tsUID  string
	tsName string
}

// applyReportUpdates rewrites send_results_by_file.csv in place for
// every file in updates, tagging extract_status REPORT_EXPORT_OK so the
// provenance of a late-filled IUID stays visible (spec.md §4.8).
func applyReportUpdates(w *artifact.Writer, path string, updates map[string]iuidFill) (int, error) {
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
		fill, ok := updates[row["file_path"]]
		if !ok {
			out[i] = row

			continue
		}

		next := make(map[string]string, len(row))
		for k, v := range row {
			next[k] = v
		}

		next["sop_instance_uid"] = fill.iuid
		next["source_ts_uid"] = fill.tsUID
		next["source_ts_name"] = fill.tsName
		next["extract_status"] = string(domain.ExtractReportExportOK)
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
