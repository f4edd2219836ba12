// Package validate implements the Validate workflow (spec.md §4.8): for
// every file the Send workflow reported SENT_OK, confirm the instance
// landed on the destination PACS by SOP Instance UID and write the
// per-IUID and reconciliation-summary artifacts.
package validate

import (
	"strconv"

	"github.com/hexmed-tecnologia/dicomsync/internal/artifact"
	"github.com/hexmed-tecnologia/dicomsync/internal/clockid"
)

// validationFields is validation_results.csv's declared field list.
var validationFields = []string{
	"run_id", "file_path", "sop_instance_uid", "send_status",
	"validation_status", "api_found", "http_status", "detail", "checked_at",
}

// ValidationRow is one validation_results.csv row: one file re-checked
// against the outcome of its IUID's REST lookup.
type ValidationRow struct {
	RunID          string
	FilePath       string
	SOPInstanceUID string
	SendStatus     string
	Status         string // domain.RESTOutcome
	APIFound       bool
	HTTPStatus     string
	Detail         string
}

// WriteValidationRow appends one per-file validation outcome row.
func WriteValidationRow(w *artifact.Writer, path string, clock *clockid.Clock, row ValidationRow) error {
	apiFound := "0"
	if row.APIFound {
		apiFound = "1"
	}

	return w.AppendRow(path, validationFields, map[string]string{
		"run_id":             row.RunID,
		"file_path":          row.FilePath,
		"sop_instance_uid":   row.SOPInstanceUID,
		"send_status":        row.SendStatus,
		"validation_status":  row.Status,
		"api_found":          apiFound,
		"http_status":        row.HTTPStatus,
		"detail":             row.Detail,
		"checked_at":         clock.NowBR(),
	})
}

// reconciliationFields is reconciliation_report.csv's declared field list.
var reconciliationFields = []string{
	"run_id", "toolkit", "total_iuid_unique", "iuid_ok", "iuid_not_found",
	"iuid_api_error", "send_warning_files", "send_failed_files",
	"final_status", "validation_duration_sec", "generated_at",
}

// ReconciliationCounts tallies one Validate run's REST-lookup and
// send-status outcomes, feeding FinalStatus.
type ReconciliationCounts struct {
	TotalIUIDUnique int
	IUIDOK          int
	IUIDNotFound    int
	IUIDAPIError    int
	SendWarning     int
	SendFailed      int
}

// FinalStatus computes reconciliation_report.csv's terminal status from
// c, per spec.md §4.8:
//   - PASS when no lookup was NOT_FOUND or API_ERROR and no send
//     failed (send warnings do not affect the status);
//   - FAIL when at least one lookup returned API_ERROR and none
//     resolved OK;
//   - PASS_WITH_WARNINGS in every other case.
func FinalStatus(c ReconciliationCounts) string {
	status := "PASS"

	if c.SendFailed > 0 || c.IUIDAPIError > 0 || c.IUIDNotFound > 0 {
		status = "PASS_WITH_WARNINGS"
	}

	if c.IUIDAPIError > 0 && c.IUIDOK == 0 {
		status = "FAIL"
	}

	return status
}

// WriteReconciliationReport writes the single terminal
// reconciliation_report.csv row.
func WriteReconciliationReport(
	w *artifact.Writer, path string, clock *clockid.Clock,
	runID, toolkit string, c ReconciliationCounts, durationSec float64, finalStatus string,
) error {
	return w.RewriteTable(path, reconciliationFields, []map[string]string{{
		"run_id":                   runID,
		"toolkit":                  toolkit,
		"total_iuid_unique":        strconv.Itoa(c.TotalIUIDUnique),
		"iuid_ok":                  strconv.Itoa(c.IUIDOK),
		"iuid_not_found":           strconv.Itoa(c.IUIDNotFound),
		"iuid_api_error":           strconv.Itoa(c.IUIDAPIError),
		"send_warning_files":       strconv.Itoa(c.SendWarning),
		"send_failed_files":        strconv.Itoa(c.SendFailed),
		"final_status":             finalStatus,
		"validation_duration_sec":  strconv.FormatFloat(durationSec, 'f', 3, 64),
		"generated_at":             clock.NowBR(),
	}})
}
