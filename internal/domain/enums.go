// Package domain holds the closed-vocabulary tagged variants shared by
// every workflow (spec.md §3, §4.6–§4.8): selection reasons, send/extract
// statuses, checkpoint modes, and final statuses. Centralizing them here
// keeps analyze/send/validate/report from redeclaring the same enum and
// avoids an import cycle between them.
package domain

import "fmt"

// SelectionReason explains why a file in manifest_files.csv was (or was
// not) selected for send (spec.md §4.5).
type SelectionReason string

// Recognized selection reasons.
const (
	SelectionIncludedExt       SelectionReason = "INCLUDED_EXT"
	SelectionIncludedNoExt     SelectionReason = "INCLUDED_NO_EXT"
	SelectionIncludedAllFiles  SelectionReason = "INCLUDED_ALL_FILES"
	SelectionExcludedExtension SelectionReason = "EXCLUDED_EXTENSION"
)

// SendStatus is the terminal per-file outcome of the Send workflow
// (spec.md §3's send_results_by_file.csv).
type SendStatus string

// Recognized send statuses.
const (
	SendStatusOK                     SendStatus = "SENT_OK"
	SendStatusFail                   SendStatus = "SEND_FAIL"
	SendStatusUnknown                SendStatus = "SENT_UNKNOWN"
	SendStatusNonDICOM               SendStatus = "NON_DICOM"
	SendStatusUnsupportedDICOMObject SendStatus = "UNSUPPORTED_DICOM_OBJECT"
)

// ExtractStatus records the provenance of the IUID assigned to a send
// result row (spec.md §4.6's table).
type ExtractStatus string

// Recognized extract statuses.
const (
	ExtractOKRealtime         ExtractStatus = "OK_FROM_STORESCU_REALTIME"
	ExtractOKPost             ExtractStatus = "OK_FROM_STORESCU"
	ExtractErrRealtime        ExtractStatus = "ERR_FROM_STORESCU_REALTIME"
	ExtractErrPost            ExtractStatus = "ERR_FROM_STORESCU"
	ExtractRequestedNoRSP     ExtractStatus = "REQUESTED_NO_RSP"
	ExtractProcessExitFail    ExtractStatus = "PROCESS_EXIT_FAIL"
	ExtractNoMatchUnconfirmed ExtractStatus = "NO_MATCH_UID_UNCONFIRMED"
	ExtractNoMatch            ExtractStatus = "NO_MATCH"

	// ExtractConsistencyOK marks a SENT_OK row whose IUID was filled in
	// during Validate's consistency prefill rather than during Send
	// itself (spec.md §4.8).
	ExtractConsistencyOK ExtractStatus = "CONSISTENCY_OK"

	// ExtractReportExportOK marks a SENT_OK row whose IUID was filled in
	// during Report export rather than during Send or Validate
	// (spec.md §4.8, second half).
	ExtractReportExportOK ExtractStatus = "REPORT_EXPORT_OK"
)

// CheckpointMode records whether a checkpoint write followed a single
// item (ITEM) or the end of a sub-chunk (CHUNK_SYNC).
type CheckpointMode string

// Recognized checkpoint modes.
const (
	CheckpointModeItem      CheckpointMode = "ITEM"
	CheckpointModeChunkSync CheckpointMode = "CHUNK_SYNC"
)

// SendFinalStatus is the terminal status written to send_summary.csv.
type SendFinalStatus string

// Recognized send final statuses.
const (
	SendFinalPass             SendFinalStatus = "PASS"
	SendFinalPassWithWarnings SendFinalStatus = "PASS_WITH_WARNINGS"
	SendFinalFail             SendFinalStatus = "FAIL"
	SendFinalInterrupted      SendFinalStatus = "INTERRUPTED"
	SendFinalAlreadySent      SendFinalStatus = "ALREADY_SENT"
	SendFinalAlreadySentPass  SendFinalStatus = "ALREADY_SENT_PASS"
)

// RESTOutcome classifies one Validate REST lookup (spec.md §4.8).
type RESTOutcome string

// Recognized REST outcomes.
const (
	RESTOutcomeOK       RESTOutcome = "OK"
	RESTOutcomeNotFound RESTOutcome = "NOT_FOUND"
	RESTOutcomeAPIError RESTOutcome = "API_ERROR"
)

// ReconciliationFinalStatus is the terminal status written to
// reconciliation_report.csv (spec.md §4.8).
type ReconciliationFinalStatus string

// Recognized reconciliation final statuses.
const (
	ReconciliationPass             ReconciliationFinalStatus = "PASS"
	ReconciliationPassWithWarnings ReconciliationFinalStatus = "PASS_WITH_WARNINGS"
	ReconciliationFail             ReconciliationFinalStatus = "FAIL"
)

// ReportStatus is the per-row status used by the Report Exporter when an
// IUID is absent (spec.md §4.8, second half).
type ReportStatus string

// Recognized report row statuses.
const (
	ReportStatusOK    ReportStatus = "OK"
	ReportStatusError ReportStatus = "ERRO"
)

// ErrUnknownEnumValue is returned by the Validate* functions below when a
// caller attempts to write a value outside the closed vocabulary
// (spec.md §9, "Implementers must refuse to write unknown tag values").
var ErrUnknownEnumValue = fmt.Errorf("domain: unknown enum value")

// ValidateSendStatus rejects any value outside SendStatus's closed set.
func ValidateSendStatus(s SendStatus) error {
	switch s {
	case SendStatusOK, SendStatusFail, SendStatusUnknown, SendStatusNonDICOM, SendStatusUnsupportedDICOMObject:
		return nil
	default:
		return fmt.Errorf("%w: send_status=%q", ErrUnknownEnumValue, s)
	}
}

// ValidateSelectionReason rejects any value outside SelectionReason's
// closed set.
func ValidateSelectionReason(r SelectionReason) error {
	switch r {
	case SelectionIncludedExt, SelectionIncludedNoExt, SelectionIncludedAllFiles, SelectionExcludedExtension:
		return nil
	default:
		return fmt.Errorf("%w: selection_reason=%q", ErrUnknownEnumValue, r)
	}
}
