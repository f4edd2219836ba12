package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hexmed-tecnologia/dicomsync/internal/artifact"
	"github.com/hexmed-tecnologia/dicomsync/internal/clockid"
	"github.com/hexmed-tecnologia/dicomsync/internal/domain"
	"github.com/hexmed-tecnologia/dicomsync/internal/obs"
	"github.com/hexmed-tecnologia/dicomsync/internal/restclient"
	"github.com/hexmed-tecnologia/dicomsync/internal/runconfig"
	"github.com/hexmed-tecnologia/dicomsync/internal/runlayout"
	"github.com/hexmed-tecnologia/dicomsync/internal/toolkit"
)

// ErrCancelled is returned by Run when Cancel() reports true mid-lookup.
var ErrCancelled = errors.New("validate: cancelled")

// EventSink is the telemetry.Writer-shaped interface this package
// depends on, so its tests need not spin up a real run directory layout.
type EventSink interface {
	Emit(domain.Event) error
}

// Extractor is the subset of toolkit.Driver the consistency prefill
// needs: re-running metadata extraction for a SENT_OK file whose IUID
// was never captured during Send.
type Extractor interface {
	ExtractMetadata(ctx context.Context, binDir, file string) (toolkit.Metadata, error)
}

// RESTClient is the subset of *restclient.Client the Validate workflow
// depends on, narrowed to an interface so tests can stub REST lookups
// without an httptest server.
type RESTClient interface {
	QueryInstance(ctx context.Context, restHost, aet, iuid string) restclient.QueryResult
}

// Result is what Run reports back to the caller and to send_summary-
// style callers composing Analyze/Send/Validate into one CLI invocation.
type Result struct {
	FinalStatus string
	Counts      ReconciliationCounts
	DurationSec float64
}

// Workflow orchestrates the Validate stage (spec.md §4.8): consistency
// prefill, per-unique-IUID REST confirmation, and reconciliation
// summarization.
type Workflow struct {
	Cfg       *runconfig.Config
	Extractor Extractor
	BinDir    string
	REST      RESTClient
	Writer    *artifact.Writer
	Layout    *runlayout.Resolver
	Clock     *clockid.Clock
	Logger    *slog.Logger
	Events    EventSink
	Metrics   *obs.WorkflowMetrics
	Cancel    func() bool
}

func (w *Workflow) clock() *clockid.Clock {
	if w.Clock == nil {
		return clockid.Default
	}

	return w.Clock
}

func (w *Workflow) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}

	return w.Logger
}

func (w *Workflow) emit(runID string, eventType domain.EventType, message, ref string) {
	if w.Events == nil {
		return
	}

	_ = w.Events.Emit(domain.Event{
		RunID:     runID,
		Type:      eventType,
		Timestamp: w.clock().NowISO(),
		Message:   message,
		Ref:       ref,
	})
}

// Run executes the full Validate workflow against an already-completed
// Send run in runDir, per spec.md §4.8.
func (w *Workflow) Run(ctx context.Context, runID, runDir string) (Result, error) {
	start := time.Now()

	sendResultsPath := w.Layout.ResolveRead(runlayout.SendResults)

	_, sendRows, err := artifact.ReadAll(sendResultsPath)
	if err != nil {
		return Result{}, fmt.Errorf("validate: read send results: %w", err)
	}

	byFile := sendRowsByFile(sendRows)
	iuidByFile := iuidMapFromSendRows(byFile)

	totalSendRows := len(byFile)

	var sendOK, sendWarn, sendFail int

	for _, row := range byFile {
		switch row["send_status"] {
		case string(domain.SendStatusOK):
			sendOK++
		case string(domain.SendStatusNonDICOM), string(domain.SendStatusUnsupportedDICOMObject), string(domain.SendStatusUnknown):
			sendWarn++
		case string(domain.SendStatusFail):
			sendFail++
		}
	}

	w.logger().Info("validate start", "run_id", runID,
		"send_total", totalSendRows, "sent_ok", sendOK, "warn", sendWarn, "fail", sendFail)
	w.emit(runID, domain.EventValidateStart, "Validacao iniciada.",
		fmt.Sprintf("send_rows=%d;sent_ok=%d;send_warn=%d;send_fail=%d;mapped_iuid=%d",
			totalSendRows, sendOK, sendWarn, sendFail, len(iuidByFile)))

	if err := w.runConsistencyPrefill(ctx, runID, sendResultsPath, byFile, iuidByFile); err != nil {
		return Result{}, err
	}

	iuidToFiles := make(map[string][]string)

	for fp, row := range byFile {
		if row["send_status"] != string(domain.SendStatusOK) {
			continue
		}

		if info, ok := iuidByFile[fp]; ok && info.SOPInstanceUID != "" {
			iuidToFiles[info.SOPInstanceUID] = append(iuidToFiles[info.SOPInstanceUID], fp)
		}
	}

	validationPath := w.Layout.ResolveWrite(runlayout.ValidationResults)

	counts, err := w.resolveIUIDs(ctx, runID, validationPath, iuidToFiles)
	if err != nil {
		return Result{}, err
	}

	counts.SendWarning = sendWarn
	counts.SendFailed = sendFail

	finalStatus := FinalStatus(counts)
	duration := time.Since(start).Seconds()

	reconPath := w.Layout.ResolveWrite(runlayout.ReconciliationReport)
	if err := WriteReconciliationReport(w.Writer, reconPath, w.clock(), runID, string(w.Cfg.Toolkit), counts, duration, finalStatus); err != nil {
		return Result{}, fmt.Errorf("validate: write reconciliation report: %w", err)
	}

	w.logger().Info("validate end", "run_id", runID, "status", finalStatus,
		"iuid_total", counts.TotalIUIDUnique, "iuid_ok", counts.IUIDOK,
		"iuid_not_found", counts.IUIDNotFound, "iuid_api_error", counts.IUIDAPIError)
	w.emit(runID, domain.EventValidateEnd, "Validacao finalizada.",
		fmt.Sprintf("status=%s;iuid_total=%d;iuid_ok=%d;iuid_not_found=%d;iuid_api_error=%d;validation_duration_sec=%.3f",
			finalStatus, counts.TotalIUIDUnique, counts.IUIDOK, counts.IUIDNotFound, counts.IUIDAPIError, duration))

	return Result{FinalStatus: finalStatus, Counts: counts, DurationSec: duration}, nil
}

// runConsistencyPrefill re-extracts metadata for every SENT_OK row whose
// IUID was never captured (spec.md §4.8, consistency prefill), persists
// the fill-ins back to send_results_by_file.csv, and emits one
// CONSISTENCY_FILLED/CONSISTENCY_MISSING event per attempt.
func (w *Workflow) runConsistencyPrefill(
	ctx context.Context, runID, sendResultsPath string,
	byFile map[string]map[string]string, iuidByFile map[string]iuidInfo,
) error {
	if w.Extractor == nil {
		return nil
	}

	updates := make(map[string]iuidInfo)

	for fp, row := range byFile {
		if row["send_status"] != string(domain.SendStatusOK) {
			continue
		}

		if _, has := iuidByFile[fp]; has {
			continue
		}

		meta, err := w.Extractor.ExtractMetadata(ctx, w.BinDir, fp)
		if err == nil && meta.IUID != "" {
			info := iuidInfo{
				SOPInstanceUID: meta.IUID,
				SourceTSUID:    meta.TSUID,
				SourceTSName:   meta.TSName,
				ExtractStatus:  string(domain.ExtractConsistencyOK),
			}
			iuidByFile[fp] = info
			updates[fp] = info
			w.emit(runID, domain.EventConsistencyFilled, "IUID preenchido antes da validacao.", "file_path="+fp)

			continue
		}

		detail := "Nao foi possivel extrair IUID."
		if err != nil {
			detail = err.Error()
		}

		w.emit(runID, domain.EventConsistencyMissing, detail, "file_path="+fp)
	}

	updated, err := applyConsistencyUpdates(w.Writer, sendResultsPath, updates)
	if err != nil {
		return fmt.Errorf("validate: apply consistency updates: %w", err)
	}

	if updated > 0 {
		w.logger().Info("consistency prefill applied", "run_id", runID, "updated_rows", updated)
	}

	return nil
}

// resolveIUIDs queries the REST endpoint once per unique IUID and writes
// one validation_results.csv row per file sharing that IUID.
func (w *Workflow) resolveIUIDs(
	ctx context.Context, runID, validationPath string, iuidToFiles map[string][]string,
) (ReconciliationCounts, error) {
	counts := ReconciliationCounts{TotalIUIDUnique: len(iuidToFiles)}

	for _, iuid := range sortedKeys(iuidToFiles) {
		if w.Cancel != nil && w.Cancel() {
			return counts, ErrCancelled
		}

		result := w.REST.QueryInstance(ctx, w.Cfg.PACSRESTHost, w.Cfg.AETDest, iuid)

		if w.Metrics != nil {
			w.Metrics.RecordRESTOutcome(ctx, string(result.Outcome))
		}

		switch result.Outcome {
		case domain.RESTOutcomeOK:
			counts.IUIDOK++
		case domain.RESTOutcomeAPIError:
			counts.IUIDAPIError++
		default:
			counts.IUIDNotFound++
		}

		for _, fp := range iuidToFiles[iuid] {
			if err := WriteValidationRow(w.Writer, validationPath, w.clock(), ValidationRow{
				RunID:          runID,
				FilePath:       fp,
				SOPInstanceUID: iuid,
				SendStatus:     string(domain.SendStatusOK),
				Status:         string(result.Outcome),
				APIFound:       result.Outcome == domain.RESTOutcomeOK,
				HTTPStatus:     result.HTTPStatus,
				Detail:         result.Detail,
			}); err != nil {
				return counts, fmt.Errorf("validate: write validation row: %w", err)
			}
		}
	}

	return counts, nil
}
