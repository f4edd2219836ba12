package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hexmed-tecnologia/dicomsync/internal/artifact"
	"github.com/hexmed-tecnologia/dicomsync/internal/clockid"
	"github.com/hexmed-tecnologia/dicomsync/internal/domain"
	"github.com/hexmed-tecnologia/dicomsync/internal/restclient"
	"github.com/hexmed-tecnologia/dicomsync/internal/runlayout"
	"github.com/hexmed-tecnologia/dicomsync/internal/toolkit"
)

// ErrNoSentOKFiles is returned when send_results_by_file.csv has no
// SENT_OK row to report on.
var ErrNoSentOKFiles = errors.New("report: no SENT_OK files found to export")

// ErrCancelled is returned by Run when Cancel() reports true mid-export.
var ErrCancelled = errors.New("report: cancelled")

// EventSink is the telemetry.Writer-shaped interface this package
// depends on.
type EventSink interface {
	Emit(domain.Event) error
}

// Extractor mirrors validate.Extractor: re-running metadata extraction
// for a SENT_OK file whose IUID was never captured.
type Extractor interface {
	ExtractMetadata(ctx context.Context, binDir, file string) (toolkit.Metadata, error)
}

// RESTClient mirrors validate.RESTClient.
type RESTClient interface {
	QueryInstance(ctx context.Context, restHost, aet, iuid string) restclient.QueryResult
}

// Result is what Run reports back to the caller.
type Result struct {
	Mode       Mode
	ReportFile string
	Rows       int
	OK         int
	Erro       int
}

// Workflow exports the clinical report CSV (spec.md §4.8, second half).
type Workflow struct {
	AETDest      string
	PACSRESTHost string
	Extractor    Extractor
	BinDir       string
	REST         RESTClient
	Writer       *artifact.Writer
	Layout       *runlayout.Resolver
	Clock        *clockid.Clock
	Logger       *slog.Logger
	Events       EventSink
	Cancel       func() bool
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
		RunID: runID, Type: eventType, Timestamp: w.clock().NowISO(), Message: message, Ref: ref,
	})
}

// Run exports the given mode's report for runID, per spec.md §4.8.
func (w *Workflow) Run(ctx context.Context, runID string, mode Mode) (Result, error) {
	sendResultsPath := w.Layout.ResolveRead(runlayout.SendResults)

	_, sendRows, err := artifact.ReadAll(sendResultsPath)
	if err != nil {
		return Result{}, fmt.Errorf("report: read send results: %w", err)
	}

	byFile := make(map[string]map[string]string, len(sendRows))
	for _, row := range sendRows {
		byFile[row["file_path"]] = row
	}

	sentOK := make([]string, 0, len(byFile))

	for fp, row := range byFile {
		if row["send_status"] == string(domain.SendStatusOK) {
			sentOK = append(sentOK, fp)
		}
	}

	if len(sentOK) == 0 {
		return Result{}, ErrNoSentOKFiles
	}

	sort.Strings(sentOK)

	fileIUID := make(map[string]string, len(sentOK))
	updates := make(map[string]iuidFill)

	for _, fp := range sentOK {
		iuid := byFile[fp]["sop_instance_uid"]
		if iuid == "" && w.Extractor != nil {
			meta, extractErr := w.Extractor.ExtractMetadata(ctx, w.BinDir, fp)
			if extractErr == nil && meta.IUID != "" {
				iuid = meta.IUID
				updates[fp] = iuidFill{iuid: meta.IUID, tsUID: meta.TSUID, tsName: meta.TSName}
			} else {
				w.logger().Warn("IUID ausente para arquivo no relatorio", "file_path", fp, "error", extractErr)
			}
		}

		fileIUID[fp] = iuid
	}

	updated, err := applyReportUpdates(w.Writer, sendResultsPath, updates)
	if err != nil {
		return Result{}, fmt.Errorf("report: apply IUID updates: %w", err)
	}

	if updated > 0 {
		w.logger().Info("send_results_by_file updated with IUID for report export", "run_id", runID, "updated_rows", updated)
	}

	uniqueIUIDs := uniqueSorted(fileIUID)
	w.logger().Info("report export", "run_id", runID, "mode", mode, "unique_iuids", len(uniqueIUIDs))

	datasetByIUID := make(map[string]queriedFields, len(uniqueIUIDs))

	for _, iuid := range uniqueIUIDs {
		if w.Cancel != nil && w.Cancel() {
			return Result{}, ErrCancelled
		}

		result := w.REST.QueryInstance(ctx, w.PACSRESTHost, w.AETDest, iuid)

		status := "ERRO"
		if result.Outcome == domain.RESTOutcomeOK {
			status = "OK"
		}

		datasetByIUID[iuid] = queriedFields{
			fields: FieldsFromDataset(result.Dataset),
			status: status,
		}
	}

	rowsA := make([]RowA, 0, len(sentOK))

	for _, fp := range sentOK {
		iuid := fileIUID[fp]

		q, ok := datasetByIUID[iuid]
		if !ok || iuid == "" {
			rowsA = append(rowsA, RowA{RunID: runID, FilePath: fp, SOPInstanceUID: iuid, Status: string(domain.ReportStatusError)})

			continue
		}

		rowsA = append(rowsA, RowA{RunID: runID, FilePath: fp, SOPInstanceUID: iuid, Fields: q.fields, Status: q.status})
	}

	var (
		reportPath string
		table      []map[string]string
		fields     []string
	)

	switch mode {
	case ModeC:
		reportPath = w.Layout.ResolveWrite(runlayout.ValidationFullReportC)
		table = RowsCFromA(rowsA)
		fields = rowCFields
	default:
		reportPath = w.Layout.ResolveWrite(runlayout.ValidationFullReportA)
		table = RowsAToTable(rowsA)
		fields = rowAFields
	}

	if err := w.Writer.RewriteTable(reportPath, fields, table); err != nil {
		return Result{}, fmt.Errorf("report: write %s: %w", reportPath, err)
	}

	okCount := 0

	for _, row := range table {
		if row["status"] == "OK" {
			okCount++
		}
	}

	w.emit(runID, domain.EventReportExported, "Relatorio exportado.",
		fmt.Sprintf("mode=%s;rows=%d;ok=%d;erro=%d", mode, len(table), okCount, len(table)-okCount))

	return Result{Mode: mode, ReportFile: reportPath, Rows: len(table), OK: okCount, Erro: len(table) - okCount}, nil
}

type queriedFields struct {
	fields Fields
	status string
}

func uniqueSorted(byFile map[string]string) []string {
	seen := make(map[string]struct{}, len(byFile))
	out := make([]string, 0, len(byFile))

	for _, iuid := range byFile {
		if iuid == "" {
			continue
		}

		if _, ok := seen[iuid]; ok {
			continue
		}

		seen[iuid] = struct{}{}
		out = append(out, iuid)
	}

	sort.Strings(out)

	return out
}
