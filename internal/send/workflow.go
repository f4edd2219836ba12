// Package send implements the Send workflow: the heart of the system
// (spec.md §4.6-§4.7). It reads the manifest Analyze produced, plans
// and re-splits batches under the command-line budget, drives the
// configured driver as a child process, classifies its streamed output
// in real time, reconciles any stragglers once the process exits, and
// checkpoints after every item so a cancelled or crashed run resumes
// without re-sending or double-counting.
package send

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hexmed-tecnologia/dicomsync/internal/analyze"
	"github.com/hexmed-tecnologia/dicomsync/internal/artifact"
	"github.com/hexmed-tecnologia/dicomsync/internal/checkpoint"
	"github.com/hexmed-tecnologia/dicomsync/internal/clockid"
	"github.com/hexmed-tecnologia/dicomsync/internal/domain"
	"github.com/hexmed-tecnologia/dicomsync/internal/obs"
	"github.com/hexmed-tecnologia/dicomsync/internal/runconfig"
	"github.com/hexmed-tecnologia/dicomsync/internal/runlayout"
	"github.com/hexmed-tecnologia/dicomsync/internal/toolkit"
)

// Sentinel errors for the pre-flight failures of spec.md §7.
var (
	ErrEmptyManifest    = errors.New("send: manifest has no rows")
	ErrNothingSelected  = errors.New("send: manifest has no file selected_for_send=1")
	ErrToolkitNotFound  = errors.New("send: driver toolkit binaries not found under toolkits/")
)

// metadataTimeout is the metadata-dump child's hard timeout (spec.md §5,
// "Timeouts").
const metadataTimeout = 30 * time.Second

// EventSink receives telemetry events; implemented by
// internal/telemetry.Writer.
type EventSink interface {
	Emit(domain.Event) error
}

// Progress is the ordered progress tuple of spec.md §6, "Progress
// callback".
type Progress struct {
	ItemsDone           int
	ItemsTotal          int
	AttemptChunkNo      int
	AttemptChunksTotal  int
	TechnicalChunkNo     int
	TechnicalChunksTotal int
}

// Result is what Run returns on completion (terminal or already-sent).
type Result struct {
	FinalStatus string
	Counts      SummaryCounts
	DurationSec float64
}

// Workflow runs the Send stage for one run directory.
type Workflow struct {
	Cfg    *runconfig.Config
	Driver toolkit.Driver
	Writer *artifact.Writer
	Layout *runlayout.Resolver
	Clock  *clockid.Clock
	Logger *slog.Logger
	Events EventSink

	Metrics *obs.WorkflowMetrics

	// BinDir is the resolved toolkit bin directory (from
	// internal/toolkit.Locate).
	BinDir string

	// LibDir is the dcm4che lib/ directory checked by the ToolF health
	// check (BinDir's sibling "lib" directory, normally).
	LibDir string

	// ToolFFolderMode selects the ToolF-folders unit.
	ToolFFolderMode bool

	// Cancel, when non-nil, is polled by the cancel watcher and at
	// every drained stdout line (spec.md §5).
	Cancel func() bool

	// Progress, when non-nil, receives one tuple per completed sub-chunk.
	Progress func(Progress)

	// LiveOutput, when true, surfaces every drained stdout line via
	// LogLine (spec.md §4.6 Execution step 3).
	LiveOutput bool
	LogLine    func(string)

	baseCommandLen int
}

// Run executes the Send workflow for runID/runDir.
func (w *Workflow) Run(ctx context.Context, runID, runDir string) (Result, error) {
	start := time.Now()

	if err := runlayout.EnsureDirs(runDir); err != nil {
		return Result{}, fmt.Errorf("send: ensure run directories: %w", err)
	}

	manifestPath := w.Layout.ResolveRead(runlayout.ManifestFiles)

	_, manifestRows, err := artifact.ReadAll(manifestPath)
	if err != nil {
		return Result{}, fmt.Errorf("send: read manifest: %w", err)
	}

	if len(manifestRows) == 0 {
		return Result{}, ErrEmptyManifest
	}

	units, chunkUnitLabel, err := w.planUnits(manifestRows)
	if err != nil {
		return Result{}, err
	}

	if len(units) == 0 {
		return Result{}, ErrNothingSelected
	}

	suffix := CheckpointSuffix(w.Cfg, w.ToolFFolderMode)
	cpStore := checkpoint.NewStore(w.Layout.ResolveWrite(runlayout.CheckpointName(suffix)), w.Clock)

	cpState, err := cpStore.Load()
	if err != nil {
		return Result{}, fmt.Errorf("send: load checkpoint: %w", err)
	}

	resultsPath := w.Layout.ResolveWrite(runlayout.SendResults)

	existing, err := ReadExistingResults(w.Layout.ResolveRead(runlayout.SendResults))
	if err != nil {
		return Result{}, fmt.Errorf("send: read existing results: %w", err)
	}

	fileMode := !(w.Cfg.Toolkit == runconfig.ToolkitF && w.ToolFFolderMode)

	if fileMode && existing.DoneFiles > cpState.DoneFiles {
		w.emit(runID, domain.EventSendResumeResults, "adopting results-derived done_files",
			fmt.Sprintf("checkpoint=%d results=%d", cpState.DoneFiles, existing.DoneFiles))
		cpState.DoneFiles = existing.DoneFiles
		cpState.DoneUnits = existing.DoneFiles
	}

	priorProgress := cpState.DoneUnits > 0 || existing.DoneFiles > 0

	if !priorProgress {
		_ = w.Layout.Cleanup(runlayout.SendResults)
		_ = w.Layout.Cleanup(runlayout.SendSummary)
		_ = w.Layout.Cleanup(runlayout.ToolkitRawLog)
		_ = w.Layout.Cleanup(runlayout.Events)

		existing = ExistingResults{LastStatus: map[string]string{}, LastDetail: map[string]string{}, SeenPaths: map[string]bool{}}
	}

	if cpState.DoneUnits >= len(units) || (fileMode && allDone(units, existing)) {
		counts := CountByStatus(existing)
		prevStatus := w.readPrevFinalStatus()

		final := string(domain.SendFinalAlreadySent)
		if prevStatus == string(domain.SendFinalPass) {
			final = string(domain.SendFinalAlreadySentPass)
		}

		w.emit(runID, domain.EventSendSkipCompleted, "send already completed", final)

		return Result{FinalStatus: final, Counts: counts, DurationSec: time.Since(start).Seconds()}, nil
	}

	if w.Cfg.Toolkit == runconfig.ToolkitF {
		if err := ToolFHealthCheck(w.LibDir); err != nil {
			return Result{}, err
		}
	}

	if fileMode {
		units = remainingUnits(units, existing)
	} else if cpState.DoneUnits > 0 && cpState.DoneUnits < len(units) {
		units = units[cpState.DoneUnits:]
	}

	w.baseCommandLen = baseCommandLength(w.Cfg)

	rawBatches := RawBatches(units, w.Cfg.BatchSizeDefault)

	w.emit(runID, domain.EventSendStart, "send starting", fmt.Sprintf("units=%d", len(units)))

	doneUnits := cpState.DoneUnits
	doneFiles := cpState.DoneFiles
	technicalChunkNo := doneUnits / maxInt(w.Cfg.BatchSizeDefault, 1)
	cancelled := false

	for rawIdx, raw := range rawBatches {
		if cancelled {
			break
		}

		split := SplitBatch(raw, w.Cfg, w.baseCommandLen)

		for subIdx, sub := range split.Chunks {
			attemptChunkNo := rawIdx*1000 + subIdx + 1
			technicalChunkNo++

			oversized := split.Oversized[subIdx]

			ok, interrupted, err := w.runChunk(ctx, runID, runDir, resultsPath, cpStore, &doneUnits, &doneFiles,
				sub, attemptChunkNo, len(rawBatches), technicalChunkNo, oversized)
			if err != nil {
				return Result{}, err
			}

			if !ok {
				continue
			}

			if interrupted {
				cancelled = true

				break
			}
		}
	}

	existing, err = ReadExistingResults(resultsPath)
	if err != nil {
		return Result{}, fmt.Errorf("send: re-read results: %w", err)
	}

	counts := CountByStatus(existing)
	finalStatus := FinalStatus(counts, cancelled)
	duration := time.Since(start).Seconds()

	summaryPath := w.Layout.ResolveWrite(runlayout.SendSummary)
	if err := WriteSummary(w.Writer, summaryPath, w.Clock, runID, string(w.Cfg.Toolkit),
		string(w.Cfg.ToolFSendMode), chunkUnitLabel, counts, duration, finalStatus); err != nil {
		return Result{}, fmt.Errorf("send: write summary: %w", err)
	}

	w.emit(runID, domain.EventSendEnd, "send complete", finalStatus)

	return Result{FinalStatus: finalStatus, Counts: counts, DurationSec: duration}, nil
}

// runChunk executes one sub-chunk end to end: argfile, command trace,
// spawn, drain+classify, post-stream reconciliation, checkpoint. ok is
// false only for a CHUNK_CMD_OVER_LIMIT skip (no files processed).
func (w *Workflow) runChunk(
	ctx context.Context, runID, runDir, resultsPath string, cpStore *checkpoint.Store,
	doneUnits, doneFiles *int, units []Unit, attemptChunkNo, attemptChunksTotal, technicalChunkNo int, oversized bool,
) (ok bool, interrupted bool, err error) {
	w.emit(runID, domain.EventChunkStart, "chunk start", fmt.Sprintf("attempt=%d technical=%d", attemptChunkNo, technicalChunkNo))

	metadataIUIDs := w.extractMetadata(ctx, units)
	candidates := BuildCandidates(w.Cfg, units, metadataIUIDs)

	argsFile := filepath.Join(runDir, "core", "batch_args", fmt.Sprintf("batch_%06d.txt", technicalChunkNo))

	if err := os.MkdirAll(filepath.Dir(argsFile), 0o750); err != nil {
		return false, false, fmt.Errorf("send: create batch_args dir: %w", err)
	}

	tokens := make([]string, len(units))
	for i, u := range units {
		tokens[i] = u.Path
	}

	if err := toolkit.WriteArgFile(argsFile, tokens); err != nil {
		return false, false, fmt.Errorf("send: write argfile: %w", err)
	}

	argv, err := w.Driver.BuildSendCommand(toolkit.SendCommandInput{
		BinDir: w.BinDir, PACSHost: w.Cfg.PACSHost, PACSPort: w.Cfg.PACSPort,
		AETSource: w.Cfg.AETSource, AETDest: w.Cfg.AETDest,
		Units: tokens, ArgsFile: argsFile,
		UseShellWrap: w.Cfg.ToolFUseShellWrapper, UseJavaDirect: w.Cfg.ToolFPreferJavaDirect,
	})
	if err != nil {
		return false, false, fmt.Errorf("send: build command: %w", err)
	}

	budget := commandBudget(w.Cfg)
	actualLen := commandLineLen(argv)

	if oversized {
		w.emit(runID, domain.EventCmdlenGuardWarn, "oversized single unit", units[0].Path)
	}

	if needsCmdLenCheck(w.Cfg) && actualLen > budget {
		w.emit(runID, domain.EventChunkCmdOverLimit, "chunk exceeds command-line budget",
			fmt.Sprintf("len=%d budget=%d", actualLen, budget))

		return false, false, nil
	}

	w.writeChunkTrace(runDir, technicalChunkNo, attemptChunkNo, attemptChunksTotal, argv, actualLen, budget)

	rawLogPath := w.Layout.ResolveWrite(runlayout.ToolkitRawLog)

	var lines []string

	toolFRT := NewToolFRealtime(candidates)
	toolTState := toolkit.NewToolTState()

	child := NewChildProcess(ctx, argv)

	onLine := func(line string) {
		lines = append(lines, line)
		_ = appendRawLog(rawLogPath, line)

		if w.LiveOutput && w.LogLine != nil {
			w.LogLine(line)
		}

		if w.Cfg.Toolkit == runconfig.ToolkitF {
			toolFRT.FeedLine(line)

			if w.Cfg.ToolFIUIDUpdateMode != runconfig.IUIDUpdateChunkEnd {
				for _, res := range toolFRT.TryMatch(candidates) {
					w.persistResult(runID, resultsPath, technicalChunkNo, res, doneUnits, doneFiles, cpStore)
				}
			}
		} else {
			if res := toolTState.FeedLine(line); res != nil {
				w.persistResult(runID, resultsPath, technicalChunkNo, *res, doneUnits, doneFiles, cpStore)
			}
		}
	}

	exitCode, procInterrupted, runErr := child.Run(w.Cancel, onLine)
	if runErr != nil {
		return true, false, fmt.Errorf("send: run child: %w", runErr)
	}

	if procInterrupted {
		w.emit(runID, domain.EventProcessForceKilled, "process tree force-killed on cancel",
			fmt.Sprintf("technical_chunk=%d", technicalChunkNo))
		w.emit(runID, domain.EventSendInterrupted, "send interrupted", "")

		return true, true, nil
	}

	w.scanParseExceptions(runID, lines)

	var postResults []toolkit.FileResult

	if w.Cfg.Toolkit == runconfig.ToolkitF {
		postResults = w.Driver.ParseSendOutput(lines, candidates, exitCode)

		for _, res := range postResults {
			if toolFRT.Resolved(res.Path) {
				continue
			}

			w.persistResult(runID, resultsPath, technicalChunkNo, res, doneUnits, doneFiles, cpStore)
		}
	} else {
		postResults = w.Driver.ParseSendOutput(lines, candidates, exitCode)

		for _, res := range postResults {
			if toolTState.Resolved(res.Path) {
				continue
			}

			w.persistResult(runID, resultsPath, technicalChunkNo, res, doneUnits, doneFiles, cpStore)
		}
	}

	if _, err := cpStore.Save(runID, *doneUnits, *doneFiles, domain.CheckpointModeChunkSync, "chunk_sync"); err != nil {
		return true, false, fmt.Errorf("send: save chunk-sync checkpoint: %w", err)
	}

	if w.Metrics != nil {
		w.Metrics.RecordCheckpointWrite(ctx)
	}

	w.emit(runID, domain.EventChunkEnd, "chunk end", fmt.Sprintf("attempt=%d technical=%d", attemptChunkNo, technicalChunkNo))

	if w.Progress != nil {
		w.Progress(Progress{
			ItemsDone: *doneFiles, AttemptChunkNo: attemptChunkNo, AttemptChunksTotal: attemptChunksTotal,
			TechnicalChunkNo: technicalChunkNo,
		})
	}

	return true, false, nil
}

// persistResult writes one result row, advances the item cursor, and
// emits an ITEM checkpoint (spec.md §4.6 Execution step 4).
func (w *Workflow) persistResult(
	runID, resultsPath string, chunkNo int, res toolkit.FileResult,
	doneUnits, doneFiles *int, cpStore *checkpoint.Store,
) {
	if err := domain.ValidateSendStatus(domain.SendStatus(res.SendStatus)); err != nil {
		if w.Logger != nil {
			w.Logger.Error("send: refusing to write unknown send_status", "value", res.SendStatus, "error", err)
		}

		return
	}

	row := ResultRow{
		RunID: runID, FilePath: res.Path, ChunkNo: chunkNo, Toolkit: string(w.Cfg.Toolkit),
		TSMode: string(w.Cfg.TSMode), SendStatus: res.SendStatus, StatusDetail: res.Detail,
		SOPInstanceUID: res.IUID, ExtractStatus: res.ExtractStatus,
	}

	if err := WriteResultRow(w.Writer, resultsPath, w.Clock, row); err != nil {
		if w.Logger != nil {
			w.Logger.Error("send: write result row failed", "file", res.Path, "error", err)
		}

		return
	}

	*doneUnits++
	*doneFiles++

	if w.Metrics != nil {
		w.Metrics.RecordFileSent(context.Background(), res.SendStatus)
	}

	if _, err := cpStore.Save(runID, *doneUnits, *doneFiles, domain.CheckpointModeItem, "item"); err != nil && w.Logger != nil {
		w.Logger.Error("send: save item checkpoint failed", "error", err)
	}

	if w.Metrics != nil {
		w.Metrics.RecordCheckpointWrite(context.Background())
	}
}

func (w *Workflow) extractMetadata(ctx context.Context, units []Unit) map[string]string {
	out := make(map[string]string, len(units))

	for _, u := range units {
		timeoutCtx, cancel := context.WithTimeout(ctx, metadataTimeout)

		md, err := w.Driver.ExtractMetadata(timeoutCtx, w.BinDir, u.Path)
		cancel()

		if err == nil && md.IUID != "" {
			out[u.Path] = md.IUID
		}
	}

	return out
}

func (w *Workflow) scanParseExceptions(runID string, lines []string) {
	for _, line := range lines {
		for _, marker := range parseExceptionMarkers {
			if strings.Contains(line, marker) {
				w.emit(runID, domain.EventSendParseException, "parse exception observed", line)

				break
			}
		}
	}
}

var parseExceptionMarkers = []string{
	"DicomStreamException", "IllegalArgumentException", "EOFException", "Unrecognized VR code", "Failed to scan file",
}

// needsCmdLenCheck reports whether the driver's command line is subject
// to the platform command-length budget (spec.md §4.5 step 7): the
// direct-Java+argfile invocation sidesteps the shell entirely and is
// exempt.
func needsCmdLenCheck(cfg *runconfig.Config) bool {
	return cfg.Toolkit == runconfig.ToolkitF && !cfg.ToolFPreferJavaDirect
}

// commandBudget returns the active command-length budget for cfg's
// invocation style.
func commandBudget(cfg *runconfig.Config) int {
	if cfg.ToolFUseShellWrapper {
		return analyze.ShellWrappedBudgetChars
	}

	return analyze.DirectBudgetChars
}

// commandLineLen estimates argv's length as a single shell command line:
// every token plus one separating space.
func commandLineLen(argv []string) int {
	total := 0

	for _, a := range argv {
		total += len(a) + 1
	}

	return total
}

// baseCommandLength estimates the fixed (non-per-unit) portion of the
// send command line, matching the ceiling the Analyze workflow used to
// compute batch_max_cmd (internal/analyze/workflow.go).
func baseCommandLength(cfg *runconfig.Config) int {
	return analyze.BaseCommandLen("storescu", cfg.AETDest, cfg.PACSHost, cfg.PACSPort, cfg.ToolFUseShellWrapper)
}

// appendRawLog appends one line of raw driver stdout to the toolkit's
// execution log artifact (spec.md §3, storescu_execucao.log).
func appendRawLog(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("send: open raw log %s: %w", path, err)
	}
	defer f.Close()

	_, err = f.WriteString(line + "\n")

	return err
}

// writeChunkTrace records the exact command line, its measured length,
// and the active budget for one sub-chunk, for post-mortem debugging of
// CHUNK_CMD_OVER_LIMIT and oversized-unit cases (spec.md §4.6 Execution
// step 1).
func (w *Workflow) writeChunkTrace(
	runDir string, technicalChunkNo, attemptChunkNo, attemptChunksTotal int, argv []string, actualLen, budget int,
) {
	dir := filepath.Join(runDir, "telemetry", "chunk_commands")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return
	}

	path := filepath.Join(dir, fmt.Sprintf("chunk_%06d.txt", technicalChunkNo))

	trace := fmt.Sprintf(
		"technical_chunk_no=%d\nattempt_chunk_no=%d\nattempt_chunks_total=%d\ncommand_len=%d\nbudget=%d\ncommand=%s\n",
		technicalChunkNo, attemptChunkNo, attemptChunksTotal, actualLen, budget, strings.Join(argv, " "),
	)

	_ = os.WriteFile(path, []byte(trace), 0o640)
}

func (w *Workflow) emit(runID string, eventType domain.EventType, message, ref string) {
	if w.Events == nil {
		return
	}

	_ = w.Events.Emit(domain.Event{RunID: runID, Type: eventType, Timestamp: w.Clock.NowISO(), Message: message, Ref: ref})
}

func (w *Workflow) readPrevFinalStatus() string {
	summaryPath := w.Layout.ResolveRead(runlayout.SendSummary)

	_, rows, err := artifact.ReadAll(summaryPath)
	if err != nil || len(rows) == 0 {
		return ""
	}

	return rows[len(rows)-1]["final_status"]
}

// planUnits resolves the unit list and its chunk-unit label
// ("arquivos"/"pastas") from the manifest rows, per spec.md §4.6
// Planning.
func (w *Workflow) planUnits(manifestRows []map[string]string) ([]Unit, string, error) {
	if w.Cfg.Toolkit == runconfig.ToolkitF && w.ToolFFolderMode {
		foldersPath := w.Layout.ResolveRead(runlayout.ManifestFolders)

		_, folderRows, err := artifact.ReadAll(foldersPath)
		if err != nil {
			return nil, "", fmt.Errorf("send: read manifest_folders: %w", err)
		}

		var order []string

		for _, r := range folderRows {
			order = append(order, r["folder_path"])
		}

		return BuildUnitsFromFolders(order), "pastas", nil
	}

	var paths []string

	for _, r := range manifestRows {
		if r["selected_for_send"] == "1" {
			paths = append(paths, r["file_path"])
		}
	}

	return BuildUnitsFromFiles(paths, nil), "arquivos", nil
}

func allDone(units []Unit, existing ExistingResults) bool {
	for _, u := range units {
		if !existing.SeenPaths[u.Path] {
			return false
		}
	}

	return true
}

func remainingUnits(units []Unit, existing ExistingResults) []Unit {
	var out []Unit

	for _, u := range units {
		if !existing.SeenPaths[u.Path] {
			out = append(out, u)
		}
	}

	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}

	return b
}

