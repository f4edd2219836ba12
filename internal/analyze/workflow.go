package analyze

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/hexmed-tecnologia/dicomsync/internal/artifact"
	"github.com/hexmed-tecnologia/dicomsync/internal/clockid"
	"github.com/hexmed-tecnologia/dicomsync/internal/domain"
	"github.com/hexmed-tecnologia/dicomsync/internal/runconfig"
	"github.com/hexmed-tecnologia/dicomsync/internal/runlayout"
)

// ErrWorkflowCancelled is returned when the cancel signal trips mid-scan
// (spec.md §4.5 step 5).
var ErrWorkflowCancelled = errors.New("analyze: workflow cancelled")

// flushEvery is the manifest row-buffer flush threshold (spec.md §4.5
// step 1).
const flushEvery = 2000

// progressEvery is the progress-event cadence (spec.md §4.5 step 4).
const progressEvery = 2 * time.Second

// warningCap is the per-run cap on scan-error warnings surfaced to the
// log (spec.md §7).
const warningCap = 5

// EventSink receives telemetry events; implemented by
// internal/telemetry.Writer.
type EventSink interface {
	Emit(domain.Event) error
}

// Progress is one progress-cadence snapshot (spec.md §4.5 step 4).
type Progress struct {
	DirsProcessed int
	FilesTotal    int
	FilesSelected int
	FilesPerSec   float64
	ETA           time.Duration
}

// Result is the summary Analyze returns on success (spec.md §4.5,
// "Returns").
type Result struct {
	RunID            string
	RunDir           string
	ChunkUnit         string
	ChunksTotal       int
	FilesTotal        int
	FilesSelected     int
	FoldersTotal      int
	FoldersSelected   int
	SizeTotalBytes    int64
	SizeSelectedBytes int64
	BatchMaxCmd       int
	BatchMaxCmdSource BatchMaxCmdSource
	DurationSec       float64
}

// Workflow runs the Analyze stage for one run directory.
type Workflow struct {
	Cfg    *runconfig.Config
	Writer *artifact.Writer
	Layout *runlayout.Resolver
	Clock  *clockid.Clock
	Logger *slog.Logger
	Events EventSink
	FS     DirEntryLister

	// ToolFFolderMode selects the ToolF-folders unit; when false (or
	// the toolkit isn't ToolF) the unit is a file.
	ToolFFolderMode bool

	// Cancel, when non-nil, is polled between directories; a true
	// value aborts the scan with ErrWorkflowCancelled.
	Cancel func() bool

	// Progress, when non-nil, receives one snapshot every ~2s.
	Progress func(Progress)

	warningsLogged int
}

type folderAgg struct {
	count int
	bytes int64
}

// Run executes the Analyze workflow against examRoot, writing
// manifest_files.csv, manifest_folders.csv, and analysis_summary.csv
// under runDir (spec.md §4.5).
func (w *Workflow) Run(runID, runDir, examRoot string, batchSize int) (Result, error) {
	if batchSize < 1 {
		return Result{}, fmt.Errorf("analyze: batch_size must be >= 1, got %d", batchSize)
	}

	if err := runlayout.EnsureDirs(runDir); err != nil {
		return Result{}, fmt.Errorf("analyze: ensure run directories: %w", err)
	}

	fs := w.FS
	if fs == nil {
		fs = osFS{}
	}

	start := time.Now()

	if err := w.Layout.Cleanup(runlayout.ManifestFiles); err != nil {
		return Result{}, fmt.Errorf("analyze: clear manifest_files: %w", err)
	}

	manifestPath := w.Layout.ResolveWrite(runlayout.ManifestFiles)
	foldersPath := w.Layout.ResolveWrite(runlayout.ManifestFolders)
	summaryPath := w.Layout.ResolveWrite(runlayout.AnalysisSummary)

	fileFields := []string{
		"run_id", "seq", "file_path", "folder_path", "extension",
		"size_bytes", "selected_for_send", "selection_reason", "discovered_at",
	}

	var (
		seq               int
		filesTotal        int
		filesSelected     int
		sizeTotal         int64
		sizeSelected      int64
		dirsProcessed     int
		unitMaxArgLen     int
		selectedFolderSet = map[string]bool{}
		folders           = map[string]*folderAgg{}
		rowBuf            []map[string]string
		lastProgress      = start
	)

	flush := func() error {
		if len(rowBuf) == 0 {
			return nil
		}

		for _, row := range rowBuf {
			if err := w.Writer.AppendRow(manifestPath, fileFields, row); err != nil {
				return err
			}
		}

		rowBuf = rowBuf[:0]

		return nil
	}

	cancelled := false

	onDir := func(dir string) {
		dirsProcessed++

		if w.Cancel != nil && w.Cancel() {
			cancelled = true
		}

		if time.Since(lastProgress) >= progressEvery && w.Progress != nil {
			rate := float64(filesTotal) / math.Max(time.Since(start).Seconds(), 0.001)
			avgPerDir := float64(filesTotal) / math.Max(float64(dirsProcessed), 1)
			eta := time.Duration(0)

			if rate > 0 {
				eta = time.Duration(avgPerDir/rate) * time.Second
			}

			w.Progress(Progress{
				DirsProcessed: dirsProcessed,
				FilesTotal:    filesTotal,
				FilesSelected: filesSelected,
				FilesPerSec:   rate,
				ETA:           eta,
			})
			lastProgress = time.Now()
		}
	}

	onScanError := func(path string, err error) {
		if w.warningsLogged < warningCap && w.Logger != nil {
			w.Logger.Warn("analyze: scan error", "path", path, "error", err)
			w.warningsLogged++
		}
	}

	onFile := func(sf ScannedFile) {
		if cancelled {
			return
		}

		filesTotal++
		seq++

		sel := SelectFile(w.Cfg, w.ToolFFolderMode, sf.Name)
		sizeTotal += sf.SizeBytes

		agg, ok := folders[sf.FolderPath]
		if !ok {
			agg = &folderAgg{}
			folders[sf.FolderPath] = agg
		}

		agg.count++
		agg.bytes += sf.SizeBytes

		selectedFlag := "0"

		if sel.Selected {
			filesSelected++
			sizeSelected += sf.SizeBytes
			selectedFlag = "1"
			selectedFolderSet[sf.FolderPath] = true

			argLen := QuoteArgLen(sf.Path)
			if argLen > unitMaxArgLen {
				unitMaxArgLen = argLen
			}
		}

		row := map[string]string{
			"run_id":            runID,
			"seq":               strconv.Itoa(seq),
			"file_path":         sf.Path,
			"folder_path":       sf.FolderPath,
			"extension":         sf.Extension,
			"selected_for_send": selectedFlag,
			"selection_reason":  string(sel.Reason),
			"discovered_at":     w.Clock.NowBR(),
		}

		if w.Cfg.CollectSizeBytes {
			row["size_bytes"] = strconv.FormatInt(sf.SizeBytes, 10)
		} else {
			row["size_bytes"] = ""
		}

		rowBuf = append(rowBuf, row)

		if len(rowBuf) >= flushEvery {
			_ = flush()
		}
	}

	Walk(fs, examRoot, onFile, onDir, onScanError)

	if flushErr := flush(); flushErr != nil {
		return Result{}, flushErr
	}

	if cancelled {
		if w.Events != nil {
			_ = w.Events.Emit(domain.Event{
				RunID: runID, Type: domain.EventAnalysisCancelled,
				Timestamp: w.Clock.NowISO(), Message: "analysis cancelled",
			})
		}

		return Result{}, ErrWorkflowCancelled
	}

	if err := w.writeFolderAggregates(foldersPath, runID, folders); err != nil {
		return Result{}, err
	}

	useFolderUnit := w.Cfg.Toolkit == runconfig.ToolkitF && w.ToolFFolderMode
	chunkUnit := "arquivos"
	chunkBaseCount := filesSelected

	if useFolderUnit {
		chunkUnit = "pastas"
		chunkBaseCount = len(selectedFolderSet)
	}

	chunksTotal := 0
	if chunkBaseCount > 0 {
		chunksTotal = int(math.Ceil(float64(chunkBaseCount) / float64(batchSize)))
	}

	if useFolderUnit {
		unitMaxArgLen = 0

		for folder := range selectedFolderSet {
			if l := QuoteArgLen(folder); l > unitMaxArgLen {
				unitMaxArgLen = l
			}
		}
	}

	baseLen := BaseCommandLen("storescu", w.Cfg.AETDest, w.Cfg.PACSHost, w.Cfg.PACSPort, w.Cfg.ToolFUseShellWrapper)
	batchMaxCmd, source, _ := EstimateBatchMaxCmd(w.Cfg, baseLen, unitMaxArgLen, chunkBaseCount)

	duration := time.Since(start).Seconds()

	if err := w.writeSummary(summaryPath, runID, examRoot, batchSize, len(folders), len(selectedFolderSet),
		filesTotal, filesSelected, sizeTotal, sizeSelected, chunkUnit, chunksTotal, duration, batchMaxCmd, source); err != nil {
		return Result{}, err
	}

	if w.Events != nil {
		_ = w.Events.Emit(domain.Event{
			RunID: runID, Type: domain.EventAnalysisEnd, Timestamp: w.Clock.NowISO(),
			Message: "analysis complete",
			Ref:     fmt.Sprintf("files_total=%d;selected_files=%d;chunks=%d", filesTotal, filesSelected, chunksTotal),
		})
	}

	return Result{
		RunID: runID, RunDir: runDir, ChunkUnit: chunkUnit, ChunksTotal: chunksTotal,
		FilesTotal: filesTotal, FilesSelected: filesSelected,
		FoldersTotal: len(folders), FoldersSelected: len(selectedFolderSet),
		SizeTotalBytes: sizeTotal, SizeSelectedBytes: sizeSelected,
		BatchMaxCmd: batchMaxCmd, BatchMaxCmdSource: source, DurationSec: duration,
	}, nil
}

func (w *Workflow) writeFolderAggregates(path, runID string, folders map[string]*folderAgg) error {
	fields := []string{"run_id", "folder_path", "file_count", "size_bytes", "discovered_at"}

	keys := make([]string, 0, len(folders))
	for k := range folders {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var rows []map[string]string

	for _, k := range keys {
		agg := folders[k]
		rows = append(rows, map[string]string{
			"run_id":        runID,
			"folder_path":   k,
			"file_count":    strconv.Itoa(agg.count),
			"size_bytes":    strconv.FormatInt(agg.bytes, 10),
			"discovered_at": w.Clock.NowBR(),
		})
	}

	return w.Writer.RewriteTable(path, fields, rows)
}

func (w *Workflow) writeSummary(
	path, runID, root string, batchSize, foldersTotal, foldersSelected,
	filesTotal, filesSelected int, sizeTotal, sizeSelected int64,
	chunkUnit string, chunksTotal int, duration float64, batchMaxCmd int, source BatchMaxCmdSource,
) error {
	fields := []string{
		"run_id", "root_path", "toolkit", "batch_size", "folders_total", "folders_selected_for_send",
		"files_total", "files_selected_for_send", "files_excluded", "size_total_bytes", "size_selected_bytes",
		"size_collection_enabled", "chunk_unit", "chunks_total", "analysis_duration_sec",
		"batch_max_cmd", "batch_max_cmd_source", "generated_at",
	}

	sizeCollection := "0"
	if w.Cfg.CollectSizeBytes {
		sizeCollection = "1"
	}

	row := map[string]string{
		"run_id": runID, "root_path": filepath.Clean(root), "toolkit": string(w.Cfg.Toolkit),
		"batch_size": strconv.Itoa(batchSize), "folders_total": strconv.Itoa(foldersTotal),
		"folders_selected_for_send": strconv.Itoa(foldersSelected),
		"files_total":               strconv.Itoa(filesTotal),
		"files_selected_for_send":   strconv.Itoa(filesSelected),
		"files_excluded":            strconv.Itoa(filesTotal - filesSelected),
		"size_total_bytes":          strconv.FormatInt(sizeTotal, 10),
		"size_selected_bytes":       strconv.FormatInt(sizeSelected, 10),
		"size_collection_enabled":   sizeCollection,
		"chunk_unit":                chunkUnit,
		"chunks_total":              strconv.Itoa(chunksTotal),
		"analysis_duration_sec":     strconv.FormatFloat(duration, 'f', 3, 64),
		"batch_max_cmd":             strconv.Itoa(batchMaxCmd),
		"batch_max_cmd_source":      string(source),
		"generated_at":              w.Clock.NowBR(),
	}

	return w.Writer.RewriteTable(path, fields, []map[string]string{row})
}
