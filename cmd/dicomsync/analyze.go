package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hexmed-tecnologia/dicomsync/internal/analyze"
	"github.com/hexmed-tecnologia/dicomsync/internal/artifact"
	"github.com/hexmed-tecnologia/dicomsync/internal/clockid"
	"github.com/hexmed-tecnologia/dicomsync/internal/runconfig"
	"github.com/hexmed-tecnologia/dicomsync/internal/runlayout"
	"github.com/hexmed-tecnologia/dicomsync/internal/telemetry"
)

func analyzeCmd() *cobra.Command {
	var (
		examRoot        string
		batchSize       int
		toolFFolderMode bool
		runID           string
	)

	cmd := &cobra.Command{
		Use:   "analyze <exam-dir>",
		Short: "Scan an exam directory and build the send manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			examRoot = args[0]

			return runAnalyze(examRoot, batchSize, toolFFolderMode, runID)
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "override the configured batch_size_default (0 = use config)")
	cmd.Flags().BoolVar(&toolFFolderMode, "toolF-folders", false, "use ToolF folder-unit mode instead of file-unit mode")
	cmd.Flags().StringVar(&runID, "run-id", "", "explicit run identifier (default: derived from the current time)")

	return cmd
}

func runAnalyze(examRoot string, batchSizeFlag int, toolFFolderMode bool, runIDFlag string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	clock := clockid.Default

	driver := clockid.DriverToolT
	mode := clockid.Mode("")

	if cfg.Toolkit == runconfig.ToolkitF {
		driver = clockid.DriverToolF

		if toolFFolderMode {
			mode = clockid.ModeFolders
		} else {
			mode = clockid.ModeFiles
		}
	}

	runID := runIDFlag
	if runID == "" {
		runID = clockid.NewRunID()
	}

	runID = clockid.NormalizeRunID(runID, driver, mode)
	runDir := filepath.Join(baseDir, "runs", runID)

	providers, err := initObservability(runID, "analyze")
	if err != nil {
		return err
	}
	defer func() { _ = providers.Shutdown(context.Background()) }()

	layout := runlayout.New(runDir)
	events := telemetry.NewWriter(layout, clock, nil)

	batchSize := cfg.BatchSizeDefault
	if batchSizeFlag > 0 {
		batchSize = batchSizeFlag
	}

	wf := &analyze.Workflow{
		Cfg:             cfg,
		Writer:          artifact.NewWriter(),
		Layout:          layout,
		Clock:           clock,
		Logger:          providers.Logger,
		Events:          events,
		ToolFFolderMode: toolFFolderMode,
		Progress: func(p analyze.Progress) {
			color.New(color.FgCyan).Printf(
				"  %d dirs, %d/%d files selected (%.1f files/s, eta %s)\n",
				p.DirsProcessed, p.FilesSelected, p.FilesTotal, p.FilesPerSec, p.ETA.Round(time.Second),
			)
		},
	}

	result, err := wf.Run(runID, runDir, examRoot, batchSize)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	color.New(color.FgGreen, color.Bold).Printf("analyze complete: run_id=%s\n", result.RunID)
	fmt.Printf(
		"  files: %d total, %d selected (%s of %s)\n  chunks: %d (%s)\n  duration: %.2fs\n",
		result.FilesTotal, result.FilesSelected,
		humanize.Bytes(uint64(result.SizeSelectedBytes)), humanize.Bytes(uint64(result.SizeTotalBytes)),
		result.ChunksTotal, result.ChunkUnit, result.DurationSec,
	)

	return nil
}
