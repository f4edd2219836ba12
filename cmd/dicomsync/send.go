package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/hexmed-tecnologia/dicomsync/internal/artifact"
	"github.com/hexmed-tecnologia/dicomsync/internal/clockid"
	"github.com/hexmed-tecnologia/dicomsync/internal/obs"
	"github.com/hexmed-tecnologia/dicomsync/internal/runlayout"
	"github.com/hexmed-tecnologia/dicomsync/internal/send"
	"github.com/hexmed-tecnologia/dicomsync/internal/telemetry"
)

func sendCmd() *cobra.Command {
	var (
		runID           string
		toolFFolderMode bool
		liveOutput      bool
	)

	cmd := &cobra.Command{
		Use:   "send <run-id>",
		Short: "Send the manifest produced by analyze to the configured PACS",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			runID = args[0]

			return runSend(runID, toolFFolderMode, liveOutput)
		},
	}

	cmd.Flags().BoolVar(&toolFFolderMode, "toolF-folders", false, "use ToolF folder-unit mode instead of file-unit mode")
	cmd.Flags().BoolVar(&liveOutput, "live", false, "stream the driver's stdout lines as they arrive")

	return cmd
}

func runSend(runID string, toolFFolderMode, liveOutput bool) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	runDir := filepath.Join(baseDir, "runs", runID)

	providers, err := initObservability(runID, "send")
	if err != nil {
		return err
	}
	defer func() { _ = providers.Shutdown(context.Background()) }()

	metrics, err := obs.NewWorkflowMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("build metrics: %w", err)
	}

	driver, err := buildDriver(cfg, baseDir)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}

	clock := clockid.Default
	layout := runlayout.New(runDir)
	events := telemetry.NewWriter(layout, clock, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cancelled := false

	wf := &send.Workflow{
		Cfg:             cfg,
		Driver:          driver.Driver,
		Writer:          artifact.NewWriter(),
		Layout:          layout,
		Clock:           clock,
		Logger:          providers.Logger,
		Events:          events,
		Metrics:         metrics,
		BinDir:          driver.BinDir,
		LibDir:          driver.LibDir,
		ToolFFolderMode: toolFFolderMode,
		Cancel:          func() bool { return cancelled },
		LiveOutput:      liveOutput,
		LogLine:         func(line string) { fmt.Println(line) },
		Progress: func(p send.Progress) {
			color.New(color.FgCyan).Printf("  chunk %d/%d: %d items sent\n", p.TechnicalChunkNo, p.TechnicalChunksTotal, p.ItemsDone)
		},
	}

	go func() {
		<-ctx.Done()
		cancelled = true
	}()

	result, err := wf.Run(ctx, runID, runDir)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}

	statusColor := color.FgGreen
	if result.FinalStatus == "FAIL" || result.FinalStatus == "INTERRUPTED" {
		statusColor = color.FgRed
	} else if result.FinalStatus == "PASS_WITH_WARNINGS" {
		statusColor = color.FgYellow
	}

	color.New(statusColor, color.Bold).Printf("send complete: %s\n", result.FinalStatus)

	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"files total", "ok", "fail", "unknown", "duration (s)"})
	tbl.AppendRow(table.Row{
		result.Counts.FilesTotal, result.Counts.FilesOK, result.Counts.FilesFail, result.Counts.FilesUnknown,
		fmt.Sprintf("%.2f", result.DurationSec),
	})
	tbl.Render()

	return nil
}
