package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hexmed-tecnologia/dicomsync/internal/artifact"
	"github.com/hexmed-tecnologia/dicomsync/internal/clockid"
	"github.com/hexmed-tecnologia/dicomsync/internal/report"
	"github.com/hexmed-tecnologia/dicomsync/internal/restclient"
	"github.com/hexmed-tecnologia/dicomsync/internal/runlayout"
	"github.com/hexmed-tecnologia/dicomsync/internal/telemetry"
)

func reportCmd() *cobra.Command {
	var (
		runID     string
		modeFlag  string
		chartFlag bool
	)

	cmd := &cobra.Command{
		Use:   "report <run-id>",
		Short: "Export the clinical validation report (mode A: per-file, mode C: per-study)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			runID = args[0]

			return runReport(runID, modeFlag, chartFlag)
		},
	}

	cmd.Flags().StringVar(&modeFlag, "mode", "A", "report mode: A (per-file) or C (per-study aggregate)")
	cmd.Flags().BoolVar(&chartFlag, "chart", false, "also write an HTML outcome chart alongside the CSV")

	return cmd
}

func runReport(runID, modeFlag string, chartFlag bool) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	runDir := filepath.Join(baseDir, "runs", runID)

	providers, err := initObservability(runID, "report")
	if err != nil {
		return err
	}
	defer func() { _ = providers.Shutdown(context.Background()) }()

	driver, err := buildDriver(cfg, baseDir)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	clock := clockid.Default
	layout := runlayout.New(runDir)
	events := telemetry.NewWriter(layout, clock, nil)

	mode := report.ModeA
	if modeFlag == "C" {
		mode = report.ModeC
	}

	wf := &report.Workflow{
		AETDest:      cfg.AETDest,
		PACSRESTHost: cfg.PACSRESTHost,
		Extractor:    driver.Driver,
		BinDir:       driver.BinDir,
		REST:         restclient.New(),
		Writer:       artifact.NewWriter(),
		Layout:       layout,
		Clock:        clock,
		Logger:       providers.Logger,
		Events:       events,
	}

	result, err := wf.Run(context.Background(), runID, mode)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	color.New(color.FgGreen, color.Bold).Printf("report exported: %s\n", result.ReportFile)
	fmt.Printf("  rows: %d (%d ok, %d erro)\n", result.Rows, result.OK, result.Erro)

	if chartFlag {
		chartPath := filepath.Join(filepath.Dir(result.ReportFile), fmt.Sprintf("validation_full_report_%s.html", mode))

		if err := writeOutcomeChart(chartPath, runID, result.OK, result.Erro); err != nil {
			return fmt.Errorf("report: write chart: %w", err)
		}

		fmt.Printf("  chart: %s\n", chartPath)
	}

	return nil
}

// writeOutcomeChart renders a minimal OK-vs-ERRO bar chart for the
// report just exported, so a reviewer can eyeball reconciliation health
// without opening the CSV (SPEC_FULL.md's dashboard supplement).
func writeOutcomeChart(path, runID string, okCount, erroCount int) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return report.RenderOutcomeBar(f, runID, okCount, erroCount)
}
