package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/hexmed-tecnologia/dicomsync/internal/artifact"
	"github.com/hexmed-tecnologia/dicomsync/internal/clockid"
	"github.com/hexmed-tecnologia/dicomsync/internal/obs"
	"github.com/hexmed-tecnologia/dicomsync/internal/restclient"
	"github.com/hexmed-tecnologia/dicomsync/internal/runlayout"
	"github.com/hexmed-tecnologia/dicomsync/internal/telemetry"
	"github.com/hexmed-tecnologia/dicomsync/internal/validate"
)

func validateCmd() *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "validate <run-id>",
		Short: "Reconcile sent files against the PACS's QIDO-RS instance endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			runID = args[0]

			return runValidate(runID)
		},
	}

	return cmd
}

func runValidate(runID string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	runDir := filepath.Join(baseDir, "runs", runID)

	providers, err := initObservability(runID, "validate")
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
		return fmt.Errorf("validate: %w", err)
	}

	clock := clockid.Default
	layout := runlayout.New(runDir)
	events := telemetry.NewWriter(layout, clock, metrics)

	ctx := context.Background()

	wf := &validate.Workflow{
		Cfg:       cfg,
		Extractor: driver.Driver,
		BinDir:    driver.BinDir,
		REST:      restclient.New(),
		Writer:    artifact.NewWriter(),
		Layout:    layout,
		Clock:     clock,
		Logger:    providers.Logger,
		Events:    events,
		Metrics:   metrics,
	}

	result, err := wf.Run(ctx, runID, runDir)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	statusColor := color.FgGreen
	if result.FinalStatus == "FAIL" {
		statusColor = color.FgRed
	} else if result.FinalStatus == "PASS_WITH_WARNINGS" {
		statusColor = color.FgYellow
	}

	color.New(statusColor, color.Bold).Printf("validate complete: %s\n", result.FinalStatus)

	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"unique iuids", "ok", "not found", "api error", "duration (s)"})
	tbl.AppendRow(table.Row{
		result.Counts.TotalIUIDUnique, result.Counts.IUIDOK, result.Counts.IUIDNotFound, result.Counts.IUIDAPIError,
		fmt.Sprintf("%.2f", result.DurationSec),
	})
	tbl.Render()

	return nil
}
