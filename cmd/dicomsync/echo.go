package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hexmed-tecnologia/dicomsync/internal/send"
	"github.com/hexmed-tecnologia/dicomsync/internal/toolkit"
)

const echoTimeout = 30 * time.Second

func echoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Run a zero-payload C-ECHO connectivity test against the configured PACS",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runEcho()
		},
	}

	return cmd
}

func runEcho() error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	driver, err := buildDriver(cfg, baseDir)
	if err != nil {
		return fmt.Errorf("echo: %w", err)
	}

	argv, err := driver.Driver.BuildEchoCommand(toolkit.EchoCommandInput{
		BinDir:    driver.BinDir,
		PACSHost:  cfg.PACSHost,
		PACSPort:  cfg.PACSPort,
		AETSource: cfg.AETSource,
		AETDest:   cfg.AETDest,
	})
	if err != nil {
		return fmt.Errorf("echo: build command: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), echoTimeout)
	defer cancel()

	proc := send.NewChildProcess(ctx, argv)

	exitCode, interrupted, err := proc.Run(nil, func(line string) { fmt.Println(line) })
	if err != nil {
		return fmt.Errorf("echo: %w", err)
	}

	if interrupted {
		color.New(color.FgRed, color.Bold).Println("echo: timed out")

		return fmt.Errorf("echo: timed out after %s", echoTimeout)
	}

	if exitCode != 0 {
		color.New(color.FgRed, color.Bold).Printf("echo: FAILED (exit %d)\n", exitCode)

		return fmt.Errorf("echo: toolkit exited with code %d", exitCode)
	}

	color.New(color.FgGreen, color.Bold).Println("echo: OK")

	return nil
}
