// Command dicomsync bulk-transfers DICOM studies to a PACS and
// reconciles what actually landed, across the Analyze, Send, Validate,
// and Report stages (spec.md §1).
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hexmed-tecnologia/dicomsync/internal/obs"
	"github.com/hexmed-tecnologia/dicomsync/internal/runconfig"
)

// readHeaderTimeout bounds the diagnostics HTTP server's header-read
// phase against a slow-loris client.
const readHeaderTimeout = 5 * time.Second

//nolint:gochecknoglobals // CLI flag variables, set once by cobra at startup
var (
	cfgFile        string
	baseDir        string
	logJSON        bool
	logLevelFlag   string
	diagAddr       string
	dumpConfigFlag bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dicomsync",
		Short: "Bulk-transfer DICOM studies to a PACS and reconcile the result",
		Long: `dicomsync analyzes a local DICOM export directory, sends the selected
files to a PACS via a configurable toolkit (dcm4che or DCMTK), and
reconciles what the PACS actually received against a QIDO-RS endpoint.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./.dicomsync.yaml or $HOME/.dicomsync.yaml)")
	rootCmd.PersistentFlags().StringVar(&baseDir, "base-dir", ".", "base directory containing toolkits/ and runs/")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit JSON logs instead of plain text")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&diagAddr, "diagnostics-addr", "", "if set, serve /metrics on this address (e.g. :9090)")
	rootCmd.PersistentFlags().BoolVar(&dumpConfigFlag, "dump-config", false, "print the resolved configuration as YAML and exit")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(echoCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadRunConfig loads the layered configuration and, if --dump-config was
// given, prints it and exits the process (spec.md §6's option table;
// cmd/uast's --verbose/--quiet global-flag idiom).
func loadRunConfig() (*runconfig.Config, error) {
	cfg, _, err := runconfig.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if downgraded := cfg.NormalizeTSMode(); downgraded {
		fmt.Fprintln(os.Stderr, "warning: ts_mode other than AUTO is not yet implemented; downgraded to AUTO")
	}

	if dumpConfigFlag {
		out, marshalErr := yaml.Marshal(cfg)
		if marshalErr != nil {
			return nil, fmt.Errorf("marshal config: %w", marshalErr)
		}

		fmt.Fprint(os.Stdout, string(out))
		os.Exit(0)
	}

	return cfg, nil
}

// parseLogLevel maps the --log-level flag to an slog.Level, defaulting
// to Info on an unrecognized value.
func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// initObservability builds the tracing/metrics/logging stack for one run
// and, if --diagnostics-addr was given, serves /metrics in the
// background (SPEC_FULL.md §11).
func initObservability(runID, workflow string) (obs.Providers, error) {
	providers, err := obs.Init(obs.Config{
		RunAttrs: obs.RunAttrs{RunID: runID, Workflow: workflow},
		LogJSON:  logJSON,
		LogLevel: parseLogLevel(logLevelFlag),
	})
	if err != nil {
		return obs.Providers{}, fmt.Errorf("init observability: %w", err)
	}

	if diagAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{Addr: diagAddr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

		go func() {
			if serveErr := server.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
				providers.Logger.Error("diagnostics server stopped", "error", serveErr)
			}
		}()

		providers.Logger.Info("diagnostics server listening", "addr", diagAddr)
	}

	return providers, nil
}
