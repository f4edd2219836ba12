package toolkit

import (
	"context"
	"errors"
)

// ErrIUIDNotFound is returned by ExtractMetadata when the metadata-dump
// companion produced output that does not contain a recognizable IUID.
var ErrIUIDNotFound = errors.New("toolkit: no IUID found in metadata output")

// SendCommandInput carries everything a driver needs to build the
// child-process invocation for one sub-chunk (spec.md §4.4 op 1).
type SendCommandInput struct {
	BinDir        string
	PACSHost      string
	PACSPort      int
	AETSource     string
	AETDest       string
	Units         []string // file paths, or folder paths in ToolF-folder-mode
	ArgsFile      string   // pre-written batch-args file, one quoted path per line
	UseShellWrap  bool     // ToolF only
	UseJavaDirect bool     // ToolF only: direct-Java + argfile invocation
}

// EchoCommandInput carries the connectivity-test parameters (spec.md
// §4.4 op 2).
type EchoCommandInput struct {
	BinDir    string
	PACSHost  string
	PACSPort  int
	AETSource string
	AETDest   string
}

// Metadata is the result of extract_metadata (spec.md §4.4 op 3).
type Metadata struct {
	IUID   string
	TSUID  string
	TSName string
}

// FileCandidate is one file offered to ParseSendOutput for correlation:
// its path, its metadata-extracted IUID (if known ahead of time, may be
// empty), and whether it "looks like" a DICOM payload (by extension or
// bare-numeric name) for the purposes of §4.6's fallback chain.
type FileCandidate struct {
	Path             string
	MetadataIUID     string
	LooksLikePayload bool
	IsDICOMDIR       bool
}

// FileResult is one terminal per-file classification produced by
// ParseSendOutput or by the real-time classifier in internal/send.
type FileResult struct {
	Path          string
	SendStatus    string // domain.SendStatus, kept as string to avoid an import cycle
	ExtractStatus string // domain.ExtractStatus
	IUID          string
	Detail        string
}

// Driver is the uniform interface the Send workflow depends on instead
// of a concrete toolkit family (spec.md §4.4).
type Driver interface {
	// BuildSendCommand constructs the child process invocation argv.
	BuildSendCommand(in SendCommandInput) ([]string, error)

	// BuildEchoCommand constructs a zero-payload connectivity test argv.
	BuildEchoCommand(in EchoCommandInput) ([]string, error)

	// ExtractMetadata runs the metadata-dump companion against file and
	// parses its two fixed tag extractions.
	ExtractMetadata(ctx context.Context, binDir, file string) (Metadata, error)

	// ParseSendOutput performs the post-stream reconciliation pass: for
	// every candidate not already resolved in real time, infer its
	// terminal outcome from the full captured output.
	ParseSendOutput(lines []string, candidates []FileCandidate, processExitCode int) []FileResult
}
