package send_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexmed-tecnologia/dicomsync/internal/artifact"
	"github.com/hexmed-tecnologia/dicomsync/internal/clockid"
	"github.com/hexmed-tecnologia/dicomsync/internal/domain"
	"github.com/hexmed-tecnologia/dicomsync/internal/runconfig"
	"github.com/hexmed-tecnologia/dicomsync/internal/runlayout"
	"github.com/hexmed-tecnologia/dicomsync/internal/send"
	"github.com/hexmed-tecnologia/dicomsync/internal/toolkit"
)

// fakeDriver stubs toolkit.Driver: BuildSendCommand spawns a no-op shell
// command (the real correlation logic is exercised directly by
// toolkit's own tests), and ParseSendOutput classifies every candidate
// SENT_OK, so the workflow test below exercises planning, checkpointing
// and result/summary writing rather than dcm4che/DCMTK parsing.
type fakeDriver struct{}

func (fakeDriver) BuildSendCommand(in toolkit.SendCommandInput) ([]string, error) {
	return []string{"/bin/sh", "-c", "true"}, nil
}

func (fakeDriver) BuildEchoCommand(in toolkit.EchoCommandInput) ([]string, error) {
	return []string{"/bin/sh", "-c", "true"}, nil
}

func (fakeDriver) ExtractMetadata(ctx context.Context, binDir, file string) (toolkit.Metadata, error) {
	return toolkit.Metadata{IUID: "1.2.3." + filepath.Base(file)}, nil
}

func (fakeDriver) ParseSendOutput(lines []string, candidates []toolkit.FileCandidate, processExitCode int) []toolkit.FileResult {
	results := make([]toolkit.FileResult, 0, len(candidates))

	for _, c := range candidates {
		results = append(results, toolkit.FileResult{
			Path: c.Path, SendStatus: string(domain.SendStatusOK),
			ExtractStatus: string(domain.ExtractOKPost), IUID: c.MetadataIUID,
		})
	}

	return results
}

type recordingSink struct {
	events []domain.Event
}

func (s *recordingSink) Emit(e domain.Event) error {
	s.events = append(s.events, e)

	return nil
}

func newTestWorkflow(t *testing.T, runDir string) (*send.Workflow, *recordingSink) {
	t.Helper()

	clock := fixedClock(t)
	sink := &recordingSink{}
	cfg := runconfig.Defaults()
	cfg.Toolkit = runconfig.ToolkitT
	cfg.BatchSizeDefault = 2

	wf := &send.Workflow{
		Cfg:    &cfg,
		Driver: fakeDriver{},
		Writer: &artifact.Writer{Clock: clock},
		Layout: runlayout.New(runDir),
		Clock:  clock,
		Events: sink,
	}

	return wf, sink
}

func writeManifest(t *testing.T, runDir string, paths []string) {
	t.Helper()

	layout := runlayout.New(runDir)
	w := &artifact.Writer{Clock: &clockid.Clock{Now: func() time.Time { return time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC) }}}

	fields := []string{
		"run_id", "seq", "file_path", "folder_path", "extension",
		"size_bytes", "selected_for_send", "selection_reason", "discovered_at",
	}

	rows := make([]map[string]string, len(paths))
	for i, p := range paths {
		rows[i] = map[string]string{
			"run_id": "run1", "seq": "1", "file_path": p, "folder_path": filepath.Dir(p),
			"extension": ".dcm", "size_bytes": "10", "selected_for_send": "1",
			"selection_reason": string(domain.SelectionIncludedExt), "discovered_at": "",
		}
	}

	require.NoError(t, w.RewriteTable(layout.ResolveWrite(runlayout.ManifestFiles), fields, rows))
}

func TestWorkflowRun_SendsAllFilesAndWritesPassSummary(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	writeManifest(t, runDir, []string{"/exam/a.dcm", "/exam/b.dcm", "/exam/c.dcm"})

	wf, sink := newTestWorkflow(t, runDir)

	result, err := wf.Run(context.Background(), "run1", runDir)
	require.NoError(t, err)

	assert.Equal(t, "PASS", result.FinalStatus)
	assert.Equal(t, 3, result.Counts.FilesTotal)
	assert.Equal(t, 3, result.Counts.FilesOK)

	layout := runlayout.New(runDir)

	_, rows, err := artifact.ReadAll(layout.ResolveRead(runlayout.SendResults))
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	var sawStart, sawEnd bool

	for _, e := range sink.events {
		if e.Type == domain.EventSendStart {
			sawStart = true
		}

		if e.Type == domain.EventSendEnd {
			sawEnd = true
		}
	}

	assert.True(t, sawStart)
	assert.True(t, sawEnd)
}

func TestWorkflowRun_ResumesIdempotentlyWhenAlreadyComplete(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	writeManifest(t, runDir, []string{"/exam/a.dcm"})

	wf, _ := newTestWorkflow(t, runDir)

	first, err := wf.Run(context.Background(), "run1", runDir)
	require.NoError(t, err)
	assert.Equal(t, "PASS", first.FinalStatus)

	second, sink := newTestWorkflow(t, runDir)

	result, err := second.Run(context.Background(), "run1", runDir)
	require.NoError(t, err)

	assert.Equal(t, "ALREADY_SENT_PASS", result.FinalStatus)

	var sawSkip bool

	for _, e := range sink.events {
		if e.Type == domain.EventSendSkipCompleted {
			sawSkip = true
		}
	}

	assert.True(t, sawSkip)
}

func TestWorkflowRun_EmptyManifestReturnsError(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	require.NoError(t, runlayout.EnsureDirs(runDir))

	wf, _ := newTestWorkflow(t, runDir)

	_, err := wf.Run(context.Background(), "run1", runDir)
	assert.ErrorIs(t, err, send.ErrEmptyManifest)
}
