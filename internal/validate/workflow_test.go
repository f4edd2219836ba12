package validate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexmed-tecnologia/dicomsync/internal/artifact"
	"github.com/hexmed-tecnologia/dicomsync/internal/clockid"
	"github.com/hexmed-tecnologia/dicomsync/internal/domain"
	"github.com/hexmed-tecnologia/dicomsync/internal/restclient"
	"github.com/hexmed-tecnologia/dicomsync/internal/runconfig"
	"github.com/hexmed-tecnologia/dicomsync/internal/runlayout"
	"github.com/hexmed-tecnologia/dicomsync/internal/toolkit"
	"github.com/hexmed-tecnologia/dicomsync/internal/validate"
)

func fixedClock() *clockid.Clock {
	when := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	return &clockid.Clock{Now: func() time.Time { return when }}
}

type stubREST struct {
	outcomes map[string]restclient.QueryResult
}

func (s stubREST) QueryInstance(_ context.Context, _, _, iuid string) restclient.QueryResult {
	if r, ok := s.outcomes[iuid]; ok {
		return r
	}

	return restclient.QueryResult{Outcome: domain.RESTOutcomeNotFound, HTTPStatus: "200"}
}

type stubExtractor struct {
	byFile map[string]toolkit.Metadata
}

func (s stubExtractor) ExtractMetadata(_ context.Context, _, file string) (toolkit.Metadata, error) {
	if m, ok := s.byFile[file]; ok {
		return m, nil
	}

	return toolkit.Metadata{}, toolkit.ErrIUIDNotFound
}

type recordingSink struct {
	events []domain.Event
}

func (s *recordingSink) Emit(e domain.Event) error {
	s.events = append(s.events, e)

	return nil
}

func writeSendResults(t *testing.T, runDir string, rows []map[string]string) {
	t.Helper()

	require.NoError(t, runlayout.EnsureDirs(runDir))

	layout := runlayout.New(runDir)
	w := &artifact.Writer{Clock: fixedClock()}
	path := layout.ResolveWrite(runlayout.SendResults)

	fields := []string{
		"run_id", "file_path", "chunk_no", "toolkit", "ts_mode",
		"send_status", "status_detail", "sop_instance_uid",
		"source_ts_uid", "source_ts_name", "extract_status", "processed_at",
	}

	for _, row := range rows {
		full := map[string]string{
			"run_id": "run1", "chunk_no": "1", "toolkit": "toolT", "ts_mode": "AUTO",
			"status_detail": "", "source_ts_uid": "", "source_ts_name": "", "extract_status": "", "processed_at": "",
		}
		for k, v := range row {
			full[k] = v
		}

		require.NoError(t, w.AppendRow(path, fields, full))
	}
}

func TestWorkflowRun_AllOKYieldsPass(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	writeSendResults(t, runDir, []map[string]string{
		{"file_path": "/a.dcm", "send_status": "SENT_OK", "sop_instance_uid": "1.1"},
		{"file_path": "/b.dcm", "send_status": "SENT_OK", "sop_instance_uid": "1.2"},
	})

	layout := runlayout.New(runDir)
	cfg := runconfig.Defaults()
	sink := &recordingSink{}

	wf := &validate.Workflow{
		Cfg: &cfg,
		REST: stubREST{outcomes: map[string]restclient.QueryResult{
			"1.1": {Outcome: domain.RESTOutcomeOK, HTTPStatus: "200"},
			"1.2": {Outcome: domain.RESTOutcomeOK, HTTPStatus: "200"},
		}},
		Writer: &artifact.Writer{Clock: fixedClock()},
		Layout: layout,
		Clock:  fixedClock(),
		Events: sink,
	}

	result, err := wf.Run(context.Background(), "run1", runDir)
	require.NoError(t, err)

	assert.Equal(t, "PASS", result.FinalStatus)
	assert.Equal(t, 2, result.Counts.TotalIUIDUnique)
	assert.Equal(t, 2, result.Counts.IUIDOK)

	_, rows, err := artifact.ReadAll(layout.ResolveRead(runlayout.ValidationResults))
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, reconRows, err := artifact.ReadAll(layout.ResolveRead(runlayout.ReconciliationReport))
	require.NoError(t, err)
	require.Len(t, reconRows, 1)
	assert.Equal(t, "PASS", reconRows[0]["final_status"])

	var sawStart, sawEnd bool

	for _, e := range sink.events {
		if e.Type == domain.EventValidateStart {
			sawStart = true
		}

		if e.Type == domain.EventValidateEnd {
			sawEnd = true
		}
	}

	assert.True(t, sawStart)
	assert.True(t, sawEnd)
}

func TestWorkflowRun_MixedOutcomesYieldPassWithWarnings(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	writeSendResults(t, runDir, []map[string]string{
		{"file_path": "/a.dcm", "send_status": "SENT_OK", "sop_instance_uid": "1.1"},
		{"file_path": "/b.dcm", "send_status": "SENT_OK", "sop_instance_uid": "1.2"},
		{"file_path": "/c.dcm", "send_status": "SEND_FAIL"},
	})

	layout := runlayout.New(runDir)
	cfg := runconfig.Defaults()

	wf := &validate.Workflow{
		Cfg: &cfg,
		REST: stubREST{outcomes: map[string]restclient.QueryResult{
			"1.1": {Outcome: domain.RESTOutcomeOK, HTTPStatus: "200"},
			"1.2": {Outcome: domain.RESTOutcomeNotFound, HTTPStatus: "404"},
		}},
		Writer: &artifact.Writer{Clock: fixedClock()},
		Layout: layout,
		Clock:  fixedClock(),
	}

	result, err := wf.Run(context.Background(), "run1", runDir)
	require.NoError(t, err)
	assert.Equal(t, "PASS_WITH_WARNINGS", result.FinalStatus)
}

func TestWorkflowRun_AllAPIErrorsYieldFail(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	writeSendResults(t, runDir, []map[string]string{
		{"file_path": "/a.dcm", "send_status": "SENT_OK", "sop_instance_uid": "1.1"},
	})

	layout := runlayout.New(runDir)
	cfg := runconfig.Defaults()

	wf := &validate.Workflow{
		Cfg: &cfg,
		REST: stubREST{outcomes: map[string]restclient.QueryResult{
			"1.1": {Outcome: domain.RESTOutcomeAPIError, HTTPStatus: "ERR"},
		}},
		Writer: &artifact.Writer{Clock: fixedClock()},
		Layout: layout,
		Clock:  fixedClock(),
	}

	result, err := wf.Run(context.Background(), "run1", runDir)
	require.NoError(t, err)
	assert.Equal(t, "FAIL", result.FinalStatus)
}

func TestWorkflowRun_ConsistencyPrefillFillsMissingIUIDAndPersists(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	writeSendResults(t, runDir, []map[string]string{
		{"file_path": "/a.dcm", "send_status": "SENT_OK", "sop_instance_uid": ""},
	})

	layout := runlayout.New(runDir)
	cfg := runconfig.Defaults()
	sink := &recordingSink{}

	wf := &validate.Workflow{
		Cfg:       &cfg,
		Extractor: stubExtractor{byFile: map[string]toolkit.Metadata{"/a.dcm": {IUID: "9.9.9"}}},
		REST: stubREST{outcomes: map[string]restclient.QueryResult{
			"9.9.9": {Outcome: domain.RESTOutcomeOK, HTTPStatus: "200"},
		}},
		Writer: &artifact.Writer{Clock: fixedClock()},
		Layout: layout,
		Clock:  fixedClock(),
		Events: sink,
	}

	result, err := wf.Run(context.Background(), "run1", runDir)
	require.NoError(t, err)
	assert.Equal(t, "PASS", result.FinalStatus)
	assert.Equal(t, 1, result.Counts.TotalIUIDUnique)

	_, rows, err := artifact.ReadAll(layout.ResolveRead(runlayout.SendResults))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "9.9.9", rows[0]["sop_instance_uid"])
	assert.Equal(t, "CONSISTENCY_OK", rows[0]["extract_status"])

	var sawFilled bool

	for _, e := range sink.events {
		if e.Type == domain.EventConsistencyFilled {
			sawFilled = true
		}
	}

	assert.True(t, sawFilled)
}

func TestWorkflowRun_ConsistencyPrefillMissingIUIDEmitsConsistencyMissing(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	writeSendResults(t, runDir, []map[string]string{
		{"file_path": "/a.dcm", "send_status": "SENT_OK", "sop_instance_uid": ""},
	})

	layout := runlayout.New(runDir)
	cfg := runconfig.Defaults()
	sink := &recordingSink{}

	wf := &validate.Workflow{
		Cfg:       &cfg,
		Extractor: stubExtractor{byFile: map[string]toolkit.Metadata{}},
		REST:      stubREST{},
		Writer:    &artifact.Writer{Clock: fixedClock()},
		Layout:    layout,
		Clock:     fixedClock(),
		Events:    sink,
	}

	_, err := wf.Run(context.Background(), "run1", runDir)
	require.NoError(t, err)

	var sawMissing bool

	for _, e := range sink.events {
		if e.Type == domain.EventConsistencyMissing {
			sawMissing = true
		}
	}

	assert.True(t, sawMissing)
}

func TestWorkflowRun_CancelMidLookupReturnsErrCancelled(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	writeSendResults(t, runDir, []map[string]string{
		{"file_path": "/a.dcm", "send_status": "SENT_OK", "sop_instance_uid": "1.1"},
	})

	layout := runlayout.New(runDir)
	cfg := runconfig.Defaults()

	wf := &validate.Workflow{
		Cfg:    &cfg,
		REST:   stubREST{},
		Writer: &artifact.Writer{Clock: fixedClock()},
		Layout: layout,
		Clock:  fixedClock(),
		Cancel: func() bool { return true },
	}

	_, err := wf.Run(context.Background(), "run1", runDir)
	require.ErrorIs(t, err, validate.ErrCancelled)
}
