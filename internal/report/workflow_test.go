package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexmed-tecnologia/dicomsync/internal/artifact"
	"github.com/hexmed-tecnologia/dicomsync/internal/clockid"
	"github.com/hexmed-tecnologia/dicomsync/internal/domain"
	"github.com/hexmed-tecnologia/dicomsync/internal/report"
	"github.com/hexmed-tecnologia/dicomsync/internal/restclient"
	"github.com/hexmed-tecnologia/dicomsync/internal/runlayout"
	"github.com/hexmed-tecnologia/dicomsync/internal/toolkit"
)

func fixedClock() *clockid.Clock {
	when := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	return &clockid.Clock{Now: func() time.Time { return when }}
}

type stubREST struct {
	byIUID map[string]restclient.QueryResult
}

func (s stubREST) QueryInstance(_ context.Context, _, _, iuid string) restclient.QueryResult {
	if r, ok := s.byIUID[iuid]; ok {
		return r
	}

	return restclient.QueryResult{Outcome: domain.RESTOutcomeNotFound}
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

func dataset(patientName, studyUID string) restclient.Dataset {
	return restclient.Dataset{
		"00100010": []byte(`{"vr":"PN","Value":[{"Alphabetic":"` + patientName + `"}]}`),
		"0020000D": []byte(`{"vr":"UI","Value":["` + studyUID + `"]}`),
	}
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

func TestWorkflowRun_ModeAWritesOneRowPerFile(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	writeSendResults(t, runDir, []map[string]string{
		{"file_path": "/a.dcm", "send_status": "SENT_OK", "sop_instance_uid": "1.1"},
		{"file_path": "/b.dcm", "send_status": "SENT_OK", "sop_instance_uid": "1.2"},
	})

	layout := runlayout.New(runDir)

	wf := &report.Workflow{
		AETDest:      "HMD_IMPORTED",
		PACSRESTHost: "pacs:8080",
		REST: stubREST{byIUID: map[string]restclient.QueryResult{
			"1.1": {Outcome: domain.RESTOutcomeOK, Dataset: dataset("DOE^JANE", "9.1")},
			"1.2": {Outcome: domain.RESTOutcomeNotFound},
		}},
		Writer: &artifact.Writer{Clock: fixedClock()},
		Layout: layout,
		Clock:  fixedClock(),
	}

	result, err := wf.Run(context.Background(), "run1", report.ModeA)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, 1, result.OK)
	assert.Equal(t, 1, result.Erro)

	_, rows, err := artifact.ReadAll(layout.ResolveRead(runlayout.ValidationFullReportA))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byPath := map[string]map[string]string{}
	for _, r := range rows {
		byPath[r["file_path"]] = r
	}

	assert.Equal(t, "DOE^JANE", byPath["/a.dcm"]["nome_paciente"])
	assert.Equal(t, "OK", byPath["/a.dcm"]["status"])
	assert.Equal(t, "ERRO", byPath["/b.dcm"]["status"])
}

func TestWorkflowRun_ModeCGroupsByStudyUID(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	writeSendResults(t, runDir, []map[string]string{
		{"file_path": "/a.dcm", "send_status": "SENT_OK", "sop_instance_uid": "1.1"},
		{"file_path": "/b.dcm", "send_status": "SENT_OK", "sop_instance_uid": "1.2"},
	})

	layout := runlayout.New(runDir)

	wf := &report.Workflow{
		AETDest:      "HMD_IMPORTED",
		PACSRESTHost: "pacs:8080",
		REST: stubREST{byIUID: map[string]restclient.QueryResult{
			"1.1": {Outcome: domain.RESTOutcomeOK, Dataset: dataset("DOE^JANE", "9.1")},
			"1.2": {Outcome: domain.RESTOutcomeOK, Dataset: dataset("DOE^JANE", "9.1")},
		}},
		Writer: &artifact.Writer{Clock: fixedClock()},
		Layout: layout,
		Clock:  fixedClock(),
	}

	result, err := wf.Run(context.Background(), "run1", report.ModeC)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rows)

	_, rows, err := artifact.ReadAll(layout.ResolveRead(runlayout.ValidationFullReportC))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "9.1", rows[0]["study_uid"])
	assert.Equal(t, "2", rows[0]["total_arquivos"])
	assert.Equal(t, "OK", rows[0]["status"])
}

func TestWorkflowRun_NoSentOKFilesReturnsError(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	writeSendResults(t, runDir, []map[string]string{
		{"file_path": "/a.dcm", "send_status": "SEND_FAIL"},
	})

	layout := runlayout.New(runDir)

	wf := &report.Workflow{Writer: &artifact.Writer{Clock: fixedClock()}, Layout: layout, Clock: fixedClock()}

	_, err := wf.Run(context.Background(), "run1", report.ModeA)
	assert.ErrorIs(t, err, report.ErrNoSentOKFiles)
}

func TestWorkflowRun_FillsMissingIUIDViaExtractorAndPersists(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	writeSendResults(t, runDir, []map[string]string{
		{"file_path": "/a.dcm", "send_status": "SENT_OK", "sop_instance_uid": ""},
	})

	layout := runlayout.New(runDir)

	wf := &report.Workflow{
		AETDest:      "HMD_IMPORTED",
		PACSRESTHost: "pacs:8080",
		Extractor:    stubExtractor{byFile: map[string]toolkit.Metadata{"/a.dcm": {IUID: "7.7"}}},
		REST: stubREST{byIUID: map[string]restclient.QueryResult{
			"7.7": {Outcome: domain.RESTOutcomeOK, Dataset: dataset("DOE^JOHN", "9.2")},
		}},
		Writer: &artifact.Writer{Clock: fixedClock()},
		Layout: layout,
		Clock:  fixedClock(),
	}

	result, err := wf.Run(context.Background(), "run1", report.ModeA)
	require.NoError(t, err)
	assert.Equal(t, 1, result.OK)

	_, sendRows, err := artifact.ReadAll(layout.ResolveRead(runlayout.SendResults))
	require.NoError(t, err)
	require.Len(t, sendRows, 1)
	assert.Equal(t, "7.7", sendRows[0]["sop_instance_uid"])
	assert.Equal(t, "REPORT_EXPORT_OK", sendRows[0]["extract_status"])
}
