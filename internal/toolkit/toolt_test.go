package toolkit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexmed-tecnologia/dicomsync/internal/domain"
	"github.com/hexmed-tecnologia/dicomsync/internal/toolkit"
)

func TestToolTState_SuccessResponse(t *testing.T) {
	t.Parallel()

	s := toolkit.NewToolTState()

	assert.Nil(t, s.FeedLine("I: Sending file: /exams/a.dcm"))

	r := s.FeedLine("I: Received Store Response (Success)")
	require.NotNil(t, r)
	assert.Equal(t, "/exams/a.dcm", r.Path)
	assert.Equal(t, string(domain.SendStatusOK), r.SendStatus)
	assert.True(t, s.Resolved("/exams/a.dcm"))
}

func TestToolTState_BadDICOMFile(t *testing.T) {
	t.Parallel()

	s := toolkit.NewToolTState()

	r := s.FeedLine("E: Bad DICOM file: /exams/bad.dcm: not a DICOM stream")
	require.NotNil(t, r)
	assert.Equal(t, string(domain.SendStatusNonDICOM), r.SendStatus)
}

func TestToolTState_NoSOPUID(t *testing.T) {
	t.Parallel()

	s := toolkit.NewToolTState()

	r := s.FeedLine("E: No SOP Class or Instance UID in file: /exams/weird.dcm")
	require.NotNil(t, r)
	assert.Equal(t, string(domain.SendStatusUnknown), r.SendStatus)
}

func TestToolTState_StoreFailed(t *testing.T) {
	t.Parallel()

	s := toolkit.NewToolTState()

	assert.Nil(t, s.FeedLine("E: Store Failed, file: /exams/c.dcm:"))

	r := s.FeedLine("E: 0110:0002 Processing failure")
	require.NotNil(t, r)
	assert.Equal(t, "/exams/c.dcm", r.Path)
	assert.Equal(t, string(domain.SendStatusUnknown), r.SendStatus)
}

func TestToolTState_DICOMDIRUnsupported(t *testing.T) {
	t.Parallel()

	s := toolkit.NewToolTState()
	s.FeedLine("I: Sending file: /exams/DICOMDIR")

	r := s.FeedLine("I: Received Store Response (Unknown Status: 0x110)")
	require.NotNil(t, r)
	assert.Equal(t, string(domain.SendStatusUnsupportedDICOMObject), r.SendStatus)
}

func TestToolTDriver_ParseSendOutput_DefaultsUnresolvedToUnknown(t *testing.T) {
	t.Parallel()

	d := &toolkit.ToolTDriver{}
	lines := []string{"I: Sending file: /exams/a.dcm", "I: Received Store Response (Success)"}
	candidates := []toolkit.FileCandidate{{Path: "/exams/a.dcm"}, {Path: "/exams/b.dcm"}}

	results := d.ParseSendOutput(lines, candidates, 0)
	require.Len(t, results, 2)

	var bResult *toolkit.FileResult

	for i := range results {
		if results[i].Path == "/exams/b.dcm" {
			bResult = &results[i]
		}
	}

	require.NotNil(t, bResult)
	assert.Equal(t, string(domain.SendStatusUnknown), bResult.SendStatus)
	assert.Contains(t, bResult.Detail, "no_match_in_output")
}
