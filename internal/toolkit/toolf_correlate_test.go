package toolkit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexmed-tecnologia/dicomsync/internal/domain"
	"github.com/hexmed-tecnologia/dicomsync/internal/toolkit"
)

func TestExtractIUIDSets_ParsesRQAndRSP(t *testing.T) {
	t.Parallel()

	text := "<< 1:C-STORE-RQ[\n  iuid=1.2.3.1 -\n" +
		">> 1:C-STORE-RSP[\n  status=0H iuid=1.2.3.1 -\n" +
		"<< 2:C-STORE-RQ[\n  iuid=1.2.3.2 -\n" +
		">> 2:C-STORE-RSP[\n  status=A700H iuid=1.2.3.2 -\n"

	sets := toolkit.ExtractIUIDSets(text)

	assert.Equal(t, []string{"1.2.3.1", "1.2.3.2"}, sets.RQ)
	assert.Equal(t, []string{"1.2.3.1"}, sets.OK)
	assert.Equal(t, []string{"1.2.3.2"}, sets.Err)
	assert.Equal(t, "A700H", sets.ErrStatus["1.2.3.2"])
}

func TestCorrelateToolF_S3Scenario(t *testing.T) {
	t.Parallel()

	// S3: 3 files, 2 OK (1.2.3.1, 1.2.3.2), 1 ERR A700H (1.2.3.3).
	text := "<< 1:C-STORE-RQ[ iuid=1.2.3.1 -\n>> 1:C-STORE-RSP[ status=0H iuid=1.2.3.1 -\n" +
		"<< 2:C-STORE-RQ[ iuid=1.2.3.2 -\n>> 2:C-STORE-RSP[ status=0H iuid=1.2.3.2 -\n" +
		"<< 3:C-STORE-RQ[ iuid=1.2.3.3 -\n>> 3:C-STORE-RSP[ status=A700H iuid=1.2.3.3 -\n"

	sets := toolkit.ExtractIUIDSets(text)

	candidates := []toolkit.FileCandidate{
		{Path: "a.dcm", MetadataIUID: "1.2.3.1", LooksLikePayload: true},
		{Path: "b.dcm", MetadataIUID: "1.2.3.2", LooksLikePayload: true},
		{Path: "c.dcm", MetadataIUID: "1.2.3.3", LooksLikePayload: true},
	}

	results := toolkit.CorrelateToolF(sets, candidates, nil, 0, false)
	require.Len(t, results, 3)

	assert.Equal(t, string(domain.SendStatusOK), results[0].SendStatus)
	assert.Equal(t, string(domain.ExtractOKPost), results[0].ExtractStatus)
	assert.Equal(t, string(domain.SendStatusOK), results[1].SendStatus)
	assert.Equal(t, string(domain.SendStatusFail), results[2].SendStatus)
	assert.Equal(t, string(domain.ExtractErrPost), results[2].ExtractStatus)
	assert.Contains(t, results[2].Detail, "rsp_status=A700H")
}

func TestCorrelateToolF_S4Scenario_ProcessExitNonZero(t *testing.T) {
	t.Parallel()

	sets := toolkit.ExtractIUIDSets("") // no RSP lines at all

	candidates := []toolkit.FileCandidate{
		{Path: "a.dcm", LooksLikePayload: true},
		{Path: "b.dcm", LooksLikePayload: true},
	}

	results := toolkit.CorrelateToolF(sets, candidates, nil, 2, false)
	require.Len(t, results, 2)

	for _, r := range results {
		assert.Equal(t, string(domain.SendStatusFail), r.SendStatus)
		assert.Equal(t, string(domain.ExtractProcessExitFail), r.ExtractStatus)
	}
}

func TestCorrelateToolF_DICOMDIRUnsupported(t *testing.T) {
	t.Parallel()

	sets := toolkit.ExtractIUIDSets("")
	candidates := []toolkit.FileCandidate{{Path: "DICOMDIR", IsDICOMDIR: true}}

	results := toolkit.CorrelateToolF(sets, candidates, nil, 0, false)
	require.Len(t, results, 1)
	assert.Equal(t, string(domain.SendStatusUnsupportedDICOMObject), results[0].SendStatus)
}

func TestCorrelateToolF_SkipsAlreadyMatched(t *testing.T) {
	t.Parallel()

	sets := toolkit.ExtractIUIDSets("")
	candidates := []toolkit.FileCandidate{{Path: "a.dcm"}, {Path: "b.dcm"}}

	results := toolkit.CorrelateToolF(sets, candidates, map[string]bool{"a.dcm": true}, 0, false)
	require.Len(t, results, 1)
	assert.Equal(t, "b.dcm", results[0].Path)
}

func TestCanonicalizeIUID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.2.840.10008", toolkit.CanonicalizeIUID("noise 1.2.840.10008 trailing"))
	assert.Equal(t, "", toolkit.CanonicalizeIUID("no digits here"))
}
