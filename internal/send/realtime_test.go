package send_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexmed-tecnologia/dicomsync/internal/domain"
	"github.com/hexmed-tecnologia/dicomsync/internal/send"
	"github.com/hexmed-tecnologia/dicomsync/internal/toolkit"
)

func TestToolFRealtime_ResolvesDirectIUIDMatch(t *testing.T) {
	t.Parallel()

	candidates := []toolkit.FileCandidate{
		{Path: "a.dcm", MetadataIUID: "1.2.3.1", LooksLikePayload: true},
		{Path: "b.dcm", MetadataIUID: "1.2.3.2", LooksLikePayload: true},
	}

	rt := send.NewToolFRealtime(candidates)

	for _, line := range []string{
		"<< 1:C-STORE-RQ[ iuid=1.2.3.1 -",
		">> 1:C-STORE-RSP[ status=0H iuid=1.2.3.1 -",
	} {
		rt.FeedLine(line)
	}

	results := rt.TryMatch(candidates)
	require.Len(t, results, 1)
	assert.Equal(t, "a.dcm", results[0].Path)
	assert.Equal(t, string(domain.SendStatusOK), results[0].SendStatus)
	assert.Equal(t, string(domain.ExtractOKRealtime), results[0].ExtractStatus)
	assert.True(t, rt.Resolved("a.dcm"))
	assert.False(t, rt.Resolved("b.dcm"))
}

func TestToolFRealtime_ResolvesByRQOrderWhenMetadataMissing(t *testing.T) {
	t.Parallel()

	candidates := []toolkit.FileCandidate{
		{Path: "a.dcm", LooksLikePayload: true},
		{Path: "b.dcm", LooksLikePayload: true},
	}

	rt := send.NewToolFRealtime(candidates)

	rt.FeedLine("<< 1:C-STORE-RQ[ iuid=9.9.9.1 -")
	rt.FeedLine(">> 1:C-STORE-RSP[ status=A700H iuid=9.9.9.1 -")

	results := rt.TryMatch(candidates)
	require.Len(t, results, 1)
	assert.Equal(t, "a.dcm", results[0].Path)
	assert.Equal(t, string(domain.SendStatusFail), results[0].SendStatus)
	assert.Equal(t, string(domain.ExtractErrRealtime), results[0].ExtractStatus)
	assert.Contains(t, results[0].Detail, "A700H")
}

func TestToolFRealtime_NeverResolvesDICOMDIR(t *testing.T) {
	t.Parallel()

	candidates := []toolkit.FileCandidate{{Path: "DICOMDIR", IsDICOMDIR: true}}

	rt := send.NewToolFRealtime(candidates)
	rt.FeedLine("<< 1:C-STORE-RQ[ iuid=1.2.3.1 -")
	rt.FeedLine(">> 1:C-STORE-RSP[ status=0H iuid=1.2.3.1 -")

	assert.Empty(t, rt.TryMatch(candidates))
}

func TestToolFRealtime_NoMatchLeavesUnresolved(t *testing.T) {
	t.Parallel()

	candidates := []toolkit.FileCandidate{{Path: "a.dcm", MetadataIUID: "1.2.3.1", LooksLikePayload: true}}

	rt := send.NewToolFRealtime(candidates)
	rt.FeedLine("<< 1:C-STORE-RQ[ iuid=1.2.3.1 -")

	assert.Empty(t, rt.TryMatch(candidates))
	assert.False(t, rt.Resolved("a.dcm"))
}
