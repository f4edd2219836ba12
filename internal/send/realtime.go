package send

import (
	"github.com/hexmed-tecnologia/dicomsync/internal/domain"
	"github.com/hexmed-tecnologia/dicomsync/internal/toolkit"
)

// realtimeBufferCap bounds the rolling stdout buffer the ToolF real-time
// classifier re-scans on every line (spec.md §4.7: "a rolling buffer of
// stdout (bounded at ~200 000 characters)").
const realtimeBufferCap = 200_000

// ToolFRealtime performs the real-time half of spec.md §4.6/§4.7's
// classification for ToolF: as stdout streams in, it re-extracts the
// RQ/OK/ERR IUID sets from a capped rolling buffer and resolves any
// candidate whose IUID (direct or RQ-order-inferred) now appears in the
// OK or ERR set. It never emits REQUESTED_NO_RSP/NO_MATCH/
// PROCESS_EXIT_FAIL outcomes — those require knowing the process has
// exited, and are left to the post-stream pass.
type ToolFRealtime struct {
	buf      string
	resolved map[string]bool

	// payloadPosition maps a candidate's path to its 0-based position
	// among payload-looking candidates in the static sub-chunk list,
	// the same positional key the post-stream pass (CorrelateToolF)
	// uses, so real-time and post-stream RQ-order inference agree.
	payloadPosition map[string]int
}

// NewToolFRealtime builds a classifier for one sub-chunk's candidate
// list.
func NewToolFRealtime(candidates []toolkit.FileCandidate) *ToolFRealtime {
	positions := make(map[string]int, len(candidates))

	pos := 0

	for _, c := range candidates {
		if c.LooksLikePayload {
			positions[c.Path] = pos
			pos++
		}
	}

	return &ToolFRealtime{resolved: make(map[string]bool), payloadPosition: positions}
}

// FeedLine appends one stdout line to the rolling buffer, trimming from
// the front once the cap is exceeded.
func (r *ToolFRealtime) FeedLine(line string) {
	r.buf += line + "\n"

	if len(r.buf) > realtimeBufferCap {
		r.buf = r.buf[len(r.buf)-realtimeBufferCap:]
	}
}

// Resolved reports whether path has already produced a real-time
// terminal result.
func (r *ToolFRealtime) Resolved(path string) bool {
	return r.resolved[path]
}

// TryMatch re-scans the current buffer and returns a terminal result for
// every still-unresolved candidate whose IUID is now present in the OK
// or ERR set.
func (r *ToolFRealtime) TryMatch(candidates []toolkit.FileCandidate) []toolkit.FileResult {
	sets := toolkit.ExtractIUIDSets(r.buf)

	var out []toolkit.FileResult

	for _, c := range candidates {
		if r.resolved[c.Path] || c.IsDICOMDIR {
			continue
		}

		iuid := c.MetadataIUID
		if iuid == "" {
			if pos, ok := r.payloadPosition[c.Path]; ok && pos < len(sets.RQ) {
				iuid = sets.RQ[pos]
			}
		}

		if iuid == "" {
			continue
		}

		if contains(sets.OK, iuid) {
			r.resolved[c.Path] = true
			out = append(out, toolkit.FileResult{
				Path: c.Path, SendStatus: string(domain.SendStatusOK),
				ExtractStatus: string(domain.ExtractOKRealtime), IUID: iuid,
			})

			continue
		}

		if contains(sets.Err, iuid) {
			r.resolved[c.Path] = true
			out = append(out, toolkit.FileResult{
				Path: c.Path, SendStatus: string(domain.SendStatusFail),
				ExtractStatus: string(domain.ExtractErrRealtime), IUID: iuid,
				Detail: "rsp_status=" + sets.ErrStatus[iuid],
			})
		}
	}

	return out
}

// contains reports whether list contains v. Duplicated from
// internal/toolkit (unexported there) to avoid widening that package's
// surface for a one-line helper.
func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}

	return false
}
