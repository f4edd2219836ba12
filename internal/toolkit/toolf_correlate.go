package toolkit

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hexmed-tecnologia/dicomsync/internal/domain"
)

// RQPattern, RSPOKPattern, and RSPErrPattern are the ToolF stdout
// classification regexes from app/domain/constants.py (spec.md §6,
// "Driver output regexes"). RQPattern and RSPOKPattern are reproduced
// byte-for-byte. The original RSP-ERR pattern excludes status 0H with a
// (?!0H) lookahead, which Go's regexp does not support, so
// RSPErrPattern captures any status and ExtractIUIDSets drops the 0H
// matches.
var (
	RQPattern     = regexp.MustCompile(`<<\s+\d+:C-STORE-RQ\[[\s\S]*?iuid=([0-9]+(?:\.[0-9]+)+)\s+-`)
	RSPOKPattern  = regexp.MustCompile(`>>\s+\d+:C-STORE-RSP\[[\s\S]*?status=0H[\s\S]*?iuid=([0-9]+(?:\.[0-9]+)+)\s+-`)
	RSPErrPattern = regexp.MustCompile(`>>\s+\d+:C-STORE-RSP\[[\s\S]*?status=([A-F0-9]+H)[\s\S]*?iuid=([0-9]+(?:\.[0-9]+)+)\s+-`)
)

// iuidUID canonicalizes a raw captured IUID to the dotted-numeric form
// (spec.md §4.4 op 3: "UIDs are canonicalized to the regex
// [0-9]+(\.[0-9]+)+").
var iuidUID = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)+`)

// CanonicalizeIUID extracts the dotted-numeric UID substring from raw,
// or "" if none is present.
func CanonicalizeIUID(raw string) string {
	return iuidUID.FindString(raw)
}

// IUIDSets holds the three ordered lists extracted from a ToolF stdout
// blob (spec.md §4.6, "IUID correlation for ToolF").
type IUIDSets struct {
	RQ        []string
	OK        []string
	Err       []string
	ErrStatus map[string]string // IUID -> hex status, e.g. "A700H"
}

// ExtractIUIDSets scans text for C-STORE-RQ/RSP lines and returns the
// ordered IUID lists. Safe to call repeatedly on a growing buffer (the
// real-time path) or once on the full captured text (the post-stream
// path) — both are the same idempotent regex scan.
func ExtractIUIDSets(text string) IUIDSets {
	sets := IUIDSets{ErrStatus: make(map[string]string)}

	for _, m := range RQPattern.FindAllStringSubmatch(text, -1) {
		sets.RQ = append(sets.RQ, m[1])
	}

	for _, m := range RSPOKPattern.FindAllStringSubmatch(text, -1) {
		sets.OK = append(sets.OK, m[1])
	}

	for _, m := range RSPErrPattern.FindAllStringSubmatch(text, -1) {
		status, iuid := m[1], m[2]
		if status == "0H" {
			continue
		}

		sets.Err = append(sets.Err, iuid)
		sets.ErrStatus[iuid] = status
	}

	return sets
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}

	return false
}

// looksLikeBareIUID reports whether name (without extension) is itself
// a dotted-numeric IUID, per the fallback chain's step 2.
func looksLikeBareIUID(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	if iuidUID.FindString(base) == base {
		return base
	}

	return ""
}

// CorrelateToolF applies the ordered fallback chain of spec.md §4.6 to
// pair the stdout-derived IUID sets to the files of a sub-chunk. already
// is the set of file paths the real-time pass has already resolved;
// CorrelateToolF only produces results for candidates not present in it.
// realtime selects between the *_REALTIME and plain extract-status
// variants.
func CorrelateToolF(
	sets IUIDSets,
	candidates []FileCandidate,
	already map[string]bool,
	processExitCode int,
	realtime bool,
) []FileResult {
	var results []FileResult

	rqIdx := 0

	for _, c := range candidates {
		if already[c.Path] {
			continue
		}

		if c.IsDICOMDIR {
			results = append(results, FileResult{
				Path:       c.Path,
				SendStatus: string(domain.SendStatusUnsupportedDICOMObject),
			})

			continue
		}

		iuid := c.MetadataIUID
		if iuid == "" {
			iuid = looksLikeBareIUID(c.Path)
		}

		if iuid != "" {
			results = append(results, classifyByIUID(c.Path, iuid, sets, processExitCode, realtime))

			if c.LooksLikePayload && rqIdx < len(sets.RQ) {
				rqIdx++
			}

			continue
		}

		// Step 3: RQ-order inference for the k-th payload-looking file.
		if c.LooksLikePayload && rqIdx < len(sets.RQ) {
			inferred := sets.RQ[rqIdx]
			rqIdx++
			results = append(results, classifyByIUID(c.Path, inferred, sets, processExitCode, realtime))

			continue
		}

		results = append(results, classifyUnmatched(c.Path, processExitCode))
	}

	return results
}

func classifyByIUID(path, iuid string, sets IUIDSets, processExitCode int, realtime bool) FileResult {
	switch {
	case contains(sets.OK, iuid):
		extract := domain.ExtractOKPost
		if realtime {
			extract = domain.ExtractOKRealtime
		}

		return FileResult{Path: path, SendStatus: string(domain.SendStatusOK), ExtractStatus: string(extract), IUID: iuid}
	case contains(sets.Err, iuid):
		extract := domain.ExtractErrPost
		if realtime {
			extract = domain.ExtractErrRealtime
		}

		return FileResult{
			Path: path, SendStatus: string(domain.SendStatusFail), ExtractStatus: string(extract), IUID: iuid,
			Detail: "rsp_status=" + sets.ErrStatus[iuid],
		}
	case contains(sets.RQ, iuid):
		return FileResult{
			Path: path, SendStatus: string(domain.SendStatusUnknown),
			ExtractStatus: string(domain.ExtractRequestedNoRSP), IUID: iuid,
		}
	case processExitCode != 0:
		return FileResult{
			Path: path, SendStatus: string(domain.SendStatusFail),
			ExtractStatus: string(domain.ExtractProcessExitFail), IUID: iuid,
		}
	default:
		return FileResult{
			Path: path, SendStatus: string(domain.SendStatusUnknown),
			ExtractStatus: string(domain.ExtractNoMatch), IUID: iuid,
		}
	}
}

func classifyUnmatched(path string, processExitCode int) FileResult {
	if processExitCode != 0 {
		return FileResult{
			Path: path, SendStatus: string(domain.SendStatusFail),
			ExtractStatus: string(domain.ExtractProcessExitFail),
		}
	}

	return FileResult{
		Path: path, SendStatus: string(domain.SendStatusUnknown),
		ExtractStatus: string(domain.ExtractNoMatchUnconfirmed),
	}
}
