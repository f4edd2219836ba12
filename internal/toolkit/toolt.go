package toolkit

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/hexmed-tecnologia/dicomsync/internal/domain"
)

// ToolT's per-file verbose log line patterns, reproduced from
// app/domain/constants.py's DCMTK_* regexes.
var (
	sendingFileRE       = regexp.MustCompile(`I:\s+Sending file:\s+(.+)$`)
	badFileRE           = regexp.MustCompile(`E:\s+Bad DICOM file:\s+(.+?):\s*(.+)$`)
	storeRspRE          = regexp.MustCompile(`I:\s+Received Store Response\s+\((.+)\)$`)
	noSOPUIDRE          = regexp.MustCompile(`E:\s+No SOP Class or Instance UID in file:\s+(.+)$`)
	storeFailedFileRE   = regexp.MustCompile(`E:\s+Store Failed,\s*file:\s+(.+?):\s*$`)
	storeFailedReasonRE = regexp.MustCompile(`(?i)E:\s+([0-9A-F]{4}:[0-9A-F]{4}\s+.+)$`)
)

// ToolTDriver implements Driver for the DCMTK-family storescu with
// per-file verbose (-v) logging.
type ToolTDriver struct {
	StoreSCUName string
	DcmdumpName  string
}

var _ Driver = (*ToolTDriver)(nil)

// BuildSendCommand constructs the verbose storescu invocation.
func (d *ToolTDriver) BuildSendCommand(in SendCommandInput) ([]string, error) {
	argv := []string{
		filepath.Join(in.BinDir, d.StoreSCUName),
		"-v",
		"-aet", in.AETSource,
		"-aec", in.AETDest,
		in.PACSHost, strconv.Itoa(in.PACSPort),
	}

	return append(argv, in.Units...), nil
}

// BuildEchoCommand constructs a zero-payload C-ECHO connectivity test.
func (d *ToolTDriver) BuildEchoCommand(in EchoCommandInput) ([]string, error) {
	return []string{
		filepath.Join(in.BinDir, d.StoreSCUName),
		"-v", "--echo",
		"-aet", in.AETSource,
		"-aec", in.AETDest,
		in.PACSHost, strconv.Itoa(in.PACSPort),
	}, nil
}

// ExtractMetadata runs dcmdump and parses the same two fixed tags the
// ToolF driver does.
func (d *ToolTDriver) ExtractMetadata(ctx context.Context, binDir, file string) (Metadata, error) {
	cmd := exec.CommandContext(ctx, filepath.Join(binDir, d.DcmdumpName), file)

	out, err := cmd.Output()
	if err != nil {
		return Metadata{}, fmt.Errorf("toolkit: run dcmdump for %s: %w", file, err)
	}

	return parseMetadataDump(string(out))
}

// ToolTState is the per-sub-chunk line state machine: it tracks which
// file the most recent "Sending file:" line named, so the following
// response line can be attributed to it.
type ToolTState struct {
	currentFile string
	resolved    map[string]bool
}

// NewToolTState returns a fresh state machine for one sub-chunk.
func NewToolTState() *ToolTState {
	return &ToolTState{resolved: make(map[string]bool)}
}

// FeedLine consumes one line of stdout, returning a FileResult if the
// line completed a per-file outcome, per spec.md §4.6's "IUID
// correlation for ToolT".
func (s *ToolTState) FeedLine(line string) *FileResult {
	if m := sendingFileRE.FindStringSubmatch(line); m != nil {
		s.currentFile = strings.TrimSpace(m[1])

		return nil
	}

	if m := badFileRE.FindStringSubmatch(line); m != nil {
		path := strings.TrimSpace(m[1])
		s.resolved[path] = true

		return &FileResult{Path: path, SendStatus: string(domain.SendStatusNonDICOM), Detail: m[2]}
	}

	if m := noSOPUIDRE.FindStringSubmatch(line); m != nil {
		path := strings.TrimSpace(m[1])
		s.resolved[path] = true

		return &FileResult{
			Path: path, SendStatus: string(domain.SendStatusUnknown),
			Detail: "no_sop_class_or_instance_uid",
		}
	}

	if m := storeFailedFileRE.FindStringSubmatch(line); m != nil {
		s.currentFile = strings.TrimSpace(m[1])

		return nil
	}

	if m := storeFailedReasonRE.FindStringSubmatch(line); m != nil && s.currentFile != "" {
		path := s.currentFile
		s.resolved[path] = true
		s.currentFile = ""

		return &FileResult{Path: path, SendStatus: string(domain.SendStatusUnknown), Detail: m[1]}
	}

	if m := storeRspRE.FindStringSubmatch(line); m != nil && s.currentFile != "" {
		path := s.currentFile
		s.currentFile = ""
		s.resolved[path] = true

		return classifyStoreResponse(path, m[1])
	}

	return nil
}

func classifyStoreResponse(path, detail string) *FileResult {
	if strings.Contains(detail, "Unknown Status: 0x110") && strings.EqualFold(filepath.Base(path), "DICOMDIR") {
		return &FileResult{Path: path, SendStatus: string(domain.SendStatusUnsupportedDICOMObject), Detail: detail}
	}

	if strings.EqualFold(strings.TrimSpace(detail), "Success") {
		return &FileResult{Path: path, SendStatus: string(domain.SendStatusOK), Detail: detail}
	}

	return &FileResult{Path: path, SendStatus: string(domain.SendStatusFail), Detail: detail}
}

// Resolved reports whether path already produced a terminal result.
func (s *ToolTState) Resolved(path string) bool {
	return s.resolved[path]
}

// ParseSendOutput re-runs the line state machine over the full captured
// output for the post-stream pass, then defaults any candidate the
// machine never touched to SENT_UNKNOWN (spec.md §4.6, last sentence of
// the ToolT paragraph).
func (d *ToolTDriver) ParseSendOutput(lines []string, candidates []FileCandidate, _ int) []FileResult {
	state := NewToolTState()

	var results []FileResult

	for _, line := range lines {
		if r := state.FeedLine(line); r != nil {
			results = append(results, *r)
		}
	}

	for _, c := range candidates {
		if !state.Resolved(c.Path) {
			results = append(results, FileResult{
				Path: c.Path, SendStatus: string(domain.SendStatusUnknown),
				Detail: "parse_status=UNKNOWN;reason=no_match_in_output",
			})
		}
	}

	return results
}
