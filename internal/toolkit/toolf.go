package toolkit

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
)

// dcm4che-family jar markers a ToolF installation must provide, verbatim
// from app/domain/constants.py's DCM4CHE_CRITICAL_JAR_MARKERS.
const (
	JarMarkerStoreSCU   = "dcm4che-tool-storescu"
	JarMarkerToolCommon = "dcm4che-tool-common"
	JarMarkerNet        = "dcm4che-net"
	JarMarkerCore       = "dcm4che-core"
)

// JavaMainClass is the direct-Java invocation's entry point, verbatim
// from DCM4CHE_JAVA_MAIN_CLASS.
const JavaMainClass = "org.dcm4che3.tool.storescu.StoreSCU"

// CriticalJarMarkers lists the jar-name substrings the Send health
// check requires (spec.md §4.6 pre-flight step 5).
var CriticalJarMarkers = []string{JarMarkerStoreSCU, JarMarkerToolCommon, JarMarkerNet, JarMarkerCore}

// ToolFDriver implements Driver for the dcm4che-family storescu/
// metadata-dump pair.
type ToolFDriver struct {
	// JavaPath resolves the java executable for direct-Java mode.
	JavaPath string

	// LibDir is the jar directory checked by the health check.
	LibDir string

	// ShellScriptName is the shell-wrapped launcher's filename within
	// BinDir (e.g. "storescu.bat"/"storescu.sh").
	ShellScriptName string

	// MetadataDumpScriptName is the metadata-dump companion's filename.
	MetadataDumpScriptName string

	// ClassPathJars lists the jars composing the direct-Java classpath.
	ClassPathJars []string
}

var _ Driver = (*ToolFDriver)(nil)

// BuildSendCommand constructs either the shell-wrapped or the direct-
// Java argfile-based invocation, per spec.md §4.4 op 1 / §4.6.
func (d *ToolFDriver) BuildSendCommand(in SendCommandInput) ([]string, error) {
	if in.UseJavaDirect {
		return d.buildDirectJavaCommand(in), nil
	}

	return d.buildShellWrappedCommand(in), nil
}

func (d *ToolFDriver) buildShellWrappedCommand(in SendCommandInput) []string {
	argv := []string{
		filepath.Join(in.BinDir, d.ShellScriptName),
		"-cstoreaet", in.AETSource,
		"--aet-dest", in.AETDest,
		strconv.Itoa(in.PACSPort),
		in.PACSHost,
	}

	return append(argv, in.Units...)
}

func (d *ToolFDriver) buildDirectJavaCommand(in SendCommandInput) []string {
	argv := []string{
		d.JavaPath,
		"-cp", classPath(d.ClassPathJars),
		JavaMainClass,
		"-cstoreaet", in.AETSource,
		"--aet-dest", in.AETDest,
		strconv.Itoa(in.PACSPort),
		in.PACSHost,
		"@" + in.ArgsFile,
	}

	return argv
}

func classPath(jars []string) string {
	out := ""

	for i, j := range jars {
		if i > 0 {
			out += string(filepath.ListSeparator)
		}

		out += j
	}

	return out
}

// BuildEchoCommand constructs a zero-payload C-ECHO connectivity test.
func (d *ToolFDriver) BuildEchoCommand(in EchoCommandInput) ([]string, error) {
	return []string{
		filepath.Join(in.BinDir, "dcmecho"),
		"-cstoreaet", in.AETSource,
		"--aet-dest", in.AETDest,
		strconv.Itoa(in.PACSPort),
		in.PACSHost,
	}, nil
}

// ExtractMetadata runs the metadata-dump companion and parses the two
// fixed tag extractions, UID_TAG_0008_0018 (SOP Instance UID) and
// UID_TAG_0002_0010 (transfer syntax UID), canonicalizing both to the
// dotted-numeric form.
func (d *ToolFDriver) ExtractMetadata(ctx context.Context, binDir, file string) (Metadata, error) {
	cmd := exec.CommandContext(ctx, filepath.Join(binDir, d.MetadataDumpScriptName), file)

	out, err := cmd.Output()
	if err != nil {
		return Metadata{}, fmt.Errorf("toolkit: run metadata dump for %s: %w", file, err)
	}

	return parseMetadataDump(string(out))
}

func parseMetadataDump(text string) (Metadata, error) {
	sopMatch := tagSOPInstanceUID.FindStringSubmatch(text)
	tsMatch := tagTransferSyntaxUID.FindStringSubmatch(text)

	var md Metadata

	if sopMatch != nil {
		md.IUID = CanonicalizeIUID(sopMatch[1])
	}

	if tsMatch != nil {
		md.TSUID = CanonicalizeIUID(tsMatch[1])
		md.TSName = transferSyntaxName(md.TSUID)
	}

	if md.IUID == "" {
		return Metadata{}, ErrIUIDNotFound
	}

	return md, nil
}

// ParseSendOutput runs the post-stream reconciliation pass described in
// spec.md §4.6/§4.7: re-extract the IUID sets from the full captured
// text and correlate against every candidate not yet resolved in real
// time.
func (d *ToolFDriver) ParseSendOutput(lines []string, candidates []FileCandidate, processExitCode int) []FileResult {
	text := joinLines(lines)
	sets := ExtractIUIDSets(text)

	return CorrelateToolF(sets, candidates, nil, processExitCode, false)
}

func joinLines(lines []string) string {
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}

	return out
}
