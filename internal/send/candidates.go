package send

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hexmed-tecnologia/dicomsync/internal/runconfig"
	"github.com/hexmed-tecnologia/dicomsync/internal/toolkit"
)

var bareNumericIUID = regexp.MustCompile(`^[0-9]+(?:\.[0-9]+)+$`)

// isDICOMDIR reports whether path names the special DICOMDIR index file
// (spec.md §4.6's table, "File is DICOMDIR and unrecognized").
func isDICOMDIR(path string) bool {
	return strings.EqualFold(filepath.Base(path), "DICOMDIR")
}

// looksLikePayload reports whether path looks like a DICOM image object
// rather than an index/metadata file, per spec.md §4.6's fallback chain
// ("the file looks like a DICOM payload by extension or bare-numeric
// name"): anything that is not DICOMDIR and either carries an allowed
// extension, has no extension, is itself named with a bare dotted-
// numeric UID, or carries any extension when RestrictExtensions is off.
func looksLikePayload(cfg *runconfig.Config, path string) bool {
	if isDICOMDIR(path) {
		return false
	}

	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	if bareNumericIUID.MatchString(stem) {
		return true
	}

	if ext == "" {
		return true
	}

	for _, allowed := range cfg.AllowedExtensions {
		if strings.ToLower(allowed) == ext {
			return true
		}
	}

	return !cfg.RestrictExtensions
}

// BuildCandidates assembles the ordered FileCandidate list for one
// sub-chunk, attaching each unit's metadata-extracted IUID (if any) and
// its payload/DICOMDIR classification (spec.md §4.6 Execution step 5 /
// §4.4 FileCandidate).
func BuildCandidates(cfg *runconfig.Config, units []Unit, metadataIUIDs map[string]string) []toolkit.FileCandidate {
	candidates := make([]toolkit.FileCandidate, len(units))

	for i, u := range units {
		candidates[i] = toolkit.FileCandidate{
			Path:             u.Path,
			MetadataIUID:     metadataIUIDs[u.Path],
			LooksLikePayload: looksLikePayload(cfg, u.Path),
			IsDICOMDIR:       isDICOMDIR(u.Path),
		}
	}

	return candidates
}
