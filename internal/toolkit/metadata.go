package toolkit

import "regexp"

// tagSOPInstanceUID and tagTransferSyntaxUID extract the two fixed DICOM
// tags the metadata-dump companion exposes in its text output,
// reproduced from app/domain/constants.py's UID_TAG_0008_0018 (SOP
// Instance UID) and UID_TAG_0002_0010 (Transfer Syntax UID).
var (
	tagSOPInstanceUID    = regexp.MustCompile(`(?i)\(0008,0018\)[^\[]*\[([^\]]*)\]`)
	tagTransferSyntaxUID = regexp.MustCompile(`(?i)\(0002,0010\)[^\[]*\[([^\]]*)\]`)
)

// wellKnownTransferSyntaxes maps a transfer syntax UID to its canonical
// human-readable name. Unrecognized UIDs pass through unnamed.
var wellKnownTransferSyntaxes = map[string]string{
	"1.2.840.10008.1.2":      "Implicit VR Little Endian",
	"1.2.840.10008.1.2.1":    "Explicit VR Little Endian",
	"1.2.840.10008.1.2.2":    "Explicit VR Big Endian",
	"1.2.840.10008.1.2.4.50": "JPEG Baseline",
	"1.2.840.10008.1.2.4.70": "JPEG Lossless",
	"1.2.840.10008.1.2.4.80": "JPEG-LS Lossless",
	"1.2.840.10008.1.2.4.90": "JPEG 2000 Lossless",
	"1.2.840.10008.1.2.5":    "RLE Lossless",
}

func transferSyntaxName(uid string) string {
	if name, ok := wellKnownTransferSyntaxes[uid]; ok {
		return name
	}

	return ""
}
