// Package report implements the Report Exporter (spec.md §4.8, second
// half): given a run whose Send stage produced send_results_by_file.csv,
// re-query each unique SOP Instance UID's DICOM dataset over REST and
// export a per-file (mode A) or per-study (mode C) CSV report.
package report

import "github.com/hexmed-tecnologia/dicomsync/internal/restclient"

// Mode selects the report's grouping granularity.
type Mode string

// Supported report modes.
const (
	ModeA Mode = "A" // one row per file
	ModeC Mode = "C" // one row per study_uid, aggregated
)

// DICOM tag constants for the eight fields every report row carries,
// named exactly as dcm4chee-arc's QIDO-RS responses key them.
const (
	TagPatientName     = "00100010"
	TagBirthDate       = "00100030"
	TagPatientID       = "00100020"
	TagAccessionNumber = "00080050"
	TagSex             = "00100040"
	TagStudyDate       = "00080020"
	TagStudyDescription = "00081030"
	TagStudyInstanceUID = "0020000D"
)

// Fields is the eight-field DICOM text extraction every report row is
// built from (spec.md §4.8's "seven DICOM text fields" plus study_uid).
type Fields struct {
	PatientName       string
	BirthDate         string
	PatientID         string
	AccessionNumber   string
	Sex               string
	StudyDate         string
	StudyDescription  string
	StudyInstanceUID  string
}

// FieldsFromDataset extracts Fields from one REST-queried instance
// dataset, per spec.md §4.8.
func FieldsFromDataset(dataset restclient.Dataset) Fields {
	return Fields{
		PatientName:      restclient.Text(dataset, TagPatientName),
		BirthDate:        restclient.Text(dataset, TagBirthDate),
		PatientID:        restclient.Text(dataset, TagPatientID),
		AccessionNumber:  restclient.Text(dataset, TagAccessionNumber),
		Sex:              restclient.Text(dataset, TagSex),
		StudyDate:        restclient.Text(dataset, TagStudyDate),
		StudyDescription: restclient.Text(dataset, TagStudyDescription),
		StudyInstanceUID: restclient.Text(dataset, TagStudyInstanceUID),
	}
}
