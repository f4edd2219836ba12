package report

import (
	"sort"
	"strconv"
)

// rowAFields is validation_full_report_A.csv's declared field list,
// named exactly as the original per-file clinical report (spec.md §4.8).
var rowAFields = []string{
	"run_id", "file_path", "sop_instance_uid",
	"nome_paciente", "data_nascimento", "prontuario", "accession_number",
	"sexo", "data_exame", "descricao_exame", "study_uid", "status",
}

// rowCFields is validation_full_report_C.csv's declared field list: one
// row per study_uid, aggregated across every file sharing it.
var rowCFields = []string{
	"run_id", "study_uid",
	"nome_paciente", "data_nascimento", "prontuario", "accession_number",
	"sexo", "data_exame", "descricao_exame", "status", "total_arquivos",
}

// RowA is one validation_full_report_A.csv row.
type RowA struct {
	RunID          string
	FilePath       string
	SOPInstanceUID string
	Fields         Fields
	Status         string // domain.ReportStatus
}

func (r RowA) toMap() map[string]string {
	return map[string]string{
		"run_id":           r.RunID,
		"file_path":        r.FilePath,
		"sop_instance_uid": r.SOPInstanceUID,
		"nome_paciente":    r.Fields.PatientName,
		"data_nascimento":  r.Fields.BirthDate,
		"prontuario":       r.Fields.PatientID,
		"accession_number": r.Fields.AccessionNumber,
		"sexo":             r.Fields.Sex,
		"data_exame":       r.Fields.StudyDate,
		"descricao_exame":  r.Fields.StudyDescription,
		"study_uid":        r.Fields.StudyInstanceUID,
		"status":           r.Status,
	}
}

// RowsAToTable renders rows as CSV-ready records with rowAFields' header.
func RowsAToTable(rows []RowA) []map[string]string {
	out := make([]map[string]string, len(rows))
	for i, r := range rows {
		out[i] = r.toMap()
	}

	return out
}

// rowCAgg accumulates one study_uid group's first-non-empty field values
// while folding RowA rows into RowsCFromA's output.
type rowCAgg struct {
	runID           string
	studyUID        string
	patientName     string
	birthDate       string
	patientID       string
	accessionNumber string
	sex             string
	studyDate       string
	studyDesc       string
	status          string
	totalArquivos   int
}

func firstNonEmpty(cur, next string) string {
	if cur != "" {
		return cur
	}

	return next
}

// RowsCFromA groups rowsA by study_uid (spec.md §4.8 mode C): rows with
// an empty study_uid get a synthetic `__ERRO__<iuid-or-path>` key so they
// never silently merge with each other, though the group's own
// study_uid column stays empty. Within a group, each of the seven
// clinical fields takes its first non-empty value across member rows;
// status is ERRO if any member row is ERRO, else OK. Output is sorted by
// study_uid ascending (ties broken by first-occurrence order), so groups
// with no study_uid sort first, matching the original's plain string
// sort over possibly-empty study_uid values.
func RowsCFromA(rowsA []RowA) []map[string]string {
	order := make([]string, 0, len(rowsA))
	groups := make(map[string]*rowCAgg, len(rowsA))

	for _, row := range rowsA {
		studyUID := row.Fields.StudyInstanceUID

		key := studyUID
		if key == "" {
			key = "__ERRO__" + firstNonEmpty(row.SOPInstanceUID, row.FilePath)
		}

		agg, ok := groups[key]
		if !ok {
			agg = &rowCAgg{runID: row.RunID, studyUID: studyUID, status: "OK"}
			groups[key] = agg
			order = append(order, key)
		}

		agg.totalArquivos++
		agg.patientName = firstNonEmpty(agg.patientName, row.Fields.PatientName)
		agg.birthDate = firstNonEmpty(agg.birthDate, row.Fields.BirthDate)
		agg.patientID = firstNonEmpty(agg.patientID, row.Fields.PatientID)
		agg.accessionNumber = firstNonEmpty(agg.accessionNumber, row.Fields.AccessionNumber)
		agg.sex = firstNonEmpty(agg.sex, row.Fields.Sex)
		agg.studyDate = firstNonEmpty(agg.studyDate, row.Fields.StudyDate)
		agg.studyDesc = firstNonEmpty(agg.studyDesc, row.Fields.StudyDescription)

		if agg.studyUID == "" {
			agg.studyUID = studyUID
		}

		if row.Status == "ERRO" {
			agg.status = "ERRO"
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return groups[order[i]].studyUID < groups[order[j]].studyUID
	})

	out := make([]map[string]string, 0, len(order))

	for _, key := range order {
		agg := groups[key]
		out = append(out, map[string]string{
			"run_id":           agg.runID,
			"study_uid":        agg.studyUID,
			"nome_paciente":    agg.patientName,
			"data_nascimento":  agg.birthDate,
			"prontuario":       agg.patientID,
			"accession_number": agg.accessionNumber,
			"sexo":             agg.sex,
			"data_exame":       agg.studyDate,
			"descricao_exame":  agg.studyDesc,
			"status":           agg.status,
			"total_arquivos":   strconv.Itoa(agg.totalArquivos),
		})
	}

	return out
}
