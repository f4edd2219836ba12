// Package artifact implements the append-only and full-rewrite CSV writers
// shared by every run artifact (spec.md §4.3 and §6's CSV dialect).
package artifact

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hexmed-tecnologia/dicomsync/internal/clockid"
)

// errRowHeaderMismatch is returned (wrapped) by ReadAll when a record
// has fewer values than the header.
var errRowHeaderMismatch = errors.New("artifact: row has fewer values than the active header")

// TimestampFieldBR and TimestampFieldISO are the dual-timestamp columns
// injected on first write of an append-row artifact (spec.md §4.3).
const (
	TimestampFieldBR  = "timestamp_br"
	TimestampFieldISO = "timestamp_iso"
)

// Writer appends or rewrites semicolon-separated, UTF-8, LF-terminated CSV
// files. A Writer is not safe for concurrent use; the owning workflow is
// the single writer for any given path (spec.md §4.3, Concurrency).
type Writer struct {
	Clock *clockid.Clock
}

// NewWriter returns a Writer using the default wall clock.
func NewWriter() *Writer {
	return &Writer{Clock: clockid.Default}
}

func (w *Writer) clock() *clockid.Clock {
	if w.Clock == nil {
		return clockid.Default
	}

	return w.Clock
}

// newCSVReader/Writer configure the ';' dialect shared by every artifact.
func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	return cr
}

func newCSVWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	cw.UseCRLF = false

	return cw
}

// existingHeader reads the first line of path, if it exists, and returns
// its fields. Returns (nil, false, nil) if the file does not exist or is
// empty.
func existingHeader(path string) ([]string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("artifact: open %s: %w", path, err)
	}
	defer f.Close()

	cr := newCSVReader(bufio.NewReader(f))

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("artifact: read header of %s: %w", path, err)
	}

	return header, true, nil
}

// AppendRow appends one row to path, honoring spec.md §4.3:
//   - if the file does not exist, writes a header built from fields plus
//     the dual-timestamp columns (if not already present), then the row;
//   - if the file exists, reuses its on-disk header verbatim (schema
//     preservation for legacy schemas) instead of the declared fields.
//
// row must supply a value for every entry in fields; the dual timestamps
// are filled in automatically from the current clock reading.
func (w *Writer) AppendRow(path string, fields []string, row map[string]string) error {
	header, exists, err := existingHeader(path)
	if err != nil {
		return err
	}

	if !exists {
		header = withDualTimestampColumns(fields)
	}

	br, iso := w.clock().NowDual()
	row = cloneRow(row)
	row[TimestampFieldBR] = br
	row[TimestampFieldISO] = iso

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("artifact: open %s for append: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	cw := newCSVWriter(bw)

	if !exists {
		if writeErr := cw.Write(header); writeErr != nil {
			return fmt.Errorf("artifact: write header of %s: %w", path, writeErr)
		}
	}

	record := make([]string, len(header))
	for i, col := range header {
		record[i] = row[col]
	}

	if err := cw.Write(record); err != nil {
		return fmt.Errorf("artifact: write row of %s: %w", path, err)
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return fmt.Errorf("artifact: flush %s: %w", path, err)
	}

	return bw.Flush()
}

// RewriteTable truncates path and writes header followed by rows, in
// order. Used for manifest_folders.csv, analysis_summary.csv,
// send_summary.csv, reconciliation_report.csv, the report exports, and
// the in-place rewrites of send_results_by_file.csv.
func (w *Writer) RewriteTable(path string, fields []string, rows []map[string]string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("artifact: open %s for rewrite: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	cw := newCSVWriter(bw)

	if err := cw.Write(fields); err != nil {
		return fmt.Errorf("artifact: write header of %s: %w", path, err)
	}

	for _, row := range rows {
		record := make([]string, len(fields))
		for i, col := range fields {
			record[i] = row[col]
		}

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("artifact: write row of %s: %w", path, err)
		}
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return fmt.Errorf("artifact: flush %s: %w", path, err)
	}

	return bw.Flush()
}

// ReadAll reads every row of an artifact as maps keyed by its on-disk
// header, tolerating CRLF line endings on read per spec.md §6.
func ReadAll(path string) (header []string, rows []map[string]string, err error) {
	f, openErr := os.Open(path)
	if openErr != nil {
		if os.IsNotExist(openErr) {
			return nil, nil, nil
		}

		return nil, nil, fmt.Errorf("artifact: open %s: %w", path, openErr)
	}
	defer f.Close()

	cr := newCSVReader(bufio.NewReader(f))

	records, readErr := cr.ReadAll()
	if readErr != nil {
		return nil, nil, fmt.Errorf("artifact: read %s: %w", path, readErr)
	}

	if len(records) == 0 {
		return nil, nil, nil
	}

	header = records[0]

	for _, rec := range records[1:] {
		if len(rec) < len(header) {
			return nil, nil, fmt.Errorf("%w: %s", errRowHeaderMismatch, path)
		}

		row := make(map[string]string, len(header))
		for i, col := range header {
			row[col] = rec[i]
		}

		rows = append(rows, row)
	}

	return header, rows, nil
}

func withDualTimestampColumns(fields []string) []string {
	hasBR, hasISO := false, false

	for _, f := range fields {
		switch f {
		case TimestampFieldBR:
			hasBR = true
		case TimestampFieldISO:
			hasISO = true
		}
	}

	out := append([]string{}, fields...)

	if !hasBR {
		out = append(out, TimestampFieldBR)
	}

	if !hasISO {
		out = append(out, TimestampFieldISO)
	}

	return out
}

func cloneRow(row map[string]string) map[string]string {
	out := make(map[string]string, len(row)+2)
	for k, v := range row {
		out[k] = v
	}

	return out
}
