package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/trellishq/trellis/internal/lib"
	"github.com/trellishq/trellis/internal/models"
)

// Reader streams patient records out of a delimited source file one row at a
// time. It never buffers the whole file: resuming a multi-gigabyte extract
// costs only the skipped-row scan.
type Reader struct {
	file    *os.File
	csv     *csv.Reader
	schema  models.SchemaConfig
	columns []string
	colIdx  map[string]int
	row     int64 // last data row handed out, 1-based
}

// Open opens a CSV source and validates its header against the schema. A
// missing file, unreadable file or header lacking a required or term column
// is fatal for the whole run.
func Open(path string, schema models.SchemaConfig) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &lib.SourceUnreadableError{Source: path, Cause: err}
	}

	buffered := bufio.NewReaderSize(f, 256*1024)
	if err := skipBOM(buffered); err != nil {
		f.Close()
		return nil, &lib.SourceUnreadableError{Source: path, Cause: err}
	}

	cr := csv.NewReader(buffered)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		f.Close()
		if err == io.EOF {
			err = fmt.Errorf("source is empty")
		}
		return nil, &lib.SourceUnreadableError{Source: path, Cause: err}
	}

	r := &Reader{
		file:    f,
		csv:     cr,
		schema:  schema,
		columns: make([]string, len(header)),
		colIdx:  make(map[string]int, len(header)),
	}
	for i, name := range header {
		name = strings.TrimSpace(name)
		r.columns[i] = name
		if _, dup := r.colIdx[name]; !dup {
			r.colIdx[name] = i
		}
	}

	if err := r.validateHeader(); err != nil {
		f.Close()
		return nil, &lib.SourceUnreadableError{Source: path, Cause: err}
	}

	return r, nil
}

// validateHeader checks that every schema-declared column is present
func (r *Reader) validateHeader() error {
	var missing []string

	check := func(name string) {
		if _, ok := r.colIdx[name]; !ok {
			missing = append(missing, name)
		}
	}

	check(r.schema.SubjectField)
	for _, field := range r.schema.RequiredFields {
		check(field)
	}
	for _, tf := range r.schema.TermFields {
		check(tf.Name)
	}

	if len(missing) > 0 {
		return fmt.Errorf("header missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Columns returns the header columns in file order
func (r *Reader) Columns() []string {
	return r.columns
}

// Row returns the 1-based number of the last data row returned by Next
func (r *Reader) Row() int64 {
	return r.row
}

// Next returns the next data row. A row that fails validation is returned as
// a RowValidationError so the caller can record it and continue; io.EOF ends
// the stream. Any other error means the source became unreadable mid-stream.
func (r *Reader) Next() (*models.RawRecord, error) {
	fields, err := r.csv.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if perr, ok := err.(*csv.ParseError); ok {
			// Structurally broken row. Count it and let the caller move on.
			r.row++
			return nil, &lib.RowValidationError{
				Row:   r.row,
				Cause: fmt.Errorf("malformed row at line %d: %w", perr.Line, perr.Err),
			}
		}
		return nil, &lib.SourceUnreadableError{Source: r.file.Name(), Cause: err}
	}

	r.row++

	record := &models.RawRecord{
		Row:     r.row,
		Columns: r.columns,
		Values:  make(map[string]string, len(r.columns)),
	}
	for name, idx := range r.colIdx {
		if idx < len(fields) {
			record.Values[name] = strings.TrimSpace(fields[idx])
		}
	}

	if err := r.validateRow(record); err != nil {
		return nil, err
	}

	return record, nil
}

// validateRow enforces per-row schema requirements. The subject column and
// every required column must carry a non-empty value.
func (r *Reader) validateRow(record *models.RawRecord) error {
	if record.Values[r.schema.SubjectField] == "" {
		return &lib.RowValidationError{Row: record.Row, MissingField: r.schema.SubjectField}
	}
	for _, field := range r.schema.RequiredFields {
		if record.Values[field] == "" {
			return &lib.RowValidationError{Row: record.Row, MissingField: field}
		}
	}
	return nil
}

// Seek advances the stream past the first offset data rows. Used on resume:
// a checkpoint at row N restarts processing at row N+1. Row validation is
// not re-applied to skipped rows.
func (r *Reader) Seek(offset int64) error {
	for r.row < offset {
		_, err := r.csv.Read()
		if err != nil {
			if err == io.EOF {
				return io.EOF
			}
			if _, ok := err.(*csv.ParseError); ok {
				r.row++
				continue
			}
			return &lib.SourceUnreadableError{Source: r.file.Name(), Cause: err}
		}
		r.row++
	}
	return nil
}

// Close releases the underlying file
func (r *Reader) Close() error {
	return r.file.Close()
}

// skipBOM consumes a UTF-8 byte order mark if the file starts with one
func skipBOM(r *bufio.Reader) error {
	bom := []byte{0xEF, 0xBB, 0xBF}
	head, err := r.Peek(3)
	if err != nil && err != io.EOF {
		return err
	}
	if bytes.Equal(head, bom) {
		if _, err := r.Discard(3); err != nil {
			return err
		}
	}
	return nil
}
