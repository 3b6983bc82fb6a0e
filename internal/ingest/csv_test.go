package ingest_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trellishq/trellis/internal/ingest"
	"github.com/trellishq/trellis/internal/lib"
	"github.com/trellishq/trellis/internal/models"
)

func testSchema() models.SchemaConfig {
	return models.SchemaConfig{
		SubjectField:   "patient_id",
		RequiredFields: []string{"patient_id"},
		TermFields: []models.TermField{
			{Name: "phenotype", Mandatory: true},
			{Name: "comorbidity", Mandatory: false},
		},
	}
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patients.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := ingest.Open("/nonexistent/patients.csv", testSchema())
	require.Error(t, err)

	var unreadable *lib.SourceUnreadableError
	assert.ErrorAs(t, err, &unreadable)
}

func TestOpen_MissingColumns(t *testing.T) {
	path := writeCSV(t, "patient_id,age\nP1,40\n")

	_, err := ingest.Open(path, testSchema())
	require.Error(t, err)

	var unreadable *lib.SourceUnreadableError
	require.ErrorAs(t, err, &unreadable)
	assert.Contains(t, unreadable.Error(), "phenotype")
}

func TestOpen_EmptyFile(t *testing.T) {
	path := writeCSV(t, "")

	_, err := ingest.Open(path, testSchema())
	require.Error(t, err)

	var unreadable *lib.SourceUnreadableError
	assert.ErrorAs(t, err, &unreadable)
}

func TestNext_StreamsRows(t *testing.T) {
	path := writeCSV(t, "patient_id,phenotype,comorbidity\nP1,Seizure,\nP2,Ataxia,Scoliosis\n")

	r, err := ingest.Open(path, testSchema())
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Row)
	assert.Equal(t, "P1", first.Get("patient_id"))
	assert.Equal(t, "Seizure", first.Get("phenotype"))
	assert.False(t, first.Has("comorbidity"))

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Row)
	assert.Equal(t, "Scoliosis", second.Get("comorbidity"))

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestNext_RowValidationErrorContinues(t *testing.T) {
	path := writeCSV(t, "patient_id,phenotype\nP1,Seizure\n,Ataxia\nP3,Scoliosis\n")

	r, err := ingest.Open(path, testSchema())
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	_, err = r.Next()
	require.NoError(t, err)

	// Second row has an empty patient_id: row-scoped error, stream continues.
	_, err = r.Next()
	var rowErr *lib.RowValidationError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, int64(2), rowErr.Row)
	assert.Equal(t, "patient_id", rowErr.MissingField)

	third, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(3), third.Row)
	assert.Equal(t, "P3", third.Get("patient_id"))
}

func TestNext_TrimsWhitespace(t *testing.T) {
	path := writeCSV(t, "patient_id,phenotype\n P1 ,  Seizure \n")

	r, err := ingest.Open(path, testSchema())
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	record, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "P1", record.Get("patient_id"))
	assert.Equal(t, "Seizure", record.Get("phenotype"))
}

func TestOpen_SkipsBOM(t *testing.T) {
	path := writeCSV(t, "\xEF\xBB\xBFpatient_id,phenotype\nP1,Seizure\n")

	r, err := ingest.Open(path, testSchema())
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	assert.Equal(t, []string{"patient_id", "phenotype"}, r.Columns())
}

func TestSeek_SkipsCheckpointedRows(t *testing.T) {
	path := writeCSV(t, "patient_id,phenotype\nP1,Seizure\nP2,Ataxia\nP3,Scoliosis\n")

	r, err := ingest.Open(path, testSchema())
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	require.NoError(t, r.Seek(2))

	record, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(3), record.Row)
	assert.Equal(t, "P3", record.Get("patient_id"))
}

func TestSeek_PastEnd(t *testing.T) {
	path := writeCSV(t, "patient_id,phenotype\nP1,Seizure\n")

	r, err := ingest.Open(path, testSchema())
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	assert.Equal(t, io.EOF, r.Seek(10))
}

func TestNext_ShortRowIsMissingField(t *testing.T) {
	// Row with fewer fields than the header: term column absent entirely.
	path := writeCSV(t, "patient_id,phenotype,comorbidity\nP1,Seizure\n")

	r, err := ingest.Open(path, testSchema())
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	record, err := r.Next()
	require.NoError(t, err)
	assert.False(t, record.Has("comorbidity"))
}
