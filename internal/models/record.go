package models

// RawRecord is one validated data row from the tabular source
type RawRecord struct {
	Row     int64             // 1-based data row number, header excluded
	Columns []string          // Header columns in file order
	Values  map[string]string // Column name to trimmed cell value
}

// Get returns the value of a column, empty when absent
func (r *RawRecord) Get(column string) string {
	return r.Values[column]
}

// Has reports whether the column carries a non-empty value
func (r *RawRecord) Has(column string) bool {
	return r.Values[column] != ""
}

// Reference is a FHIR reference to another resource
type Reference struct {
	Reference string `json:"reference,omitempty"`
	Display   string `json:"display,omitempty"`
}

// Coding is one code from a terminology system
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// CodeableConcept carries zero or more codings plus the original text
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Annotation is a free-text note attached to a resource
type Annotation struct {
	Text string `json:"text"`
}

// CanonicalResource is the FHIR resource built from one source row. The JSON
// shape follows the FHIR R4 Condition resource; SourceRow is internal
// bookkeeping and never serialized.
type CanonicalResource struct {
	ResourceType string           `json:"resourceType"`
	ID           string           `json:"id"`
	Subject      *Reference       `json:"subject,omitempty"`
	Code         *CodeableConcept `json:"code,omitempty"`
	Note         []Annotation     `json:"note,omitempty"`
	SourceRow    int64            `json:"-"`
}

// SubmissionStatus is the terminal or retry state of one submitted resource
type SubmissionStatus string

const (
	SubmissionAccepted     SubmissionStatus = "accepted"
	SubmissionRejected     SubmissionStatus = "rejected"
	SubmissionPendingRetry SubmissionStatus = "pending_retry"
	SubmissionAbandoned    SubmissionStatus = "abandoned"
)

// IsTerminal reports whether the status ends processing for the resource
func (s SubmissionStatus) IsTerminal() bool {
	return s == SubmissionAccepted || s == SubmissionRejected || s == SubmissionAbandoned
}

// SubmissionOutcome is the final record of one resource's submission
type SubmissionOutcome struct {
	ResourceID string
	SourceRow  int64
	Status     SubmissionStatus
	Attempts   int
	HTTPStatus int
	LastError  string
}
