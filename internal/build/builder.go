package build

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/trellishq/trellis/internal/lib"
	"github.com/trellishq/trellis/internal/models"
)

// resourceNamespace seeds the deterministic resource identifiers. Derived
// once from the URL namespace so IDs are stable across runs and hosts.
var resourceNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://trellishq.github.io/trellis/resource"))

// Builder turns validated rows plus their resolved terms into canonical FHIR
// Condition resources. Pure: no I/O, no clock, no shared mutable state, so
// any number of workers can share one instance.
type Builder struct {
	runID     string
	schema    models.SchemaConfig
	systemURL string
}

// New creates a builder for one pipeline run. runID participates in resource
// identity so re-running the same source under the same run produces the
// same IDs and upserts rather than duplicates.
func New(runID string, schema models.SchemaConfig, systemURL string) *Builder {
	return &Builder{runID: runID, schema: schema, systemURL: systemURL}
}

// ResourceID derives the stable identifier for the resource built from one
// source row
func (b *Builder) ResourceID(row int64) string {
	return uuid.NewSHA1(resourceNamespace, []byte(fmt.Sprintf("%s:%d", b.runID, row))).String()
}

// Build assembles the resource for one record. A mandatory term field that is
// present but unresolved fails the whole resource with a SchemaViolationError;
// an optional unresolved field degrades to free text carried in a note.
func (b *Builder) Build(record *models.RawRecord, resolved map[string]models.ResolvedTerm) (*models.CanonicalResource, error) {
	code := &models.CodeableConcept{}
	var notes []models.Annotation

	for _, tf := range b.schema.TermFields {
		raw := record.Values[tf.Name]
		if raw == "" {
			if tf.Mandatory {
				return nil, &lib.SchemaViolationError{Row: record.Row, Field: tf.Name, RawText: raw}
			}
			continue
		}

		term, ok := resolved[tf.Name]
		if ok && term.IsResolved() {
			code.Coding = append(code.Coding, models.Coding{
				System:  b.systemURL,
				Code:    term.Concept.ID,
				Display: term.Concept.Label,
			})
			if code.Text == "" {
				code.Text = raw
			}
			continue
		}

		if tf.Mandatory {
			return nil, &lib.SchemaViolationError{Row: record.Row, Field: tf.Name, RawText: raw}
		}

		// Optional and unresolved: preserve the original wording instead of
		// silently dropping clinical information.
		notes = append(notes, models.Annotation{
			Text: fmt.Sprintf("Unresolved %s: %s", tf.Name, raw),
		})
	}

	resource := &models.CanonicalResource{
		ResourceType: "Condition",
		ID:           b.ResourceID(record.Row),
		Subject: &models.Reference{
			Reference: fmt.Sprintf("Patient/%s", record.Values[b.schema.SubjectField]),
		},
		Code:      code,
		Note:      notes,
		SourceRow: record.Row,
	}

	return resource, nil
}
