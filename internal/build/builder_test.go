package build_test

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"
	"github.com/trellishq/trellis/internal/build"
	"github.com/trellishq/trellis/internal/lib"
	"github.com/trellishq/trellis/internal/models"
)

const systemURL = "http://purl.obolibrary.org/obo/hp.owl"

// conditionSchema validates the shape of emitted Condition resources
const conditionSchema = `{
	"type": "object",
	"required": ["resourceType", "id", "subject", "code"],
	"properties": {
		"resourceType": {"const": "Condition"},
		"id": {"type": "string", "minLength": 1},
		"subject": {
			"type": "object",
			"required": ["reference"],
			"properties": {"reference": {"type": "string", "pattern": "^Patient/"}}
		},
		"code": {
			"type": "object",
			"properties": {
				"coding": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["system", "code"],
						"properties": {
							"system": {"type": "string"},
							"code": {"type": "string"},
							"display": {"type": "string"}
						}
					}
				},
				"text": {"type": "string"}
			}
		},
		"note": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["text"],
				"properties": {"text": {"type": "string"}}
			}
		}
	}
}`

func testBuilderSchema() models.SchemaConfig {
	return models.SchemaConfig{
		SubjectField:   "patient_id",
		RequiredFields: []string{"patient_id"},
		TermFields: []models.TermField{
			{Name: "phenotype", Mandatory: true},
			{Name: "comorbidity", Mandatory: false},
		},
	}
}

func seizureConcept() *models.OntologyConcept {
	return &models.OntologyConcept{ID: "HP:0001250", Label: "Seizure"}
}

func record(row int64, values map[string]string) *models.RawRecord {
	return &models.RawRecord{Row: row, Values: values}
}

func TestBuild_ResolvedMandatoryField(t *testing.T) {
	b := build.New("run-1", testBuilderSchema(), systemURL)

	rec := record(1, map[string]string{"patient_id": "P1", "phenotype": "Seizure"})
	resolved := map[string]models.ResolvedTerm{
		"phenotype": {RawText: "Seizure", Concept: seizureConcept(), Strategy: models.MatchExactLabel, Confidence: 1.0},
	}

	resource, err := b.Build(rec, resolved)
	require.NoError(t, err)

	assert.Equal(t, "Condition", resource.ResourceType)
	assert.Equal(t, "Patient/P1", resource.Subject.Reference)
	require.Len(t, resource.Code.Coding, 1)
	assert.Equal(t, systemURL, resource.Code.Coding[0].System)
	assert.Equal(t, "HP:0001250", resource.Code.Coding[0].Code)
	assert.Equal(t, "Seizure", resource.Code.Coding[0].Display)
	assert.Equal(t, "Seizure", resource.Code.Text)
	assert.Equal(t, int64(1), resource.SourceRow)
}

func TestBuild_MandatoryUnresolvedFails(t *testing.T) {
	b := build.New("run-1", testBuilderSchema(), systemURL)

	rec := record(4, map[string]string{"patient_id": "P1", "phenotype": "gibberish"})
	resolved := map[string]models.ResolvedTerm{
		"phenotype": {RawText: "gibberish", Strategy: models.MatchUnresolved},
	}

	_, err := b.Build(rec, resolved)
	require.Error(t, err)

	var violation *lib.SchemaViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, int64(4), violation.Row)
	assert.Equal(t, "phenotype", violation.Field)
	assert.Equal(t, "gibberish", violation.RawText)
}

func TestBuild_MandatoryEmptyFails(t *testing.T) {
	b := build.New("run-1", testBuilderSchema(), systemURL)

	rec := record(2, map[string]string{"patient_id": "P1", "phenotype": ""})
	_, err := b.Build(rec, map[string]models.ResolvedTerm{})

	var violation *lib.SchemaViolationError
	require.ErrorAs(t, err, &violation)
}

func TestBuild_OptionalUnresolvedBecomesNote(t *testing.T) {
	b := build.New("run-1", testBuilderSchema(), systemURL)

	rec := record(3, map[string]string{
		"patient_id":  "P1",
		"phenotype":   "Seizure",
		"comorbidity": "some local wording",
	})
	resolved := map[string]models.ResolvedTerm{
		"phenotype":   {RawText: "Seizure", Concept: seizureConcept(), Strategy: models.MatchExactLabel, Confidence: 1.0},
		"comorbidity": {RawText: "some local wording", Strategy: models.MatchUnresolved},
	}

	resource, err := b.Build(rec, resolved)
	require.NoError(t, err)

	require.Len(t, resource.Note, 1)
	assert.Contains(t, resource.Note[0].Text, "comorbidity")
	assert.Contains(t, resource.Note[0].Text, "some local wording")
	assert.Len(t, resource.Code.Coding, 1, "unresolved optional field adds no coding")
}

func TestBuild_StableResourceID(t *testing.T) {
	b := build.New("run-1", testBuilderSchema(), systemURL)

	id1 := b.ResourceID(42)
	id2 := b.ResourceID(42)
	assert.Equal(t, id1, id2, "same run and row must yield the same identifier")

	_, err := uuid.Parse(id1)
	assert.NoError(t, err)

	assert.NotEqual(t, id1, b.ResourceID(43))

	other := build.New("run-2", testBuilderSchema(), systemURL)
	assert.NotEqual(t, id1, other.ResourceID(42), "different runs must not collide")
}

func TestBuild_EmitsValidConditionJSON(t *testing.T) {
	b := build.New("run-1", testBuilderSchema(), systemURL)

	rec := record(1, map[string]string{
		"patient_id":  "P1",
		"phenotype":   "Seizure",
		"comorbidity": "unmapped text",
	})
	resolved := map[string]models.ResolvedTerm{
		"phenotype":   {RawText: "Seizure", Concept: seizureConcept(), Strategy: models.MatchExactLabel, Confidence: 1.0},
		"comorbidity": {RawText: "unmapped text", Strategy: models.MatchUnresolved},
	}

	resource, err := b.Build(rec, resolved)
	require.NoError(t, err)

	payload, err := json.Marshal(resource)
	require.NoError(t, err)

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(conditionSchema),
		gojsonschema.NewBytesLoader(payload),
	)
	require.NoError(t, err)
	assert.True(t, result.Valid(), "validation errors: %v", result.Errors())

	// SourceRow is internal bookkeeping and must never reach the wire.
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.NotContains(t, decoded, "SourceRow")
}
