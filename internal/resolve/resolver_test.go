package resolve_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trellishq/trellis/internal/lib"
	"github.com/trellishq/trellis/internal/models"
	"github.com/trellishq/trellis/internal/ontology"
	"github.com/trellishq/trellis/internal/resolve"
)

const resolverOBO = `[Term]
id: HP:0001250
name: Seizure
synonym: "Epileptic seizure" EXACT []

[Term]
id: HP:0001251
name: Ataxia

[Term]
id: HP:0002650
name: Scoliosis
`

func newTestResolver(t *testing.T, threshold float64) *resolve.Resolver {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hp.obo")
	require.NoError(t, os.WriteFile(path, []byte(resolverOBO), 0644))

	idx, err := ontology.Build([]string{path}, lib.DefaultLogger)
	require.NoError(t, err)
	return resolve.New(idx, threshold)
}

func TestResolve_ExactLabel(t *testing.T) {
	r := newTestResolver(t, 0.85)

	term := r.Resolve("Seizure")
	require.True(t, term.IsResolved())
	assert.Equal(t, "HP:0001250", term.Concept.ID)
	assert.Equal(t, models.MatchExactLabel, term.Strategy)
	assert.Equal(t, 1.0, term.Confidence)
}

func TestResolve_ExactSynonym(t *testing.T) {
	r := newTestResolver(t, 0.85)

	term := r.Resolve("epileptic seizure")
	require.True(t, term.IsResolved())
	assert.Equal(t, "HP:0001250", term.Concept.ID)
	assert.Equal(t, models.MatchExactSynonym, term.Strategy)
	assert.Equal(t, 1.0, term.Confidence)
}

func TestResolve_FuzzyFallback(t *testing.T) {
	r := newTestResolver(t, 0.8)

	term := r.Resolve("Sezure")
	require.True(t, term.IsResolved())
	assert.Equal(t, "HP:0001250", term.Concept.ID)
	assert.Equal(t, models.MatchFuzzy, term.Strategy)
	assert.Greater(t, term.Confidence, 0.8)
	assert.Less(t, term.Confidence, 1.0)
}

func TestResolve_Unresolved(t *testing.T) {
	r := newTestResolver(t, 0.85)

	term := r.Resolve("entirely unknown condition")
	assert.False(t, term.IsResolved())
	assert.Nil(t, term.Concept)
	assert.Equal(t, models.MatchUnresolved, term.Strategy)
	assert.Equal(t, 0.0, term.Confidence)
	assert.Equal(t, "entirely unknown condition", term.RawText)
}

func TestResolve_Deterministic(t *testing.T) {
	r := newTestResolver(t, 0.5)

	first := r.Resolve("ataxi")
	for i := 0; i < 10; i++ {
		again := r.Resolve("ataxi")
		assert.Equal(t, first.Concept.ID, again.Concept.ID)
		assert.Equal(t, first.Confidence, again.Confidence)
	}
}

func TestResolveRecord_SkipsEmptyFields(t *testing.T) {
	r := newTestResolver(t, 0.85)

	schema := models.SchemaConfig{
		SubjectField: "patient_id",
		TermFields: []models.TermField{
			{Name: "phenotype", Mandatory: true},
			{Name: "comorbidity", Mandatory: false},
		},
	}
	record := &models.RawRecord{
		Row: 1,
		Values: map[string]string{
			"patient_id": "P1",
			"phenotype":  "Seizure",
			"comorbidity": "",
		},
	}

	resolved := r.ResolveRecord(record, schema)

	require.Contains(t, resolved, "phenotype")
	assert.NotContains(t, resolved, "comorbidity", "empty fields are absent, not unresolved")
	assert.True(t, resolved["phenotype"].IsResolved())
}
