package resolve

import (
	"github.com/trellishq/trellis/internal/models"
	"github.com/trellishq/trellis/internal/ontology"
)

// Resolver maps free-text clinical terms onto ontology concepts. Resolution
// is deterministic: the same input text against the same index always yields
// the same result, regardless of worker scheduling.
type Resolver struct {
	index     *ontology.Index
	threshold float64
}

// New creates a resolver over a built index. threshold is the minimum fuzzy
// similarity in [0,1] a candidate must reach; exact matches bypass it.
func New(index *ontology.Index, threshold float64) *Resolver {
	return &Resolver{index: index, threshold: threshold}
}

// Resolve maps one raw term. Strategy order is fixed: exact label, exact
// synonym, then best fuzzy candidate at or above the threshold. An input that
// survives none of those comes back unresolved with confidence 0.
func (r *Resolver) Resolve(text string) models.ResolvedTerm {
	result := models.ResolvedTerm{
		RawText:  text,
		Strategy: models.MatchUnresolved,
	}

	if concept, strategy := r.index.Lookup(text); concept != nil {
		result.Concept = concept
		result.Strategy = strategy
		result.Confidence = 1.0
		return result
	}

	candidates := r.index.FuzzyLookup(text, r.threshold)
	if len(candidates) > 0 {
		result.Concept = candidates[0].Concept
		result.Strategy = models.MatchFuzzy
		result.Confidence = candidates[0].Score
	}

	return result
}

// ResolveRecord resolves every schema term field present on a record, keyed
// by field name. Term fields with empty values are skipped entirely so the
// builder can distinguish absent from unresolved.
func (r *Resolver) ResolveRecord(record *models.RawRecord, schema models.SchemaConfig) map[string]models.ResolvedTerm {
	resolved := make(map[string]models.ResolvedTerm, len(schema.TermFields))
	for _, tf := range schema.TermFields {
		value := record.Values[tf.Name]
		if value == "" {
			continue
		}
		resolved[tf.Name] = r.Resolve(value)
	}
	return resolved
}
