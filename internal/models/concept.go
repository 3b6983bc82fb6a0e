package models

// OntologyConcept is one term loaded from an ontology source. Concepts are
// immutable after indexing.
type OntologyConcept struct {
	ID         string   `json:"id"`         // CURIE identifier, e.g. HP:0001250
	Label      string   `json:"label"`      // Preferred human-readable name
	Synonyms   []string `json:"synonyms"`   // Exact synonyms only
	Parents    []string `json:"parents"`    // Direct parent concept IDs
	Definition string   `json:"definition"` // Textual definition, may be empty
	Obsolete   bool     `json:"obsolete"`   // Marked inactive by the source
	Xrefs      []string `json:"xrefs"`      // Cross-references to other vocabularies
	Subsets    []string `json:"subsets"`    // Subset slims the concept belongs to
}

// MatchStrategy records how a raw term was mapped to a concept
type MatchStrategy string

const (
	MatchExactLabel   MatchStrategy = "exact_label"
	MatchExactSynonym MatchStrategy = "exact_synonym"
	MatchFuzzy        MatchStrategy = "fuzzy"
	MatchUnresolved   MatchStrategy = "unresolved"
)

// ResolvedTerm is the outcome of resolving one raw text value. Concept is nil
// when Strategy is MatchUnresolved.
type ResolvedTerm struct {
	RawText    string
	Concept    *OntologyConcept
	Strategy   MatchStrategy
	Confidence float64 // 1.0 for exact matches, fuzzy score otherwise, 0 when unresolved
}

// IsResolved reports whether the term mapped to a concept
func (t ResolvedTerm) IsResolved() bool {
	return t.Concept != nil && t.Strategy != MatchUnresolved
}
