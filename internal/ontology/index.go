package ontology

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/trellishq/trellis/internal/lib"
	"github.com/trellishq/trellis/internal/models"
)

// Index is the read-only lookup structure over all loaded ontology concepts.
// It is built once at run start and is safe for concurrent reads by multiple
// resolver workers; it must never be mutated after Build returns.
type Index struct {
	concepts  map[string]*models.OntologyConcept
	ordered   []string          // Concept IDs in indexing order
	byLabel   map[string]string // lowercased label -> concept ID, first indexed wins
	bySynonym map[string]string // lowercased synonym -> concept ID, first indexed wins
}

// Candidate is one fuzzy-lookup result
type Candidate struct {
	Concept *models.OntologyConcept
	Score   float64
}

// Build constructs an index from one or more ontology source files. The
// format is chosen by extension: .obo is parsed as OBO, .owl/.rdf/.xml as
// RDF-XML. Conflicting duplicate identifiers across sources fail the build.
func Build(sources []string, logger *lib.Logger) (*Index, error) {
	idx := &Index{
		concepts:  make(map[string]*models.OntologyConcept),
		byLabel:   make(map[string]string),
		bySynonym: make(map[string]string),
	}

	for _, source := range sources {
		logger.Info("Loading ontology source", "source", source)

		var concepts []models.OntologyConcept
		var err error

		switch strings.ToLower(filepath.Ext(source)) {
		case ".obo":
			concepts, err = ParseOBOFile(source)
		case ".owl", ".rdf", ".xml":
			concepts, err = ParseOWLFile(source)
		default:
			err = &lib.MalformedOntologyError{
				Source: source,
				Cause:  fmt.Errorf("unsupported ontology format %q", filepath.Ext(source)),
			}
		}
		if err != nil {
			return nil, err
		}

		for i := range concepts {
			if err := idx.add(&concepts[i], source); err != nil {
				return nil, err
			}
		}

		logger.Info("Loaded ontology source", "source", source, "concepts", len(concepts))
	}

	logger.Info("Ontology index built", "total_concepts", len(idx.concepts))
	return idx, nil
}

// add indexes a single concept. The same identifier may appear again with an
// identical label (overlapping sources); its synonyms, xrefs, subsets and
// parents are merged into the first occurrence. A conflicting label is an
// error.
func (idx *Index) add(concept *models.OntologyConcept, source string) error {
	if existing, ok := idx.concepts[concept.ID]; ok {
		if !strings.EqualFold(existing.Label, concept.Label) {
			return &lib.DuplicateConceptError{
				ConceptID:     concept.ID,
				ExistingLabel: existing.Label,
				NewLabel:      concept.Label,
				Source:        source,
			}
		}
		idx.mergeConcept(existing, concept)
		return nil
	}

	idx.concepts[concept.ID] = concept
	idx.ordered = append(idx.ordered, concept.ID)

	label := normalizeTerm(concept.Label)
	if _, taken := idx.byLabel[label]; !taken {
		idx.byLabel[label] = concept.ID
	}

	for _, syn := range concept.Synonyms {
		key := normalizeTerm(syn)
		if _, taken := idx.bySynonym[key]; !taken {
			idx.bySynonym[key] = concept.ID
		}
	}

	return nil
}

// mergeConcept folds a duplicate occurrence into the concept already indexed.
// Later sources can contribute synonyms, xrefs, subsets, parents and a
// definition, but never replace what the first source set.
func (idx *Index) mergeConcept(existing, dup *models.OntologyConcept) {
	if existing.Definition == "" {
		existing.Definition = dup.Definition
	}
	existing.Parents = appendMissing(existing.Parents, dup.Parents)
	existing.Xrefs = appendMissing(existing.Xrefs, dup.Xrefs)
	existing.Subsets = appendMissing(existing.Subsets, dup.Subsets)

	for _, syn := range dup.Synonyms {
		key := normalizeTerm(syn)
		known := false
		for _, have := range existing.Synonyms {
			if normalizeTerm(have) == key {
				known = true
				break
			}
		}
		if known {
			continue
		}
		existing.Synonyms = append(existing.Synonyms, syn)
		if _, taken := idx.bySynonym[key]; !taken {
			idx.bySynonym[key] = existing.ID
		}
	}
}

func appendMissing(dst, src []string) []string {
	for _, v := range src {
		found := false
		for _, have := range dst {
			if have == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}

// Get returns the concept with the given identifier
func (idx *Index) Get(id string) (*models.OntologyConcept, bool) {
	c, ok := idx.concepts[id]
	return c, ok
}

// Len returns the number of indexed concepts
func (idx *Index) Len() int {
	return len(idx.concepts)
}

// Concepts calls fn for every concept in indexing order. Used for CodeSystem
// export where deterministic output matters.
func (idx *Index) Concepts(fn func(*models.OntologyConcept)) {
	for _, id := range idx.ordered {
		fn(idx.concepts[id])
	}
}

// Lookup performs a case-insensitive exact match, label first, then synonym.
// Returns nil when nothing matches. Ties resolve to the first indexed concept.
func (idx *Index) Lookup(text string) (*models.OntologyConcept, models.MatchStrategy) {
	key := normalizeTerm(text)
	if key == "" {
		return nil, models.MatchUnresolved
	}

	if id, ok := idx.byLabel[key]; ok {
		return idx.concepts[id], models.MatchExactLabel
	}
	if id, ok := idx.bySynonym[key]; ok {
		return idx.concepts[id], models.MatchExactSynonym
	}
	return nil, models.MatchUnresolved
}

// FuzzyLookup returns concepts whose label or any synonym scores at least
// threshold against text, ranked by score descending and concept identifier
// ascending on ties. Returns an empty slice when no candidate qualifies.
func (idx *Index) FuzzyLookup(text string, threshold float64) []Candidate {
	key := normalizeTerm(text)
	if key == "" {
		return nil
	}

	var candidates []Candidate
	for _, id := range idx.ordered {
		concept := idx.concepts[id]

		best := Similarity(key, normalizeTerm(concept.Label))
		for _, syn := range concept.Synonyms {
			if s := Similarity(key, normalizeTerm(syn)); s > best {
				best = s
			}
		}

		if best >= threshold {
			candidates = append(candidates, Candidate{Concept: concept, Score: best})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Concept.ID < candidates[j].Concept.ID
	})

	return candidates
}

// Similarity is normalized Levenshtein similarity in [0,1]: identical strings
// score 1.0, completely different strings approach 0
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := len([]rune(a))
	if lb := len([]rune(b)); lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}

// normalizeTerm lowercases and collapses surrounding whitespace so lookup is
// case-insensitive and insensitive to padding
func normalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
