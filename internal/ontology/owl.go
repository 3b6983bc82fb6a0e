package ontology

import (
	"encoding/xml"
	"io"
	"os"
	"strings"

	"github.com/trellishq/trellis/internal/lib"
	"github.com/trellishq/trellis/internal/models"
)

// owlClass mirrors the subset of an OWL/RDF-XML class description we index.
// Element names match by local name, so the oboInOwl/rdfs/obo namespace
// prefixes used by OBO Library exports all decode into the same fields.
type owlClass struct {
	About      string   `xml:"about,attr"`
	Labels     []string `xml:"label"`
	Synonyms   []string `xml:"hasExactSynonym"`
	Definition string   `xml:"IAO_0000115"`
	Deprecated string   `xml:"deprecated"`
	Xrefs      []string `xml:"hasDbXref"`
	SubClassOf []struct {
		Resource string `xml:"resource,attr"`
	} `xml:"subClassOf"`
	InSubset []struct {
		Resource string `xml:"resource,attr"`
	} `xml:"inSubset"`
}

// ParseOWLFile reads an OWL/RDF-XML ontology file and returns its class
// descriptions as concepts, in document order
func ParseOWLFile(path string) ([]models.OntologyConcept, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &lib.MalformedOntologyError{Source: path, Cause: err}
	}
	defer func() { _ = file.Close() }()

	concepts, err := ParseOWL(file)
	if err != nil {
		return nil, &lib.MalformedOntologyError{Source: path, Cause: err}
	}
	return concepts, nil
}

// ParseOWL streams owl:Class elements from RDF/XML without loading the whole
// document. Classes without a label (axiom annotations, restrictions) are
// skipped; blank-node classes (no rdf:about) are skipped too.
func ParseOWL(reader io.Reader) ([]models.OntologyConcept, error) {
	dec := xml.NewDecoder(reader)

	var concepts []models.OntologyConcept

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Class" {
			continue
		}

		var class owlClass
		if err := dec.DecodeElement(&class, &start); err != nil {
			return nil, err
		}

		if class.About == "" || len(class.Labels) == 0 {
			continue
		}

		concept := models.OntologyConcept{
			ID:         curieFromIRI(class.About),
			Label:      class.Labels[0],
			Definition: class.Definition,
			Obsolete:   strings.EqualFold(class.Deprecated, "true"),
		}
		if concept.ID == "" {
			continue
		}

		for _, syn := range class.Synonyms {
			if syn != "" {
				concept.Synonyms = append(concept.Synonyms, syn)
			}
		}

		for _, sub := range class.SubClassOf {
			// Anonymous superclasses (restrictions) have no rdf:resource
			if parent := curieFromIRI(sub.Resource); parent != "" {
				concept.Parents = append(concept.Parents, parent)
			}
		}

		for _, xref := range class.Xrefs {
			if xref != "" {
				concept.Xrefs = append(concept.Xrefs, xref)
			}
		}

		for _, subset := range class.InSubset {
			// Subset IRIs name the slim in their fragment
			if name := fragmentFromIRI(subset.Resource); name != "" {
				concept.Subsets = append(concept.Subsets, name)
			}
		}

		concepts = append(concepts, concept)
	}

	return concepts, nil
}

// fragmentFromIRI returns the final path or fragment segment of an IRI,
// keeping underscores intact
func fragmentFromIRI(iri string) string {
	if idx := strings.LastIndexAny(iri, "/#"); idx >= 0 {
		return iri[idx+1:]
	}
	return iri
}

// curieFromIRI compacts an OBO PURL into a CURIE:
// http://purl.obolibrary.org/obo/HP_0000118 -> HP:0000118.
// Non-OBO IRIs keep their final path fragment unchanged.
func curieFromIRI(iri string) string {
	if iri == "" {
		return ""
	}

	frag := iri
	if idx := strings.LastIndexAny(iri, "/#"); idx >= 0 {
		frag = iri[idx+1:]
	}

	if prefix, local, found := strings.Cut(frag, "_"); found && prefix != "" && local != "" {
		return prefix + ":" + local
	}
	return frag
}
