package ontology

import (
	"encoding/json"
	"io"
	"time"

	"github.com/trellishq/trellis/internal/models"
)

// FHIR CodeSystem export of a built index. Mirrors the terminology layout
// used by HL7 terminology servers: exact synonyms become designations and
// hierarchy links become parent/child properties.

const synonymUseSystem = "http://snomed.info/sct"
const synonymUseCode = "900000000000013009"

// CodeSystem is the subset of the FHIR R4 CodeSystem resource this pipeline
// produces
type CodeSystem struct {
	ResourceType string              `json:"resourceType"`
	URL          string              `json:"url"`
	Version      string              `json:"version,omitempty"`
	Name         string              `json:"name"`
	Status       string              `json:"status"`
	Date         string              `json:"date"`
	Content      string              `json:"content"`
	Count        int                 `json:"count"`
	Property     []PropertyDef       `json:"property"`
	Concept      []CodeSystemConcept `json:"concept"`
}

// PropertyDef declares a property used by the concepts in the CodeSystem
type PropertyDef struct {
	Code string `json:"code"`
	Type string `json:"type"`
}

// CodeSystemConcept is one code with its display, designations and properties
type CodeSystemConcept struct {
	Code        string        `json:"code"`
	Display     string        `json:"display"`
	Designation []Designation `json:"designation,omitempty"`
	Property    []Property    `json:"property,omitempty"`
}

// Designation carries an exact synonym for a concept
type Designation struct {
	Language string     `json:"language"`
	Use      *UseCoding `json:"use,omitempty"`
	Value    string     `json:"value"`
}

// UseCoding identifies the designation kind
type UseCoding struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display"`
}

// Property is one concept property value. Exactly one of the Value fields is
// set, matching the declared property type.
type Property struct {
	Code        string `json:"code"`
	ValueCode   string `json:"valueCode,omitempty"`
	ValueString string `json:"valueString,omitempty"`
	ValueBool   *bool  `json:"valueBoolean,omitempty"`
}

// ExportCodeSystem converts a built index into a CodeSystem resource. The
// onConcept callback, when non-nil, is invoked once per exported concept and
// drives progress reporting.
func ExportCodeSystem(idx *Index, systemURL, version string, onConcept func()) *CodeSystem {
	cs := &CodeSystem{
		ResourceType: "CodeSystem",
		URL:          systemURL,
		Version:      version,
		Name:         "TrellisOntologyExport",
		Status:       "active",
		Date:         time.Now().UTC().Format("2006-01-02"),
		Content:      "complete",
		Count:        idx.Len(),
		Property: []PropertyDef{
			{Code: "inactive", Type: "boolean"},
			{Code: "definition", Type: "string"},
			{Code: "xref", Type: "string"},
			{Code: "parent", Type: "code"},
			{Code: "child", Type: "code"},
			{Code: "subset", Type: "string"},
		},
	}

	// Children are the inverse of the parent links carried by each concept.
	children := make(map[string][]string)
	idx.Concepts(func(c *models.OntologyConcept) {
		for _, parent := range c.Parents {
			children[parent] = append(children[parent], c.ID)
		}
	})

	idx.Concepts(func(c *models.OntologyConcept) {
		concept := CodeSystemConcept{
			Code:    c.ID,
			Display: c.Label,
		}

		for _, syn := range c.Synonyms {
			concept.Designation = append(concept.Designation, Designation{
				Language: "en",
				Use: &UseCoding{
					System:  synonymUseSystem,
					Code:    synonymUseCode,
					Display: "Synonym",
				},
				Value: syn,
			})
		}

		// Every concept carries its activity state, active ones included.
		inactive := c.Obsolete
		concept.Property = append(concept.Property, Property{Code: "inactive", ValueBool: &inactive})

		if c.Definition != "" {
			concept.Property = append(concept.Property, Property{Code: "definition", ValueString: c.Definition})
		}
		for _, xref := range c.Xrefs {
			concept.Property = append(concept.Property, Property{Code: "xref", ValueString: xref})
		}
		for _, parent := range c.Parents {
			concept.Property = append(concept.Property, Property{Code: "parent", ValueCode: parent})
		}
		for _, child := range children[c.ID] {
			concept.Property = append(concept.Property, Property{Code: "child", ValueCode: child})
		}
		for _, subset := range c.Subsets {
			concept.Property = append(concept.Property, Property{Code: "subset", ValueString: subset})
		}

		cs.Concept = append(cs.Concept, concept)
		if onConcept != nil {
			onConcept()
		}
	})

	return cs
}

// WriteJSON serializes the CodeSystem with indentation for readability
func (cs *CodeSystem) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cs)
}
