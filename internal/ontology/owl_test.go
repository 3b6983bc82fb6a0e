package ontology_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trellishq/trellis/internal/ontology"
)

const sampleOWL = `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
         xmlns:rdfs="http://www.w3.org/2000/01/rdf-schema#"
         xmlns:owl="http://www.w3.org/2002/07/owl#"
         xmlns:obo="http://purl.obolibrary.org/obo/"
         xmlns:oboInOwl="http://www.geneontology.org/formats/oboInOwl#">
  <owl:Class rdf:about="http://purl.obolibrary.org/obo/HP_0001250">
    <rdfs:label>Seizure</rdfs:label>
    <oboInOwl:hasExactSynonym>Epileptic seizure</oboInOwl:hasExactSynonym>
    <oboInOwl:hasExactSynonym>Seizures</oboInOwl:hasExactSynonym>
    <obo:IAO_0000115>An intermittent abnormality of nervous system physiology.</obo:IAO_0000115>
    <oboInOwl:hasDbXref>SNOMEDCT_US:91175000</oboInOwl:hasDbXref>
    <oboInOwl:inSubset rdf:resource="http://purl.obolibrary.org/obo/hp#hposlim_core"/>
    <rdfs:subClassOf rdf:resource="http://purl.obolibrary.org/obo/HP_0012638"/>
  </owl:Class>
  <owl:Class rdf:about="http://purl.obolibrary.org/obo/HP_0200134">
    <rdfs:label>Epileptic encephalopathy</rdfs:label>
    <owl:deprecated>true</owl:deprecated>
  </owl:Class>
  <owl:Class rdf:about="http://purl.obolibrary.org/obo/HP_0000118">
    <rdfs:label>Phenotypic abnormality</rdfs:label>
    <rdfs:subClassOf>
      <owl:Restriction/>
    </rdfs:subClassOf>
  </owl:Class>
  <owl:Class rdf:about="http://purl.obolibrary.org/obo/UNLABELED_0000001"/>
</rdf:RDF>
`

func TestParseOWL_Concepts(t *testing.T) {
	concepts, err := ontology.ParseOWL(strings.NewReader(sampleOWL))
	require.NoError(t, err)
	require.Len(t, concepts, 3, "label-less classes must be skipped")

	seizure := concepts[0]
	assert.Equal(t, "HP:0001250", seizure.ID, "PURL must compact to a CURIE")
	assert.Equal(t, "Seizure", seizure.Label)
	assert.Equal(t, []string{"Epileptic seizure", "Seizures"}, seizure.Synonyms)
	assert.Contains(t, seizure.Definition, "intermittent abnormality")
	assert.Equal(t, []string{"HP:0012638"}, seizure.Parents)
}

func TestParseOWL_XrefsAndSubsets(t *testing.T) {
	concepts, err := ontology.ParseOWL(strings.NewReader(sampleOWL))
	require.NoError(t, err)

	seizure := concepts[0]
	assert.Equal(t, []string{"SNOMEDCT_US:91175000"}, seizure.Xrefs)
	assert.Equal(t, []string{"hposlim_core"}, seizure.Subsets,
		"subset IRI must reduce to the slim name")
}

func TestParseOWL_Deprecated(t *testing.T) {
	concepts, err := ontology.ParseOWL(strings.NewReader(sampleOWL))
	require.NoError(t, err)

	assert.Equal(t, "HP:0200134", concepts[1].ID)
	assert.True(t, concepts[1].Obsolete)
}

func TestParseOWL_AnonymousSuperclassesSkipped(t *testing.T) {
	concepts, err := ontology.ParseOWL(strings.NewReader(sampleOWL))
	require.NoError(t, err)

	abnormality := concepts[2]
	assert.Equal(t, "HP:0000118", abnormality.ID)
	assert.Empty(t, abnormality.Parents, "restriction superclasses carry no resource IRI")
}

func TestParseOWL_InvalidXML(t *testing.T) {
	_, err := ontology.ParseOWL(strings.NewReader("<rdf:RDF><owl:Class"))
	assert.Error(t, err)
}
