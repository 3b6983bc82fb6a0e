package ontology_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trellishq/trellis/internal/lib"
	"github.com/trellishq/trellis/internal/ontology"
)

const sampleOBO = `format-version: 1.2
data-version: hp/releases/2024-01-01
ontology: hp

[Term]
id: HP:0000001
name: All
comment: Root of all terms in the Human Phenotype Ontology.

[Term]
id: HP:0001250
name: Seizure
def: "A seizure is an intermittent abnormality of nervous system physiology." [HPO:probinson]
synonym: "Epileptic seizure" EXACT []
synonym: "Seizures" EXACT [HPO:probinson]
synonym: "Fits" RELATED []
xref: SNOMEDCT_US:91175000
xref: UMLS:C0036572
subset: hposlim_core
is_a: HP:0012638 ! Abnormal nervous system physiology

[Term]
id: HP:0002197
name: Generalized-onset seizure
synonym: "Generalised seizures" EXACT []
is_a: HP:0001250
is_obsolete: false

[Term]
id: HP:0200134
name: Epileptic encephalopathy
is_obsolete: true

[Typedef]
id: part_of
name: part of
`

func TestParseOBO_Concepts(t *testing.T) {
	concepts, err := ontology.ParseOBO(strings.NewReader(sampleOBO))
	require.NoError(t, err)
	require.Len(t, concepts, 4, "Typedef stanzas must be skipped")

	seizure := concepts[1]
	assert.Equal(t, "HP:0001250", seizure.ID)
	assert.Equal(t, "Seizure", seizure.Label)
	assert.Contains(t, seizure.Definition, "intermittent abnormality")
	assert.Equal(t, []string{"Epileptic seizure", "Seizures"}, seizure.Synonyms,
		"only EXACT synonyms are kept")
	assert.Equal(t, []string{"HP:0012638"}, seizure.Parents,
		"trailing stanza comment must be stripped")
	assert.False(t, seizure.Obsolete)
}

func TestParseOBO_XrefsAndSubsets(t *testing.T) {
	concepts, err := ontology.ParseOBO(strings.NewReader(sampleOBO))
	require.NoError(t, err)

	seizure := concepts[1]
	assert.Equal(t, []string{"SNOMEDCT_US:91175000", "UMLS:C0036572"}, seizure.Xrefs)
	assert.Equal(t, []string{"hposlim_core"}, seizure.Subsets)

	root := concepts[0]
	assert.Empty(t, root.Xrefs)
	assert.Empty(t, root.Subsets)
}

func TestParseOBO_Obsolete(t *testing.T) {
	concepts, err := ontology.ParseOBO(strings.NewReader(sampleOBO))
	require.NoError(t, err)

	obsolete := concepts[3]
	assert.Equal(t, "HP:0200134", obsolete.ID)
	assert.True(t, obsolete.Obsolete)
}

func TestParseOBO_CommentInsideQuotesIsKept(t *testing.T) {
	obo := `[Term]
id: HP:0000002
name: Test term
def: "Definition with ! bang inside" []
`
	concepts, err := ontology.ParseOBO(strings.NewReader(obo))
	require.NoError(t, err)
	require.Len(t, concepts, 1)
	assert.Equal(t, "Definition with ! bang inside", concepts[0].Definition)
}

func TestParseOBO_MissingID(t *testing.T) {
	obo := `[Term]
name: Orphan term
`
	_, err := ontology.ParseOBO(strings.NewReader(obo))
	require.Error(t, err)

	var malformed *lib.MalformedOntologyError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Error(), "no id tag")
}

func TestParseOBO_MissingName(t *testing.T) {
	obo := `[Term]
id: HP:0000003
`
	_, err := ontology.ParseOBO(strings.NewReader(obo))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HP:0000003")
}

func TestParseOBO_Empty(t *testing.T) {
	concepts, err := ontology.ParseOBO(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, concepts)
}

func TestParseOBOFile_MissingFile(t *testing.T) {
	_, err := ontology.ParseOBOFile("/nonexistent/hp.obo")
	require.Error(t, err)

	var malformed *lib.MalformedOntologyError
	assert.ErrorAs(t, err, &malformed)
}
