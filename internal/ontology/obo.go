package ontology

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/trellishq/trellis/internal/lib"
	"github.com/trellishq/trellis/internal/models"
)

// ParseOBOFile reads an OBO-format ontology file and returns its term
// stanzas as concepts, in file order
func ParseOBOFile(path string) ([]models.OntologyConcept, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &lib.MalformedOntologyError{Source: path, Cause: err}
	}
	defer func() { _ = file.Close() }()

	concepts, err := ParseOBO(file)
	if err != nil {
		if oboErr, ok := err.(*lib.MalformedOntologyError); ok {
			oboErr.Source = path
			return nil, oboErr
		}
		return nil, &lib.MalformedOntologyError{Source: path, Cause: err}
	}
	return concepts, nil
}

// ParseOBO parses OBO-format ontology text from a reader.
// Only [Term] stanzas are indexed; header tags and other stanza types
// ([Typedef], [Instance]) are skipped. Only EXACT synonyms are kept, matching
// the synonym scope used for clinical display names.
func ParseOBO(reader io.Reader) ([]models.OntologyConcept, error) {
	scanner := bufio.NewScanner(reader)

	// OBO definition lines can be long
	const maxCapacity = 1024 * 1024
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)

	var concepts []models.OntologyConcept
	var current *models.OntologyConcept
	inTerm := false
	lineNum := 0

	flush := func() error {
		if current == nil {
			return nil
		}
		if current.ID == "" {
			return &lib.MalformedOntologyError{Line: lineNum, Cause: fmt.Errorf("term stanza has no id tag")}
		}
		if current.Label == "" {
			return &lib.MalformedOntologyError{Line: lineNum, Cause: fmt.Errorf("term %s has no name tag", current.ID)}
		}
		concepts = append(concepts, *current)
		current = nil
		return nil
	}

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Strip trailing comments, but not inside quoted strings
		if idx := strings.Index(line, " !"); idx >= 0 && strings.Count(line[:idx], `"`)%2 == 0 {
			line = strings.TrimSpace(line[:idx])
		}

		if line == "" {
			continue
		}

		// Stanza boundary
		if strings.HasPrefix(line, "[") {
			if err := flush(); err != nil {
				return nil, err
			}
			if line == "[Term]" {
				inTerm = true
				current = &models.OntologyConcept{}
			} else {
				inTerm = false
			}
			continue
		}

		if !inTerm || current == nil {
			continue
		}

		tag, value, found := strings.Cut(line, ":")
		if !found {
			return nil, &lib.MalformedOntologyError{Line: lineNum, Cause: fmt.Errorf("tag line without colon: %q", line)}
		}
		value = strings.TrimSpace(value)

		switch tag {
		case "id":
			current.ID = value
		case "name":
			current.Label = value
		case "def":
			current.Definition = extractQuoted(value)
		case "synonym":
			text, scope := parseOBOSynonym(value)
			if scope == "EXACT" && text != "" {
				current.Synonyms = append(current.Synonyms, text)
			}
		case "is_a":
			// Parent ID is the first whitespace-delimited token
			if parent := strings.Fields(value); len(parent) > 0 {
				current.Parents = append(current.Parents, parent[0])
			}
		case "xref":
			// Xref ID is the first token; the optional quoted description is
			// not carried
			if xref := strings.Fields(value); len(xref) > 0 {
				current.Xrefs = append(current.Xrefs, xref[0])
			}
		case "subset":
			if value != "" {
				current.Subsets = append(current.Subsets, value)
			}
		case "is_obsolete":
			current.Obsolete = value == "true"
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, &lib.MalformedOntologyError{Line: lineNum, Cause: err}
	}

	if err := flush(); err != nil {
		return nil, err
	}

	return concepts, nil
}

// parseOBOSynonym splits a synonym tag value into its quoted text and scope,
// e.g. `"Seizures" EXACT [HPO:probinson]` -> ("Seizures", "EXACT")
func parseOBOSynonym(value string) (text string, scope string) {
	text = extractQuoted(value)
	if text == "" {
		return "", ""
	}

	closing := strings.Index(value[1:], `"`)
	rest := strings.TrimSpace(value[closing+2:])
	if fields := strings.Fields(rest); len(fields) > 0 {
		scope = fields[0]
	}
	return text, scope
}

// extractQuoted returns the content of the first double-quoted string in value
func extractQuoted(value string) string {
	start := strings.Index(value, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(value[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return value[start+1 : start+1+end]
}
