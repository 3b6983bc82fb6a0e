package models

// RunConfig is the top-level configuration for the trellis pipeline
type RunConfig struct {
	Ontology   OntologyConfig   `yaml:"ontology" json:"ontology"`
	Schema     SchemaConfig     `yaml:"schema" json:"schema"`
	Resolver   ResolverConfig   `yaml:"resolver" json:"resolver"`
	Repository RepositoryConfig `yaml:"repository" json:"repository"`
	Auth       AuthConfig       `yaml:"auth" json:"auth"`
	Pipeline   PipelineConfig   `yaml:"pipeline" json:"pipeline"`
	Retry      RetryConfig      `yaml:"retry" json:"retry"`
	RunsDir    string           `yaml:"runs_dir" json:"runs_dir"`
}

// OntologyConfig names the ontology sources loaded at startup
type OntologyConfig struct {
	Sources   []string `yaml:"sources" json:"sources"`       // .obo and .owl files, loaded in order
	SystemURL string   `yaml:"system_url" json:"system_url"` // Coding.system for resolved concepts
}

// SchemaConfig is the fixed expected shape of the tabular source
type SchemaConfig struct {
	RequiredFields []string    `yaml:"required_fields" json:"required_fields"` // A row missing any of these is skipped
	SubjectField   string      `yaml:"subject_field" json:"subject_field"`     // Column holding the patient/subject identifier
	TermFields     []TermField `yaml:"term_fields" json:"term_fields"`         // Columns resolved against the ontology
}

// TermField is one column whose values are resolved to ontology concepts.
// Mandatory fields drop the resource when unresolved; optional fields fall
// back to free text.
type TermField struct {
	Name      string `yaml:"name" json:"name"`
	Mandatory bool   `yaml:"mandatory" json:"mandatory"`
}

// MandatoryFields returns the set of term fields that must resolve
func (s *SchemaConfig) MandatoryFields() map[string]bool {
	mandatory := make(map[string]bool)
	for _, f := range s.TermFields {
		if f.Mandatory {
			mandatory[f.Name] = true
		}
	}
	return mandatory
}

// ResolverConfig controls term resolution behavior
type ResolverConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"` // Minimum fuzzy score in [0,1]
}

// RepositoryConfig contains connection details for the remote FHIR repository
type RepositoryConfig struct {
	URL string `yaml:"url" json:"url"`
}

// AuthConfig contains identity-provider settings for the submission client
type AuthConfig struct {
	TokenURL         string `yaml:"token_url" json:"token_url"`
	ClientID         string `yaml:"client_id" json:"client_id"`
	ClientSecret     string `yaml:"client_secret" json:"client_secret"`
	ExpirySkewSecs   int    `yaml:"expiry_skew_seconds" json:"expiry_skew_seconds"` // Refresh this long before expiry
	RetryOnTransient bool   `yaml:"retry_on_transient" json:"retry_on_transient"`   // Retry token acquisition on network/5xx errors
}

// PipelineConfig sizes the bounded-buffer pipeline
type PipelineConfig struct {
	BatchSize      int `yaml:"batch_size" json:"batch_size"`           // Rows per checkpoint batch, also channel capacity
	ResolveWorkers int `yaml:"resolve_workers" json:"resolve_workers"` // Resolver/builder worker count
	SubmitWorkers  int `yaml:"submit_workers" json:"submit_workers"`   // Submission worker count
}

// RetryConfig controls retry behavior for transient errors
type RetryConfig struct {
	MaxAttempts      int   `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoffMs int64 `yaml:"initial_backoff_ms" json:"initial_backoff_ms"`
	MaxBackoffMs     int64 `yaml:"max_backoff_ms" json:"max_backoff_ms"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() RunConfig {
	return RunConfig{
		Ontology: OntologyConfig{
			Sources:   nil,
			SystemURL: "http://purl.obolibrary.org/obo/hp.owl",
		},
		Schema: SchemaConfig{
			RequiredFields: []string{"patient_id"},
			SubjectField:   "patient_id",
			TermFields: []TermField{
				{Name: "phenotype", Mandatory: true},
			},
		},
		Resolver: ResolverConfig{
			SimilarityThreshold: 0.85,
		},
		Auth: AuthConfig{
			ExpirySkewSecs:   30,
			RetryOnTransient: true,
		},
		Pipeline: PipelineConfig{
			BatchSize:      100,
			ResolveWorkers: 4,
			SubmitWorkers:  4,
		},
		Retry: RetryConfig{
			MaxAttempts:      5,
			InitialBackoffMs: 1000,
			MaxBackoffMs:     30000,
		},
		RunsDir: "./runs",
	}
}
