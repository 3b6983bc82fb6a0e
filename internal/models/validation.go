package models

import (
	"fmt"
	"net/url"
	"os"
)

// Validate checks structural validity of a PipelineRun
func (r *PipelineRun) Validate() error {
	if r.RunID == "" {
		return fmt.Errorf("invalid run: run_id is required")
	}
	if r.Source == "" {
		return fmt.Errorf("invalid run: source is required")
	}
	if !IsValidRunStatus(r.Status) {
		return fmt.Errorf("invalid run: unknown status %q", r.Status)
	}
	if r.Summary.RowsRead < 0 {
		return fmt.Errorf("invalid run: negative rows_read")
	}
	return nil
}

// Validate checks the full configuration for consistency. Ontology sources
// and repository credentials are checked separately so management commands
// (list, status, delete) work with a minimal config.
func (c *RunConfig) Validate() error {
	if c.Resolver.SimilarityThreshold < 0 || c.Resolver.SimilarityThreshold > 1 {
		return fmt.Errorf("resolver.similarity_threshold must be in [0,1], got %v", c.Resolver.SimilarityThreshold)
	}
	if len(c.Schema.TermFields) == 0 {
		return fmt.Errorf("schema.term_fields must name at least one field")
	}
	if c.Schema.SubjectField == "" {
		return fmt.Errorf("schema.subject_field is required")
	}
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("pipeline.batch_size must be > 0, got %d", c.Pipeline.BatchSize)
	}
	if c.Pipeline.ResolveWorkers <= 0 || c.Pipeline.SubmitWorkers <= 0 {
		return fmt.Errorf("pipeline worker counts must be > 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.InitialBackoffMs <= 0 || c.Retry.MaxBackoffMs < c.Retry.InitialBackoffMs {
		return fmt.Errorf("retry backoff bounds are inconsistent")
	}
	if c.Repository.URL != "" {
		if _, err := url.Parse(c.Repository.URL); err != nil {
			return fmt.Errorf("invalid repository.url: %w", err)
		}
	}
	return nil
}

// ValidateOntology checks the fields required to build an ontology index
func (c *RunConfig) ValidateOntology() error {
	if len(c.Ontology.Sources) == 0 {
		return fmt.Errorf("ontology.sources must name at least one source file")
	}
	if c.Ontology.SystemURL == "" {
		return fmt.Errorf("ontology.system_url is required")
	}
	return nil
}

// ValidateSubmission checks the fields required to submit to a remote
// repository. Separated from Validate so ontology-only commands (such as
// CodeSystem export) can run without repository credentials.
func (c *RunConfig) ValidateSubmission() error {
	if c.Repository.URL == "" {
		return fmt.Errorf("repository.url is required for submission")
	}
	if c.Auth.TokenURL == "" {
		return fmt.Errorf("auth.token_url is required for submission")
	}
	if c.Auth.ClientID == "" || c.Auth.ClientSecret == "" {
		return fmt.Errorf("auth.client_id and auth.client_secret are required for submission")
	}
	return nil
}

// ValidateRunsDir checks the runs directory exists and is writable
func ValidateRunsDir(runsDir string) error {
	info, err := os.Stat(runsDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("runs directory %s is not a directory", runsDir)
	}
	return nil
}
