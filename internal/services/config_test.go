package services_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trellishq/trellis/internal/models"
	"github.com/trellishq/trellis/internal/services"
)

// writeConfig drops a trellis.yaml into a temp dir and returns its path.
// Viper state is global, so each test resets it first.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	viper.Reset()

	dir := t.TempDir()
	path := filepath.Join(dir, "trellis.yaml")

	// Keep the runs dir inside the temp dir so loading never touches the
	// working directory.
	content += "\nruns_dir: " + filepath.Join(dir, "runs") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
ontology:
  sources:
    - /data/hp.obo
`)

	config, err := services.LoadConfig(path)
	require.NoError(t, err)

	defaults := models.DefaultConfig()
	assert.Equal(t, defaults.Resolver.SimilarityThreshold, config.Resolver.SimilarityThreshold)
	assert.Equal(t, defaults.Auth.ExpirySkewSecs, config.Auth.ExpirySkewSecs)
	assert.Equal(t, defaults.Pipeline.BatchSize, config.Pipeline.BatchSize)
	assert.Equal(t, defaults.Pipeline.ResolveWorkers, config.Pipeline.ResolveWorkers)
	assert.Equal(t, defaults.Retry.MaxAttempts, config.Retry.MaxAttempts)
	assert.Equal(t, defaults.Schema.SubjectField, config.Schema.SubjectField)
	assert.Equal(t, defaults.Schema.TermFields, config.Schema.TermFields)
	assert.Equal(t, []string{"/data/hp.obo"}, config.Ontology.Sources)
}

func TestLoadConfig_AuthRetryDefaultsOn(t *testing.T) {
	path := writeConfig(t, `
auth:
  token_url: https://idp.example.org/token
  client_id: trellis
  client_secret: secret
`)

	config, err := services.LoadConfig(path)
	require.NoError(t, err)

	// An omitted auth.retry_on_transient must not silently disable token
	// retry: transient IdP failures would then become fatal.
	assert.Equal(t, models.DefaultConfig().Auth.RetryOnTransient, config.Auth.RetryOnTransient)
	assert.True(t, config.Auth.RetryOnTransient)
}

func TestLoadConfig_ExplicitFalseRetryKept(t *testing.T) {
	path := writeConfig(t, `
auth:
  retry_on_transient: false
`)

	config, err := services.LoadConfig(path)
	require.NoError(t, err)
	assert.False(t, config.Auth.RetryOnTransient)
}

func TestLoadConfig_ExplicitZeroThresholdKept(t *testing.T) {
	path := writeConfig(t, `
resolver:
  similarity_threshold: 0.0
`)

	config, err := services.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.0, config.Resolver.SimilarityThreshold)
}

func TestLoadConfig_FileValuesOverrideDefaults(t *testing.T) {
	path := writeConfig(t, `
resolver:
  similarity_threshold: 0.6
pipeline:
  batch_size: 7
  resolve_workers: 2
schema:
  subject_field: mrn
  term_fields:
    - name: diagnosis
      mandatory: true
    - name: finding
      mandatory: false
`)

	config, err := services.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 0.6, config.Resolver.SimilarityThreshold)
	assert.Equal(t, 7, config.Pipeline.BatchSize)
	assert.Equal(t, 2, config.Pipeline.ResolveWorkers)
	assert.Equal(t, "mrn", config.Schema.SubjectField)
	require.Len(t, config.Schema.TermFields, 2)
	assert.Equal(t, models.TermField{Name: "diagnosis", Mandatory: true}, config.Schema.TermFields[0])
	assert.Equal(t, models.TermField{Name: "finding", Mandatory: false}, config.Schema.TermFields[1])
}

func TestLoadConfig_InvalidThresholdRejected(t *testing.T) {
	path := writeConfig(t, `
resolver:
  similarity_threshold: 1.5
`)

	_, err := services.LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "similarity_threshold")
}
