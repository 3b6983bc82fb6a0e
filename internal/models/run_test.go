package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trellishq/trellis/internal/models"
)

func TestRunStatus_Transitions(t *testing.T) {
	tests := []struct {
		from    models.RunStatus
		to      models.RunStatus
		allowed bool
	}{
		{models.RunStatusPending, models.RunStatusInProgress, true},
		{models.RunStatusPending, models.RunStatusCompleted, false},
		{models.RunStatusInProgress, models.RunStatusCompleted, true},
		{models.RunStatusInProgress, models.RunStatusFailed, true},
		{models.RunStatusInProgress, models.RunStatusPending, false},
		{models.RunStatusFailed, models.RunStatusInProgress, true},
		{models.RunStatusFailed, models.RunStatusCompleted, false},
		{models.RunStatusCompleted, models.RunStatusInProgress, false},
		{models.RunStatusCompleted, models.RunStatusFailed, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestIsValidRunStatus(t *testing.T) {
	assert.True(t, models.IsValidRunStatus(models.RunStatusPending))
	assert.True(t, models.IsValidRunStatus(models.RunStatusFailed))
	assert.False(t, models.IsValidRunStatus("running"))
	assert.False(t, models.IsValidRunStatus(""))
}

func TestUpdateRunStatus_IsPure(t *testing.T) {
	original := models.PipelineRun{
		RunID:  "run-1",
		Status: models.RunStatusPending,
	}

	updated := models.UpdateRunStatus(original, models.RunStatusInProgress)

	assert.Equal(t, models.RunStatusPending, original.Status)
	assert.Equal(t, models.RunStatusInProgress, updated.Status)
	assert.False(t, updated.UpdatedAt.IsZero())
}

func TestAddError_MarksFailed(t *testing.T) {
	run := models.PipelineRun{RunID: "run-1", Status: models.RunStatusInProgress}

	failed := models.AddError(run, "repository unreachable")

	assert.Equal(t, models.RunStatusFailed, failed.Status)
	assert.Equal(t, "repository unreachable", failed.ErrorMessage)
	assert.Equal(t, models.RunStatusInProgress, run.Status)
}

func TestPipelineRun_Validate(t *testing.T) {
	run := models.PipelineRun{
		RunID:  "run-1",
		Source: "/data/patients.csv",
		Status: models.RunStatusPending,
	}
	require.NoError(t, run.Validate())

	missingID := run
	missingID.RunID = ""
	assert.Error(t, missingID.Validate())

	missingSource := run
	missingSource.Source = ""
	assert.Error(t, missingSource.Validate())

	badStatus := run
	badStatus.Status = "bogus"
	assert.Error(t, badStatus.Validate())
}

func TestRunConfig_Validate(t *testing.T) {
	config := models.DefaultConfig()
	require.NoError(t, config.Validate())

	badThreshold := config
	badThreshold.Resolver.SimilarityThreshold = 1.5
	assert.Error(t, badThreshold.Validate())

	badBatch := config
	badBatch.Pipeline.BatchSize = 0
	assert.Error(t, badBatch.Validate())

	badRetry := config
	badRetry.Retry.MaxBackoffMs = 10
	assert.Error(t, badRetry.Validate())
}

func TestRunConfig_ValidateOntology(t *testing.T) {
	config := models.DefaultConfig()
	assert.Error(t, config.ValidateOntology(), "no sources configured")

	config.Ontology.Sources = []string{"/data/hp.obo"}
	assert.NoError(t, config.ValidateOntology())
}

func TestRunConfig_ValidateSubmission(t *testing.T) {
	config := models.DefaultConfig()
	assert.Error(t, config.ValidateSubmission())

	config.Repository.URL = "https://fhir.example.org/fhir"
	config.Auth.TokenURL = "https://idp.example.org/token"
	config.Auth.ClientID = "trellis"
	config.Auth.ClientSecret = "secret"
	assert.NoError(t, config.ValidateSubmission())
}

func TestSubmissionStatus_IsTerminal(t *testing.T) {
	assert.True(t, models.SubmissionAccepted.IsTerminal())
	assert.True(t, models.SubmissionRejected.IsTerminal())
	assert.True(t, models.SubmissionAbandoned.IsTerminal())
	assert.False(t, models.SubmissionPendingRetry.IsTerminal())
}
