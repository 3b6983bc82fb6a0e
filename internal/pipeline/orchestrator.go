package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trellishq/trellis/internal/build"
	"github.com/trellishq/trellis/internal/ingest"
	"github.com/trellishq/trellis/internal/lib"
	"github.com/trellishq/trellis/internal/models"
	"github.com/trellishq/trellis/internal/resolve"
	"github.com/trellishq/trellis/internal/services"
)

// Submitter pushes one resource to the repository and drives it to a
// terminal status
type Submitter interface {
	Submit(ctx context.Context, resource *models.CanonicalResource) (models.SubmissionOutcome, error)
}

// ProgressSink receives terminal-row notifications for UI feedback
type ProgressSink func(row int64, summary models.RunSummary)

// Orchestrator wires ingestion, resolution, building and submission into a
// bounded concurrent pipeline with durable checkpoints.
//
// Rows flow through two worker pools connected by bounded channels, so
// memory stays flat regardless of source size. A single tracker goroutine
// owns checkpoint advancement: a checkpoint only moves to row N once every
// row up to and including N has reached a terminal outcome, which makes
// resume safe even when later rows finished first.
type Orchestrator struct {
	config    models.RunConfig
	resolver  *resolve.Resolver
	builder   *build.Builder
	submitter Submitter
	logger    *lib.Logger
	progress  ProgressSink
}

// NewOrchestrator assembles a pipeline for one run
func NewOrchestrator(config models.RunConfig, resolver *resolve.Resolver, builder *build.Builder, submitter Submitter, logger *lib.Logger) *Orchestrator {
	return &Orchestrator{
		config:    config,
		resolver:  resolver,
		builder:   builder,
		submitter: submitter,
		logger:    logger,
	}
}

// SetProgress installs a progress callback invoked as rows reach terminal
// outcomes. Called from the tracker goroutine only.
func (o *Orchestrator) SetProgress(sink ProgressSink) {
	o.progress = sink
}

// outcomeKind classifies how a row reached its terminal state
type outcomeKind int

const (
	outcomeSkipped outcomeKind = iota // Failed row validation during ingestion
	outcomeSchemaViolation            // Mandatory term field unresolved
	outcomeSubmitted                  // Went through the submission client
)

// rowOutcome is the terminal event for one source row
type rowOutcome struct {
	row    int64
	kind   outcomeKind
	status models.SubmissionStatus // Set when kind is outcomeSubmitted
}

// submitItem pairs a built resource with its source row
type submitItem struct {
	row      int64
	resource *models.CanonicalResource
}

// Execute processes the source from the given checkpoint to completion. It
// returns the final summary; on error the checkpoint on disk still reflects
// all contiguously completed work, so the run can be resumed.
func (o *Orchestrator) Execute(ctx context.Context, run *models.PipelineRun, checkpoint models.PipelineCheckpoint) (models.RunSummary, error) {
	reader, err := ingest.Open(run.Source, o.config.Schema)
	if err != nil {
		return checkpoint.Summary, err
	}
	defer func() { _ = reader.Close() }()

	startRow := checkpoint.LastRow
	if startRow > 0 {
		o.logger.Info("Resuming from checkpoint", "run_id", run.RunID, "last_row", startRow)
		if err := reader.Seek(startRow); err != nil {
			if err == io.EOF {
				// Checkpoint already covers the whole source.
				return checkpoint.Summary, nil
			}
			return checkpoint.Summary, err
		}
	}

	batchSize := o.config.Pipeline.BatchSize

	g, ctx := errgroup.WithContext(ctx)

	workCh := make(chan *models.RawRecord, batchSize)
	submitCh := make(chan submitItem, batchSize)
	resultCh := make(chan rowOutcome, batchSize)

	// All stages share one group so any error cancels every blocked send.
	// Channel closes are sequenced with wait groups: workCh closes when the
	// producer returns, submitCh when the resolve workers drain, resultCh
	// when every writer is done.
	producerDone := make(chan struct{})
	var resolveWG, submitWG sync.WaitGroup

	// Ingestion producer. Single goroutine so row numbers stay ordered.
	// Rows that fail validation still produce a terminal event, otherwise
	// the checkpoint could never pass them.
	g.Go(func() error {
		defer close(producerDone)
		defer close(workCh)
		for {
			record, err := reader.Next()
			if err != nil {
				if err == io.EOF {
					return nil
				}
				var rowErr *lib.RowValidationError
				if errors.As(err, &rowErr) {
					o.logger.Warn("Skipping invalid row", "run_id", run.RunID, "row", rowErr.Row, "error", rowErr.Error())
					if sendErr := send(ctx, resultCh, rowOutcome{row: rowErr.Row, kind: outcomeSkipped}); sendErr != nil {
						return sendErr
					}
					continue
				}
				return err
			}
			if err := send(ctx, workCh, record); err != nil {
				return err
			}
		}
	})

	// Resolve and build workers.
	resolveWG.Add(o.config.Pipeline.ResolveWorkers)
	for i := 0; i < o.config.Pipeline.ResolveWorkers; i++ {
		g.Go(func() error {
			defer resolveWG.Done()
			for record := range workCh {
				resolved := o.resolver.ResolveRecord(record, o.config.Schema)

				resource, err := o.builder.Build(record, resolved)
				if err != nil {
					var violation *lib.SchemaViolationError
					if errors.As(err, &violation) {
						o.logger.Warn("Dropping resource", "run_id", run.RunID, "row", violation.Row, "field", violation.Field)
						if sendErr := send(ctx, resultCh, rowOutcome{row: record.Row, kind: outcomeSchemaViolation}); sendErr != nil {
							return sendErr
						}
						continue
					}
					return err
				}

				if err := send(ctx, submitCh, submitItem{row: record.Row, resource: resource}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	go func() {
		resolveWG.Wait()
		close(submitCh)
	}()

	// Submission workers. A fatal authentication error fails the whole
	// group; everything else is absorbed into the outcome.
	submitWG.Add(o.config.Pipeline.SubmitWorkers)
	for i := 0; i < o.config.Pipeline.SubmitWorkers; i++ {
		g.Go(func() error {
			defer submitWG.Done()
			for item := range submitCh {
				outcome, err := o.submitter.Submit(ctx, item.resource)
				if err != nil {
					return err
				}
				if sendErr := send(ctx, resultCh, rowOutcome{row: item.row, kind: outcomeSubmitted, status: outcome.Status}); sendErr != nil {
					return sendErr
				}
			}
			return nil
		})
	}
	go func() {
		<-producerDone
		resolveWG.Wait()
		submitWG.Wait()
		close(resultCh)
	}()

	// Checkpoint tracker. Sole owner of checkpoint state.
	var final models.RunSummary
	g.Go(func() error {
		summary, err := o.track(run, checkpoint, startRow, resultCh)
		final = summary
		return err
	})

	if err := g.Wait(); err != nil {
		return final, err
	}
	return final, nil
}

// track consumes terminal events, advances the checkpoint in source order
// and persists it at batch boundaries. Out-of-order completions are parked
// until every earlier row is terminal.
func (o *Orchestrator) track(run *models.PipelineRun, checkpoint models.PipelineCheckpoint, startRow int64, resultCh <-chan rowOutcome) (models.RunSummary, error) {
	pending := make(map[int64]rowOutcome)
	summary := checkpoint.Summary
	next := startRow + 1
	sinceCheckpoint := 0

	flush := func() error {
		advanced := models.AdvanceCheckpoint(checkpoint, next-1, summary)
		if advanced.LastRow == checkpoint.LastRow {
			return nil
		}
		if err := services.SaveCheckpoint(o.config.RunsDir, run.RunID, advanced); err != nil {
			return fmt.Errorf("failed to persist checkpoint: %w", err)
		}
		checkpoint = advanced
		sinceCheckpoint = 0
		o.logger.Debug("Checkpoint advanced", "run_id", run.RunID, "last_row", advanced.LastRow)
		return nil
	}

	for outcome := range resultCh {
		pending[outcome.row] = outcome

		for {
			current, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)

			summary.RowsRead++
			switch current.kind {
			case outcomeSkipped:
				summary.Skipped++
			case outcomeSchemaViolation:
				summary.SchemaViolations++
			case outcomeSubmitted:
				switch current.status {
				case models.SubmissionAccepted:
					summary.Accepted++
				case models.SubmissionRejected:
					summary.Rejected++
				default:
					summary.Abandoned++
				}
			}

			if o.progress != nil {
				o.progress(next, summary)
			}

			next++
			sinceCheckpoint++
			if sinceCheckpoint >= o.config.Pipeline.BatchSize {
				if err := flush(); err != nil {
					return summary, err
				}
			}
		}
	}

	// Final partial batch.
	if err := flush(); err != nil {
		return summary, err
	}

	if len(pending) > 0 {
		// Rows after a gap finished but the gap row never produced a
		// terminal event. Only reachable when an upstream stage failed, and
		// the group error reports that failure; the checkpoint stays at the
		// last contiguous row.
		o.logger.Warn("Discarding non-contiguous outcomes", "run_id", run.RunID, "count", len(pending))
	}

	return summary, nil
}

// send delivers v on ch unless the context is cancelled first
func send[T any](ctx context.Context, ch chan<- T, v T) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case ch <- v:
		return nil
	}
}

// ExecuteRun is the full lifecycle for one run: transition to in_progress,
// execute from the stored checkpoint, and record the terminal status. It is
// used by both start and resume.
func ExecuteRun(ctx context.Context, run *models.PipelineRun, orchestrator *Orchestrator, logger *lib.Logger) error {
	runsDir := run.Config.RunsDir

	started, err := StartRun(run)
	if err != nil {
		return err
	}
	if err := UpdateRun(runsDir, started); err != nil {
		return err
	}

	checkpoint, err := services.LoadCheckpoint(runsDir, run.RunID)
	if err != nil {
		return err
	}

	startTime := time.Now()
	lib.LogStageStart(logger, "pipeline", run.RunID)

	summary, execErr := orchestrator.Execute(ctx, started, checkpoint)
	if execErr != nil {
		failed := FailRun(started, execErr.Error())
		failed.Summary = summary
		if saveErr := UpdateRun(runsDir, failed); saveErr != nil {
			logger.Error("Failed to record run failure", "run_id", run.RunID, "error", saveErr)
		}
		return execErr
	}

	completed := CompleteRun(started, summary)
	if err := UpdateRun(runsDir, completed); err != nil {
		return err
	}

	lib.LogRunCompleted(logger, run.RunID, summary.Accepted, summary.Rejected, summary.Abandoned, summary.Skipped, time.Since(startTime))
	return nil
}
