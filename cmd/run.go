package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/trellishq/trellis/internal/build"
	"github.com/trellishq/trellis/internal/lib"
	"github.com/trellishq/trellis/internal/models"
	"github.com/trellishq/trellis/internal/ontology"
	"github.com/trellishq/trellis/internal/pipeline"
	"github.com/trellishq/trellis/internal/resolve"
	"github.com/trellishq/trellis/internal/services"
	"github.com/trellishq/trellis/internal/ui"
)

var (
	noProgress  bool
	forceDelete bool
)

// runCmd represents the run command group
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Manage pipeline runs",
	Long: `Manage clinical data pipeline runs.

Available subcommands:
  start   - Start a new pipeline run
  resume  - Resume an interrupted or failed run
  status  - Check run status
  list    - List all runs
  delete  - Delete a run and its state`,
}

// runStartCmd represents the run start command
var runStartCmd = &cobra.Command{
	Use:   "start <source.csv>",
	Short: "Start a new pipeline run",
	Long: `Start a new pipeline run over a CSV source file.

The run loads the configured ontology sources, streams the source row by
row, resolves term columns against the ontology, builds Condition resources
and submits them to the configured FHIR repository.

Progress is checkpointed in source order. If the run is interrupted, resume
it with 'trellis run resume <run-id>'.

Examples:
  # Start a run over a patient extract
  trellis run start /data/patients.csv

  # Start without progress indicators
  trellis run start /data/patients.csv --no-progress`,
	Args: cobra.ExactArgs(1),
	RunE: runRunStart,
}

// runResumeCmd represents the run resume command
var runResumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume an interrupted or failed run",
	Long: `Resume pipeline execution from the last durable checkpoint.

Processing restarts at the row after the checkpoint. Resources are upserted
under deterministic identifiers, so rows that were submitted but not yet
checkpointed are safely overwritten rather than duplicated.

Examples:
  # Resume after a crash or Ctrl-C
  trellis run resume abc-123-def

  # Check status first, then resume
  trellis run status abc-123-def
  trellis run resume abc-123-def`,
	Args: cobra.ExactArgs(1),
	RunE: runRunResume,
}

// runStatusCmd represents the run status command
var runStatusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Check run status",
	Long: `Display the current status of a pipeline run.

Shows:
  • Run ID, status and source file
  • Checkpointed progress (last durable row)
  • Accepted, rejected, abandoned and skipped counts
  • Error message if the run failed

Use 'watch' for continuous monitoring:
  watch -n 5 trellis run status <run-id>`,
	Args: cobra.ExactArgs(1),
	RunE: runRunStatus,
}

// runListCmd represents the run list command
var runListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all pipeline runs",
	Long: `List all pipeline runs in the runs directory.

Shows:
  - Run ID
  - Status
  - Source file
  - Accepted row count
  - Creation time

Example:
  trellis run list`,
	RunE: runRunList,
}

// runDeleteCmd represents the run delete command
var runDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a run and its state",
	Long: `Delete a run directory including its state and checkpoint.

This is destructive and cannot be undone. Submitted resources remain in the
repository; only local run state is removed.

Examples:
  trellis run delete abc-123-def
  trellis run delete abc-123-def --force`,
	Args: cobra.ExactArgs(1),
	RunE: runRunDelete,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.AddCommand(runStartCmd)
	runCmd.AddCommand(runResumeCmd)
	runCmd.AddCommand(runStatusCmd)
	runCmd.AddCommand(runListCmd)
	runCmd.AddCommand(runDeleteCmd)

	runStartCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable progress indicators")
	runResumeCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable progress indicators")
	runDeleteCmd.Flags().BoolVarP(&forceDelete, "force", "f", false, "Delete without confirmation")
}

func newLogger() *lib.Logger {
	logLevel := lib.LogLevelInfo
	if verbose {
		logLevel = lib.LogLevelDebug
	}
	return lib.NewLogger(logLevel)
}

// assemblePipeline builds the full processing chain for a run: ontology
// index, resolver, builder, authenticated submission client and orchestrator.
// The returned tracker accumulates rows/sec over this execution for the final
// summary.
func assemblePipeline(run *models.PipelineRun, logger *lib.Logger) (*pipeline.Orchestrator, *ui.ThroughputTracker, error) {
	config := run.Config

	if err := config.ValidateOntology(); err != nil {
		return nil, nil, err
	}
	if err := config.ValidateSubmission(); err != nil {
		return nil, nil, err
	}

	spinner := ui.NewSpinner("Building ontology index")
	spinner.Start()
	index, err := ontology.Build(config.Ontology.Sources, logger)
	spinner.Stop(err == nil)
	if err != nil {
		return nil, nil, err
	}

	resolver := resolve.New(index, config.Resolver.SimilarityThreshold)
	builder := build.New(run.RunID, config.Schema, config.Ontology.SystemURL)

	httpClient := services.NewHTTPClient(30*time.Second, config.Retry, logger)
	tokenSource := services.NewTokenSource(config.Auth, httpClient, logger)
	repo := services.NewRepositoryClient(config.Repository.URL, httpClient, tokenSource, config.Retry, logger)

	orchestrator := pipeline.NewOrchestrator(config, resolver, builder, repo, logger)

	tracker := ui.NewThroughputTracker()
	var bar *ui.ProgressBar
	if !noProgress {
		bar = ui.NewIndeterminateBar("Processing rows")
	}
	var processed int64
	orchestrator.SetProgress(func(row int64, summary models.RunSummary) {
		processed++
		tracker.Update(processed)
		if bar != nil {
			_ = bar.Add(1)
		}
	})

	return orchestrator, tracker, nil
}

// executeWithSignals runs the pipeline under a context cancelled by SIGINT
// or SIGTERM, so Ctrl-C leaves a consistent checkpoint behind
func executeWithSignals(run *models.PipelineRun, orchestrator *pipeline.Orchestrator, logger *lib.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := pipeline.ExecuteRun(ctx, run, orchestrator, logger)
	if err != nil {
		if ctx.Err() != nil {
			fmt.Printf("\nRun interrupted. Resume with:\n  trellis run resume %s\n", run.RunID)
		}
		return err
	}
	return nil
}

func runRunStart(cmd *cobra.Command, args []string) error {
	source := args[0]

	config, err := services.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger()

	logger.Info("Creating new pipeline run", "source", source)
	run, err := pipeline.CreateRun(source, *config)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	lib.LogRunCreated(logger, run.RunID, source)

	fmt.Printf("✓ Created pipeline run: %s\n", run.RunID)
	fmt.Printf("  Source: %s\n", source)
	fmt.Printf("\n")

	// Acquire run lock to prevent concurrent execution
	// Lock is automatically released when function returns (via defer)
	lock, err := services.AcquireRunLock(config.RunsDir, run.RunID, logger)
	if err != nil {
		return fmt.Errorf("cannot start pipeline: %w\n\nAnother process may be working on this run", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Error("Failed to release run lock", "error", err)
		}
	}()

	orchestrator, tracker, err := assemblePipeline(run, logger)
	if err != nil {
		failed := pipeline.FailRun(run, err.Error())
		if saveErr := pipeline.UpdateRun(config.RunsDir, failed); saveErr != nil {
			logger.Error("Failed to save run state", "error", saveErr)
		}
		return err
	}

	if err := executeWithSignals(run, orchestrator, logger); err != nil {
		return err
	}

	final, err := pipeline.LoadRun(config.RunsDir, run.RunID)
	if err != nil {
		return err
	}

	fmt.Printf("\n✓ Pipeline completed successfully\n")
	printSummary(final.Summary)
	fmt.Printf("  Throughput:        %s\n", tracker.Summary())
	fmt.Printf("Run ID: %s\n", final.RunID)
	return nil
}

func runRunResume(cmd *cobra.Command, args []string) error {
	runID := args[0]

	config, err := services.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger()

	fmt.Printf("Loading run %s...\n", runID)
	run, err := pipeline.LoadRun(config.RunsDir, runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}

	if run.Status == models.RunStatusCompleted {
		fmt.Println("✓ Run already completed")
		return nil
	}

	fmt.Printf("Current status: %s\n", run.Status)

	lock, err := services.AcquireRunLock(config.RunsDir, runID, logger)
	if err != nil {
		return fmt.Errorf("cannot resume pipeline: %w\n\nAnother process may be working on this run. Wait for it to complete or check run status", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Error("Failed to release run lock", "error", err)
		}
	}()

	orchestrator, tracker, err := assemblePipeline(run, logger)
	if err != nil {
		return err
	}

	if err := executeWithSignals(run, orchestrator, logger); err != nil {
		return err
	}

	final, err := pipeline.LoadRun(config.RunsDir, runID)
	if err != nil {
		return err
	}

	fmt.Printf("\n✓ Pipeline completed successfully\n")
	printSummary(final.Summary)
	fmt.Printf("  Throughput:        %s\n", tracker.Summary())
	return nil
}

func runRunStatus(cmd *cobra.Command, args []string) error {
	runID := args[0]

	config, err := services.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	run, err := pipeline.LoadRun(config.RunsDir, runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}

	checkpoint, err := services.LoadCheckpoint(config.RunsDir, runID)
	if err != nil {
		return err
	}

	fmt.Printf("Run:     %s\n", run.RunID)
	fmt.Printf("Status:  %s %s\n", getStatusSymbol(run.Status), run.Status)
	fmt.Printf("Source:  %s\n", run.Source)
	fmt.Printf("Created: %s\n", run.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated: %s\n", run.UpdatedAt.Format(time.RFC3339))
	fmt.Printf("\n")
	fmt.Printf("Checkpoint: row %d\n", checkpoint.LastRow)
	printSummary(checkpoint.Summary)

	if run.ErrorMessage != "" {
		fmt.Printf("\nError: %s\n", run.ErrorMessage)
	}

	if services.IsRunLocked(config.RunsDir, runID) {
		fmt.Println("\nNote: run is currently locked by another process")
	}

	return nil
}

func runRunList(cmd *cobra.Command, args []string) error {
	config, err := services.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	runIDs, err := services.ListAllRuns(config.RunsDir)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runIDs) == 0 {
		fmt.Println("No runs found")
		return nil
	}

	var runs []*models.PipelineRun
	for _, runID := range runIDs {
		run, err := pipeline.LoadRun(config.RunsDir, runID)
		if err != nil {
			lib.DefaultLogger.Warn("Failed to load run", "run_id", runID, "error", err)
			continue
		}
		runs = append(runs, run)
	}

	// Sort by creation time (newest first)
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	fmt.Printf("%-38s %-14s %-30s %-10s %s\n", "RUN ID", "STATUS", "SOURCE", "ACCEPTED", "AGE")
	fmt.Println(strings.Repeat("-", 110))

	for _, r := range runs {
		fmt.Printf("%-38s %s %-12s %-30s %-10d %s\n",
			r.RunID,
			getStatusSymbol(r.Status),
			r.Status,
			truncate(r.Source, 30),
			r.Summary.Accepted,
			ui.FormatDuration(time.Since(r.CreatedAt)),
		)
	}

	return nil
}

func runRunDelete(cmd *cobra.Command, args []string) error {
	runID := args[0]

	config, err := services.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Refuse to delete a run another process is executing.
	if services.IsRunLocked(config.RunsDir, runID) {
		return fmt.Errorf("run %s is locked by another process", runID)
	}

	if !forceDelete {
		fmt.Printf("Delete run %s and all its state? [y/N]: ", runID)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := services.DeleteRun(config.RunsDir, runID); err != nil {
		return err
	}

	fmt.Printf("✓ Deleted run %s\n", runID)
	return nil
}

func printSummary(s models.RunSummary) {
	fmt.Printf("  Rows read:         %d\n", s.RowsRead)
	fmt.Printf("  Accepted:          %d\n", s.Accepted)
	fmt.Printf("  Rejected:          %d\n", s.Rejected)
	fmt.Printf("  Abandoned:         %d\n", s.Abandoned)
	fmt.Printf("  Skipped rows:      %d\n", s.Skipped)
	fmt.Printf("  Schema violations: %d\n", s.SchemaViolations)
}

func getStatusSymbol(status models.RunStatus) string {
	switch status {
	case models.RunStatusCompleted:
		return "✓"
	case models.RunStatusFailed:
		return "✗"
	case models.RunStatusInProgress:
		return "▶"
	default:
		return "·"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max+3:]
}
