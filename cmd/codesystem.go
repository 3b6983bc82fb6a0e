package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/trellishq/trellis/internal/ontology"
	"github.com/trellishq/trellis/internal/services"
	"github.com/trellishq/trellis/internal/ui"
)

var (
	exportOutput  string
	exportVersion string
)

// codesystemCmd represents the codesystem command group
var codesystemCmd = &cobra.Command{
	Use:   "codesystem",
	Short: "Work with ontology CodeSystems",
	Long: `Work with FHIR CodeSystem representations of the configured ontologies.

Available subcommands:
  export - Export the loaded ontologies as a FHIR CodeSystem`,
}

// codesystemExportCmd represents the codesystem export command
var codesystemExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export loaded ontologies as a FHIR CodeSystem",
	Long: `Load the configured ontology sources and export them as a single FHIR
CodeSystem resource.

Exact synonyms become designations, definitions and obsolescence become
properties, and the concept hierarchy is emitted as parent/child property
pairs. The output is suitable for uploading to a terminology server.

Examples:
  # Export to a file
  trellis codesystem export -o hpo-codesystem.json

  # Export to stdout
  trellis codesystem export`,
	RunE: runCodesystemExport,
}

func init() {
	rootCmd.AddCommand(codesystemCmd)
	codesystemCmd.AddCommand(codesystemExportCmd)

	codesystemExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	codesystemExportCmd.Flags().StringVar(&exportVersion, "version-tag", "", "Version string recorded on the CodeSystem")
}

func runCodesystemExport(cmd *cobra.Command, args []string) error {
	config, err := services.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.ValidateOntology(); err != nil {
		return err
	}

	logger := newLogger()

	index, err := ontology.Build(config.Ontology.Sources, logger)
	if err != nil {
		return err
	}

	var onConcept func()
	if exportOutput != "" {
		bar := ui.NewProgressBar(int64(index.Len()), "Exporting concepts")
		onConcept = func() { _ = bar.Add(1) }
		defer func() { _ = bar.Finish() }()
	}

	cs := ontology.ExportCodeSystem(index, config.Ontology.SystemURL, exportVersion, onConcept)

	out := os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if err := cs.WriteJSON(out); err != nil {
		return fmt.Errorf("failed to write CodeSystem: %w", err)
	}

	if exportOutput != "" {
		fmt.Printf("✓ Exported %d concepts to %s\n", cs.Count, exportOutput)
	}
	return nil
}
