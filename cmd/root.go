/*
Copyright © 2025 Trellis Contributors

Trellis is a CLI tool for loading clinical ontologies and streaming tabular
clinical records into a FHIR repository.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trellis",
	Short: "Trellis - Clinical Data Submission Pipeline CLI",
	Long: `Trellis resolves free-text clinical terms against HPO-style ontologies and
streams tabular patient records into a FHIR repository.

A run loads the configured ontology sources, streams the CSV source row by
row, resolves term columns to ontology concepts (exact, then fuzzy), builds
Condition resources and submits them with OAuth2 client credentials. Progress
is checkpointed in source order, so an interrupted run resumes exactly where
it left off.

Example:
  trellis run start /data/patients.csv
  trellis run status <run-id>
  trellis run resume <run-id>
  trellis codesystem export -o hpo-codesystem.json

For more information, visit: https://github.com/trellishq/trellis`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./trellis.yaml, ~/.config/trellis/trellis.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	// Add version template
	rootCmd.SetVersionTemplate("Trellis version {{.Version}}\n")
}
