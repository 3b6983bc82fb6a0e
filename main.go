/*
Copyright © 2025 Trellis Contributors

Trellis is a CLI tool for loading clinical ontologies and streaming tabular
clinical records into a FHIR repository.
*/
package main

import "github.com/trellishq/trellis/cmd"

func main() {
	cmd.Execute()
}
