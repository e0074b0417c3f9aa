// Command sadit runs the hip-prosthesis diagnostic fusion engine from the
// command line: case analysis, triage, the individual engines, knowledge base
// ingestion and the clinician review store.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
