package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var dmmCompareCmd = &cobra.Command{
	Use:   "dmm-compare",
	Short: "Diff a projected relational model against a reference SQL script",
	RunE:  runDmmCompare,
}

// runDmmCompare reports why this subcommand cannot run standalone: the
// SQL-text comparison mechanics against an external reference script
// belong to an external collaborator. The dispatcher
// entry point and ReferenceScriptComparer interface are fully wired
// (internal/dispatch, internal/pipeline); only a concrete comparer
// implementation is missing here by design.
func runDmmCompare(cmd *cobra.Command, args []string) error {
	return fmt.Errorf("dmm-compare requires a ReferenceScriptComparer implementation, which this binary does not embed; " +
		"call pipeline.RunDmmCompare with your own comparer, or dispatch.DmmCompare from a program that supplies one")
}
