package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var captureProfileCmd = &cobra.Command{
	Use:   "capture-profile",
	Short: "Capture a profile snapshot from a live database connection",
	RunE:  runCaptureProfile,
}

// runCaptureProfile reports why this subcommand cannot run standalone
// rather than silently doing nothing: the live profile provider needs a
// profile.ConnectionFactory, which requires database connectivity and
// session construction this module leaves to the caller. Embedding the
// dispatcher call here anyway would mean
// fabricating a fake database driver, which the CLI does not do. Callers
// that have a real ConnectionFactory call pipeline.RunCaptureProfile (or
// dispatch.CaptureProfile) directly from their own Go program instead of
// through this binary; build-ssdt and analyze-tightening cover the
// fixture-driven path via --profile-fixture.
func runCaptureProfile(cmd *cobra.Command, args []string) error {
	return fmt.Errorf("capture-profile requires a live database connection factory, which this binary does not embed; " +
		"call pipeline.RunCaptureProfile with your own profile.ConnectionFactory, or use --profile-fixture with build-ssdt / analyze-tightening")
}
