package cmd

import (
	"errors"
	"os"

	"bddhost/internal/errs"

	"github.com/spf13/cobra"
)

// Exit codes for the CLI, per the driver's documented exit status:
// 0 all tests passed, 1 some tests failed or errored, 2 execution
// aborted (configuration error, discovery error).
const (
	ExitCodeSuccess  = 0
	ExitCodeFailures = 1
	ExitCodeAborted  = 2
)

// rootCmd is the entry point when bddhost is invoked without a
// recognized subcommand.
var rootCmd = &cobra.Command{
	Use:   "bddhost",
	Short: "Run BDD-style test suites with three-state coverage and mocking",
	Long: `bddhost discovers and runs describe/it-style test files, tracking
not-executed/executed/verified coverage per line and providing a mocking
substrate (spies, stubs, mock objects, scoped restoration) alongside the
assertion engine test files call through the expect() façade.`,
	SilenceUsage: true,
}

// SetVersion injects the build version, called from main at startup.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the version previously set by SetVersion.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command, translating a returned error into the
// appropriate process exit code.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "bddhost version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps a command error to one of the driver's documented
// exit codes, defaulting to ExitCodeAborted for errors that did not
// originate from the run itself (configuration, discovery, flag
// validation).
func getExitCode(err error) int {
	var runErr *runFailedError
	if errors.As(err, &runErr) {
		return ExitCodeFailures
	}

	var e *errs.Error
	if errors.As(err, &e) {
		switch e.Category {
		case errs.Validation, errs.Configuration, errs.IO, errs.Parse:
			return ExitCodeAborted
		}
	}

	return ExitCodeAborted
}

// runFailedError marks an error as "the run completed but some cases
// failed or errored", distinguishing it from an aborted run for
// getExitCode.
type runFailedError struct {
	msg string
}

func (e *runFailedError) Error() string { return e.msg }

func init() {
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newServeMCPCmd())
	rootCmd.AddCommand(newVersionCmd())
}
