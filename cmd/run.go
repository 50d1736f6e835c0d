package cmd

import (
	"fmt"
	"strings"

	"bddhost/bdd"
	"bddhost/internal/coverage"

	"github.com/spf13/cobra"
)

var (
	runDir         string
	runPattern     string
	runTags        []string
	runFilter      string
	runParallel    int
	runVerbose     bool
	runCoverageOut string
	runCoverageIn  string
	runConfigPath  string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Discover and run bddhost test files",
		Long: `run discovers test files under --dir matching --pattern and executes
every case declared through bdd.File in a matching file's init(), reporting
pass/fail/skipped/errored counts to the console and merging per-file
coverage deltas into the process-wide coverage engine.

Only files that were actually compiled into this binary and call bdd.File
contribute cases; other discovered files are reported but not run.`,
		RunE: runRun,
	}

	cmd.Flags().StringVar(&runDir, "dir", ".", "Root directory to discover test files under")
	cmd.Flags().StringVar(&runPattern, "pattern", "", "Glob pattern for test files (default: configured discovery default)")
	cmd.Flags().StringSliceVar(&runTags, "tags", nil, "Only run cases carrying at least one of these tags")
	cmd.Flags().StringVar(&runFilter, "filter", "", "Only run cases whose full name matches this regular expression")
	cmd.Flags().IntVar(&runParallel, "parallel", 1, "Number of files to run concurrently, one worker per file")
	cmd.Flags().BoolVar(&runVerbose, "verbose", false, "Print a line per case instead of only failures")
	cmd.Flags().StringVar(&runCoverageOut, "coverage-out", "", "Path to save coverage stats after the run")
	cmd.Flags().StringVar(&runCoverageIn, "coverage-in", "", "Path to load prior coverage stats from before the run")
	cmd.Flags().StringVar(&runConfigPath, "config", "", "Path to a YAML configuration file to load before running")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if runParallel < 1 {
			return fmt.Errorf("--parallel must be at least 1, got %d", runParallel)
		}
		return nil
	}

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	if runConfigPath != "" {
		if err := bdd.Config.LoadFromFile(runConfigPath); err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
	}

	if len(runTags) > 0 {
		bdd.OnlyTags(runTags...)
	}
	if runFilter != "" {
		if err := bdd.Filter(runFilter); err != nil {
			return fmt.Errorf("compiling --filter: %w", err)
		}
	}

	bdd.RegisterFormatter(newConsoleFormatter(runVerbose))

	if err := bdd.Coverage.Init(coverage.Config{}); err != nil {
		return fmt.Errorf("initializing coverage: %w", err)
	}
	if runCoverageIn != "" {
		if err := bdd.Coverage.Load(runCoverageIn); err != nil {
			return fmt.Errorf("loading coverage stats: %w", err)
		}
	}
	bdd.Coverage.Start()

	files, err := bdd.Discover(runDir, runPattern)
	if err != nil {
		return fmt.Errorf("discovering test files: %w", err)
	}
	reportUnregistered(files)

	success, err := bdd.RunDiscovered(runDir, runPattern)
	if err != nil {
		return fmt.Errorf("running discovered files: %w", err)
	}

	bdd.Coverage.Stop()
	if runCoverageOut != "" {
		if err := bdd.Coverage.Save(runCoverageOut); err != nil {
			return fmt.Errorf("saving coverage stats: %w", err)
		}
	}

	if !success {
		return &runFailedError{msg: "one or more test cases failed or errored"}
	}
	return nil
}

// reportUnregistered warns about discovered files this binary has no
// bdd.File registration for — ordinary during development, since a
// package only registers once it's actually imported (and thus linked)
// into this binary's build.
func reportUnregistered(files []string) {
	known := bdd.KnownLoaderPaths()
	var missing []string
	for _, f := range files {
		if !known[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		fmt.Printf("warning: %d discovered file(s) have no registered declarations (not linked into this binary): %s\n",
			len(missing), strings.Join(missing, ", "))
	}
}
