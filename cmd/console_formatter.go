package cmd

import (
	"fmt"

	"bddhost/internal/reporting"
)

// consoleFormatter prints reporting events to stdout, grounded on the
// teacher's testReporter: a symbol per outcome, a verbose per-case line
// when requested, and a final summary block.
type consoleFormatter struct {
	verbose bool
}

func newConsoleFormatter(verbose bool) *consoleFormatter {
	return &consoleFormatter{verbose: verbose}
}

func (f *consoleFormatter) TestStarted(c reporting.CaseInfo) {
	if f.verbose {
		fmt.Printf("  ▶ %s... ", c.FullName)
	}
}

func (f *consoleFormatter) TestFinished(c reporting.CaseInfo, r reporting.CaseResult) {
	symbol := resultSymbol(r.Status)
	if f.verbose {
		fmt.Printf("%s (%v)\n", symbol, r.Duration)
		if r.Status == reporting.StatusFailed || r.Status == reporting.StatusErrored {
			fmt.Printf("    %s\n", r.Diagnostic)
		}
		if r.Status == reporting.StatusSkipped && r.SkipReason != "" {
			fmt.Printf("    pending: %s\n", r.SkipReason)
		}
	} else if r.Status != reporting.StatusPassed {
		fmt.Printf("%s %s\n", symbol, c.FullName)
	}
}

func (f *consoleFormatter) SuiteStarted(s reporting.SuiteInfo) {
	if f.verbose {
		fmt.Printf("%s\n", s.FullName)
	}
}

func (f *consoleFormatter) SuiteFinished(reporting.SuiteInfo, reporting.SuiteAggregate) {}

func (f *consoleFormatter) RunFinished(s reporting.Summary) {
	fmt.Printf("\n%d passed, %d failed, %d skipped, %d errored (%v)\n",
		s.Passed, s.Failed, s.Skipped, s.Errored, s.Duration)
	if s.Failed == 0 && s.Errored == 0 {
		fmt.Println("all tests passed")
	} else {
		fmt.Println("some tests failed")
	}
}

func resultSymbol(s reporting.Status) string {
	switch s {
	case reporting.StatusPassed:
		return "✓"
	case reporting.StatusFailed:
		return "✗"
	case reporting.StatusSkipped:
		return "⏭"
	case reporting.StatusErrored:
		return "!"
	default:
		return "?"
	}
}
