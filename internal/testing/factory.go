package testing

import (
	"fmt"
	"io"
	"time"

	"ocisaccept/internal/steps"
)

// Output formats understood by NewReporter.
const (
	FormatConsole = "console"
	FormatQuiet   = "quiet"
	FormatJSON    = "json"
)

// DefaultTestConfiguration returns a default test configuration
func DefaultTestConfiguration() TestConfiguration {
	return TestConfiguration{
		Timeout:  30 * time.Minute,
		Parallel: 1,
	}
}

// TestFramework holds all components needed for testing
type TestFramework struct {
	Runner      TestRunner
	Loader      TestScenarioLoader
	Reporter    TestReporter
	Registry    *steps.Registry
	Environment *steps.Environment
}

// NewTestFramework wires the default step registry to env.
func NewTestFramework(env *steps.Environment, reporter TestReporter, debug bool) *TestFramework {
	registry := steps.NewDefaultRegistry()
	loader := NewTestScenarioLoader(debug)
	return &TestFramework{
		Runner:      NewTestRunner(registry, env, loader, reporter, debug),
		Loader:      loader,
		Reporter:    reporter,
		Registry:    registry,
		Environment: env,
	}
}

// NewReporter returns the reporter for format.
func NewReporter(format string, out io.Writer, verbose, debug bool, reportPath string) (TestReporter, error) {
	switch format {
	case FormatConsole, "":
		return NewTestReporter(out, verbose, debug, reportPath), nil
	case FormatQuiet:
		return NewQuietReporter(out), nil
	case FormatJSON:
		return NewJSONReporter(out), nil
	default:
		return nil, fmt.Errorf("unknown output format %q, must be %s, %s or %s", format, FormatConsole, FormatQuiet, FormatJSON)
	}
}

// ValidateConfiguration validates a test configuration
func ValidateConfiguration(config TestConfiguration) error {
	if config.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if config.Parallel < 1 || config.Parallel > 10 {
		return fmt.Errorf("parallel workers must be between 1 and 10, got %d", config.Parallel)
	}
	return nil
}
