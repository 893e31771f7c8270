package testing

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"ocisaccept/internal/steps"
)

// TestResult represents the result of test execution
type TestResult string

const (
	// ResultPassed indicates the test passed successfully
	ResultPassed TestResult = "PASSED"
	// ResultFailed indicates an expectation did not hold
	ResultFailed TestResult = "FAILED"
	// ResultSkipped indicates the test was not run
	ResultSkipped TestResult = "SKIPPED"
	// ResultError indicates the test could not be carried out
	ResultError TestResult = "ERROR"
)

// SharedConfigTag marks scenarios that reconfigure the server. They never
// run alongside other scenarios.
const SharedConfigTag = "env-config"

// TestConfiguration defines the overall test execution configuration
type TestConfiguration struct {
	// Timeout is the overall test execution timeout
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// Scenario filter for specific scenario execution
	Scenario string `yaml:"scenario,omitempty" json:"scenario,omitempty"`
	// Tags select scenarios carrying any of them
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	// Parallel is the number of parallel test workers
	Parallel int `yaml:"parallel" json:"parallel"`
	// FailFast stops execution on first failure
	FailFast bool `yaml:"fail_fast" json:"fail_fast"`
	// Verbose enables detailed output
	Verbose bool `yaml:"verbose" json:"verbose"`
	// Debug enables debug logging
	Debug bool `yaml:"debug" json:"debug"`
	// ConfigPath is the path to test scenario definitions
	ConfigPath string `yaml:"config_path,omitempty" json:"config_path,omitempty"`
	// ReportPath is the path to save detailed test reports
	ReportPath string `yaml:"report_path,omitempty" json:"report_path,omitempty"`
}

// TestScenario defines a single test scenario
type TestScenario struct {
	// Name is the unique identifier for the scenario
	Name string `yaml:"name" json:"name"`
	// Description provides human-readable scenario description
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Tags for selection; SharedConfigTag forces sequential execution
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	// Steps are the phrases executed in order
	Steps []TestStep `yaml:"steps" json:"steps"`
	// Cleanup steps always run, even after a failure
	Cleanup []TestStep `yaml:"cleanup,omitempty" json:"cleanup,omitempty"`
	// Timeout for this specific scenario
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	// SourceFile is the file the scenario was loaded from
	SourceFile string `yaml:"-" json:"source_file,omitempty"`
}

// HasTag reports whether the scenario carries tag.
func (s TestScenario) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// TestStep defines a single step within a test scenario. In YAML a step is
// either a plain phrase or a mapping with the phrase under "text".
type TestStep struct {
	// Text is the phrase, optionally starting with a Gherkin keyword
	Text string `yaml:"text" json:"text"`
	// Table is the data table attached to the phrase
	Table [][]string `yaml:"table,omitempty" json:"table,omitempty"`
	// Doc is the doc string attached to the phrase
	Doc string `yaml:"doc,omitempty" json:"doc,omitempty"`
	// Retry configuration for this step
	Retry *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty"`
	// Timeout for this specific step
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// UnmarshalYAML accepts both the short and the mapping form of a step.
func (s *TestStep) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*s = TestStep{Text: value.Value}
		return nil
	}

	type plain TestStep
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	if p.Text == "" {
		return fmt.Errorf("line %d: step has no text", value.Line)
	}
	*s = TestStep(p)
	return nil
}

// Phrase converts the step into what the step registry runs.
func (s TestStep) Phrase() steps.Step {
	return steps.Step{Text: s.Text, Table: s.Table, Doc: s.Doc}
}

// RetryConfig defines retry behavior for test steps
type RetryConfig struct {
	// Count is the number of retry attempts
	Count int `yaml:"count" json:"count"`
	// Delay between retry attempts
	Delay time.Duration `yaml:"delay" json:"delay"`
	// BackoffMultiplier for exponential backoff
	BackoffMultiplier float64 `yaml:"backoff_multiplier,omitempty" json:"backoff_multiplier,omitempty"`
}

// TestSuiteResult represents the overall result of test suite execution
type TestSuiteResult struct {
	// RunID identifies this run in reports
	RunID string `json:"run_id"`
	// StartTime when test execution began
	StartTime time.Time `json:"start_time"`
	// EndTime when test execution completed
	EndTime time.Time `json:"end_time"`
	// Duration of test execution
	Duration time.Duration `json:"duration"`
	// TotalScenarios is the total number of scenarios selected
	TotalScenarios int `json:"total_scenarios"`
	// PassedScenarios is the number of scenarios that passed
	PassedScenarios int `json:"passed_scenarios"`
	// FailedScenarios is the number of scenarios that failed
	FailedScenarios int `json:"failed_scenarios"`
	// SkippedScenarios is the number of scenarios that were skipped
	SkippedScenarios int `json:"skipped_scenarios"`
	// ErrorScenarios is the number of scenarios that had errors
	ErrorScenarios int `json:"error_scenarios"`
	// ScenarioResults contains individual scenario results
	ScenarioResults []TestScenarioResult `json:"scenario_results"`
	// Configuration used for this test run
	Configuration TestConfiguration `json:"configuration"`
}

// Succeeded reports whether no scenario failed or errored.
func (r TestSuiteResult) Succeeded() bool {
	return r.FailedScenarios == 0 && r.ErrorScenarios == 0
}

// TestScenarioResult represents the result of a single test scenario
type TestScenarioResult struct {
	// Scenario is the scenario that was executed
	Scenario TestScenario `json:"scenario"`
	// Result is the overall result of the scenario
	Result TestResult `json:"result"`
	// StartTime when scenario execution began
	StartTime time.Time `json:"start_time"`
	// EndTime when scenario execution completed
	EndTime time.Time `json:"end_time"`
	// Duration of scenario execution
	Duration time.Duration `json:"duration"`
	// StepResults contains individual step results, cleanup included
	StepResults []TestStepResult `json:"step_results"`
	// Error message if the scenario failed or had an error
	Error string `json:"error,omitempty"`
	// ConfigRestored is set when the server configuration was rolled back
	ConfigRestored bool `json:"config_restored,omitempty"`
}

// TestStepResult represents the result of a single test step
type TestStepResult struct {
	// Step is the step that was executed
	Step TestStep `json:"step"`
	// Cleanup marks steps from the cleanup section
	Cleanup bool `json:"cleanup,omitempty"`
	// Result is the result of the step
	Result TestResult `json:"result"`
	// StartTime when step execution began
	StartTime time.Time `json:"start_time"`
	// EndTime when step execution completed
	EndTime time.Time `json:"end_time"`
	// Duration of step execution
	Duration time.Duration `json:"duration"`
	// LastStatus is the HTTP status recorded by the step, if any
	LastStatus int `json:"last_status,omitempty"`
	// Error message if the step failed
	Error string `json:"error,omitempty"`
	// RetryCount is the number of retries attempted
	RetryCount int `json:"retry_count"`
}

// TestRunner interface defines the test execution engine
type TestRunner interface {
	// Run executes test scenarios according to the configuration
	Run(ctx context.Context, config TestConfiguration, scenarios []TestScenario) (*TestSuiteResult, error)
}

// TestScenarioLoader interface defines how test scenarios are loaded
type TestScenarioLoader interface {
	// LoadScenarios loads test scenarios from the given path
	LoadScenarios(configPath string) ([]TestScenario, error)
	// FilterScenarios filters scenarios based on the configuration
	FilterScenarios(scenarios []TestScenario, config TestConfiguration) []TestScenario
}

// TestReporter interface defines how test results are reported
type TestReporter interface {
	// ReportStart is called when test execution begins
	ReportStart(config TestConfiguration)
	// ReportScenarioStart is called when a scenario begins
	ReportScenarioStart(scenario TestScenario)
	// ReportStepResult is called when a step completes
	ReportStepResult(stepResult TestStepResult)
	// ReportScenarioResult is called when a scenario completes
	ReportScenarioResult(scenarioResult TestScenarioResult)
	// ReportSuiteResult is called when all tests complete
	ReportSuiteResult(suiteResult TestSuiteResult)
}
