package testing

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-runewidth"
)

const (
	maxStepWidth  = 100
	maxErrorWidth = 60
)

// testReporter writes human readable progress and a summary table.
type testReporter struct {
	out        io.Writer
	verbose    bool
	debug      bool
	reportPath string

	pass lipgloss.Style
	fail lipgloss.Style
	skip lipgloss.Style
	dim  lipgloss.Style
	bold lipgloss.Style
}

// NewTestReporter creates a new console reporter. When reportPath is set the
// full result is also saved there as JSON.
func NewTestReporter(out io.Writer, verbose, debug bool, reportPath string) TestReporter {
	renderer := lipgloss.NewRenderer(out)
	return &testReporter{
		out:        out,
		verbose:    verbose,
		debug:      debug,
		reportPath: reportPath,
		pass:       renderer.NewStyle().Foreground(lipgloss.Color("2")),
		fail:       renderer.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		skip:       renderer.NewStyle().Foreground(lipgloss.Color("3")),
		dim:        renderer.NewStyle().Faint(true),
		bold:       renderer.NewStyle().Bold(true),
	}
}

// ReportStart is called when test execution begins
func (r *testReporter) ReportStart(config TestConfiguration) {
	fmt.Fprintf(r.out, "🧪 %s\n", r.bold.Render("Starting oCIS acceptance scenarios"))

	if r.verbose {
		fmt.Fprintf(r.out, "⚙️  Configuration:\n")
		fmt.Fprintf(r.out, "   • Scenario: %s\n", stringOrDefault(config.Scenario, "all"))
		fmt.Fprintf(r.out, "   • Tags: %s\n", stringOrDefault(strings.Join(config.Tags, ", "), "any"))
		fmt.Fprintf(r.out, "   • Parallel workers: %d\n", config.Parallel)
		fmt.Fprintf(r.out, "   • Fail fast: %t\n", config.FailFast)
		fmt.Fprintf(r.out, "   • Timeout: %v\n", config.Timeout)
		if config.ConfigPath != "" {
			fmt.Fprintf(r.out, "   • Scenario path: %s\n", config.ConfigPath)
		}
		if config.ReportPath != "" {
			fmt.Fprintf(r.out, "   • Report path: %s\n", config.ReportPath)
		}
		fmt.Fprintln(r.out)
	}
}

// ReportScenarioStart is called when a scenario begins
func (r *testReporter) ReportScenarioStart(scenario TestScenario) {
	if !r.verbose {
		return
	}
	fmt.Fprintf(r.out, "🎯 Starting scenario: %s\n", r.bold.Render(scenario.Name))
	if scenario.Description != "" {
		fmt.Fprintf(r.out, "   📝 %s\n", scenario.Description)
	}
	if len(scenario.Tags) > 0 {
		fmt.Fprintf(r.out, "   🏷️  Tags: %s\n", strings.Join(scenario.Tags, ", "))
	}
	if r.debug && scenario.SourceFile != "" {
		fmt.Fprintf(r.out, "   📄 %s\n", r.dim.Render(scenario.SourceFile))
	}
}

// ReportStepResult is called when a step completes
func (r *testReporter) ReportStepResult(stepResult TestStepResult) {
	if !r.verbose {
		return
	}

	label := "Step"
	if stepResult.Cleanup {
		label = "Cleanup"
	}
	text := runewidth.Truncate(stepResult.Step.Text, maxStepWidth, "…")
	fmt.Fprintf(r.out, "   %s %s: %s %s\n",
		r.symbol(stepResult.Result), label, text, r.dim.Render(fmt.Sprintf("(%v)", stepResult.Duration.Round(time.Millisecond))))

	if stepResult.RetryCount > 0 {
		fmt.Fprintf(r.out, "     🔄 Retries: %d\n", stepResult.RetryCount)
	}
	if stepResult.Error != "" {
		fmt.Fprintf(r.out, "     %s\n", r.fail.Render("Error: "+stepResult.Error))
	}
	if r.debug && stepResult.LastStatus != 0 {
		fmt.Fprintf(r.out, "     📤 Last HTTP status: %d\n", stepResult.LastStatus)
	}
}

// ReportScenarioResult is called when a scenario completes
func (r *testReporter) ReportScenarioResult(scenarioResult TestScenarioResult) {
	symbol := r.symbol(scenarioResult.Result)
	duration := scenarioResult.Duration.Round(time.Millisecond)

	if !r.verbose {
		fmt.Fprintf(r.out, "%s %s (%v)\n", symbol, scenarioResult.Scenario.Name, duration)
		return
	}

	fmt.Fprintf(r.out, "%s Scenario completed: %s (%v)\n", symbol, scenarioResult.Scenario.Name, duration)
	if scenarioResult.Error != "" {
		fmt.Fprintf(r.out, "   %s\n", r.fail.Render("Error: "+scenarioResult.Error))
	}
	if scenarioResult.ConfigRestored {
		fmt.Fprintf(r.out, "   ♻️  Server configuration rolled back\n")
	}

	counts := make(map[TestResult]int)
	for _, stepResult := range scenarioResult.StepResults {
		counts[stepResult.Result]++
	}
	fmt.Fprintf(r.out, "   📊 Steps: %d passed", counts[ResultPassed])
	if counts[ResultFailed] > 0 {
		fmt.Fprintf(r.out, ", %d failed", counts[ResultFailed])
	}
	if counts[ResultError] > 0 {
		fmt.Fprintf(r.out, ", %d errors", counts[ResultError])
	}
	if counts[ResultSkipped] > 0 {
		fmt.Fprintf(r.out, ", %d skipped", counts[ResultSkipped])
	}
	fmt.Fprintf(r.out, "\n\n")
}

// ReportSuiteResult is called when all tests complete
func (r *testReporter) ReportSuiteResult(suiteResult TestSuiteResult) {
	fmt.Fprintf(r.out, "\n🏁 %s\n", r.bold.Render("Test Suite Complete"))
	fmt.Fprintf(r.out, "⏱️  Duration: %v\n", suiteResult.Duration.Round(time.Millisecond))

	if len(suiteResult.ScenarioResults) > 0 {
		fmt.Fprintln(r.out, r.summaryTable(suiteResult))
	}

	fmt.Fprintf(r.out, "📊 Results: %s passed", r.pass.Render(fmt.Sprint(suiteResult.PassedScenarios)))
	if suiteResult.FailedScenarios > 0 {
		fmt.Fprintf(r.out, ", %s failed", r.fail.Render(fmt.Sprint(suiteResult.FailedScenarios)))
	}
	if suiteResult.ErrorScenarios > 0 {
		fmt.Fprintf(r.out, ", %s errors", r.fail.Render(fmt.Sprint(suiteResult.ErrorScenarios)))
	}
	if suiteResult.SkippedScenarios > 0 {
		fmt.Fprintf(r.out, ", %s skipped", r.skip.Render(fmt.Sprint(suiteResult.SkippedScenarios)))
	}
	fmt.Fprintf(r.out, " of %d\n", suiteResult.TotalScenarios)

	if suiteResult.Succeeded() {
		fmt.Fprintf(r.out, "\n🎉 All tests passed!\n")
	} else {
		fmt.Fprintf(r.out, "\n💔 Some tests failed\n")
	}

	if r.reportPath != "" {
		path, err := saveDetailedReport(r.reportPath, suiteResult)
		if err != nil {
			fmt.Fprintf(r.out, "⚠️  Failed to save detailed report: %v\n", err)
		} else {
			fmt.Fprintf(r.out, "📄 Detailed report saved to: %s\n", path)
		}
	}
}

func (r *testReporter) summaryTable(suiteResult TestSuiteResult) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("SCENARIO", "RESULT", "DURATION", "ERROR")
	for _, res := range suiteResult.ScenarioResults {
		t.Row(
			res.Scenario.Name,
			string(res.Result),
			res.Duration.Round(time.Millisecond).String(),
			runewidth.Truncate(res.Error, maxErrorWidth, "…"),
		)
	}
	return t.String()
}

func (r *testReporter) symbol(result TestResult) string {
	switch result {
	case ResultPassed:
		return "✅"
	case ResultFailed:
		return "❌"
	case ResultSkipped:
		return "⏭️"
	case ResultError:
		return "💥"
	default:
		return "❓"
	}
}

// saveDetailedReport writes the result as JSON into dir and returns the
// file path.
func saveDetailedReport(dir string, suiteResult TestSuiteResult) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	runID := suiteResult.RunID
	if len(runID) > 8 {
		runID = runID[:8]
	}
	path := filepath.Join(dir, fmt.Sprintf("ocisaccept-test-report-%s-%s.json", timestamp, runID))

	jsonData, err := json.MarshalIndent(suiteResult, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to JSON: %w", err)
	}
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}

func stringOrDefault(s, defaultValue string) string {
	if s == "" {
		return defaultValue
	}
	return s
}

// NewQuietReporter creates a reporter that only outputs failures and a
// one line summary.
func NewQuietReporter(out io.Writer) TestReporter {
	return &quietReporter{out: out}
}

// quietReporter implements minimal output for CI/CD integration
type quietReporter struct {
	out io.Writer
}

func (r *quietReporter) ReportStart(config TestConfiguration) {}

func (r *quietReporter) ReportScenarioStart(scenario TestScenario) {}

func (r *quietReporter) ReportStepResult(stepResult TestStepResult) {}

func (r *quietReporter) ReportScenarioResult(scenarioResult TestScenarioResult) {
	switch scenarioResult.Result {
	case ResultFailed:
		fmt.Fprintf(r.out, "❌ %s: %s\n", scenarioResult.Scenario.Name, scenarioResult.Error)
	case ResultError:
		fmt.Fprintf(r.out, "💥 %s: %s\n", scenarioResult.Scenario.Name, scenarioResult.Error)
	}
}

func (r *quietReporter) ReportSuiteResult(suiteResult TestSuiteResult) {
	if suiteResult.Succeeded() {
		fmt.Fprintf(r.out, "✅ All %d tests passed\n", suiteResult.PassedScenarios)
		return
	}
	fmt.Fprintf(r.out, "❌ %d/%d tests failed\n",
		suiteResult.FailedScenarios+suiteResult.ErrorScenarios,
		suiteResult.TotalScenarios)
}

// NewJSONReporter creates a reporter that prints the suite result as JSON
func NewJSONReporter(out io.Writer) TestReporter {
	return &jsonReporter{out: out}
}

// jsonReporter implements JSON output for machine consumption
type jsonReporter struct {
	out io.Writer
}

func (r *jsonReporter) ReportStart(config TestConfiguration) {}

func (r *jsonReporter) ReportScenarioStart(scenario TestScenario) {}

func (r *jsonReporter) ReportStepResult(stepResult TestStepResult) {}

func (r *jsonReporter) ReportScenarioResult(scenarioResult TestScenarioResult) {}

func (r *jsonReporter) ReportSuiteResult(suiteResult TestSuiteResult) {
	jsonData, err := json.MarshalIndent(suiteResult, "", "  ")
	if err != nil {
		fmt.Fprintf(r.out, `{"error": "Failed to marshal results: %v"}`+"\n", err)
		return
	}
	fmt.Fprintln(r.out, string(jsonData))
}
