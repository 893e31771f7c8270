package testing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"ocisaccept/internal/steps"
	"ocisaccept/pkg/logging"
)

const (
	runnerSubsystem = "TestRunner"
	restoreTimeout  = 5 * time.Minute
)

// ScenarioFactory creates the state a scenario starts from.
type ScenarioFactory interface {
	NewScenario() *steps.ScenarioContext
}

// testRunner implements the TestRunner interface
type testRunner struct {
	registry *steps.Registry
	factory  ScenarioFactory
	loader   TestScenarioLoader
	reporter TestReporter
	debug    bool

	// reporter calls come from several workers
	reportMu sync.Mutex
}

// NewTestRunner creates a new test runner
func NewTestRunner(registry *steps.Registry, factory ScenarioFactory, loader TestScenarioLoader, reporter TestReporter, debug bool) TestRunner {
	return &testRunner{
		registry: registry,
		factory:  factory,
		loader:   loader,
		reporter: reporter,
		debug:    debug,
	}
}

// Run executes test scenarios according to the configuration
func (r *testRunner) Run(ctx context.Context, config TestConfiguration, scenarios []TestScenario) (*TestSuiteResult, error) {
	result := &TestSuiteResult{
		RunID:         uuid.NewString(),
		StartTime:     time.Now(),
		Configuration: config,
	}

	r.report(func(rep TestReporter) { rep.ReportStart(config) })

	filtered := r.loader.FilterScenarios(scenarios, config)
	result.TotalScenarios = len(filtered)
	result.ScenarioResults = make([]TestScenarioResult, len(filtered))

	if len(filtered) > 0 {
		logging.Info(runnerSubsystem, "Run %s: %d scenarios", result.RunID, len(filtered))
		r.runAll(ctx, config, filtered, result.ScenarioResults)
	}

	for _, scenarioResult := range result.ScenarioResults {
		r.updateCounters(result, scenarioResult)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	r.report(func(rep TestReporter) { rep.ReportSuiteResult(*result) })
	return result, nil
}

// runAll fills results in scenario order. Scenarios changing the shared
// server configuration run one at a time after the others.
func (r *testRunner) runAll(ctx context.Context, config TestConfiguration, scenarios []TestScenario, results []TestScenarioResult) {
	var stop atomic.Bool

	var independent, shared []int
	for i, s := range scenarios {
		if config.Parallel > 1 && !s.HasTag(SharedConfigTag) {
			independent = append(independent, i)
		} else {
			shared = append(shared, i)
		}
	}

	run := func(i int) {
		if stop.Load() || ctx.Err() != nil {
			results[i] = skippedScenario(scenarios[i])
		} else {
			results[i] = r.runScenario(ctx, scenarios[i])
		}
		r.report(func(rep TestReporter) { rep.ReportScenarioResult(results[i]) })

		if config.FailFast && isFailure(results[i].Result) {
			stop.Store(true)
		}
	}

	if len(independent) > 0 {
		r.runParallel(independent, config.Parallel, run)
	}
	for _, i := range shared {
		run(i)
	}
}

// runParallel runs indexes through a pool of workers.
func (r *testRunner) runParallel(indexes []int, workers int, run func(int)) {
	work := make(chan int, len(indexes))
	for _, i := range indexes {
		work <- i
	}
	close(work)

	if workers > len(indexes) {
		workers = len(indexes)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := range work {
				if r.debug {
					logging.Debug(runnerSubsystem, "Worker %d takes scenario #%d", workerID, i)
				}
				run(i)
			}
		}(w)
	}
	wg.Wait()
}

// runScenario executes a single test scenario: steps until the first
// failure, then every cleanup step, then the configuration rollback.
func (r *testRunner) runScenario(ctx context.Context, scenario TestScenario) TestScenarioResult {
	result := TestScenarioResult{
		Scenario:    scenario,
		StartTime:   time.Now(),
		StepResults: make([]TestStepResult, 0, len(scenario.Steps)+len(scenario.Cleanup)),
		Result:      ResultPassed,
	}

	r.report(func(rep TestReporter) { rep.ReportScenarioStart(scenario) })

	scenarioCtx := ctx
	if scenario.Timeout > 0 {
		var cancel context.CancelFunc
		scenarioCtx, cancel = context.WithTimeout(ctx, scenario.Timeout)
		defer cancel()
	}

	sc := r.factory.NewScenario()
	defer sc.Close()

	failed := false
	for _, step := range scenario.Steps {
		var stepResult TestStepResult
		if failed {
			stepResult = TestStepResult{Step: step, Result: ResultSkipped}
		} else {
			stepResult = r.runStep(scenarioCtx, sc, step)
		}
		result.StepResults = append(result.StepResults, stepResult)
		r.report(func(rep TestReporter) { rep.ReportStepResult(stepResult) })

		if !failed && isFailure(stepResult.Result) {
			failed = true
			result.Result = stepResult.Result
			result.Error = stepResult.Error
		}
	}

	// Cleanup runs on a fresh deadline so a timed out scenario still
	// cleans up.
	cleanupCtx, cancelCleanup := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
	defer cancelCleanup()

	for _, step := range scenario.Cleanup {
		stepResult := r.runStep(cleanupCtx, sc, step)
		stepResult.Cleanup = true
		result.StepResults = append(result.StepResults, stepResult)
		r.report(func(rep TestReporter) { rep.ReportStepResult(stepResult) })

		if isFailure(stepResult.Result) && result.Result == ResultPassed {
			result.Result = stepResult.Result
			result.Error = stepResult.Error
		}
	}

	touched := sc.Tracker.Touched()
	if err := sc.Tracker.Restore(cleanupCtx); err != nil {
		logging.Error(runnerSubsystem, err, "Scenario %q left the server misconfigured", scenario.Name)
		msg := fmt.Sprintf("restoring server configuration: %v", err)
		if result.Result == ResultPassed {
			result.Result = ResultError
			result.Error = msg
		} else {
			result.Error += "; " + msg
		}
	} else if touched {
		result.ConfigRestored = true
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	return result
}

// runStep executes a single test step
func (r *testRunner) runStep(ctx context.Context, sc *steps.ScenarioContext, step TestStep) TestStepResult {
	result := TestStepResult{
		Step:      step,
		StartTime: time.Now(),
		Result:    ResultPassed,
	}

	stepCtx := ctx
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	maxAttempts := 1
	if step.Retry != nil && step.Retry.Count > 0 {
		maxAttempts = step.Retry.Count + 1
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			result.RetryCount = attempt
			delay := retryDelay(step.Retry, attempt)
			if r.debug {
				logging.Debug(runnerSubsystem, "Retrying step %q in %v (attempt %d/%d)", step.Text, delay, attempt+1, maxAttempts)
			}
			select {
			case <-time.After(delay):
			case <-stepCtx.Done():
				err = fmt.Errorf("step cancelled during retry delay: %w", stepCtx.Err())
				attempt = maxAttempts
				continue
			}
		}

		err = r.registry.Run(stepCtx, sc, step.Phrase())
		if err == nil {
			break
		}
		var undefined *steps.UndefinedStepError
		if errors.As(err, &undefined) {
			break
		}
	}

	switch {
	case err == nil:
	case steps.IsAssertion(err):
		result.Result = ResultFailed
		result.Error = err.Error()
	default:
		result.Result = ResultError
		result.Error = err.Error()
	}

	result.LastStatus = sc.LastStatus
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	return result
}

func retryDelay(retry *RetryConfig, attempt int) time.Duration {
	if retry == nil {
		return 0
	}
	delay := retry.Delay
	if retry.BackoffMultiplier > 0 {
		for i := 1; i < attempt; i++ {
			delay = time.Duration(float64(delay) * retry.BackoffMultiplier)
		}
	}
	return delay
}

func (r *testRunner) report(fn func(TestReporter)) {
	r.reportMu.Lock()
	defer r.reportMu.Unlock()
	fn(r.reporter)
}

func skippedScenario(s TestScenario) TestScenarioResult {
	now := time.Now()
	return TestScenarioResult{
		Scenario:  s,
		Result:    ResultSkipped,
		StartTime: now,
		EndTime:   now,
	}
}

func isFailure(result TestResult) bool {
	return result == ResultFailed || result == ResultError
}

// updateCounters updates the result counters based on a scenario result
func (r *testRunner) updateCounters(suiteResult *TestSuiteResult, scenarioResult TestScenarioResult) {
	switch scenarioResult.Result {
	case ResultPassed:
		suiteResult.PassedScenarios++
	case ResultFailed:
		suiteResult.FailedScenarios++
	case ResultSkipped:
		suiteResult.SkippedScenarios++
	case ResultError:
		suiteResult.ErrorScenarios++
	}
}
