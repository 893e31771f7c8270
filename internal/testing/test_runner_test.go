package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocisaccept/internal/config"
	"ocisaccept/internal/serverconfig"
	"ocisaccept/internal/steps"
)

type fakeReconfigurer struct {
	mu             sync.Mutex
	reconfigures   int
	rollbacks      int
	rollbackStatus int
	rollbackErr    error
}

func (f *fakeReconfigurer) Reconfigure(ctx context.Context, env map[string]string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconfigures++
	return http.StatusOK, nil
}

func (f *fakeReconfigurer) Rollback(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollbacks++
	if f.rollbackStatus == 0 {
		return http.StatusOK, f.rollbackErr
	}
	return f.rollbackStatus, f.rollbackErr
}

func (f *fakeReconfigurer) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reconfigures, f.rollbacks
}

type fakeFactory struct {
	env     *steps.Environment
	created atomic.Int32
}

func newFakeFactory(r serverconfig.Reconfigurer) *fakeFactory {
	return &fakeFactory{env: &steps.Environment{Config: config.GetDefaultConfig(), Reconfigurer: r}}
}

func (f *fakeFactory) NewScenario() *steps.ScenarioContext {
	f.created.Add(1)
	return &steps.ScenarioContext{
		Env:     f.env,
		Tracker: serverconfig.NewTracker(f.env.Reconfigurer),
	}
}

// harness is a registry of trivial phrases and the counters they move.
type harness struct {
	registry   *steps.Registry
	reconf     *fakeReconfigurer
	factory    *fakeFactory
	cleanups   atomic.Int32
	flakyCalls atomic.Int32

	active    atomic.Int32
	maxActive atomic.Int32
}

func newHarness() *harness {
	h := &harness{registry: steps.NewRegistry(), reconf: &fakeReconfigurer{}}
	h.factory = newFakeFactory(h.reconf)

	h.registry.Register(`pass`, func(context.Context, *steps.ScenarioContext, steps.Step, []string) error {
		return nil
	})
	h.registry.Register(`fail`, func(context.Context, *steps.ScenarioContext, steps.Step, []string) error {
		return steps.Failf("expected something else")
	})
	h.registry.Register(`break`, func(context.Context, *steps.ScenarioContext, steps.Step, []string) error {
		return errors.New("connection refused")
	})
	h.registry.Register(`flaky until attempt (\d+)`, func(_ context.Context, _ *steps.ScenarioContext, _ steps.Step, args []string) error {
		n, _ := strconv.Atoi(args[0])
		if int(h.flakyCalls.Add(1)) < n {
			return steps.Failf("not yet")
		}
		return nil
	})
	h.registry.Register(`record status (\d{3})`, func(_ context.Context, sc *steps.ScenarioContext, _ steps.Step, args []string) error {
		status, _ := strconv.Atoi(args[0])
		sc.RecordStatus(status, nil)
		return nil
	})
	h.registry.Register(`reconfigure`, func(ctx context.Context, sc *steps.ScenarioContext, _ steps.Step, _ []string) error {
		_, err := sc.Tracker.Reconfigure(ctx, map[string]string{"OCIS_LOG_LEVEL": "debug"})
		return err
	})
	h.registry.Register(`wait for cancellation`, func(ctx context.Context, _ *steps.ScenarioContext, _ steps.Step, _ []string) error {
		<-ctx.Done()
		return ctx.Err()
	})
	h.registry.Register(`clean up`, func(context.Context, *steps.ScenarioContext, steps.Step, []string) error {
		h.cleanups.Add(1)
		return nil
	})
	h.registry.Register(`hold the server`, func(context.Context, *steps.ScenarioContext, steps.Step, []string) error {
		n := h.active.Add(1)
		defer h.active.Add(-1)
		for {
			peak := h.maxActive.Load()
			if n <= peak || h.maxActive.CompareAndSwap(peak, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return nil
	})
	return h
}

func (h *harness) runner() TestRunner {
	return NewTestRunner(h.registry, h.factory, NewTestScenarioLoader(false), NewQuietReporter(io.Discard), false)
}

func (h *harness) run(t *testing.T, config TestConfiguration, scenarios ...TestScenario) *TestSuiteResult {
	t.Helper()
	if config.Parallel == 0 {
		config.Parallel = 1
	}
	result, err := h.runner().Run(context.Background(), config, scenarios)
	require.NoError(t, err)
	return result
}

func scenario(name string, stepTexts ...string) TestScenario {
	s := TestScenario{Name: name}
	for _, text := range stepTexts {
		s.Steps = append(s.Steps, TestStep{Text: text})
	}
	return s
}

func TestRun_AllPassed(t *testing.T) {
	h := newHarness()
	result := h.run(t, TestConfiguration{},
		scenario("one", "Given pass", "When record status 201", "Then pass"),
		scenario("two", "pass"),
	)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 2, result.TotalScenarios)
	assert.Equal(t, 2, result.PassedScenarios)
	assert.True(t, result.Succeeded())
	assert.Equal(t, int32(2), h.factory.created.Load())

	require.Len(t, result.ScenarioResults, 2)
	stepResults := result.ScenarioResults[0].StepResults
	require.Len(t, stepResults, 3)
	assert.Equal(t, 0, stepResults[0].LastStatus)
	assert.Equal(t, http.StatusCreated, stepResults[1].LastStatus)
	assert.False(t, result.ScenarioResults[0].ConfigRestored)
}

func TestRun_FailureSkipsRemainingStepsButRunsCleanup(t *testing.T) {
	h := newHarness()
	s := scenario("failing", "pass", "fail", "pass")
	s.Cleanup = []TestStep{{Text: "clean up"}, {Text: "clean up"}}

	result := h.run(t, TestConfiguration{}, s)

	require.Len(t, result.ScenarioResults, 1)
	sr := result.ScenarioResults[0]
	assert.Equal(t, ResultFailed, sr.Result)
	assert.Contains(t, sr.Error, "expected something else")

	require.Len(t, sr.StepResults, 5)
	assert.Equal(t, ResultPassed, sr.StepResults[0].Result)
	assert.Equal(t, ResultFailed, sr.StepResults[1].Result)
	assert.Equal(t, ResultSkipped, sr.StepResults[2].Result)
	assert.True(t, sr.StepResults[3].Cleanup)
	assert.True(t, sr.StepResults[4].Cleanup)
	assert.Equal(t, int32(2), h.cleanups.Load())

	assert.Equal(t, 1, result.FailedScenarios)
	assert.False(t, result.Succeeded())
}

func TestRun_ErrorsAreNotFailures(t *testing.T) {
	h := newHarness()
	result := h.run(t, TestConfiguration{},
		scenario("broken", "break"),
		scenario("undefined", "nobody registered this"),
	)

	assert.Equal(t, 2, result.ErrorScenarios)
	assert.Equal(t, 0, result.FailedScenarios)
	assert.Contains(t, result.ScenarioResults[0].Error, "connection refused")
	assert.Contains(t, result.ScenarioResults[1].Error, "nobody registered this")
}

func TestRun_UndefinedStepIsNotRetried(t *testing.T) {
	h := newHarness()
	s := scenario("undefined")
	s.Steps = []TestStep{{Text: "nobody registered this", Retry: &RetryConfig{Count: 3, Delay: time.Millisecond}}}

	result := h.run(t, TestConfiguration{}, s)

	stepResult := result.ScenarioResults[0].StepResults[0]
	assert.Equal(t, ResultError, stepResult.Result)
	assert.Equal(t, 0, stepResult.RetryCount)
}

func TestRun_RetriesUntilStepPasses(t *testing.T) {
	h := newHarness()
	s := scenario("flaky")
	s.Steps = []TestStep{{
		Text:  "flaky until attempt 3",
		Retry: &RetryConfig{Count: 3, Delay: time.Millisecond, BackoffMultiplier: 2},
	}}

	result := h.run(t, TestConfiguration{}, s)

	stepResult := result.ScenarioResults[0].StepResults[0]
	assert.Equal(t, ResultPassed, stepResult.Result)
	assert.Equal(t, 2, stepResult.RetryCount)
	assert.Equal(t, int32(3), h.flakyCalls.Load())
}

func TestRun_RetriesExhausted(t *testing.T) {
	h := newHarness()
	s := scenario("flaky")
	s.Steps = []TestStep{{Text: "flaky until attempt 10", Retry: &RetryConfig{Count: 1, Delay: time.Millisecond}}}

	result := h.run(t, TestConfiguration{}, s)

	assert.Equal(t, ResultFailed, result.ScenarioResults[0].Result)
	assert.Equal(t, int32(2), h.flakyCalls.Load())
}

func TestRun_RollsBackReconfiguredServer(t *testing.T) {
	h := newHarness()
	result := h.run(t, TestConfiguration{},
		scenario("reconfigures", "reconfigure", "reconfigure", "pass"),
		scenario("leaves it alone", "pass"),
	)

	assert.True(t, result.Succeeded())
	assert.True(t, result.ScenarioResults[0].ConfigRestored)
	assert.False(t, result.ScenarioResults[1].ConfigRestored)

	reconfigures, rollbacks := h.reconf.counts()
	assert.Equal(t, 2, reconfigures)
	assert.Equal(t, 1, rollbacks)
}

func TestRun_RollsBackAfterFailure(t *testing.T) {
	h := newHarness()
	result := h.run(t, TestConfiguration{}, scenario("reconfigures then fails", "reconfigure", "fail"))

	assert.Equal(t, ResultFailed, result.ScenarioResults[0].Result)
	_, rollbacks := h.reconf.counts()
	assert.Equal(t, 1, rollbacks)
}

func TestRun_RollbackFailureIsAnError(t *testing.T) {
	h := newHarness()
	h.reconf.rollbackStatus = http.StatusInternalServerError

	result := h.run(t, TestConfiguration{}, scenario("reconfigures", "reconfigure"))

	sr := result.ScenarioResults[0]
	assert.Equal(t, ResultError, sr.Result)
	assert.Contains(t, sr.Error, "restoring server configuration")
	assert.False(t, sr.ConfigRestored)
}

func TestRun_FailFastSkipsRemainingScenarios(t *testing.T) {
	h := newHarness()
	result := h.run(t, TestConfiguration{FailFast: true},
		scenario("first", "fail"),
		scenario("second", "pass"),
		scenario("third", "pass"),
	)

	assert.Equal(t, 1, result.FailedScenarios)
	assert.Equal(t, 2, result.SkippedScenarios)
	assert.Equal(t, ResultSkipped, result.ScenarioResults[1].Result)
	assert.Equal(t, ResultSkipped, result.ScenarioResults[2].Result)
	assert.Equal(t, int32(1), h.factory.created.Load())
}

func TestRun_SharedConfigScenariosRunAlone(t *testing.T) {
	h := newHarness()

	var scenarios []TestScenario
	for i := 0; i < 6; i++ {
		s := scenario("independent-"+strconv.Itoa(i), "pass")
		if i%2 == 0 {
			s = scenario("shared-"+strconv.Itoa(i), "hold the server")
			s.Tags = []string{SharedConfigTag}
		}
		scenarios = append(scenarios, s)
	}

	result := h.run(t, TestConfiguration{Parallel: 4}, scenarios...)

	assert.Equal(t, 6, result.PassedScenarios)
	assert.Equal(t, int32(1), h.maxActive.Load())
	for i, sr := range result.ScenarioResults {
		assert.Equal(t, scenarios[i].Name, sr.Scenario.Name)
	}
}

func TestRun_ScenarioTimeoutStillCleansUp(t *testing.T) {
	h := newHarness()
	s := scenario("slow", "wait for cancellation", "pass")
	s.Timeout = 20 * time.Millisecond
	s.Cleanup = []TestStep{{Text: "clean up"}}

	result := h.run(t, TestConfiguration{}, s)

	sr := result.ScenarioResults[0]
	assert.Equal(t, ResultError, sr.Result)
	assert.Contains(t, sr.Error, context.DeadlineExceeded.Error())
	assert.Equal(t, ResultSkipped, sr.StepResults[1].Result)
	assert.Equal(t, int32(1), h.cleanups.Load())
}

func TestRun_FiltersScenarios(t *testing.T) {
	h := newHarness()
	result := h.run(t, TestConfiguration{Scenario: "wanted"},
		scenario("wanted", "pass"),
		scenario("unwanted", "fail"),
	)

	assert.Equal(t, 1, result.TotalScenarios)
	assert.Equal(t, "wanted", result.ScenarioResults[0].Scenario.Name)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, time.Duration(0), retryDelay(nil, 1))

	retry := &RetryConfig{Delay: 100 * time.Millisecond, BackoffMultiplier: 2}
	assert.Equal(t, 100*time.Millisecond, retryDelay(retry, 1))
	assert.Equal(t, 200*time.Millisecond, retryDelay(retry, 2))
	assert.Equal(t, 400*time.Millisecond, retryDelay(retry, 3))

	assert.Equal(t, 100*time.Millisecond, retryDelay(&RetryConfig{Delay: 100 * time.Millisecond}, 3))
}
