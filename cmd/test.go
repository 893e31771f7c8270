package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ocisaccept/internal/steps"
	"ocisaccept/internal/testing"
	"ocisaccept/pkg/logging"
)

type testOptions struct {
	timeout      time.Duration
	verbose      bool
	scenario     string
	tags         []string
	scenarioPath string
	reportPath   string
	output       string
	failFast     bool
	parallel     int
	mcpServer    bool
	listSteps    bool
}

// newEnvironment is replaced in tests.
var newEnvironment = steps.NewEnvironment

func newTestCmd() *cobra.Command {
	opts := &testOptions{}

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run acceptance scenarios against the configured oCIS server",
		Long: `The test command loads YAML scenarios and runs them against the oCIS
server named in the configuration.

Every scenario starts from a fresh state. Steps run in order until one
fails; cleanup steps always run. When a scenario changed the server
configuration it is rolled back before the next scenario starts.

Example usage:
  ocisaccept test                                  # Run all scenarios
  ocisaccept test --scenario=upload-via-tus        # Run one scenario
  ocisaccept test --tag=cli --tag=ocm              # Run tagged scenarios
  ocisaccept test --parallel=4                     # Run with 4 workers
  ocisaccept test --fail-fast --output=quiet       # CI friendly
  ocisaccept test --list-steps                     # Show known phrases
  ocisaccept test --mcp-server                     # Serve MCP tools over stdio

Scenarios tagged "env-config" are never run in parallel with others.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if !opts.mcpServer && (opts.parallel < 1 || opts.parallel > 10) {
				return fmt.Errorf("parallel workers must be between 1 and 10, got %d", opts.parallel)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(cmd, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Minute, "Overall test execution timeout")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "Show every step")
	cmd.Flags().StringVar(&opts.scenario, "scenario", "", "Run specific test scenario by name")
	cmd.Flags().StringSliceVar(&opts.tags, "tag", nil, "Run scenarios carrying any of these tags")
	cmd.Flags().StringVar(&opts.scenarioPath, "scenarios", "", "Scenario file or directory (default: scenarios.path from the configuration)")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "Directory to save a detailed JSON report in")
	cmd.Flags().StringVarP(&opts.output, "output", "o", testing.FormatConsole, "Output format (console, quiet, json)")
	cmd.Flags().BoolVar(&opts.failFast, "fail-fast", false, "Stop test execution on first failure")
	cmd.Flags().IntVar(&opts.parallel, "parallel", 1, "Number of parallel test workers (1-10)")
	cmd.Flags().BoolVar(&opts.mcpServer, "mcp-server", false, "Run as MCP server (stdio transport)")
	cmd.Flags().BoolVar(&opts.listSteps, "list-steps", false, "List the step phrases and exit")

	_ = cmd.RegisterFlagCompletionFunc("scenario", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return completeScenarios(opts.scenarioPath), cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{testing.FormatConsole, testing.FormatQuiet, testing.FormatJSON}, cobra.ShellCompDirectiveNoFileComp
	})

	cmd.MarkFlagsMutuallyExclusive("mcp-server", "scenario")
	cmd.MarkFlagsMutuallyExclusive("mcp-server", "fail-fast")
	cmd.MarkFlagsMutuallyExclusive("mcp-server", "parallel")
	cmd.MarkFlagsMutuallyExclusive("mcp-server", "list-steps")

	return cmd
}

// completeScenarios provides shell completion for the scenario flag by
// loading the available scenarios.
func completeScenarios(path string) []string {
	if path == "" {
		// completion does not run the persistent pre-run
		cfg, err := loadConfig(configFile)
		if err != nil {
			return nil
		}
		path = cfg.Scenarios.Path
	}
	scenarios, err := testing.NewTestScenarioLoader(false).LoadScenarios(path)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(scenarios))
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	return names
}

func runTest(cmd *cobra.Command, opts *testOptions) error {
	out := cmd.OutOrStdout()

	if opts.listSteps {
		for _, pattern := range steps.NewDefaultRegistry().Patterns() {
			fmt.Fprintln(out, pattern)
		}
		return nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			logging.Warn("Test", "Received interrupt signal, stopping tests gracefully...")
			cancel()
		case <-ctx.Done():
		}
	}()

	scenarioPath := opts.scenarioPath
	if scenarioPath == "" {
		scenarioPath = settings.Scenarios.Path
	}
	reportPath := opts.reportPath
	if reportPath == "" {
		reportPath = settings.Scenarios.ReportPath
	}

	env, err := newEnvironment(settings)
	if err != nil {
		return fmt.Errorf("failed to create test environment: %w", err)
	}

	if opts.mcpServer {
		// stdout carries the MCP transport
		reporter := testing.NewQuietReporter(io.Discard)
		framework := testing.NewTestFramework(env, reporter, debug)
		server := testing.NewTestMCPServer(framework, scenarioPath, cmd.Root().Version, debug)
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("test MCP server error: %w", err)
		}
		return nil
	}

	reporter, err := testing.NewReporter(opts.output, out, opts.verbose, debug, reportPath)
	if err != nil {
		return err
	}
	framework := testing.NewTestFramework(env, reporter, debug)

	testConfig := testing.TestConfiguration{
		Timeout:    opts.timeout,
		Scenario:   opts.scenario,
		Tags:       opts.tags,
		Parallel:   opts.parallel,
		FailFast:   opts.failFast,
		Verbose:    opts.verbose,
		Debug:      debug,
		ConfigPath: scenarioPath,
		ReportPath: reportPath,
	}
	if err := testing.ValidateConfiguration(testConfig); err != nil {
		return err
	}

	scenarios, err := framework.Loader.LoadScenarios(scenarioPath)
	if err != nil {
		return fmt.Errorf("failed to load test scenarios: %w", err)
	}
	if len(scenarios) == 0 {
		fmt.Fprintf(out, "⚠️  No test scenarios found in %s\n", scenarioPath)
		return nil
	}

	timeoutCtx, timeoutCancel := context.WithTimeout(ctx, opts.timeout)
	defer timeoutCancel()

	result, err := framework.Runner.Run(timeoutCtx, testConfig, scenarios)
	if err != nil {
		return fmt.Errorf("test execution failed: %w", err)
	}

	if !result.Succeeded() {
		return fmt.Errorf("%d of %d scenarios did not pass", result.FailedScenarios+result.ErrorScenarios, result.TotalScenarios)
	}
	return nil
}
