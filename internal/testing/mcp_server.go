package testing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"ocisaccept/pkg/logging"
)

const mcpSubsystem = "TestMCP"

// TestMCPServer exposes scenario listing and execution as MCP tools over
// stdio.
type TestMCPServer struct {
	framework  *TestFramework
	configPath string
	debug      bool
	server     *server.MCPServer

	mu         sync.Mutex
	lastResult *TestSuiteResult
}

// NewTestMCPServer creates the server. Scenario paths default to
// configPath.
func NewTestMCPServer(framework *TestFramework, configPath, version string, debug bool) *TestMCPServer {
	t := &TestMCPServer{
		framework:  framework,
		configPath: configPath,
		debug:      debug,
	}

	t.server = server.NewMCPServer(
		"ocisaccept-test",
		version,
		server.WithToolCapabilities(true),
	)
	t.registerTools()
	return t
}

func (t *TestMCPServer) registerTools() {
	t.server.AddTool(mcp.NewTool("test_list_scenarios",
		mcp.WithDescription("List the available acceptance scenarios"),
		mcp.WithString("config_path", mcp.Description("Scenario file or directory")),
		mcp.WithString("tag", mcp.Description("Only list scenarios with this tag")),
	), t.handleListScenarios)

	t.server.AddTool(mcp.NewTool("test_run_scenarios",
		mcp.WithDescription("Run acceptance scenarios against the configured oCIS server"),
		mcp.WithString("config_path", mcp.Description("Scenario file or directory")),
		mcp.WithString("scenario", mcp.Description("Run only the scenario with this name")),
		mcp.WithString("tag", mcp.Description("Run only scenarios with this tag")),
		mcp.WithNumber("parallel", mcp.Description("Number of parallel workers (1-10)")),
		mcp.WithBoolean("fail_fast", mcp.Description("Stop on the first failing scenario")),
	), t.handleRunScenarios)

	t.server.AddTool(mcp.NewTool("test_get_results",
		mcp.WithDescription("Return the result of the last scenario run"),
	), t.handleGetResults)
}

// Start serves MCP over stdin and stdout until ctx ends.
func (t *TestMCPServer) Start(ctx context.Context) error {
	return t.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve serves MCP over the given streams.
func (t *TestMCPServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	logging.Info(mcpSubsystem, "Serving test tools over stdio")
	return server.NewStdioServer(t.server).Listen(ctx, in, out)
}

func (t *TestMCPServer) scenarioPath(args map[string]interface{}) string {
	if path, ok := args["config_path"].(string); ok && path != "" {
		return path
	}
	return t.configPath
}

func tagFilter(args map[string]interface{}) []string {
	if tag, ok := args["tag"].(string); ok && strings.TrimSpace(tag) != "" {
		return []string{strings.TrimSpace(tag)}
	}
	return nil
}

// handleListScenarios handles the test_list_scenarios MCP tool
func (t *TestMCPServer) handleListScenarios(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	path := t.scenarioPath(args)

	scenarios, err := t.framework.Loader.LoadScenarios(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load scenarios: %v", err)), nil
	}
	scenarios = t.framework.Loader.FilterScenarios(scenarios, TestConfiguration{Tags: tagFilter(args)})

	type ScenarioInfo struct {
		Name         string   `json:"name"`
		Description  string   `json:"description,omitempty"`
		StepCount    int      `json:"step_count"`
		CleanupCount int      `json:"cleanup_count"`
		Tags         []string `json:"tags,omitempty"`
		Timeout      string   `json:"timeout,omitempty"`
		File         string   `json:"file"`
	}

	list := make([]ScenarioInfo, len(scenarios))
	for i, s := range scenarios {
		list[i] = ScenarioInfo{
			Name:         s.Name,
			Description:  s.Description,
			StepCount:    len(s.Steps),
			CleanupCount: len(s.Cleanup),
			Tags:         s.Tags,
			File:         s.SourceFile,
		}
		if s.Timeout > 0 {
			list[i].Timeout = s.Timeout.String()
		}
	}

	jsonData, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format scenarios: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

// handleRunScenarios handles the test_run_scenarios MCP tool
func (t *TestMCPServer) handleRunScenarios(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	config := DefaultTestConfiguration()
	config.Debug = t.debug
	config.ConfigPath = t.scenarioPath(args)
	config.Tags = tagFilter(args)

	if scenario, ok := args["scenario"].(string); ok {
		config.Scenario = scenario
	}
	if parallel, ok := args["parallel"].(float64); ok {
		config.Parallel = int(parallel)
	}
	if failFast, ok := args["fail_fast"].(bool); ok {
		config.FailFast = failFast
	}
	if err := ValidateConfiguration(config); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	scenarios, err := t.framework.Loader.LoadScenarios(config.ConfigPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load test scenarios: %v", err)), nil
	}
	if len(scenarios) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No test scenarios found in %s", config.ConfigPath)), nil
	}

	runCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	result, err := t.framework.Runner.Run(runCtx, config, scenarios)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Test execution failed: %v", err)), nil
	}

	t.mu.Lock()
	t.lastResult = result
	t.mu.Unlock()

	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format test results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

// handleGetResults handles the test_get_results MCP tool
func (t *TestMCPServer) handleGetResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.mu.Lock()
	result := t.lastResult
	t.mu.Unlock()

	if result == nil {
		return mcp.NewToolResultText("No scenarios have been run yet"), nil
	}
	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format test results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
