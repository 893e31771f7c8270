package testing

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMCPServer(t *testing.T) (*TestMCPServer, string) {
	t.Helper()
	dir := t.TempDir()
	writeScenarioFile(t, filepath.Join(dir, "scenarios.yaml"), `
name: passing
tags: [smoke]
steps: [pass]
---
name: failing
steps: [fail]
cleanup: [clean up]
`)

	h := newHarness()
	loader := NewTestScenarioLoader(false)
	fw := &TestFramework{
		Runner:   NewTestRunner(h.registry, h.factory, loader, NewQuietReporter(io.Discard), false),
		Loader:   loader,
		Registry: h.registry,
	}
	return NewTestMCPServer(fw, dir, "test", false), dir
}

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	default:
		t.Fatalf("unexpected content type %T", result.Content[0])
		return ""
	}
}

func TestMCP_ListScenarios(t *testing.T) {
	srv, _ := newTestMCPServer(t)

	result, err := srv.handleListScenarios(context.Background(), callTool("test_list_scenarios", map[string]interface{}{}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var listed []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, "passing", listed[0]["name"])
	assert.Equal(t, float64(1), listed[1]["cleanup_count"])

	result, err = srv.handleListScenarios(context.Background(), callTool("test_list_scenarios", map[string]interface{}{"tag": "smoke"}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &listed))
	assert.Len(t, listed, 1)
}

func TestMCP_ListScenarios_BadPath(t *testing.T) {
	srv, dir := newTestMCPServer(t)

	result, err := srv.handleListScenarios(context.Background(), callTool("test_list_scenarios", map[string]interface{}{
		"config_path": filepath.Join(dir, "missing"),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestMCP_RunScenariosAndGetResults(t *testing.T) {
	srv, _ := newTestMCPServer(t)

	result, err := srv.handleGetResults(context.Background(), callTool("test_get_results", nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "No scenarios have been run yet")

	result, err = srv.handleRunScenarios(context.Background(), callTool("test_run_scenarios", map[string]interface{}{
		"parallel": float64(2),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var suite TestSuiteResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &suite))
	assert.Equal(t, 2, suite.TotalScenarios)
	assert.Equal(t, 1, suite.PassedScenarios)
	assert.Equal(t, 1, suite.FailedScenarios)
	assert.Equal(t, 2, suite.Configuration.Parallel)

	result, err = srv.handleGetResults(context.Background(), callTool("test_get_results", nil))
	require.NoError(t, err)
	var last TestSuiteResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &last))
	assert.Equal(t, suite.RunID, last.RunID)
}

func TestMCP_RunSingleScenario(t *testing.T) {
	srv, _ := newTestMCPServer(t)

	result, err := srv.handleRunScenarios(context.Background(), callTool("test_run_scenarios", map[string]interface{}{
		"scenario": "passing",
	}))
	require.NoError(t, err)

	var suite TestSuiteResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &suite))
	assert.Equal(t, 1, suite.TotalScenarios)
	assert.True(t, suite.Succeeded())
}

func TestMCP_RunScenarios_InvalidParallel(t *testing.T) {
	srv, _ := newTestMCPServer(t)

	result, err := srv.handleRunScenarios(context.Background(), callTool("test_run_scenarios", map[string]interface{}{
		"parallel": float64(50),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
