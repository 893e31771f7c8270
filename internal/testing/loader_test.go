package testing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenarioFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadScenarios_Directory(t *testing.T) {
	dir := t.TempDir()
	writeScenarioFile(t, filepath.Join(dir, "b-tus.yaml"), `
name: upload
description: upload a file
tags: [tus]
timeout: 2m
steps:
  - When user "Alice" uploads file "textfile.txt" to "/a.txt" via TUS inside of the space "Personal"
  - text: Then the HTTP status code should be "204"
    retry:
      count: 3
      delay: 500ms
      backoff_multiplier: 2
cleanup:
  - the administrator cleans upload sessions
---
name: upload-content
steps:
  - When user "Alice" uploads a file with content "hi" to "/b.txt" via TUS inside of the space "Personal"
`)
	writeScenarioFile(t, filepath.Join(dir, "nested", "a-cli.yml"), `
name: reset-password
tags: [cli, env-config]
steps:
  - text: the administrator has stopped the server
    timeout: 30s
  - text: "the following configs have been set:"
    table:
      - [config, value]
      - [OCIS_LOG_LEVEL, debug]
`)
	writeScenarioFile(t, filepath.Join(dir, "README.md"), "not a scenario")

	scenarios, err := NewTestScenarioLoader(false).LoadScenarios(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 3)

	// files are read in lexical order of their path
	assert.Equal(t, "upload", scenarios[0].Name)
	assert.Equal(t, "upload-content", scenarios[1].Name)
	assert.Equal(t, "reset-password", scenarios[2].Name)

	upload := scenarios[0]
	assert.Equal(t, "upload a file", upload.Description)
	assert.Equal(t, 2*time.Minute, upload.Timeout)
	assert.Equal(t, filepath.Join(dir, "b-tus.yaml"), upload.SourceFile)
	require.Len(t, upload.Steps, 2)
	assert.Nil(t, upload.Steps[0].Retry)
	require.NotNil(t, upload.Steps[1].Retry)
	assert.Equal(t, 3, upload.Steps[1].Retry.Count)
	assert.Equal(t, 500*time.Millisecond, upload.Steps[1].Retry.Delay)
	assert.Equal(t, 2.0, upload.Steps[1].Retry.BackoffMultiplier)
	require.Len(t, upload.Cleanup, 1)
	assert.Equal(t, "the administrator cleans upload sessions", upload.Cleanup[0].Text)

	reset := scenarios[2]
	assert.True(t, reset.HasTag(SharedConfigTag))
	assert.Equal(t, 30*time.Second, reset.Steps[0].Timeout)
	assert.Equal(t, [][]string{{"config", "value"}, {"OCIS_LOG_LEVEL", "debug"}}, reset.Steps[1].Table)

	phrase := reset.Steps[1].Phrase()
	assert.Equal(t, "the following configs have been set:", phrase.Text)
	assert.Equal(t, reset.Steps[1].Table, phrase.Table)
}

func TestLoadScenarios_SingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.yaml")
	writeScenarioFile(t, path, `
name: single
steps: [the administrator reindexes all spaces using the CLI]
`)

	scenarios, err := NewTestScenarioLoader(true).LoadScenarios(path)
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "single", scenarios[0].Name)
}

func TestLoadScenarios_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing name", "steps: [a]", "no name"},
		{"missing steps", "name: empty", "has no steps"},
		{"step without text", "name: x\nsteps:\n  - retry: {count: 1}", "step has no text"},
		{"malformed yaml", "name: [x", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			writeScenarioFile(t, path, tt.content)

			_, err := NewTestScenarioLoader(false).LoadScenarios(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarios_DuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writeScenarioFile(t, filepath.Join(dir, "a.yaml"), "name: same\nsteps: [a]")
	writeScenarioFile(t, filepath.Join(dir, "b.yaml"), "name: same\nsteps: [b]")

	_, err := NewTestScenarioLoader(false).LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already defined")
}

func TestLoadScenarios_MissingPath(t *testing.T) {
	_, err := NewTestScenarioLoader(false).LoadScenarios(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestFilterScenarios(t *testing.T) {
	scenarios := []TestScenario{
		{Name: "upload", Tags: []string{"tus"}},
		{Name: "invite", Tags: []string{"ocm"}},
		{Name: "reset", Tags: []string{"cli", SharedConfigTag}},
		{Name: "untagged"},
	}
	loader := NewTestScenarioLoader(false)

	names := func(list []TestScenario) []string {
		var out []string
		for _, s := range list {
			out = append(out, s.Name)
		}
		return out
	}

	assert.Equal(t, []string{"upload", "invite", "reset", "untagged"}, names(loader.FilterScenarios(scenarios, TestConfiguration{})))
	assert.Equal(t, []string{"invite"}, names(loader.FilterScenarios(scenarios, TestConfiguration{Scenario: "invite"})))
	assert.Equal(t, []string{"upload", "reset"}, names(loader.FilterScenarios(scenarios, TestConfiguration{Tags: []string{"tus", "cli"}})))
	assert.Empty(t, loader.FilterScenarios(scenarios, TestConfiguration{Scenario: "upload", Tags: []string{"ocm"}}))
}
