package steps

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"ocisaccept/internal/httpclient"
	"ocisaccept/internal/serverconfig"
	"ocisaccept/internal/wrapper"
)

// ScenarioContext is the state one scenario builds up step by step.
type ScenarioContext struct {
	Env     *Environment
	Tracker *serverconfig.Tracker

	// LastStatus is the HTTP status of the most recent request a step
	// recorded. Zero means none.
	LastStatus int
	LastBody   []byte

	LastCommand *wrapper.CommandResult

	LastTUSLocation string
	LastTUSSource   string

	LastInvitationToken string

	passwords map[string]string
	tempFiles []string
}

// Credentials returns the user with the password currently known for it.
func (sc *ScenarioContext) Credentials(user string) httpclient.Credentials {
	if pw, ok := sc.passwords[user]; ok {
		return httpclient.Credentials{Username: user, Password: pw}
	}
	return httpclient.Credentials{Username: user, Password: sc.Env.Config.PasswordFor(user)}
}

// Admin returns the administrator credentials.
func (sc *ScenarioContext) Admin() httpclient.Credentials {
	return sc.Credentials(sc.Env.Config.Admin.Username)
}

// SetPassword remembers a password changed during the scenario.
func (sc *ScenarioContext) SetPassword(user, password string) {
	sc.passwords[user] = password
}

// RecordStatus stores the outcome of a request for later assertions.
func (sc *ScenarioContext) RecordStatus(status int, body []byte) {
	sc.LastStatus = status
	sc.LastBody = body
}

// Substitute replaces the placeholders steps may use in their arguments.
func (sc *ScenarioContext) Substitute(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	cfg := sc.Env.Config
	return strings.NewReplacer(
		"%base_url%", cfg.Server.BaseURL,
		"%admin_username%", cfg.Admin.Username,
		"%provider_domain%", cfg.Server.ProviderDomain,
	).Replace(s)
}

// SourcePath resolves a file named by a step against the upload files
// directory.
func (sc *ScenarioContext) SourcePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(sc.Env.Config.Scenarios.FilesDir, name)
}

// WriteTempFile stores content in a new file removed by Close.
func (sc *ScenarioContext) WriteTempFile(content string) (string, error) {
	path := filepath.Join(os.TempDir(), "tus-upload-test-"+uuid.NewString())
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("could not write temporary upload file: %w", err)
	}
	sc.tempFiles = append(sc.tempFiles, path)
	return path, nil
}

// Close removes files created during the scenario.
func (sc *ScenarioContext) Close() {
	for _, path := range sc.tempFiles {
		_ = os.Remove(path)
	}
	sc.tempFiles = nil
}
