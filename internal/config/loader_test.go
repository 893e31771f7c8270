package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPaths points the user and project layers at files inside dir and
// clears the environment lookup. It restores everything on cleanup.
func mockPaths(t *testing.T, dir string, env map[string]string) (userPath, projectPath string) {
	t.Helper()
	originalUser := getUserConfigPath
	originalProject := getProjectConfigPath
	originalLookup := osLookupEnv
	t.Cleanup(func() {
		getUserConfigPath = originalUser
		getProjectConfigPath = originalProject
		osLookupEnv = originalLookup
	})

	userPath = filepath.Join(dir, "user", configFileName)
	projectPath = filepath.Join(dir, "project", configFileName)
	getUserConfigPath = func() (string, error) { return userPath, nil }
	getProjectConfigPath = func() (string, error) { return projectPath, nil }
	osLookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	return userPath, projectPath
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadConfig_DefaultOnly(t *testing.T) {
	mockPaths(t, t.TempDir(), nil)

	loaded, err := LoadConfig()
	require.NoError(t, err)

	def := GetDefaultConfig()
	assert.Equal(t, def.Server.BaseURL, loaded.Server.BaseURL)
	assert.Equal(t, def.Wrapper.URL, loaded.Wrapper.URL)
	assert.Equal(t, BackendWrapper, loaded.Reconfigure.Backend)
	assert.True(t, loaded.TUS.EscapeDollarEnabled())
	assert.True(t, loaded.Server.InsecureTLS())
	assert.NoError(t, loaded.Validate())
}

func TestLoadConfig_ProjectOverridesUser(t *testing.T) {
	userPath, projectPath := mockPaths(t, t.TempDir(), nil)

	writeFile(t, userPath, `
server:
  baseURL: https://user.example.test
  timeout: 5s
users:
  Alice: alice-pw
  Brian: brian-pw
`)
	writeFile(t, projectPath, `
server:
  baseURL: https://project.example.test
users:
  Brian: project-brian
tus:
  escapeDollar: false
`)

	loaded, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://project.example.test", loaded.Server.BaseURL)
	assert.Equal(t, 5*time.Second, loaded.Server.Timeout)
	assert.Equal(t, "alice-pw", loaded.PasswordFor("Alice"))
	assert.Equal(t, "project-brian", loaded.PasswordFor("Brian"))
	assert.Equal(t, "123456", loaded.PasswordFor("Carol"))
	assert.Equal(t, "admin", loaded.PasswordFor("admin"))
	assert.False(t, loaded.TUS.EscapeDollarEnabled())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	mockPaths(t, t.TempDir(), map[string]string{
		EnvServerURL:      "https://env.example.test/",
		EnvWrapperURL:     "http://wrapper:5200",
		EnvAdminPassword:  "secret",
		EnvBackend:        "Kubernetes",
		EnvInsecure:       "false",
		EnvRequestTimeout: "15s",
		EnvEscapeDollar:   "0",
	})

	loaded, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.test", loaded.Server.BaseURL)
	assert.Equal(t, "http://wrapper:5200", loaded.Wrapper.URL)
	assert.Equal(t, "secret", loaded.Admin.Password)
	assert.Equal(t, BackendKubernetes, loaded.Reconfigure.Backend)
	assert.False(t, loaded.Server.InsecureTLS())
	assert.Equal(t, 15*time.Second, loaded.Server.Timeout)
	assert.False(t, loaded.TUS.EscapeDollarEnabled())
}

func TestLoadConfig_InvalidEnvValue(t *testing.T) {
	mockPaths(t, t.TempDir(), map[string]string{EnvInsecure: "maybe"})

	_, err := LoadConfig()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), EnvInsecure)
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	userPath, _ := mockPaths(t, t.TempDir(), nil)
	writeFile(t, userPath, "server: [not, a, map")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigFromPath(t *testing.T) {
	dir := t.TempDir()
	mockPaths(t, dir, nil)
	path := filepath.Join(dir, "explicit.yaml")
	writeFile(t, path, `
admin:
  username: root
  password: toor
`)

	loaded, err := LoadConfigFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "root", loaded.Admin.Username)
	assert.Equal(t, "toor", loaded.PasswordFor("root"))

	_, err = LoadConfigFromPath(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"default is valid", func(c *Config) {}, ""},
		{"relative base url", func(c *Config) { c.Server.BaseURL = "localhost:9200" }, "absolute URL"},
		{"zero timeout", func(c *Config) { c.Server.Timeout = 0 }, "timeout"},
		{"unknown backend", func(c *Config) { c.Reconfigure.Backend = "ssh" }, "unknown reconfigure backend"},
		{"kubernetes without deployment", func(c *Config) {
			c.Reconfigure.Backend = BackendKubernetes
			c.Reconfigure.Kubernetes.Deployment = ""
		}, "namespace and a deployment"},
		{"wrapper without url", func(c *Config) { c.Wrapper.URL = "" }, "wrapper URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := GetDefaultConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
