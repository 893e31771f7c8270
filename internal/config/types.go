package config

import (
	"time"
)

// Config is the top-level configuration structure for ocisaccept.
type Config struct {
	Server              ServerConfig      `yaml:"server"`
	Admin               Credentials       `yaml:"admin"`
	Users               map[string]string `yaml:"users,omitempty"`               // username -> password
	DefaultUserPassword string            `yaml:"defaultUserPassword,omitempty"` // for users missing from Users
	Wrapper             WrapperConfig     `yaml:"wrapper"`
	Reconfigure         ReconfigureConfig `yaml:"reconfigure"`
	TUS                 TUSConfig         `yaml:"tus"`
	Scenarios           ScenarioSettings  `yaml:"scenarios"`
}

// ServerConfig describes the oCIS instance under test.
type ServerConfig struct {
	BaseURL  string        `yaml:"baseURL,omitempty"`
	Insecure *bool         `yaml:"insecure,omitempty"` // skip TLS verification
	Timeout  time.Duration `yaml:"timeout,omitempty"`  // per HTTP request
	// ProviderDomain is announced when accepting OCM invitations.
	ProviderDomain string `yaml:"providerDomain,omitempty"`
}

// Credentials is a username/password pair used for basic auth.
type Credentials struct {
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// WrapperConfig points at the test wrapper that runs CLI commands and
// restarts the server with a different environment.
type WrapperConfig struct {
	URL string `yaml:"url,omitempty"`
}

// ReconfigureBackend selects how server environment changes are applied.
type ReconfigureBackend string

const (
	// BackendWrapper applies changes through the wrapper's /config endpoint.
	BackendWrapper ReconfigureBackend = "wrapper"
	// BackendKubernetes patches the env of the oCIS Deployment.
	BackendKubernetes ReconfigureBackend = "kubernetes"
)

// ReconfigureConfig configures server reconfiguration and rollback.
type ReconfigureConfig struct {
	Backend    ReconfigureBackend `yaml:"backend,omitempty"`
	Kubernetes KubernetesTarget   `yaml:"kubernetes,omitempty"`
}

// KubernetesTarget identifies the container whose environment is changed.
type KubernetesTarget struct {
	Kubeconfig string `yaml:"kubeconfig,omitempty"`
	Context    string `yaml:"context,omitempty"`
	Namespace  string `yaml:"namespace,omitempty"`
	Deployment string `yaml:"deployment,omitempty"`
	Container  string `yaml:"container,omitempty"` // defaults to the first container
}

// TUSConfig holds TUS client settings.
type TUSConfig struct {
	// EscapeDollar replaces "$" by "%" in the tusEndpoint metadata value.
	// oCIS needs this for space ids; standard TUS servers do not.
	EscapeDollar *bool `yaml:"escapeDollar,omitempty"`
}

// ScenarioSettings holds scenario discovery and reporting defaults.
type ScenarioSettings struct {
	Path       string `yaml:"path,omitempty"`
	ReportPath string `yaml:"reportPath,omitempty"`
	FilesDir   string `yaml:"filesDir,omitempty"` // source files named by upload steps
}

// InsecureTLS reports whether TLS verification is disabled.
func (s ServerConfig) InsecureTLS() bool {
	return s.Insecure != nil && *s.Insecure
}

// EscapeDollarEnabled reports whether the "$" escaping policy is active.
// It defaults to true when unset.
func (t TUSConfig) EscapeDollarEnabled() bool {
	return t.EscapeDollar == nil || *t.EscapeDollar
}

// PasswordFor returns the password configured for username.
func (c Config) PasswordFor(username string) string {
	if username == c.Admin.Username {
		return c.Admin.Password
	}
	if pw, ok := c.Users[username]; ok {
		return pw
	}
	return c.DefaultUserPassword
}
