package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd
var osLookupEnv = os.LookupEnv

const (
	userConfigDir    = ".config/ocisaccept"
	projectConfigDir = ".ocisaccept"
	configFileName   = "config.yaml"
)

// Environment variables understood on top of the YAML layers. The first
// four are the names the oCIS acceptance suite already uses.
const (
	EnvServerURL      = "TEST_SERVER_URL"
	EnvWrapperURL     = "OCIS_WRAPPER_URL"
	EnvAdminUsername  = "ADMIN_USERNAME"
	EnvAdminPassword  = "ADMIN_PASSWORD"
	EnvBackend        = "OCISACCEPT_CONFIG_BACKEND"
	EnvInsecure       = "OCISACCEPT_INSECURE"
	EnvRequestTimeout = "OCISACCEPT_TIMEOUT"
	EnvEscapeDollar   = "OCISACCEPT_TUS_ESCAPE_DOLLAR"
)

// LoadConfig loads the configuration by layering default, user and project
// settings, then applying environment overrides.
func LoadConfig() (Config, error) {
	// 1. Start with the default configuration
	config := GetDefaultConfig()

	// 2. User-specific configuration
	userConfigPath, err := getUserConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not determine user config path: %v\n", err)
	} else if config, err = overlayFile(config, userConfigPath); err != nil {
		return Config{}, err
	}

	// 3. Project-specific configuration
	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not determine project config path: %v\n", err)
	} else if config, err = overlayFile(config, projectConfigPath); err != nil {
		return Config{}, err
	}

	// 4. Environment
	config, err = applyEnvOverrides(config)
	if err != nil {
		return Config{}, err
	}

	return config, nil
}

// LoadConfigFromPath layers a single explicit file over the defaults and
// applies environment overrides. The file must exist.
func LoadConfigFromPath(path string) (Config, error) {
	fileConfig, err := loadConfigFromFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	return applyEnvOverrides(mergeConfigs(GetDefaultConfig(), fileConfig))
}

func overlayFile(base Config, path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return base, nil
	}
	overlay, err := loadConfigFromFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	return mergeConfigs(base, overlay), nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

// loadConfigFromFile loads a Config from a YAML file.
func loadConfigFromFile(filePath string) (Config, error) {
	var config Config
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// mergeConfigs merges 'overlay' config into 'base' config. Zero values in
// the overlay leave the base untouched.
func mergeConfigs(base, overlay Config) Config {
	merged := base

	if overlay.Server.BaseURL != "" {
		merged.Server.BaseURL = overlay.Server.BaseURL
	}
	if overlay.Server.Insecure != nil {
		merged.Server.Insecure = overlay.Server.Insecure
	}
	if overlay.Server.Timeout > 0 {
		merged.Server.Timeout = overlay.Server.Timeout
	}
	if overlay.Server.ProviderDomain != "" {
		merged.Server.ProviderDomain = overlay.Server.ProviderDomain
	}

	if overlay.Admin.Username != "" {
		merged.Admin.Username = overlay.Admin.Username
	}
	if overlay.Admin.Password != "" {
		merged.Admin.Password = overlay.Admin.Password
	}

	users := make(map[string]string, len(base.Users)+len(overlay.Users))
	for name, pw := range base.Users {
		users[name] = pw
	}
	for name, pw := range overlay.Users {
		users[name] = pw
	}
	merged.Users = users

	if overlay.DefaultUserPassword != "" {
		merged.DefaultUserPassword = overlay.DefaultUserPassword
	}
	if overlay.Wrapper.URL != "" {
		merged.Wrapper.URL = overlay.Wrapper.URL
	}

	if overlay.Reconfigure.Backend != "" {
		merged.Reconfigure.Backend = overlay.Reconfigure.Backend
	}
	k := overlay.Reconfigure.Kubernetes
	if k.Kubeconfig != "" {
		merged.Reconfigure.Kubernetes.Kubeconfig = k.Kubeconfig
	}
	if k.Context != "" {
		merged.Reconfigure.Kubernetes.Context = k.Context
	}
	if k.Namespace != "" {
		merged.Reconfigure.Kubernetes.Namespace = k.Namespace
	}
	if k.Deployment != "" {
		merged.Reconfigure.Kubernetes.Deployment = k.Deployment
	}
	if k.Container != "" {
		merged.Reconfigure.Kubernetes.Container = k.Container
	}

	if overlay.TUS.EscapeDollar != nil {
		merged.TUS.EscapeDollar = overlay.TUS.EscapeDollar
	}

	if overlay.Scenarios.Path != "" {
		merged.Scenarios.Path = overlay.Scenarios.Path
	}
	if overlay.Scenarios.ReportPath != "" {
		merged.Scenarios.ReportPath = overlay.Scenarios.ReportPath
	}
	if overlay.Scenarios.FilesDir != "" {
		merged.Scenarios.FilesDir = overlay.Scenarios.FilesDir
	}

	return merged
}

func applyEnvOverrides(config Config) (Config, error) {
	if v, ok := osLookupEnv(EnvServerURL); ok && v != "" {
		config.Server.BaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := osLookupEnv(EnvWrapperURL); ok && v != "" {
		config.Wrapper.URL = strings.TrimRight(v, "/")
	}
	if v, ok := osLookupEnv(EnvAdminUsername); ok && v != "" {
		config.Admin.Username = v
	}
	if v, ok := osLookupEnv(EnvAdminPassword); ok && v != "" {
		config.Admin.Password = v
	}
	if v, ok := osLookupEnv(EnvBackend); ok && v != "" {
		config.Reconfigure.Backend = ReconfigureBackend(strings.ToLower(v))
	}
	if v, ok := osLookupEnv(EnvInsecure); ok && v != "" {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", EnvInsecure, err)
		}
		config.Server.Insecure = &b
	}
	if v, ok := osLookupEnv(EnvRequestTimeout); ok && v != "" {
		d, err := cast.ToDurationE(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", EnvRequestTimeout, err)
		}
		config.Server.Timeout = d
	}
	if v, ok := osLookupEnv(EnvEscapeDollar); ok && v != "" {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", EnvEscapeDollar, err)
		}
		config.TUS.EscapeDollar = &b
	}
	return config, nil
}

// Validate checks that the configuration can drive a test run.
func (c Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server base URL %q is not an absolute URL", c.Server.BaseURL)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.Admin.Username == "" {
		return fmt.Errorf("admin username must be set")
	}

	switch c.Reconfigure.Backend {
	case BackendWrapper:
		if c.Wrapper.URL == "" {
			return fmt.Errorf("wrapper URL must be set for the %q backend", BackendWrapper)
		}
	case BackendKubernetes:
		if c.Reconfigure.Kubernetes.Namespace == "" || c.Reconfigure.Kubernetes.Deployment == "" {
			return fmt.Errorf("kubernetes backend needs a namespace and a deployment")
		}
	default:
		return fmt.Errorf("unknown reconfigure backend %q, must be %q or %q",
			c.Reconfigure.Backend, BackendWrapper, BackendKubernetes)
	}
	return nil
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}
