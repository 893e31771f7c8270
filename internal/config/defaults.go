package config

import (
	"time"
)

const (
	defaultBaseURL        = "https://localhost:9200"
	defaultWrapperURL     = "http://localhost:5200"
	defaultAdminUsername  = "admin"
	defaultAdminPassword  = "admin"
	defaultUserPassword   = "123456"
	defaultRequestTimeout = 60 * time.Second
	defaultScenarioPath   = "scenarios"
	defaultFilesDir       = "filesForUpload"
	defaultProviderDomain = "localhost:9200"
	defaultOcisDeployment = "ocis"
	defaultOcisNamespace  = "ocis"
)

// GetDefaultConfig returns the configuration used when no file or
// environment variable overrides a setting. It targets a local oCIS with
// its test wrapper, matching the usual acceptance-test setup.
func GetDefaultConfig() Config {
	insecure := true
	escape := true
	return Config{
		Server: ServerConfig{
			BaseURL:        defaultBaseURL,
			Insecure:       &insecure,
			Timeout:        defaultRequestTimeout,
			ProviderDomain: defaultProviderDomain,
		},
		Admin: Credentials{
			Username: defaultAdminUsername,
			Password: defaultAdminPassword,
		},
		Users:               map[string]string{},
		DefaultUserPassword: defaultUserPassword,
		Wrapper: WrapperConfig{
			URL: defaultWrapperURL,
		},
		Reconfigure: ReconfigureConfig{
			Backend: BackendWrapper,
			Kubernetes: KubernetesTarget{
				Namespace:  defaultOcisNamespace,
				Deployment: defaultOcisDeployment,
			},
		},
		TUS: TUSConfig{
			EscapeDollar: &escape,
		},
		Scenarios: ScenarioSettings{
			Path:     defaultScenarioPath,
			FilesDir: defaultFilesDir,
		},
	}
}
