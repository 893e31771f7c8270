package testing

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"ocisaccept/pkg/logging"
)

const loaderSubsystem = "ScenarioLoader"

// scenarioLoader reads scenarios from YAML files.
type scenarioLoader struct {
	debug bool
}

// NewTestScenarioLoader creates a loader for YAML scenario files.
func NewTestScenarioLoader(debug bool) TestScenarioLoader {
	return &scenarioLoader{debug: debug}
}

// LoadScenarios reads configPath, a single file or a directory searched
// recursively for *.yaml and *.yml. A file may hold several scenarios as
// separate YAML documents.
func (l *scenarioLoader) LoadScenarios(configPath string) ([]TestScenario, error) {
	info, err := os.Stat(configPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read scenarios: %w", err)
	}

	var files []string
	if info.IsDir() {
		err = filepath.WalkDir(configPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isScenarioFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", configPath, err)
		}
		sort.Strings(files)
	} else {
		files = []string{configPath}
	}

	var scenarios []TestScenario
	seen := make(map[string]string)
	for _, file := range files {
		loaded, err := l.loadFile(file)
		if err != nil {
			return nil, err
		}
		for _, s := range loaded {
			if previous, dup := seen[s.Name]; dup {
				return nil, fmt.Errorf("scenario %q in %s is already defined in %s", s.Name, file, previous)
			}
			seen[s.Name] = file
			scenarios = append(scenarios, s)
		}
	}

	if l.debug {
		logging.Debug(loaderSubsystem, "Loaded %d scenarios from %d files under %s", len(scenarios), len(files), configPath)
	}
	return scenarios, nil
}

func (l *scenarioLoader) loadFile(path string) ([]TestScenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read scenarios: %w", err)
	}
	defer f.Close()

	var scenarios []TestScenario
	decoder := yaml.NewDecoder(f)
	for {
		var s TestScenario
		err := decoder.Decode(&s)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if err := validateScenario(s); err != nil {
			return nil, fmt.Errorf("invalid scenario in %s: %w", path, err)
		}
		s.SourceFile = path
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s TestScenario) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("scenario has no name")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", s.Name)
	}
	return nil
}

func isScenarioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// FilterScenarios keeps scenarios matching the name filter and carrying
// at least one of the requested tags.
func (l *scenarioLoader) FilterScenarios(scenarios []TestScenario, config TestConfiguration) []TestScenario {
	var filtered []TestScenario
	for _, s := range scenarios {
		if config.Scenario != "" && s.Name != config.Scenario {
			continue
		}
		if len(config.Tags) > 0 && !hasAnyTag(s, config.Tags) {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered
}

func hasAnyTag(s TestScenario, tags []string) bool {
	for _, tag := range tags {
		if s.HasTag(tag) {
			return true
		}
	}
	return false
}
