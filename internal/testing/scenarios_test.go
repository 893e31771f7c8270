package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocisaccept/internal/steps"
)

// The bundled scenarios must only use phrases the default registry knows.
func TestBundledScenariosUseKnownSteps(t *testing.T) {
	scenarios, err := NewTestScenarioLoader(false).LoadScenarios("../../scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	registry := steps.NewDefaultRegistry()
	for _, s := range scenarios {
		for _, step := range append(append([]TestStep{}, s.Steps...), s.Cleanup...) {
			_, _, err := registry.Match(step.Text)
			assert.NoError(t, err, "scenario %q", s.Name)
		}
	}
}
