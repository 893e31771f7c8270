package steps

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

func registerServerSteps(r *Registry) {
	r.Register(`the administrator has stopped the server`, func(ctx context.Context, sc *ScenarioContext, _ Step, _ []string) error {
		status, err := sc.Env.CLI.Stop(ctx)
		return expectOK("stopping the server", status, err)
	})
	r.Register(`the administrator (?:starts|has started) the server`, func(ctx context.Context, sc *ScenarioContext, _ Step, _ []string) error {
		status, err := sc.Env.CLI.Start(ctx)
		return expectOK("starting the server", status, err)
	})
	r.Register(`the config "([^"]*)" has been set to "([^"]*)"`, func(ctx context.Context, sc *ScenarioContext, _ Step, args []string) error {
		return reconfigure(ctx, sc, map[string]string{args[0]: args[1]})
	})
	r.Register(`the following configs have been set:`, setConfigsFromTable)
}

func expectOK(action string, status int, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	if status != http.StatusOK {
		return Failf("%s: expected HTTP status %d, got %d", action, http.StatusOK, status)
	}
	return nil
}

func reconfigure(ctx context.Context, sc *ScenarioContext, env map[string]string) error {
	status, err := sc.Tracker.Reconfigure(ctx, env)
	return expectOK("reconfiguring the server", status, err)
}

func setConfigsFromTable(ctx context.Context, sc *ScenarioContext, step Step, _ []string) error {
	rows := step.Table
	if len(rows) > 0 && len(rows[0]) >= 2 &&
		strings.EqualFold(rows[0][0], "config") && strings.EqualFold(rows[0][1], "value") {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return fmt.Errorf("expected a table of | config | value | rows")
	}

	env := make(map[string]string, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			return fmt.Errorf("config row %v needs a name and a value", row)
		}
		env[row[0]] = row[1]
	}
	return reconfigure(ctx, sc, env)
}
