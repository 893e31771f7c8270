package steps

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"ocisaccept/internal/wrapper"
	"ocisaccept/pkg/logging"
)

const subsystem = "Steps"

func registerCLISteps(r *Registry) {
	r.Register(`the administrator resets the password of (non-existing|existing) user "([^"]*)" to "([^"]*)" using the CLI`, resetPassword)
	r.Register(`the administrator runs the command "(.*)" using the CLI`, func(ctx context.Context, sc *ScenarioContext, _ Step, args []string) error {
		return runCommand(ctx, sc, args[0])
	})
	r.Register(`the administrator lists all the upload sessions(?: with flag "([^"]*)")?`, func(ctx context.Context, sc *ScenarioContext, _ Step, args []string) error {
		command := "storage-users uploads sessions --json"
		if args[0] != "" {
			command += " --" + args[0]
		}
		return runCommand(ctx, sc, command)
	})
	r.Register(`the administrator cleans upload sessions`, func(ctx context.Context, sc *ScenarioContext, _ Step, _ []string) error {
		return runCommand(ctx, sc, "storage-users uploads sessions --clean --json")
	})
	r.Register(`the administrator cleans upload sessions with the following flags:`, cleanUploadSessionsWithFlags)
	r.Register(`the administrator restarts the upload sessions that are in postprocessing`, func(ctx context.Context, sc *ScenarioContext, _ Step, _ []string) error {
		return runCommand(ctx, sc, "storage-users uploads sessions --processing --restart --json")
	})
	r.Register(`the administrator reindexes all spaces using the CLI`, func(ctx context.Context, sc *ScenarioContext, _ Step, _ []string) error {
		return runCommand(ctx, sc, "search index --all-spaces")
	})
	r.Register(`the administrator reindexes a space "([^"]*)" using the CLI`, func(ctx context.Context, sc *ScenarioContext, _ Step, args []string) error {
		spaceID, err := sc.Env.Spaces.SpaceIDByName(ctx, sc.Admin(), args[0])
		if err != nil {
			return err
		}
		return runCommand(ctx, sc, "search index --space "+spaceID)
	})
	r.Register(`the administrator lists all the unified roles using the CLI`, func(ctx context.Context, sc *ScenarioContext, _ Step, _ []string) error {
		return runCommand(ctx, sc, "graph list-unified-roles")
	})
	r.Register(`the command should be (successful|unsuccessful)`, commandShouldBe)
	r.Register(`the command output (should|should not) contain "(.*)"`, commandOutputShouldContain)
}

func runCommand(ctx context.Context, sc *ScenarioContext, command string, inputs ...string) error {
	logging.Debug(subsystem, "Running CLI command %q", command)
	result, err := sc.Env.CLI.RunCommand(ctx, command, inputs...)
	if err != nil {
		return err
	}
	sc.LastCommand = &result
	sc.RecordStatus(result.HTTPStatus, []byte(result.Message))
	return nil
}

func resetPassword(ctx context.Context, sc *ScenarioContext, _ Step, args []string) error {
	existing, user, password := args[0] == "existing", args[1], args[2]
	if err := runCommand(ctx, sc, "idm resetpassword -u "+user, password, password); err != nil {
		return err
	}
	if existing {
		sc.SetPassword(user, password)
	}
	return nil
}

func cleanUploadSessionsWithFlags(ctx context.Context, sc *ScenarioContext, step Step, _ []string) error {
	if len(step.Table) == 0 {
		return fmt.Errorf("expected a table of flags")
	}
	flags := make([]string, 0, len(step.Table))
	for _, row := range step.Table {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		flags = append(flags, "--"+row[0])
	}
	return runCommand(ctx, sc, "storage-users uploads sessions "+strings.Join(flags, " ")+" --clean --json")
}

func lastCommand(sc *ScenarioContext) (*wrapper.CommandResult, error) {
	if sc.LastCommand == nil {
		return nil, fmt.Errorf("no CLI command has been run in this scenario")
	}
	return sc.LastCommand, nil
}

func commandShouldBe(_ context.Context, sc *ScenarioContext, _ Step, args []string) error {
	result, err := lastCommand(sc)
	if err != nil {
		return err
	}
	if result.HTTPStatus != http.StatusOK {
		return Failf("expected HTTP status %d from the wrapper, got %d: %s", http.StatusOK, result.HTTPStatus, result.Message)
	}

	wantStatus, wantExit := wrapper.StatusOK, 0
	if args[0] == "unsuccessful" {
		wantStatus, wantExit = wrapper.StatusError, 1
	}
	if result.Status != wantStatus {
		return Failf("expected command status %q, got %q: %s", wantStatus, result.Status, result.Message)
	}
	if result.ExitCode != wantExit {
		return Failf("expected exit code to be %d, but got %d", wantExit, result.ExitCode)
	}
	return nil
}

func commandOutputShouldContain(_ context.Context, sc *ScenarioContext, _ Step, args []string) error {
	result, err := lastCommand(sc)
	if err != nil {
		return err
	}
	contains := strings.Contains(result.Message, args[1])
	switch {
	case args[0] == "should" && !contains:
		return Failf("command output does not contain %q:\n%s", args[1], result.Message)
	case args[0] == "should not" && contains:
		return Failf("command output unexpectedly contains %q:\n%s", args[1], result.Message)
	}
	return nil
}
