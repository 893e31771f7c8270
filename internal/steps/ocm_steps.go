package steps

import (
	"context"
	"net/http"
)

func registerOCMSteps(r *Registry) {
	r.Register(`"([^"]*)" (has created|creates) the federation share invitation(?: with email "([^"]*)" and description "([^"]*)")?`, createInvitation)
	r.Register(`"([^"]*)" (has accepted|accepts) invitation`, acceptInvitation)
	r.Register(`the invitation token should not be empty`, func(_ context.Context, sc *ScenarioContext, _ Step, _ []string) error {
		if sc.LastInvitationToken == "" {
			return Failf("expected an invitation token, got none")
		}
		return nil
	})
}

func createInvitation(ctx context.Context, sc *ScenarioContext, _ Step, args []string) error {
	user, given, email, description := args[0], args[1] == "has created", args[2], args[3]

	inv, status, err := sc.Env.Invitations.CreateInvitation(ctx, sc.Credentials(user), email, description)
	if err != nil {
		return err
	}
	sc.RecordStatus(status, nil)
	if status == http.StatusOK {
		sc.LastInvitationToken = inv.Token
	}
	if given {
		return expectOK("creating a federation share invitation", status, nil)
	}
	return nil
}

func acceptInvitation(ctx context.Context, sc *ScenarioContext, _ Step, args []string) error {
	user, given := args[0], args[1] == "has accepted"
	if sc.LastInvitationToken == "" {
		return Failf("no invitation has been created in this scenario")
	}

	status, err := sc.Env.Invitations.AcceptInvitation(ctx, sc.Credentials(user), sc.LastInvitationToken, sc.Env.Config.Server.ProviderDomain)
	if err != nil {
		return err
	}
	sc.RecordStatus(status, nil)
	if given {
		return expectOK("accepting the federation share invitation", status, nil)
	}
	return nil
}
