package steps

import (
	"context"
	"net/http"

	"github.com/spf13/cast"
)

func registerAssertionSteps(r *Registry) {
	r.Register(`the HTTP status code should be "(\d{3})"`, func(_ context.Context, sc *ScenarioContext, _ Step, args []string) error {
		want := cast.ToInt(args[0])
		if sc.LastStatus == 0 {
			return Failf("expected HTTP status code %d, but no request has been recorded", want)
		}
		if sc.LastStatus != want {
			return Failf("expected HTTP status code %d, got %d", want, sc.LastStatus)
		}
		return nil
	})
	r.Register(`as "([^"]*)" file "([^"]*)" in space "([^"]*)" should have content "(.*)"`, func(ctx context.Context, sc *ScenarioContext, _ Step, args []string) error {
		body, err := download(ctx, sc, args[0], args[1], args[2])
		if err != nil {
			return err
		}
		if string(body) != args[3] {
			return Failf("expected content of %q to be %q, got %q", args[1], args[3], body)
		}
		return nil
	})
	r.Register(`as "([^"]*)" file "([^"]*)" in space "([^"]*)" should have size (\d+)`, func(ctx context.Context, sc *ScenarioContext, _ Step, args []string) error {
		want, err := cast.ToInt64E(args[3])
		if err != nil {
			return err
		}
		body, err := download(ctx, sc, args[0], args[1], args[2])
		if err != nil {
			return err
		}
		if int64(len(body)) != want {
			return Failf("expected size of %q to be %d, got %d", args[1], want, len(body))
		}
		return nil
	})
}

func download(ctx context.Context, sc *ScenarioContext, user, file, space string) ([]byte, error) {
	creds := sc.Credentials(user)
	spaceID, err := sc.Env.Spaces.SpaceIDByName(ctx, creds, space)
	if err != nil {
		return nil, err
	}
	body, status, err := sc.Env.Files.Download(ctx, creds, spaceID, file)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, Failf("downloading %q as %s: expected HTTP status %d, got %d", file, user, http.StatusOK, status)
	}
	return body, nil
}
