package steps

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/spf13/cast"

	"ocisaccept/internal/tus"
)

const viaTUSInSpace = ` via TUS inside of the space "([^"]*)"(?: using the WebDAV API)?`

func registerTUSSteps(r *Registry) {
	r.Register(`user "([^"]*)" (has uploaded|uploads) (?:a )?file (?:from )?"([^"]*)" to "([^"]*)"`+viaTUSInSpace, uploadFile)
	r.Register(`user "([^"]*)" (has uploaded|uploads) a file with content "([^"]*)" to "([^"]*)"`+viaTUSInSpace, uploadContent)
	r.Register(`user "([^"]*)" uploads a file "([^"]*)" to "([^"]*)" with mtime "([^"]*)"`+viaTUSInSpace, uploadFileWithMtime)
	r.Register(`user "([^"]*)" (has created|creates) a new TUS resource for file "([^"]*)"(?: to "([^"]*)")? in the space "([^"]*)"`, createTUSResource)
	r.Register(`user "([^"]*)" uploads file "([^"]*)" to the last created TUS location`, uploadToLastLocation)
}

func uploadFile(ctx context.Context, sc *ScenarioContext, _ Step, args []string) error {
	user, given, source, destination, space := args[0], args[1] == "has uploaded", args[2], args[3], args[4]
	return upload(ctx, sc, user, sc.SourcePath(source), destination, space, given)
}

func uploadContent(ctx context.Context, sc *ScenarioContext, _ Step, args []string) error {
	user, given, content, destination, space := args[0], args[1] == "has uploaded", args[2], args[3], args[4]
	local, err := sc.WriteTempFile(content)
	if err != nil {
		return err
	}
	return upload(ctx, sc, user, local, destination, space, given)
}

func uploadFileWithMtime(ctx context.Context, sc *ScenarioContext, _ Step, args []string) error {
	user, source, destination, mtime, space := args[0], args[1], args[2], args[3], args[4]
	t, err := ResolveMtime(mtime, time.Now())
	if err != nil {
		return err
	}
	extra := tus.MetadataPair{Key: "mtime", Value: strconv.FormatInt(t.Unix(), 10)}
	return upload(ctx, sc, user, sc.SourcePath(source), destination, space, false, extra)
}

func upload(ctx context.Context, sc *ScenarioContext, user, local, destination, space string, given bool, extra ...tus.MetadataPair) error {
	target, err := uploadTarget(ctx, sc, user, local, destination, space)
	if err != nil {
		return err
	}

	location, err := sc.Env.TUS.Upload(ctx, sc.Credentials(user), target, extra...)
	if location != "" {
		sc.LastTUSLocation = location
		sc.LastTUSSource = local
	}
	return recordTUSOutcome(sc, err, http.StatusNoContent, given)
}

func createTUSResource(ctx context.Context, sc *ScenarioContext, _ Step, args []string) error {
	user, given, source, destination, space := args[0], args[1] == "has created", args[2], args[3], args[4]
	if destination == "" {
		destination = path.Base(source)
	}
	local := sc.SourcePath(source)

	target, err := uploadTarget(ctx, sc, user, local, destination, space)
	if err != nil {
		return err
	}
	location, err := sc.Env.TUS.CreateUploadSession(ctx, sc.Credentials(user), target)
	if err == nil {
		sc.LastTUSLocation = location
		sc.LastTUSSource = local
	}
	return recordTUSOutcome(sc, err, http.StatusCreated, given)
}

func uploadToLastLocation(ctx context.Context, sc *ScenarioContext, _ Step, args []string) error {
	user, source := args[0], args[1]
	if sc.LastTUSLocation == "" {
		return tus.ErrMissingLocation
	}
	err := sc.Env.TUS.UploadBytes(ctx, sc.Credentials(user), sc.LastTUSLocation, sc.SourcePath(source))
	return recordTUSOutcome(sc, err, http.StatusNoContent, false)
}

func uploadTarget(ctx context.Context, sc *ScenarioContext, user, local, destination, space string) (tus.UploadTarget, error) {
	spaceID, err := sc.Env.Spaces.SpaceIDByName(ctx, sc.Credentials(user), space)
	if err != nil {
		return tus.UploadTarget{}, err
	}
	return tus.UploadTarget{
		BaseURL:       sc.Env.Config.Server.BaseURL,
		SpaceID:       spaceID,
		ResourceName:  destination,
		LocalFilePath: local,
	}, nil
}

// recordTUSOutcome stores the status of the last TUS request. An
// unexpected status is something "When" steps leave to a later assertion;
// "Given" steps fail on it.
func recordTUSOutcome(sc *ScenarioContext, err error, success int, given bool) error {
	var statusErr *tus.StatusError
	switch {
	case err == nil:
		sc.RecordStatus(success, nil)
		return nil
	case errors.As(err, &statusErr):
		sc.RecordStatus(statusErr.Actual, nil)
		if given {
			return Failf("%v", statusErr)
		}
		return nil
	default:
		return err
	}
}

// ResolveMtime understands the relative names used by scenarios as well
// as absolute dates.
func ResolveMtime(value string, now time.Time) (time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch value {
	case "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	case "lastWeek":
		return today.AddDate(0, 0, -7), nil
	case "lastMonth":
		return time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, now.Location()), nil
	case "lastYear":
		return time.Date(now.Year()-1, now.Month(), 1, 0, 0, 0, 0, now.Location()), nil
	}
	return cast.ToTimeE(value)
}
