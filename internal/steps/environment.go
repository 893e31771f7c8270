package steps

import (
	"context"
	"fmt"

	"ocisaccept/internal/config"
	"ocisaccept/internal/graph"
	"ocisaccept/internal/httpclient"
	"ocisaccept/internal/ocm"
	"ocisaccept/internal/serverconfig"
	"ocisaccept/internal/tus"
	"ocisaccept/internal/webdav"
	"ocisaccept/internal/wrapper"
)

// CommandRunner runs server CLI commands and controls the server process.
type CommandRunner interface {
	RunCommand(ctx context.Context, command string, inputs ...string) (wrapper.CommandResult, error)
	Start(ctx context.Context) (int, error)
	Stop(ctx context.Context) (int, error)
}

// SpaceResolver turns a space name into its id.
type SpaceResolver interface {
	SpaceIDByName(ctx context.Context, user httpclient.Credentials, name string) (string, error)
}

// Downloader reads a file from a space.
type Downloader interface {
	Download(ctx context.Context, user httpclient.Credentials, spaceID, path string) ([]byte, int, error)
}

// Inviter exchanges federation invitations.
type Inviter interface {
	CreateInvitation(ctx context.Context, user httpclient.Credentials, recipientEmail, description string) (ocm.Invitation, int, error)
	AcceptInvitation(ctx context.Context, user httpclient.Credentials, token, providerDomain string) (int, error)
}

// Uploader performs single-shot TUS uploads.
type Uploader interface {
	CreateUploadSession(ctx context.Context, creds tus.Credentials, target tus.UploadTarget, extra ...tus.MetadataPair) (string, error)
	UploadBytes(ctx context.Context, creds tus.Credentials, location, localFile string) error
	Upload(ctx context.Context, creds tus.Credentials, target tus.UploadTarget, extra ...tus.MetadataPair) (string, error)
}

// Environment holds the collaborators shared by every scenario of a run.
type Environment struct {
	Config       config.Config
	CLI          CommandRunner
	Reconfigurer serverconfig.Reconfigurer
	Spaces       SpaceResolver
	Files        Downloader
	Invitations  Inviter
	TUS          Uploader
}

// NewEnvironment builds the real collaborators described by cfg.
func NewEnvironment(cfg config.Config) (*Environment, error) {
	client := httpclient.New(cfg.Server.Timeout, cfg.Server.InsecureTLS())

	w := wrapper.NewClient(cfg.Wrapper.URL, client)
	reconfigurer, err := serverconfig.New(cfg, w)
	if err != nil {
		return nil, fmt.Errorf("failed to set up server reconfiguration: %w", err)
	}

	escaper := tus.NoEscape
	if cfg.TUS.EscapeDollarEnabled() {
		escaper = tus.DollarToPercent
	}

	return &Environment{
		Config:       cfg,
		CLI:          w,
		Reconfigurer: reconfigurer,
		Spaces:       graph.NewClient(cfg.Server.BaseURL, client),
		Files:        webdav.NewClient(cfg.Server.BaseURL, client),
		Invitations:  ocm.NewClient(cfg.Server.BaseURL, client),
		TUS:          tus.NewUploader(client, tus.WithEscaper(escaper)),
	}, nil
}

// NewScenario returns fresh state for one scenario, including its own
// configuration tracker.
func (e *Environment) NewScenario() *ScenarioContext {
	return &ScenarioContext{
		Env:       e,
		Tracker:   serverconfig.NewTracker(e.Reconfigurer),
		passwords: make(map[string]string),
	}
}
