package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"ocisaccept/internal/cli"
	"ocisaccept/internal/graph"
	"ocisaccept/internal/steps"
	"ocisaccept/internal/tus"
)

type uploadOptions struct {
	user       string
	space      string
	mtime      string
	createOnly bool
	output     string
}

// uploadResult is what the upload command prints.
type uploadResult struct {
	Space    string `json:"space"`
	SpaceID  string `json:"spaceId"`
	Resource string `json:"resource"`
	Location string `json:"location"`
	Written  bool   `json:"written"`
}

func newUploadCmd() *cobra.Command {
	opts := &uploadOptions{}

	cmd := &cobra.Command{
		Use:   "upload LOCAL_FILE [DESTINATION]",
		Short: "Upload a file to a space with a single-shot TUS upload",
		Long: `Upload a local file into a space of the configured oCIS server.

The upload announces the file with a TUS creation request, checks the
created resource and writes the whole file at offset zero. It does not
resume or chunk. DESTINATION defaults to the base name of LOCAL_FILE.

Example usage:
  ocisaccept upload ./textfile.txt --user Alice
  ocisaccept upload ./report.pdf /docs/report.pdf --user Alice --space Marketing
  ocisaccept upload ./old.txt --user Alice --mtime lastYear
  ocisaccept upload ./big.bin --user Alice --create-only -o json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.user, "user", "u", "", "User to upload as (default: the administrator)")
	cmd.Flags().StringVar(&opts.space, "space", graph.PersonalSpace, "Name of the target space")
	cmd.Flags().StringVar(&opts.mtime, "mtime", "", "Modification time: today, yesterday, lastWeek, lastMonth, lastYear or a date")
	cmd.Flags().BoolVar(&opts.createOnly, "create-only", false, "Only create the upload resource, do not write the content")
	cmd.Flags().StringVarP(&opts.output, "output", "o", string(cli.OutputFormatTable), "Output format (table, json, yaml)")
	cmd.MarkFlagsMutuallyExclusive("create-only", "mtime")

	return cmd
}

func runUpload(cmd *cobra.Command, opts *uploadOptions, args []string) error {
	format, err := cli.ParseOutputFormat(opts.output)
	if err != nil {
		return err
	}

	local := args[0]
	destination := filepath.Base(local)
	if len(args) == 2 {
		destination = args[1]
	}

	var extra []tus.MetadataPair
	if opts.mtime != "" {
		t, err := steps.ResolveMtime(opts.mtime, time.Now())
		if err != nil {
			return fmt.Errorf("invalid mtime %q: %w", opts.mtime, err)
		}
		extra = append(extra, tus.MetadataPair{Key: "mtime", Value: strconv.FormatInt(t.Unix(), 10)})
	}

	env, err := newEnvironment(settings)
	if err != nil {
		return err
	}
	user := credentialsFor(opts.user)

	ctx := cmd.Context()
	spaceID, err := env.Spaces.SpaceIDByName(ctx, user, opts.space)
	if err != nil {
		return err
	}

	target := tus.UploadTarget{
		BaseURL:       settings.Server.BaseURL,
		SpaceID:       spaceID,
		ResourceName:  destination,
		LocalFilePath: local,
	}

	result := uploadResult{Space: opts.space, SpaceID: spaceID, Resource: destination}
	if opts.createOnly {
		result.Location, err = env.TUS.CreateUploadSession(ctx, user, target, extra...)
	} else {
		result.Location, err = env.TUS.Upload(ctx, user, target, extra...)
		result.Written = err == nil
	}
	if err != nil {
		return fmt.Errorf("upload of %s failed: %w", local, err)
	}

	return cli.NewPrinter(cmd.OutOrStdout(), format).Print(result)
}
