package cmd

import (
	"github.com/spf13/cobra"

	"ocisaccept/internal/cli"
	"ocisaccept/internal/graph"
	"ocisaccept/internal/httpclient"
)

func newSpacesCmd() *cobra.Command {
	var (
		user   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "spaces",
		Short: "List the spaces a user can see",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}

			httpClient := httpclient.New(settings.Server.Timeout, settings.Server.InsecureTLS())
			client := graph.NewClient(settings.Server.BaseURL, httpClient)
			drives, err := client.MyDrives(cmd.Context(), credentialsFor(user))
			if err != nil {
				return err
			}
			return cli.NewPrinter(cmd.OutOrStdout(), format).Print(drives)
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "User whose spaces are listed (default: the administrator)")
	cmd.Flags().StringVarP(&output, "output", "o", string(cli.OutputFormatTable), "Output format (table, json, yaml)")
	return cmd
}

// credentialsFor returns the configured credentials of user, or of the
// administrator when user is empty.
func credentialsFor(user string) httpclient.Credentials {
	if user == "" {
		user = settings.Admin.Username
	}
	return httpclient.Credentials{Username: user, Password: settings.PasswordFor(user)}
}
