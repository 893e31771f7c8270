package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ocisaccept/internal/cli"
)

type commandOptions struct {
	inputs []string
	output string
}

func newCommandCmd() *cobra.Command {
	opts := &commandOptions{}

	cmd := &cobra.Command{
		Use:   "command -- SERVER_COMMAND [ARGS...]",
		Short: "Run an oCIS CLI command through the test wrapper",
		Long: `Run a server CLI command on the oCIS host through the test wrapper and
print its status, exit code and output.

Example usage:
  ocisaccept command -- storage-users uploads sessions --json
  ocisaccept command --input secret --input secret -- idm resetpassword -u admin`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(opts.output)
			if err != nil {
				return err
			}

			env, err := newEnvironment(settings)
			if err != nil {
				return err
			}

			result, err := env.CLI.RunCommand(cmd.Context(), strings.Join(args, " "), opts.inputs...)
			if err != nil {
				return err
			}
			if err := cli.NewPrinter(cmd.OutOrStdout(), format).Print(struct {
				HTTPStatus int    `json:"httpStatus"`
				Status     string `json:"status"`
				ExitCode   int    `json:"exitCode"`
				Message    string `json:"message"`
			}{result.HTTPStatus, result.Status, result.ExitCode, result.Message}); err != nil {
				return err
			}
			if !result.Succeeded() {
				return fmt.Errorf("command exited with status %s (exit code %d)", result.Status, result.ExitCode)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&opts.inputs, "input", nil, "Line written to the command's stdin (repeatable)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", string(cli.OutputFormatTable), "Output format (table, json, yaml)")

	return cmd
}
