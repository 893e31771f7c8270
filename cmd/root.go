package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ocisaccept/internal/config"
	"ocisaccept/pkg/logging"
)

var (
	configFile string
	logLevel   string
	debug      bool

	// settings is loaded once before any subcommand runs.
	settings config.Config
)

// loadConfig is replaced in tests.
var loadConfig = func(path string) (config.Config, error) {
	if path != "" {
		return config.LoadConfigFromPath(path)
	}
	return config.LoadConfig()
}

// rootCmd represents the base command when called without any subcommands
var rootCmd *cobra.Command

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ocisaccept",
		Short: "Run acceptance scenarios against an oCIS server",
		Long: `ocisaccept drives acceptance scenarios against a running oCIS server.

It uploads files through the TUS protocol, runs server CLI commands through
the test wrapper, reconfigures the server and rolls it back after every
scenario, and exchanges federation invitations between users.`,
		// SilenceUsage is set to true to prevent printing usage message on errors
		// handled by us (e.g. failed scenarios, unreachable server)
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file (default: user and project configuration)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newSelfUpdateCmd())
	cmd.AddCommand(newTestCmd())
	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newCommandCmd())
	cmd.AddCommand(newSpacesCmd())
	return cmd
}

func setup(cmd *cobra.Command, args []string) error {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	if debug {
		level = logging.LevelDebug
	}
	// stdout belongs to reports and the MCP transport
	logging.InitForCLI(level, os.Stderr)

	settings, err = loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "ocisaccept version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd = newRootCmd()
}
