package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/checkin/internal/config"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// loadConfig reads the config file (if any) and the environment, then lets
// the logging flags win.
func (o *globalOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	serve := newServeCommand(opts)

	root := &cobra.Command{
		Use:   "checkin",
		Short: "Togather check-in server - event attendance backend",
		Long: `Togather check-in server tracks who attended which event.

Hackers register and log in to view their own check-ins. Admins manage
users and events and record check-ins at the door.`,
		SilenceUsage: true,
		// Serve is the default when no subcommand is given.
		RunE: serve.RunE,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (environment variables override it)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: json or console")

	root.AddCommand(
		serve,
		newMigrateCommand(opts),
		newTokenCommand(opts),
		newHealthcheckCommand(),
		newVersionCommand(),
	)
	return root
}

// Execute runs the CLI. It is called once from main.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
