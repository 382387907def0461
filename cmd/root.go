package cmd

import (
	"fmt"
	"os"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/log"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals
var (
	version    = "undefined"
	buildTime  = "undefined"
	configPath string
	cfg        *config.Config
)

const (
	defaultConfigPath = "./config.yml"
	configFileEnvVar  = config.ConfigFilePath
)

// NewRootCommand creates a new root cli command instance
func NewRootCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "dnstestbed",
		Short: "dnstestbed is a DNS/DNSSEC conformance test bed",
		Long: `Builds an isolated delegation chain from the root zone down to a zone under test,
optionally signs every zone and serves it to a resolver under test.

Every node gets its own loopback address, the traffic between them can be observed.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(newServeCommand(), args)
		},
	}

	c.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")

	c.AddCommand(
		newServeCommand(),
		NewQueryCommand(),
		NewValidateCommand(),
		NewVersionCommand(),
	)

	return c
}

func initConfig() error {
	if path, ok := os.LookupEnv(configFileEnvVar); ok {
		configPath = path
	}

	c, err := config.LoadConfig(configPath, configPath != defaultConfigPath)
	if err != nil {
		return fmt.Errorf("unable to load configuration: %w", err)
	}

	cfg = c

	log.ConfigureLogger(cfg.Log)

	return nil
}

// Execute starts the command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
