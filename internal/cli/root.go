package cli

import (
	"github.com/spf13/cobra"

	"github.com/volumeee/zenclaw-sub000/internal/config"
	"github.com/volumeee/zenclaw-sub000/internal/logging"
)

var (
	cfgFile  string
	logLevel string

	// loaded by the root command before any subcommand runs
	paths  config.Paths
	cfg    config.Config
	cfgErr error
	log    *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zenclaw",
		Short: "zenclaw, a lightweight AI agent runtime",
		Long: "zenclaw runs tool-using AI agents over a message bus. Chat with an agent\n" +
			"from the terminal, or serve it to the gateway and other channels.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			if err := config.LoadDotEnv(paths); err != nil {
				return err
			}

			cfg, cfgErr = config.Load(paths.Config)
			if cfgErr != nil {
				cfg = config.Defaults()
			}

			level := logLevel
			if level == "" {
				level = cfg.Logging.Level
			}
			log = logging.NewWithStyle(nil, level, cfg.Logging.ConsoleStyle)
			if cfgErr != nil {
				log.Warn().Err(cfgErr).Str("path", paths.Config).Msg("config not loaded, using defaults")
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .zenclaw/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newSendCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newKnowledgeCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
