package main

import (
	"github.com/spf13/cobra"

	"github.com/rhuss/tokengate/pkg/config"
	"github.com/rhuss/tokengate/pkg/debug"
)

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tokengate",
		Short:         "Path-based token authentication server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "path to the YAML config file")

	cmd.AddCommand(ServeCmd())
	cmd.AddCommand(MatchCmd())
	cmd.AddCommand(CheckCmd())
	cmd.AddCommand(TokenCmd())

	return cmd
}

// loadConfig loads the configuration named by the --config flag and sets up
// logging from it.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	debug.Init(cfg.Log.Debug, cfg.Log.Level, cfg.Log.Format)
	return cfg, config.DiscoverConfigFile(path), nil
}
