// Package commands wires the listing-chat CLI.
package commands

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"listing-chat/config"
	"listing-chat/logger"
)

var (
	configPath string

	cfg *config.Config
	log zerolog.Logger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "listing-chat",
		Short:         "Encrypted buyer/seller messaging for marketplace listings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = c
			log = logger.New(cfg.Log.Level, cfg.Log.Pretty)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (env CHAT_* overrides it)")

	root.AddCommand(serveCmd(), migrateCmd(), tokenCmd())
	return root
}

func Execute() error {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		root.PrintErrln("Error:", err)
		return err
	}
	return nil
}
