package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "warehouse",
	Short: "Warehouse inventory and dispatch service",
	Long: `A service that keeps product demand aggregates, truck bindings and
truck availability consistent as orders and shipments change, and exposes
an API, background worker and QR capture session over them.`,
	Run: func(cmd *cobra.Command, args []string) {
		err := cmd.Help()
		if err != nil {
			log.Error().Err(err).Msg("Failed to display help")
		}
	},
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing config.yaml")
}
