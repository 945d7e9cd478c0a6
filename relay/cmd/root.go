package cmd

import (
	"github.com/spf13/cobra"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "TelHawk Slack relay",
	Long: `relay holds a Slack Socket Mode connection open, acknowledges every
request Slack delivers and forwards it to an n8n webhook.

Credentials come from SLACK_BOT_TOKEN, SLACK_APP_TOKEN and N8N_WEBHOOK_URL
(or their RELAY_ prefixed equivalents) or from the config file.`,
	Version:       "0.1.0",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or /etc/telhawk/relay/config.yaml)")
}

// loadConfig reads and validates the configuration for commands that need a
// complete one.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
