// sourcepilot is a chat-first procurement sourcing copilot. A supervisor
// routes each message to one of six specialist agents, every factual claim
// carries a grounding reference, and stage transitions wait for explicit
// human approval.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sourcepilot/internal/config"
	"sourcepilot/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sourcepilot",
	Short: "sourcepilot - governed sourcing copilot",
	Long: `sourcepilot is a chat-first copilot for procurement sourcing cases.

Each case moves through six DTP stages (Strategy to Execution). Specialist
agents scan signals, score suppliers, draft RFx documents, plan negotiations,
validate contracts, and track implementation. Agents recommend; humans decide.
No stage transition happens without an explicit approval.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if verbose {
			cfg.Logging.DebugMode = true
			cfg.Logging.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return initLogging(cfg)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(),
		"path to sourcepilot.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")

	rootCmd.AddCommand(caseCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(seedCmd)
}

func main() {
	err := rootCmd.Execute()
	logging.CloseAudit()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
