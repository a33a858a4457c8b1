package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/evermod/everctl/internal/logger"
)

// Version info set via ldflags at build time
var (
	buildVersion = "dev"
	buildCommit  = "unknown"
)

var (
	verbose     bool
	noProgress  bool
	installName string
)

var rootCmd = &cobra.Command{
	Use:     "everctl",
	Short:   "Celeste mod manager and Everest installer",
	Version: buildVersion + " (" + buildCommit + ")",
	Long: `A CLI tool to manage Celeste mods and the Everest mod loader.

Quick start:
  everctl install add main ~/games/Celeste   Register a game install
  everctl everest install stable             Install the mod loader
  everctl mods add SpringCollab2020          Install a mod with dependencies`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Close()
		os.Exit(1)
	}
	logger.Close()
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return logger.Init(verbose)
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "Disable the interactive progress display")
	rootCmd.PersistentFlags().StringVarP(&installName, "install", "i", "", "Game install to operate on (default: primary)")
}
