package cmd

import (
	"github.com/spf13/cobra"
)

var modsCmd = &cobra.Command{
	Use:   "mods",
	Short: "Manage installed Celeste mods",
	Long: `Manage the Mods folder of a game install.

Examples:
  everctl mods list
  everctl mods add SpringCollab2020
  everctl mods update
  everctl mods remove SpringCollab2020`,
}

func init() {
	rootCmd.AddCommand(modsCmd)
}
