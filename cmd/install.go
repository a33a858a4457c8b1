package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/evermod/everctl/internal/config"
	"github.com/evermod/everctl/internal/ui/styles"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Manage game installs",
	Long: `Manage the game installs everctl operates on.

Examples:
  everctl install add main ~/games/Celeste
  everctl install list
  everctl install primary main`,
}

var installAddCmd = &cobra.Command{
	Use:   "add NAME PATH",
	Short: "Register a game install",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, path := args[0], args[1]
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", abs)
		}

		manager, err := loadConfig()
		if err != nil {
			return err
		}
		manager.Set(name, config.Install{Path: abs})
		if err := manager.Save(); err != nil {
			return err
		}
		fmt.Printf("Registered install %s at %s\n", name, abs)
		return nil
	},
}

var installListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered installs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := loadConfig()
		if err != nil {
			return err
		}
		names := manager.List()
		if len(names) == 0 {
			fmt.Println("No installs registered.")
			return nil
		}
		for _, name := range names {
			install, err := manager.Get(name)
			if err != nil {
				return err
			}
			loader := "no Everest"
			if install.EverestBuild > 0 {
				loader = fmt.Sprintf("Everest build %d", install.EverestBuild)
			}
			fmt.Printf("  %s  %s  %s\n",
				styles.ModName.Render(name),
				styles.MutedText.Render(install.Path),
				styles.ModVersion.Render(loader))
		}
		return nil
	},
}

var installPrimaryCmd = &cobra.Command{
	Use:   "primary NAME",
	Short: "Set the default install",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := loadConfig()
		if err != nil {
			return err
		}
		if err := manager.SetPrimary(args[0]); err != nil {
			return err
		}
		return manager.Save()
	},
}

var installRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Forget a registered install",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := loadConfig()
		if err != nil {
			return err
		}
		manager.Delete(args[0])
		return manager.Save()
	},
}

func init() {
	installCmd.AddCommand(installAddCmd, installListCmd, installPrimaryCmd, installRemoveCmd)
	rootCmd.AddCommand(installCmd)
}
