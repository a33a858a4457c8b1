package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evermod/everctl/internal/mods"
	"github.com/evermod/everctl/internal/resolver"
	"github.com/evermod/everctl/internal/ui/progress"
)

var removeDeps bool

var modsRemoveCmd = &cobra.Command{
	Use:   "remove NAME...",
	Short: "Remove installed mods",
	Long: `Remove installed mods from the Mods folder.

With --deps, dependencies that no remaining mod needs are removed as
well. Dependencies still required by another installed mod are always
kept.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		install, _, err := currentInstall()
		if err != nil {
			return err
		}
		installed, err := scanInstalled(install, false)
		if err != nil {
			return err
		}

		targets := make([]mods.ModMeta, 0, len(args))
		for _, name := range args {
			m, ok := installed[name]
			if !ok {
				return fmt.Errorf("mod %q is not installed", name)
			}
			targets = append(targets, m)
		}

		if removeDeps {
			orphans, err := resolver.Exclusive(targets, installed)
			if err != nil {
				return err
			}
			targets = append(targets, orphans...)
		}

		removed := 0
		for _, m := range targets {
			if err := removeArtifact(m); err != nil {
				progress.PrintError(m.Name + ": " + err.Error())
				continue
			}
			progress.PrintComplete(m.Name + " removed")
			removed++
		}
		progress.PrintSummary("%d mods removed", removed)
		return nil
	},
}

func removeArtifact(m mods.ModMeta) error {
	info, err := os.Stat(m.Path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return os.RemoveAll(m.Path)
	}
	return os.Remove(m.Path)
}

func init() {
	modsRemoveCmd.Flags().BoolVar(&removeDeps, "deps", false, "Also remove dependencies nothing else needs")
	modsCmd.AddCommand(modsRemoveCmd)
}
