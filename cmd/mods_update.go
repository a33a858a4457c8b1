package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/evermod/everctl/internal/download"
	"github.com/evermod/everctl/internal/mods"
	"github.com/evermod/everctl/internal/ui/styles"
)

var (
	updateRefresh bool
	updateDryRun  bool
)

var modsUpdateCmd = &cobra.Command{
	Use:   "update [NAME...]",
	Short: "Update installed mods",
	Long: `Update installed mods to the builds advertised by the mod database.

Without arguments every installed mod is checked. Updates replace the
installed artifact in place; unzipped (folder) mods are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		install, _, err := currentInstall()
		if err != nil {
			return err
		}
		installed, err := scanInstalled(install, true)
		if err != nil {
			return err
		}

		targets := installed
		if len(args) > 0 {
			targets = make(map[string]mods.ModMeta, len(args))
			for _, name := range args {
				m, ok := installed[name]
				if !ok {
					return fmt.Errorf("mod %q is not installed", name)
				}
				targets[name] = m
			}
		}

		client := newRegistryClient()
		db, err := client.Database(cmd.Context(), updateRefresh)
		if err != nil {
			return err
		}

		var updates []mods.UpdateInfo
		for _, m := range targets {
			if u, ok := db.UpdateFor(m); ok {
				updates = append(updates, u)
			}
		}
		if len(updates) == 0 {
			fmt.Println("All mods up to date.")
			return nil
		}
		sort.Slice(updates, func(i, j int) bool { return updates[i].Old.Name < updates[j].Old.Name })

		if updateDryRun {
			var delta int64
			for _, u := range updates {
				fmt.Printf("  %s %s  %s\n",
					styles.ModName.Render(u.Old.Name),
					styles.ModVersion.Render(u.Old.Version.String()+" "+styles.Arrow.String()+" "+u.New.String()),
					styles.MutedText.Render(styles.FormatDelta(u.DeltaSize())))
				delta += u.DeltaSize()
			}
			fmt.Printf("\n  %s\n", styles.MutedText.Render(fmt.Sprintf(
				"%d updates, %s on disk", len(updates), styles.FormatDelta(delta))))
			return nil
		}

		requests := make([]download.Request, len(updates))
		for i, u := range updates {
			requests[i] = download.ForUpdate(u)
		}
		summary, err := runDownloads("Updating mods", install.ModsDir(), requests, nil)
		if err != nil {
			return err
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d of %d updates failed", summary.Failed, len(requests))
		}
		return nil
	},
}

func init() {
	modsUpdateCmd.Flags().BoolVar(&updateRefresh, "refresh", false, "Bypass the registry cache")
	modsUpdateCmd.Flags().BoolVarP(&updateDryRun, "dry-run", "n", false, "List available updates without downloading")
	modsCmd.AddCommand(modsUpdateCmd)
}
