package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/evermod/everctl/internal/ui/styles"
)

var listDependencies bool

var modsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed mods",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		install, _, err := currentInstall()
		if err != nil {
			return err
		}
		installed, err := scanInstalled(install, false)
		if err != nil {
			return err
		}
		if len(installed) == 0 {
			fmt.Println("No mods installed.")
			return nil
		}

		names := make([]string, 0, len(installed))
		for name := range installed {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			m := installed[name]
			fmt.Printf("  %s %s  %s\n",
				styles.ModName.Render(m.Name),
				styles.ModVersion.Render(m.Version.String()),
				styles.FormatModStatus(m.Blacklisted))
			if listDependencies {
				for _, d := range m.Dependencies {
					fmt.Printf("      %s\n", styles.MutedText.Render(d.String()))
				}
				for _, d := range m.OptionalDependencies {
					fmt.Printf("      %s\n", styles.MutedText.Render(d.String()+" (optional)"))
				}
			}
		}
		fmt.Printf("\n  %s\n", styles.MutedText.Render(fmt.Sprintf("%d mods", len(names))))
		return nil
	},
}

func init() {
	modsListCmd.Flags().BoolVarP(&listDependencies, "dependencies", "d", false, "Show each mod's dependencies")
	modsCmd.AddCommand(modsListCmd)
}
