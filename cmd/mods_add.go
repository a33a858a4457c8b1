package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/evermod/everctl/internal/download"
	"github.com/evermod/everctl/internal/logger"
	"github.com/evermod/everctl/internal/mods"
	"github.com/evermod/everctl/internal/registry"
	"github.com/evermod/everctl/internal/resolver"
	"github.com/evermod/everctl/internal/ui/progress"
	"github.com/evermod/everctl/internal/version"
)

var addRefresh bool

var modsAddCmd = &cobra.Command{
	Use:   "add NAME...",
	Short: "Install mods with their dependencies",
	Long: `Install one or more mods from the mod database.

Dependencies are resolved against the published dependency graph and
installed first. The requested mods only land in the Mods folder once
every download in the batch succeeded.`,
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

		client := newRegistryClient()
		ctx := cmd.Context()
		db, err := client.Database(ctx, addRefresh)
		if err != nil {
			return err
		}
		graph, err := client.Graph(ctx, addRefresh)
		if err != nil {
			return err
		}

		modsDir := install.ModsDir()
		var roots []mods.ModMeta
		var staged []download.Request

		for _, name := range args {
			d, ok := db.Download(name)
			if !ok {
				return fmt.Errorf("mod %q not found in the mod database", name)
			}
			meta := d.Meta
			if decl, ok := graph.Lookup(name); ok {
				meta.Dependencies = decl.Dependencies
				meta.OptionalDependencies = decl.OptionalDependencies
			}
			roots = append(roots, meta)

			cur, ok := installed[name]
			if !ok {
				staged = append(staged, download.ForMod(d, modsDir))
				continue
			}
			if cur.Blacklisted {
				if err := mods.Enable(modsDir, filepath.Base(cur.Path)); err != nil {
					return err
				}
				progress.PrintComplete(name + " enabled")
			}
			if u, ok := db.UpdateFor(cur); ok {
				staged = append(staged, download.ForUpdate(u))
			} else {
				progress.PrintComplete(name + " already up to date")
			}
		}

		result, err := resolver.Resolve(roots, graph)
		if err != nil {
			if resolver.IsConflict(err) {
				return fmt.Errorf("cannot install %v together: %w", args, err)
			}
			return err
		}
		checkEnvironment(install.EverestVersion(), result)

		primary, err := planDependencies(result.Required, installed, db, modsDir)
		if err != nil {
			return err
		}
		primary = dedupeRequests(primary, staged)

		if len(primary)+len(staged) == 0 {
			fmt.Println("Nothing to do.")
			return nil
		}
		summary, err := runDownloads("Installing mods", modsDir, primary, staged)
		if err != nil {
			return err
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d of %d downloads failed", summary.Failed, len(primary)+len(staged))
		}
		return nil
	},
}

// checkEnvironment warns when the resolution demands a newer mod loader
// than the install provides. Game version requirements are only logged;
// the game version is not sniffed.
func checkEnvironment(everestVersion version.Version, result resolver.Result) {
	for _, c := range result.Special {
		switch c.Name {
		case resolver.EverestName:
			if !everestVersion.Satisfies(c.Version) {
				progress.PrintWarning(fmt.Sprintf(
					"requires Everest %s (installed: %s), run `everctl everest install`",
					c.Version, everestVersion))
			}
		case resolver.CelesteName:
			logger.Debug("game version requirement", "required", c.Version.String())
		}
	}
}

// planDependencies turns unmet required constraints into download
// requests. Installed mods that already satisfy their constraint are
// left alone; blacklisted ones are re-enabled.
func planDependencies(required []resolver.Constraint, installed map[string]mods.ModMeta, db registry.Database, modsDir string) ([]download.Request, error) {
	var requests []download.Request
	for _, c := range required {
		cur, ok := installed[c.Name]
		if ok {
			if cur.Blacklisted {
				if err := mods.Enable(modsDir, filepath.Base(cur.Path)); err != nil {
					return nil, err
				}
			}
			if cur.Version.Satisfies(c.Version) {
				continue
			}
			if u, ok := db.UpdateFor(cur); ok {
				requests = append(requests, download.ForUpdate(u))
				continue
			}
		}
		d, ok := db.Download(c.Name)
		if !ok {
			progress.PrintWarning("no download available for dependency " + c.String())
			continue
		}
		requests = append(requests, download.ForMod(d, modsDir))
	}
	return requests, nil
}

// dedupeRequests drops primary requests whose destination is already
// covered, either by another primary request or a staged one.
func dedupeRequests(primary, staged []download.Request) []download.Request {
	seen := make(map[string]bool, len(primary)+len(staged))
	for _, r := range staged {
		seen[r.Dest] = true
	}
	out := primary[:0]
	for _, r := range primary {
		if seen[r.Dest] {
			continue
		}
		seen[r.Dest] = true
		out = append(out, r)
	}
	return out
}

func init() {
	modsAddCmd.Flags().BoolVar(&addRefresh, "refresh", false, "Bypass the registry cache")
	modsCmd.AddCommand(modsAddCmd)
}
