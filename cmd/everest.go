package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/evermod/everctl/internal/download"
	"github.com/evermod/everctl/internal/everest"
	"github.com/evermod/everctl/internal/ui/progress"
)

var everestLatest bool

var everestCmd = &cobra.Command{
	Use:   "everest",
	Short: "Manage the Everest mod loader",
}

var everestInstallCmd = &cobra.Command{
	Use:   "install [VERSIONSPEC]",
	Short: "Install or update the Everest mod loader",
	Long: `Install Everest into the game directory.

VERSIONSPEC can be a branch name (stable, beta, dev), a build number,
or a version number like 1.4017.0. Without arguments the install's
preferred branch is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		install, name, manager, err := currentInstallNamed()
		if err != nil {
			return err
		}

		spec := ""
		switch {
		case everestLatest:
		case len(args) > 0:
			spec = args[0]
		case install.PreferredBranch != "":
			spec = install.PreferredBranch
		default:
			spec = "stable"
		}

		source := everest.NewSource()
		build, err := source.ResolveBuild(cmd.Context(), spec)
		if err != nil {
			return err
		}
		if install.EverestBuild == build {
			fmt.Printf("Everest build %d is already installed.\n", build)
			return nil
		}

		artifactPath := filepath.Join(install.Path, "olympus-build.zip")
		req := download.Request{
			Name: fmt.Sprintf("Everest build %d", build),
			URL:  source.ArtifactURL(build),
			Dest: artifactPath,
		}
		summary, err := runDownloads(fmt.Sprintf("Installing Everest build %d", build),
			install.Path, []download.Request{req}, nil)
		if err != nil {
			return err
		}
		if summary.Failed > 0 {
			return fmt.Errorf("downloading build %d failed", build)
		}
		defer os.Remove(artifactPath)

		if err := everest.Unpack(artifactPath, install.Path); err != nil {
			return err
		}
		progress.PrintComplete(fmt.Sprintf("Everest build %d unpacked into %s", build, install.Path))

		install.EverestBuild = build
		manager.Set(name, install)
		return manager.Save()
	},
}

func init() {
	everestInstallCmd.Flags().BoolVar(&everestLatest, "latest", false, "Install the newest build of any branch")
	everestCmd.AddCommand(everestInstallCmd)
	rootCmd.AddCommand(everestCmd)
}
