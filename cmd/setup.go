package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/evermod/everctl/internal/config"
	"github.com/evermod/everctl/internal/download"
	"github.com/evermod/everctl/internal/logger"
	"github.com/evermod/everctl/internal/mods"
	"github.com/evermod/everctl/internal/registry"
	"github.com/evermod/everctl/internal/ui/progress"
)

// loadConfig loads the install list from the config directory.
func loadConfig() (*config.Manager, error) {
	manager := config.NewManager(config.Dir())
	if err := manager.Load(); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return manager, nil
}

// currentInstall resolves the install selected by --install, or the
// primary one.
func currentInstall() (config.Install, *config.Manager, error) {
	install, _, manager, err := currentInstallNamed()
	return install, manager, err
}

// currentInstallNamed additionally returns the effective install name,
// for commands that write the install record back.
func currentInstallNamed() (config.Install, string, *config.Manager, error) {
	manager, err := loadConfig()
	if err != nil {
		return config.Install{}, "", nil, err
	}
	name, install, err := manager.Resolve(installName)
	if err != nil {
		return config.Install{}, "", nil, err
	}
	return install, name, manager, nil
}

// newRegistryClient builds the shared registry client.
func newRegistryClient() *registry.Client {
	return registry.NewClient(config.CacheDir(), logger.Log)
}

// scanInstalled reads the install's mod folder including disabled and
// folder-form mods.
func scanInstalled(install config.Install, withHash bool) (map[string]mods.ModMeta, error) {
	metas, err := mods.Scan(install.ModsDir(), mods.ScanOptions{
		IncludeFolders:     true,
		IncludeBlacklisted: true,
		Read:               mods.ReadOptions{WithSize: true, WithHash: withHash},
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", install.ModsDir(), err)
	}
	return mods.ByName(metas), nil
}

// runDownloads runs one download batch, rendering either the interactive
// progress display or plain log lines.
func runDownloads(title, modFolder string, primary, staged []download.Request) (download.Summary, error) {
	pool := download.NewPool()

	if noProgress {
		pool.OnProgress = func(ev download.Progress) {
			switch {
			case !ev.Done:
			case errors.Is(ev.Err, download.ErrSkipped):
				progress.PrintWarning(ev.Name + " skipped")
			case ev.Err != nil:
				progress.PrintError(ev.Name + ": " + ev.Err.Error())
			default:
				progress.PrintComplete(ev.Name)
			}
		}
		progress.PrintTitle(title)
		return pool.InstallAll(context.Background(), modFolder, primary, staged)
	}

	names := make([]string, 0, len(primary)+len(staged))
	for _, r := range primary {
		names = append(names, r.Name)
	}
	for _, r := range staged {
		names = append(names, r.Name)
	}

	model := progress.NewModel(title, names)
	model.Interrupt = pool.Interrupt
	program := tea.NewProgram(model)

	pool.OnProgress = func(ev download.Progress) {
		program.Send(progress.EventMsg{
			Name:        ev.Name,
			Total:       ev.Total,
			Transferred: ev.Transferred,
			Done:        ev.Done,
			Skipped:     errors.Is(ev.Err, download.ErrSkipped),
			Err:         ev.Err,
		})
	}

	type result struct {
		summary download.Summary
		err     error
	}
	results := make(chan result, 1)
	go func() {
		summary, err := pool.InstallAll(context.Background(), modFolder, primary, staged)
		program.Send(progress.DoneMsg{Summary: summarize(summary)})
		results <- result{summary, err}
	}()

	if _, err := program.Run(); err != nil {
		pool.Interrupt()
		res := <-results
		return res.summary, err
	}
	res := <-results
	return res.summary, res.err
}

func summarize(s download.Summary) string {
	return fmt.Sprintf("%d installed, %d failed, %d skipped in %s",
		s.Succeeded, s.Failed, s.Skipped, s.Elapsed.Round(10*time.Millisecond))
}
