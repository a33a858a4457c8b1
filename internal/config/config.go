// Package config persists the known game installs and everctl settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/evermod/everctl/internal/everest"
	"github.com/evermod/everctl/internal/version"
)

// ErrNoInstall means the requested install name is unknown and no primary
// install is configured.
var ErrNoInstall = errors.New("no game install configured")

// Install is one managed game installation.
type Install struct {
	// Path is the game install directory.
	Path string `json:"path"`

	// EverestBuild is the installed mod-loader build, 0 when none was
	// installed or detected.
	EverestBuild int `json:"everest_build,omitempty"`

	// PreferredBranch picks the default build source for updates.
	PreferredBranch string `json:"preferred_branch,omitempty"`
}

// ModsDir is the install's mod folder.
func (i Install) ModsDir() string {
	return filepath.Join(i.Path, "Mods")
}

// EverestVersion is the version the installed mod-loader advertises for
// dependency checks. NoVersion when no build is recorded.
func (i Install) EverestVersion() version.Version {
	return everest.VersionOf(i.EverestBuild)
}

type store struct {
	Primary  string             `json:"primary,omitempty"`
	Installs map[string]Install `json:"installs"`
}

// Manager handles persistence of the install list.
type Manager struct {
	path  string
	store *store
	mu    sync.RWMutex
}

// NewManager creates a manager persisting under configDir.
func NewManager(configDir string) *Manager {
	return &Manager{
		path:  filepath.Join(configDir, "installs.json"),
		store: &store{Installs: make(map[string]Install)},
	}
}

// Load reads the install list from disk. A missing file is an empty list.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			m.store = &store{Installs: make(map[string]Install)}
			return nil
		}
		return err
	}

	var s store
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parsing %s: %w", m.path, err)
	}
	if s.Installs == nil {
		s.Installs = make(map[string]Install)
	}
	m.store = &s
	return nil
}

// Save writes the install list to disk.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m.store, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0644)
}

// Get retrieves an install. An empty name resolves the primary install.
func (m *Manager) Get(name string) (Install, error) {
	_, install, err := m.Resolve(name)
	return install, err
}

// Resolve retrieves an install together with its effective name. An
// empty name resolves the primary install.
func (m *Manager) Resolve(name string) (string, Install, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if name == "" {
		name = m.store.Primary
	}
	if name == "" {
		return "", Install{}, ErrNoInstall
	}
	install, ok := m.store.Installs[name]
	if !ok {
		return "", Install{}, fmt.Errorf("%w: %q", ErrNoInstall, name)
	}
	return name, install, nil
}

// Set stores an install, making it primary when it is the first one.
func (m *Manager) Set(name string, install Install) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.store.Installs) == 0 {
		m.store.Primary = name
	}
	m.store.Installs[name] = install
}

// SetPrimary marks an existing install as the default.
func (m *Manager) SetPrimary(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.store.Installs[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNoInstall, name)
	}
	m.store.Primary = name
	return nil
}

// Delete removes an install, clearing primary if it pointed there.
func (m *Manager) Delete(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.store.Installs, name)
	if m.store.Primary == name {
		m.store.Primary = ""
	}
}

// List returns all install names, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.store.Installs))
	for name := range m.store.Installs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dir is the everctl config directory under XDG_CONFIG_HOME.
func Dir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "everctl")
}

// CacheDir is the everctl cache directory under XDG_CACHE_HOME.
func CacheDir() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		homeDir, _ := os.UserHomeDir()
		cacheDir = filepath.Join(homeDir, ".cache")
	}
	return filepath.Join(cacheDir, "everctl")
}
