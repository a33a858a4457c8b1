package registry

import (
	"time"

	"github.com/evermod/everctl/internal/mods"
	"github.com/evermod/everctl/internal/resolver"
	"github.com/evermod/everctl/internal/version"
)

// Entry is one mod in the update database (everest_update.yaml format).
type Entry struct {
	Version      string   `yaml:"Version"`
	URL          string   `yaml:"URL"`
	MirrorURL    string   `yaml:"MirrorURL"`
	Size         uint64   `yaml:"Size"`
	LastUpdate   int64    `yaml:"LastUpdate"`
	GameBananaId int64    `yaml:"GameBananaId"`
	Hashes       []string `yaml:"xxHash"`
}

// Updated returns the entry's last-update timestamp.
func (e Entry) Updated() time.Time {
	return time.Unix(e.LastUpdate, 0)
}

// Database maps mod names to their latest advertised artifact.
type Database map[string]Entry

// Download builds the ModDownload for a database entry. The advertised
// version string is parsed leniently; a malformed one becomes NoVersion.
func (db Database) Download(name string) (mods.ModDownload, bool) {
	entry, ok := db[name]
	if !ok {
		return mods.ModDownload{}, false
	}
	meta := mods.ModMeta{
		Name:    name,
		Version: parseLenient(entry.Version),
		Size:    entry.Size,
	}
	return mods.NewModDownload(meta, entry.URL, entry.MirrorURL), true
}

// UpdateFor reports whether the database advertises a different build of
// an installed mod. A hash comparison decides when both sides know their
// hash; otherwise the advertised version must supersede the installed one.
func (db Database) UpdateFor(installed mods.ModMeta) (mods.UpdateInfo, bool) {
	entry, ok := db[installed.Name]
	if !ok {
		return mods.UpdateInfo{}, false
	}
	latest := parseLenient(entry.Version)

	outdated := false
	if installed.Hash != "" && len(entry.Hashes) > 0 {
		outdated = installed.Hash != entry.Hashes[0]
	} else if newer, err := latest.Supersedes(installed.Version); err == nil {
		outdated = newer
	}
	if !outdated {
		return mods.UpdateInfo{}, false
	}
	return mods.NewUpdateInfo(installed, latest, entry.URL, entry.MirrorURL, entry.Size), true
}

// graphDep mirrors one dependency record of the published graph document.
type graphDep struct {
	Name    string `yaml:"Name"`
	Version string `yaml:"Version"`
}

// graphDecl mirrors one mod's record in the published graph document.
type graphDecl struct {
	Dependencies         []graphDep `yaml:"Dependencies"`
	OptionalDependencies []graphDep `yaml:"OptionalDependencies"`
}

// DependencyGraph is the published dependency graph, usable directly as a
// resolver graph.
type DependencyGraph map[string]graphDecl

func (g DependencyGraph) Lookup(name string) (resolver.Declaration, bool) {
	decl, ok := g[name]
	if !ok {
		return resolver.Declaration{}, false
	}
	return resolver.Declaration{
		Dependencies:         convertDeps(decl.Dependencies),
		OptionalDependencies: convertDeps(decl.OptionalDependencies),
	}, true
}

func convertDeps(deps []graphDep) []mods.Dependency {
	if len(deps) == 0 {
		return nil
	}
	out := make([]mods.Dependency, len(deps))
	for i, d := range deps {
		out[i] = mods.Dependency{Name: d.Name, Version: parseLenient(d.Version)}
	}
	return out
}

// parseLenient treats a malformed published version as NoVersion rather
// than failing a whole document.
func parseLenient(text string) version.Version {
	v, err := version.Parse(text)
	if err != nil {
		return version.NoVersion
	}
	return v
}
