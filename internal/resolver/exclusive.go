package resolver

import (
	"sort"

	"github.com/evermod/everctl/internal/mods"
)

// Exclusive determines which dependencies of the removal targets are not
// needed by any mod that remains installed. Only dependencies reachable
// through the targets' own edges are candidates; the result is restricted
// to mods present in the installed snapshot, sorted by name.
func Exclusive(targets []mods.ModMeta, installed map[string]mods.ModMeta) ([]mods.ModMeta, error) {
	targetNames := make(map[string]bool, len(targets))
	for _, t := range targets {
		targetNames[t.Name] = true
	}

	remaining := make([]mods.ModMeta, 0, len(installed))
	for name, m := range installed {
		if !targetNames[name] {
			remaining = append(remaining, m)
		}
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].Name < remaining[j].Name })

	// Everything the surviving installation still needs.
	kept, err := Resolve(remaining, InstalledGraph(installed))
	if err != nil {
		return nil, err
	}
	keep := make(map[string]bool, len(kept.Required))
	for _, c := range kept.Required {
		keep[c.Name] = true
	}

	// Everything the targets need, following only the targets' own edges:
	// a dependency that merely passes through some other installed mod is
	// not a removal candidate.
	restricted := make(MapGraph, len(targets))
	for _, t := range targets {
		restricted[t.Name] = Declaration{
			Dependencies:         t.Dependencies,
			OptionalDependencies: t.OptionalDependencies,
		}
	}
	removed, err := Resolve(targets, restricted)
	if err != nil {
		return nil, err
	}

	var exclusive []mods.ModMeta
	for _, c := range removed.Required {
		if keep[c.Name] || targetNames[c.Name] {
			continue
		}
		if m, ok := installed[c.Name]; ok {
			exclusive = append(exclusive, m)
		}
	}
	sort.Slice(exclusive, func(i, j int) bool { return exclusive[i].Name < exclusive[j].Name })
	return exclusive, nil
}
