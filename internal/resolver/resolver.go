// Package resolver computes the transitive dependency closure of a set of
// mods against a remote dependency graph, and the complementary set of
// dependencies that become orphaned when mods are removed.
package resolver

import (
	"errors"
	"fmt"
	"sort"

	"github.com/evermod/everctl/internal/mods"
	"github.com/evermod/everctl/internal/version"
)

// Reserved names that describe the environment rather than installable
// mods. Constraints on them are reported separately.
const (
	EverestName = "Everest"
	CelesteName = "Celeste"
)

// Constraint is the strongest minimum-version requirement collected for
// one dependency name.
type Constraint struct {
	Name    string
	Version version.Version
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s: %s", c.Name, c.Version)
}

// Declaration is a mod's outgoing dependency edges as published in the
// dependency graph document.
type Declaration struct {
	Dependencies         []mods.Dependency
	OptionalDependencies []mods.Dependency
}

// Graph looks up the dependency declaration for a mod name.
type Graph interface {
	Lookup(name string) (Declaration, bool)
}

// MapGraph is an in-memory Graph.
type MapGraph map[string]Declaration

func (g MapGraph) Lookup(name string) (Declaration, bool) {
	decl, ok := g[name]
	return decl, ok
}

// InstalledGraph builds a Graph from an installed-mod snapshot, using each
// mod's own manifest edges.
func InstalledGraph(installed map[string]mods.ModMeta) MapGraph {
	g := make(MapGraph, len(installed))
	for name, m := range installed {
		g[name] = Declaration{
			Dependencies:         m.Dependencies,
			OptionalDependencies: m.OptionalDependencies,
		}
	}
	return g
}

// Result holds the merged constraints of one resolution pass, each list
// sorted by name and deduplicated. Optional excludes names that any
// required path reaches. Special holds the environment requirements
// (Everest, Celeste).
type Result struct {
	Required []Constraint
	Optional []Constraint
	Special  []Constraint
}

// ConflictError reports two constraints on one dependency that disagree on
// the major version. Unrecoverable for the resolution pass.
type ConflictError struct {
	Name            string
	First, Second   version.Version
	FirstRequester  string
	SecondRequester string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"incompatible dependencies: %s requires %s %s, %s requires %s %s: different major version",
		e.FirstRequester, e.Name, e.First, e.SecondRequester, e.Name, e.Second)
}

func (e *ConflictError) Unwrap() error { return version.ErrIncompatibleMajor }

// ExplicitConflictError reports a resolved mod whose own pinned version
// cannot satisfy a constraint the rest of the resolution places on it.
type ExplicitConflictError struct {
	Name     string
	Pinned   version.Version
	Required version.Version
	Optional bool
}

func (e *ExplicitConflictError) Error() string {
	kind := "dependency"
	if e.Optional {
		kind = "optional dependency"
	}
	return fmt.Sprintf("incompatible dependencies: %s %s (explicit) does not satisfy %s %s %s",
		e.Name, e.Pinned, kind, e.Name, e.Required)
}

// edge is one dependency requirement in flight during traversal.
type edge struct {
	dep       mods.Dependency
	optional  bool
	requester string
}

// state is the merged constraint for one name.
type state struct {
	version   version.Version
	optional  bool
	requester string
}

// Resolve walks graph breadth-first from the roots' declared dependencies
// and merges every constraint per name, keeping the maximum minimum
// version. A name reached only through optional edges stays optional; any
// required path promotes it. A discovered name matching a root is pinned
// to the root's own version instead of being expanded again; the pin is
// validated against the final merged constraint.
func Resolve(roots []mods.ModMeta, graph Graph) (Result, error) {
	merged := make(map[string]*state)
	rootVersions := make(map[string]version.Version, len(roots))
	for _, r := range roots {
		rootVersions[r.Name] = r.Version
	}

	var queue []edge
	for _, r := range roots {
		for _, d := range r.Dependencies {
			queue = append(queue, edge{dep: d, requester: r.Name})
		}
		for _, d := range r.OptionalDependencies {
			queue = append(queue, edge{dep: d, optional: true, requester: r.Name})
		}
	}

	// Names expanded so far. A name first expanded through an optional
	// path is expanded once more if a required path reaches it later, so
	// its subtree is promoted too. Each name expands at most twice, which
	// bounds the traversal on cyclic graphs.
	expandedReq := make(map[string]bool)
	expandedOpt := make(map[string]bool)

	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		if err := mergeEdge(merged, e); err != nil {
			return Result{}, err
		}

		name := e.dep.Name
		if e.optional {
			if expandedOpt[name] || expandedReq[name] {
				continue
			}
			expandedOpt[name] = true
		} else {
			if expandedReq[name] {
				continue
			}
			expandedReq[name] = true
		}

		// Roots are pinned; their declarations were already seeded.
		if _, isRoot := rootVersions[name]; isRoot {
			continue
		}

		decl, ok := graph.Lookup(name)
		if !ok {
			continue
		}
		for _, d := range decl.Dependencies {
			queue = append(queue, edge{dep: d, optional: e.optional, requester: name})
		}
		for _, d := range decl.OptionalDependencies {
			queue = append(queue, edge{dep: d, optional: true, requester: name})
		}
	}

	// A root's own version is authoritative: it must satisfy whatever the
	// merged constraints demand of it.
	pinned := make([]string, 0, len(rootVersions))
	for name := range rootVersions {
		pinned = append(pinned, name)
	}
	sort.Strings(pinned)
	for _, name := range pinned {
		st, ok := merged[name]
		if !ok {
			continue
		}
		if !rootVersions[name].Satisfies(st.version) {
			return Result{}, &ExplicitConflictError{
				Name:     name,
				Pinned:   rootVersions[name],
				Required: st.version,
				Optional: st.optional,
			}
		}
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	var result Result
	for _, name := range names {
		c := Constraint{Name: name, Version: merged[name].version}
		switch {
		case name == EverestName || name == CelesteName:
			result.Special = append(result.Special, c)
		case merged[name].optional:
			result.Optional = append(result.Optional, c)
		default:
			result.Required = append(result.Required, c)
		}
	}
	return result, nil
}

func mergeEdge(merged map[string]*state, e edge) error {
	cur, ok := merged[e.dep.Name]
	if !ok {
		merged[e.dep.Name] = &state{
			version:   e.dep.Version,
			optional:  e.optional,
			requester: e.requester,
		}
		return nil
	}

	if !e.optional {
		cur.optional = false
	}

	newer, err := e.dep.Version.Supersedes(cur.version)
	if err != nil {
		return &ConflictError{
			Name:            e.dep.Name,
			First:           cur.version,
			FirstRequester:  cur.requester,
			Second:          e.dep.Version,
			SecondRequester: e.requester,
		}
	}
	if newer {
		cur.version = e.dep.Version
		cur.requester = e.requester
	}
	return nil
}

// IsConflict reports whether err is any of the resolution conflict kinds.
func IsConflict(err error) bool {
	var ce *ConflictError
	var ee *ExplicitConflictError
	return errors.As(err, &ce) || errors.As(err, &ee)
}
