package resolver

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/evermod/everctl/internal/mods"
	"github.com/evermod/everctl/internal/version"
)

func dep(name, ver string) mods.Dependency {
	return mods.Dependency{Name: name, Version: version.Must(ver)}
}

func meta(name, ver string, deps, optional []mods.Dependency) mods.ModMeta {
	return mods.ModMeta{
		Name:                 name,
		Version:              version.Must(ver),
		Dependencies:         deps,
		OptionalDependencies: optional,
	}
}

func constraints(cs []Constraint) string {
	out := "["
	for i, c := range cs {
		if i > 0 {
			out += ", "
		}
		out += c.String()
	}
	return out + "]"
}

var testGraph = MapGraph{
	"Simple": {},
	"Nested": {
		Dependencies: []mods.Dependency{dep("Nested_1", "1.0.0")},
	},
	"Nested_1": {
		Dependencies: []mods.Dependency{dep("Nested_2", "1.0.0")},
	},
	"Nested_2": {},
	"Version_Bump_Lower": {
		Dependencies: []mods.Dependency{dep("Version_Bump_Dep", "1.2.0")},
	},
	"Version_Bump_Higher": {
		Dependencies: []mods.Dependency{dep("Version_Bump_Dep", "1.5.0")},
	},
	"Cycle_A": {
		Dependencies: []mods.Dependency{dep("Cycle_B", "1.0.0")},
	},
	"Cycle_B": {
		Dependencies: []mods.Dependency{dep("Cycle_A", "1.0.0")},
	},
}

func rootFor(t *testing.T, name string) mods.ModMeta {
	t.Helper()
	decl, ok := testGraph[name]
	if !ok {
		t.Fatalf("no graph entry for %s", name)
	}
	return mods.ModMeta{
		Name:                 name,
		Version:              version.Must("1.0.0"),
		Dependencies:         decl.Dependencies,
		OptionalDependencies: decl.OptionalDependencies,
	}
}

func TestResolveEmptyRoots(t *testing.T) {
	result, err := Resolve(nil, testGraph)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Required) != 0 || len(result.Optional) != 0 || len(result.Special) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestResolveNoDependencies(t *testing.T) {
	result, err := Resolve([]mods.ModMeta{rootFor(t, "Simple")}, testGraph)
	if err != nil {
		t.Fatal(err)
	}
	if got := constraints(result.Required); got != "[]" {
		t.Errorf("required = %s", got)
	}
}

func TestResolveNested(t *testing.T) {
	result, err := Resolve([]mods.ModMeta{rootFor(t, "Nested")}, testGraph)
	if err != nil {
		t.Fatal(err)
	}
	if got := constraints(result.Required); got != "[Nested_1: 1.0.0, Nested_2: 1.0.0]" {
		t.Errorf("required = %s", got)
	}
}

func TestResolveMergesMaximumVersion(t *testing.T) {
	// Order of roots must not matter, and duplicates are harmless.
	roots := []mods.ModMeta{
		rootFor(t, "Version_Bump_Lower"),
		rootFor(t, "Version_Bump_Higher"),
		rootFor(t, "Version_Bump_Lower"),
	}
	result, err := Resolve(roots, testGraph)
	if err != nil {
		t.Fatal(err)
	}
	if got := constraints(result.Required); got != "[Version_Bump_Dep: 1.5.0]" {
		t.Errorf("required = %s", got)
	}
}

func TestResolveOptionalPromotedByRequiredPath(t *testing.T) {
	// B is required and optionally wants C at a higher minimum than the
	// required edge on C; the promotion keeps C required and the higher
	// minimum wins.
	graph := MapGraph{
		"A": {Dependencies: []mods.Dependency{dep("B", "1.0.0"), dep("C", "1.0.0")}},
		"B": {OptionalDependencies: []mods.Dependency{dep("C", "1.2.0")}},
		"C": {},
	}
	root := meta("A", "1.0.0", graph["A"].Dependencies, nil)

	result, err := Resolve([]mods.ModMeta{root}, graph)
	if err != nil {
		t.Fatal(err)
	}
	if got := constraints(result.Required); got != "[B: 1.0.0, C: 1.2.0]" {
		t.Errorf("required = %s", got)
	}
	if got := constraints(result.Optional); got != "[]" {
		t.Errorf("optional = %s", got)
	}
}

func TestResolveOptionalSubtreeStaysOptional(t *testing.T) {
	graph := MapGraph{
		"Opt":     {OptionalDependencies: []mods.Dependency{dep("Opt_1", "1.0.0")}},
		"Opt_1":   {Dependencies: []mods.Dependency{dep("Opt_Dep", "1.0.0")}},
		"Opt_Dep": {},
	}
	root := meta("Opt", "1.0.0", nil, graph["Opt"].OptionalDependencies)

	result, err := Resolve([]mods.ModMeta{root}, graph)
	if err != nil {
		t.Fatal(err)
	}
	if got := constraints(result.Required); got != "[]" {
		t.Errorf("required = %s", got)
	}
	// Everything below an optional edge is optional until a required path
	// reaches it.
	if got := constraints(result.Optional); got != "[Opt_1: 1.0.0, Opt_Dep: 1.0.0]" {
		t.Errorf("optional = %s", got)
	}
}

func TestResolveOptionalShadowedByRequired(t *testing.T) {
	graph := MapGraph{
		"Shadow": {
			Dependencies:         []mods.Dependency{dep("Shadow_Dep", "1.3.0")},
			OptionalDependencies: []mods.Dependency{dep("Shadow_Dep", "1.6.2")},
		},
		"Shadow_Dep": {},
	}
	decl := graph["Shadow"]
	root := meta("Shadow", "1.0.0", decl.Dependencies, decl.OptionalDependencies)

	result, err := Resolve([]mods.ModMeta{root}, graph)
	if err != nil {
		t.Fatal(err)
	}
	if got := constraints(result.Required); got != "[Shadow_Dep: 1.6.2]" {
		t.Errorf("required = %s", got)
	}
	if got := constraints(result.Optional); got != "[]" {
		t.Errorf("optional = %s", got)
	}
}

func TestResolveMajorConflict(t *testing.T) {
	root := meta("Root", "1.0.0",
		[]mods.Dependency{dep("Dep", "1.5.0"), dep("Dep", "2.1.0")}, nil)

	_, err := Resolve([]mods.ModMeta{root}, MapGraph{"Dep": {}})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if !errors.Is(err, version.ErrIncompatibleMajor) {
		t.Error("ConflictError should unwrap to ErrIncompatibleMajor")
	}
	if conflict.Name != "Dep" {
		t.Errorf("unexpected conflict name %q", conflict.Name)
	}
	if conflict.FirstRequester != "Root" || conflict.SecondRequester != "Root" {
		t.Errorf("conflict should name both requesters, got %q/%q",
			conflict.FirstRequester, conflict.SecondRequester)
	}
}

func TestResolveMajorConflictAcrossRoots(t *testing.T) {
	a := meta("A", "1.0.0", []mods.Dependency{dep("Dep", "1.5.0")}, nil)
	b := meta("B", "1.0.0", []mods.Dependency{dep("Dep", "2.1.0")}, nil)

	_, err := Resolve([]mods.ModMeta{a, b}, MapGraph{"Dep": {}})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.FirstRequester == conflict.SecondRequester {
		t.Errorf("expected distinct requesters, got %q twice", conflict.FirstRequester)
	}
}

func TestResolveMajorConflictOptionalEdge(t *testing.T) {
	root := meta("Root", "1.0.0",
		[]mods.Dependency{dep("Dep", "1.5.0")},
		[]mods.Dependency{dep("Dep", "2.1.0")})

	_, err := Resolve([]mods.ModMeta{root}, MapGraph{"Dep": {}})
	if !errors.Is(err, version.ErrIncompatibleMajor) {
		t.Fatalf("expected major conflict, got %v", err)
	}
}

func TestResolveExplicitConflict(t *testing.T) {
	// The mod being resolved is itself depended on at a version its own
	// pin cannot satisfy.
	root := meta("SelfRef", "1.0.0", []mods.Dependency{dep("SelfRef", "1.5.0")}, nil)

	_, err := Resolve([]mods.ModMeta{root}, MapGraph{})
	var explicit *ExplicitConflictError
	if !errors.As(err, &explicit) {
		t.Fatalf("expected ExplicitConflictError, got %v", err)
	}
	if explicit.Optional {
		t.Error("conflict should be on a required dependency")
	}
	if want := "does not satisfy dependency"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q should contain %q", err, want)
	}
}

func TestResolveExplicitConflictOptional(t *testing.T) {
	root := meta("SelfRef", "1.0.0", nil, []mods.Dependency{dep("SelfRef", "1.5.0")})

	_, err := Resolve([]mods.ModMeta{root}, MapGraph{})
	var explicit *ExplicitConflictError
	if !errors.As(err, &explicit) {
		t.Fatalf("expected ExplicitConflictError, got %v", err)
	}
	if !explicit.Optional {
		t.Error("conflict should be on an optional dependency")
	}
	if want := "does not satisfy optional dependency"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q should contain %q", err, want)
	}
}

func TestIsConflict(t *testing.T) {
	root := meta("Root", "1.0.0",
		[]mods.Dependency{dep("Dep", "1.5.0"), dep("Dep", "2.1.0")}, nil)
	_, err := Resolve([]mods.ModMeta{root}, MapGraph{"Dep": {}})
	if !IsConflict(err) {
		t.Errorf("IsConflict(%v) = false for a major conflict", err)
	}

	pin := meta("SelfRef", "1.0.0", []mods.Dependency{dep("SelfRef", "1.5.0")}, nil)
	_, err = Resolve([]mods.ModMeta{pin}, MapGraph{})
	if !IsConflict(err) {
		t.Errorf("IsConflict(%v) = false for an explicit conflict", err)
	}

	if IsConflict(errors.New("boom")) {
		t.Error("IsConflict matched an unrelated error")
	}
	if IsConflict(nil) {
		t.Error("IsConflict matched nil")
	}
}

func TestResolveSatisfiedSelfReference(t *testing.T) {
	root := meta("SelfRef", "1.6.0", []mods.Dependency{dep("SelfRef", "1.5.0")}, nil)

	result, err := Resolve([]mods.ModMeta{root}, MapGraph{})
	if err != nil {
		t.Fatal(err)
	}
	if got := constraints(result.Required); got != "[SelfRef: 1.5.0]" {
		t.Errorf("required = %s", got)
	}
}

func TestResolveSpecialNames(t *testing.T) {
	root := meta("Root", "1.0.0", []mods.Dependency{
		dep(EverestName, "1.4000.0"),
		dep(CelesteName, "1.4.0"),
		dep("RealDep", "1.0.0"),
	}, nil)

	result, err := Resolve([]mods.ModMeta{root}, MapGraph{"RealDep": {}})
	if err != nil {
		t.Fatal(err)
	}
	if got := constraints(result.Required); got != "[RealDep: 1.0.0]" {
		t.Errorf("required = %s", got)
	}
	if got := constraints(result.Special); got != fmt.Sprintf("[%s: 1.4.0, %s: 1.4000.0]", CelesteName, EverestName) {
		t.Errorf("special = %s", got)
	}
}

func TestResolveTerminatesOnCycle(t *testing.T) {
	result, err := Resolve([]mods.ModMeta{rootFor(t, "Cycle_A")}, testGraph)
	if err != nil {
		t.Fatal(err)
	}
	if got := constraints(result.Required); got != "[Cycle_A: 1.0.0, Cycle_B: 1.0.0]" {
		t.Errorf("required = %s", got)
	}
}

func TestResolveUnknownDependencyKeptAsLeaf(t *testing.T) {
	root := meta("Root", "1.0.0", []mods.Dependency{dep("Unknown", "1.0.0")}, nil)

	result, err := Resolve([]mods.ModMeta{root}, MapGraph{})
	if err != nil {
		t.Fatal(err)
	}
	if got := constraints(result.Required); got != "[Unknown: 1.0.0]" {
		t.Errorf("required = %s", got)
	}
}
