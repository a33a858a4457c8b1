// Package version implements the four-component version scheme used by
// Everest mod manifests and the mod database.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidVersion is returned by Parse for malformed version strings.
	ErrInvalidVersion = errors.New("invalid version string")

	// ErrIncompatibleMajor is returned by Supersedes when two versions
	// cannot be ordered because their major components differ.
	ErrIncompatibleMajor = errors.New("different major version")
)

// Version is a dotted numeric version of two to four components with an
// optional free-text tag. Build and Revision are -1 when unspecified.
type Version struct {
	Major    int
	Minor    int
	Build    int
	Revision int
	Tag      string
}

// NoVersion is the sentinel for an undetectable version (e.g. a game build
// that could not be sniffed). It satisfies any requirement and supersedes
// nothing.
var NoVersion = Version{Major: 0, Minor: 0, Build: -1, Revision: -1}

// New returns a two-component version with Build and Revision unspecified.
func New(major, minor int) Version {
	return Version{Major: major, Minor: minor, Build: -1, Revision: -1}
}

// Must parses text and panics on failure. For tests and constants.
func Must(text string) Version {
	v, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return v
}

// Parse parses a version string of the form
// "{major}.{minor}[.{build}[.{revision}]][-{tag}]".
// The literal "NoVersion" parses to the NoVersion sentinel.
func Parse(text string) (Version, error) {
	if text == "NoVersion" {
		return NoVersion, nil
	}

	numeric, tag, _ := strings.Cut(text, "-")
	groups := strings.Split(numeric, ".")
	if len(groups) < 2 || len(groups) > 4 {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, text)
	}

	parts := [4]int{0, 0, -1, -1}
	for i, g := range groups {
		n, err := strconv.Atoi(g)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, text)
		}
		parts[i] = n
	}

	return Version{
		Major:    parts[0],
		Minor:    parts[1],
		Build:    parts[2],
		Revision: parts[3],
		Tag:      tag,
	}, nil
}

// IsNoVersion reports whether v is the undetected-version sentinel.
func (v Version) IsNoVersion() bool {
	return v.Major == 0 && v.Minor == 0
}

// Satisfies reports whether a mod at version v meets a minimum requirement.
// The NoVersion sentinel satisfies anything. Otherwise majors must match
// exactly and (Minor, Build, Revision) must be no older than required,
// with each field only compared when the preceding fields tie.
func (v Version) Satisfies(required Version) bool {
	if v.IsNoVersion() {
		return true
	}
	if v.Major != required.Major {
		return false
	}
	if v.Minor < required.Minor {
		return false
	}
	if v.Minor == required.Minor && v.Build < required.Build {
		return false
	}
	if v.Minor == required.Minor && v.Build == required.Build && v.Revision < required.Revision {
		return false
	}
	return true
}

// Supersedes reports whether v is strictly newer than other. Versions with
// differing majors are not orderable and yield ErrIncompatibleMajor.
func (v Version) Supersedes(other Version) (bool, error) {
	if v.Major != other.Major {
		return false, fmt.Errorf("%s vs %s: %w", v, other, ErrIncompatibleMajor)
	}
	return v.Compare(other) > 0, nil
}

// Compare orders versions lexicographically over
// (Major, Minor, Build, Revision). Tags are ignored.
func (v Version) Compare(other Version) int {
	for _, d := range [4]int{
		v.Major - other.Major,
		v.Minor - other.Minor,
		v.Build - other.Build,
		v.Revision - other.Revision,
	} {
		if d != 0 {
			if d < 0 {
				return -1
			}
			return 1
		}
	}
	return 0
}

// String renders the canonical form, omitting trailing unspecified
// components and appending "-tag" when a tag is present.
func (v Version) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d", v.Major, v.Minor)
	if v.Build != -1 {
		fmt.Fprintf(&b, ".%d", v.Build)
		if v.Revision != -1 {
			fmt.Fprintf(&b, ".%d", v.Revision)
		}
	}
	if v.Tag != "" {
		b.WriteByte('-')
		b.WriteString(v.Tag)
	}
	return b.String()
}
