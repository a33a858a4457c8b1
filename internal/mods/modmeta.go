// Package mods defines the mod records everctl operates on and reads them
// from everest.yaml manifests found in zips and folders.
package mods

import (
	"fmt"

	"github.com/evermod/everctl/internal/version"
)

// Dependency is a minimum-version requirement on another mod.
type Dependency struct {
	Name    string
	Version version.Version
}

func (d Dependency) String() string {
	return fmt.Sprintf("%s: %s", d.Name, d.Version)
}

// ModMeta identifies an installed or advertised mod together with its
// declared dependencies and installation metadata. Hash, Path and
// Blacklisted are only populated by the installed-mod scanner.
type ModMeta struct {
	Name                 string
	Version              version.Version
	Dependencies         []Dependency
	OptionalDependencies []Dependency
	Size                 uint64
	Hash                 string
	Path                 string
	Blacklisted          bool
}

func (m ModMeta) String() string {
	return fmt.Sprintf("%s: %s", m.Name, m.Version)
}

// ModDownload is a mod that is not yet installed, paired with where to
// fetch it. Mirror falls back to URL when no separate mirror exists.
type ModDownload struct {
	Meta   ModMeta
	URL    string
	Mirror string
}

// NewModDownload builds a ModDownload, defaulting the mirror to the
// primary URL.
func NewModDownload(meta ModMeta, url, mirror string) ModDownload {
	if mirror == "" {
		mirror = url
	}
	return ModDownload{Meta: meta, URL: url, Mirror: mirror}
}

// UpdateInfo describes an in-place update of an installed mod to a newer
// version.
type UpdateInfo struct {
	Old    ModMeta
	New    version.Version
	URL    string
	Mirror string
	// Size of the new artifact in bytes, when the database reports it.
	Size uint64
}

// NewUpdateInfo builds an UpdateInfo, defaulting the mirror to the
// primary URL.
func NewUpdateInfo(old ModMeta, new version.Version, url, mirror string, size uint64) UpdateInfo {
	if mirror == "" {
		mirror = url
	}
	return UpdateInfo{Old: old, New: new, URL: url, Mirror: mirror, Size: size}
}

// DeltaSize is the byte difference between the new artifact and the
// installed one. Negative when the update shrinks the mod.
func (u UpdateInfo) DeltaSize() int64 {
	return int64(u.Size) - int64(u.Old.Size)
}

func (u UpdateInfo) String() string {
	return fmt.Sprintf("%s: %s -> %s", u.Old.Name, u.Old.Version, u.New)
}
