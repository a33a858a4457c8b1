package mods

import (
	"archive/zip"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/evermod/everctl/internal/version"
)

var (
	// ErrNoManifest means no everest.yaml was found in the zip or folder.
	ErrNoManifest = errors.New("no everest.yaml found")

	// ErrEmptyManifest means an everest.yaml existed but held no entries.
	ErrEmptyManifest = errors.New("empty everest.yaml")
)

var manifestNames = []string{"everest.yaml", "everest.yml"}

// manifestDep mirrors one dependency entry of an everest.yaml document.
type manifestDep struct {
	Name    string `yaml:"Name"`
	Version string `yaml:"Version"`
}

// manifestEntry mirrors one mod entry of an everest.yaml document.
type manifestEntry struct {
	Name                 string        `yaml:"Name"`
	Version              string        `yaml:"Version"`
	Dependencies         []manifestDep `yaml:"Dependencies"`
	OptionalDependencies []manifestDep `yaml:"OptionalDependencies"`
}

func (d manifestDep) dependency() (Dependency, error) {
	v := version.NoVersion
	if d.Version != "" {
		parsed, err := version.Parse(d.Version)
		if err != nil {
			return Dependency{}, err
		}
		v = parsed
	}
	return Dependency{Name: d.Name, Version: v}, nil
}

// ParseManifest decodes an everest.yaml document. The first entry is the
// mod itself; a missing Version defaults to the NoVersion sentinel.
func ParseManifest(data []byte) (ModMeta, error) {
	// Manifests in the wild carry a UTF-8 BOM often enough to matter.
	data = bytes.TrimPrefix(data, []byte{0xef, 0xbb, 0xbf})

	var entries []manifestEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return ModMeta{}, fmt.Errorf("parsing everest.yaml: %w", err)
	}
	if len(entries) == 0 {
		return ModMeta{}, ErrEmptyManifest
	}

	entry := entries[0]
	if entry.Name == "" {
		return ModMeta{}, fmt.Errorf("parsing everest.yaml: missing Name")
	}

	meta := ModMeta{Name: entry.Name, Version: version.NoVersion}
	if entry.Version != "" {
		v, err := version.Parse(entry.Version)
		if err != nil {
			return ModMeta{}, err
		}
		meta.Version = v
	}

	for _, d := range entry.Dependencies {
		dep, err := d.dependency()
		if err != nil {
			return ModMeta{}, err
		}
		meta.Dependencies = append(meta.Dependencies, dep)
	}
	for _, d := range entry.OptionalDependencies {
		dep, err := d.dependency()
		if err != nil {
			return ModMeta{}, err
		}
		meta.OptionalDependencies = append(meta.OptionalDependencies, dep)
	}

	return meta, nil
}

// ReadOptions controls how much work Read does per mod.
type ReadOptions struct {
	WithSize bool
	WithHash bool
}

// Read reads mod metadata from a zip file or an unzipped mod folder.
// Returns ErrNoManifest when the path holds no everest.yaml.
func Read(path string, opts ReadOptions) (ModMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ModMeta{}, err
	}
	if info.IsDir() {
		return readDir(path, opts)
	}
	return readZip(path, opts)
}

func readZip(path string, opts ReadOptions) (ModMeta, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return ModMeta{}, fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = zr.Close() }()

	var manifest *zip.File
	for _, f := range zr.File {
		for _, name := range manifestNames {
			if f.Name == name {
				manifest = f
				break
			}
		}
		if manifest != nil {
			break
		}
	}
	if manifest == nil {
		return ModMeta{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrNoManifest)
	}

	rc, err := manifest.Open()
	if err != nil {
		return ModMeta{}, err
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return ModMeta{}, err
	}

	meta, err := ParseManifest(data)
	if err != nil {
		return ModMeta{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	meta.Path = path

	if opts.WithSize {
		meta.Size = uint64(fileSize(path))
	}
	if opts.WithHash {
		hash, err := hashFile(path)
		if err != nil {
			return ModMeta{}, err
		}
		meta.Hash = hash
	}
	return meta, nil
}

func readDir(path string, opts ReadOptions) (ModMeta, error) {
	var data []byte
	for _, name := range manifestNames {
		b, err := os.ReadFile(filepath.Join(path, name))
		if err == nil {
			data = b
			break
		}
		if !os.IsNotExist(err) {
			return ModMeta{}, err
		}
	}
	if data == nil {
		return ModMeta{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrNoManifest)
	}

	meta, err := ParseManifest(data)
	if err != nil {
		return ModMeta{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	meta.Path = path

	if opts.WithSize {
		size, err := folderSize(path)
		if err != nil {
			return ModMeta{}, err
		}
		meta.Size = size
	}
	return meta, nil
}

// IsZip reports whether name looks like a zipped mod artifact.
func IsZip(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".zip")
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func folderSize(root string) (uint64, error) {
	var total uint64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += uint64(fi.Size())
		}
		return nil
	})
	return total, err
}
