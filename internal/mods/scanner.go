package mods

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const blacklistFile = "blacklist.txt"

// ScanOptions controls which mods Scan includes and how much metadata it
// collects for each.
type ScanOptions struct {
	IncludeFolders     bool
	IncludeBlacklisted bool
	Read               ReadOptions
}

// Scan walks a Mods folder and returns metadata for every mod artifact
// carrying a manifest. Entries named in blacklist.txt are marked
// Blacklisted (or skipped entirely unless IncludeBlacklisted is set).
// Artifacts without a manifest are ignored.
func Scan(dir string, opts ScanOptions) ([]ModMeta, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	blacklist, err := readBlacklist(filepath.Join(dir, blacklistFile))
	if err != nil {
		return nil, err
	}

	var metas []ModMeta
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || name == blacklistFile {
			continue
		}
		if entry.IsDir() && !opts.IncludeFolders {
			continue
		}
		if !entry.IsDir() && !IsZip(name) {
			continue
		}
		if blacklist[name] && !opts.IncludeBlacklisted {
			continue
		}

		meta, err := Read(filepath.Join(dir, name), opts.Read)
		if err != nil {
			if errors.Is(err, ErrNoManifest) || errors.Is(err, ErrEmptyManifest) {
				continue
			}
			return nil, err
		}
		meta.Blacklisted = blacklist[name]
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas, nil
}

// ByName indexes a scan result by mod name.
func ByName(metas []ModMeta) map[string]ModMeta {
	index := make(map[string]ModMeta, len(metas))
	for _, m := range metas {
		index[m.Name] = m
	}
	return index
}

// Enable removes filename from the folder's blacklist by commenting out its
// line, re-enabling the mod without a re-download. Enabling a mod that is
// not blacklisted is a no-op.
func Enable(dir, filename string) error {
	path := filepath.Join(dir, blacklistFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	lines := strings.Split(string(data), "\n")
	changed := false
	for i, line := range lines {
		if strings.TrimSpace(line) == filename {
			lines[i] = "# " + line
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644)
}

func readBlacklist(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	blacklist := make(map[string]bool)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		blacklist[line] = true
	}
	return blacklist, nil
}
