package mods

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupModsFolder(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeModZip(t, filepath.Join(dir, "Alpha.zip"), "- Name: Alpha\n  Version: 1.0.0\n")
	writeModZip(t, filepath.Join(dir, "Beta.zip"), "- Name: Beta\n  Version: 2.1.0\n")
	writeModZip(t, filepath.Join(dir, "Disabled.zip"), "- Name: Disabled\n  Version: 1.0.0\n")

	// A folder-form mod and some noise the scanner must ignore.
	modDir := filepath.Join(dir, "FolderMod")
	if err := os.Mkdir(modDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(modDir, "everest.yaml"), []byte("- Name: FolderMod\n  Version: 1.1.0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a mod"), 0644); err != nil {
		t.Fatal(err)
	}

	blacklist := "# disabled mods\nDisabled.zip\n"
	if err := os.WriteFile(filepath.Join(dir, "blacklist.txt"), []byte(blacklist), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func names(metas []ModMeta) []string {
	out := make([]string, len(metas))
	for i, m := range metas {
		out[i] = m.Name
	}
	return out
}

func TestScanSkipsBlacklistedByDefault(t *testing.T) {
	dir := setupModsFolder(t)

	metas, err := Scan(dir, ScanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Join(names(metas), ",")
	if got != "Alpha,Beta" {
		t.Errorf("unexpected mods: %s", got)
	}
}

func TestScanIncludesFoldersAndBlacklisted(t *testing.T) {
	dir := setupModsFolder(t)

	metas, err := Scan(dir, ScanOptions{IncludeFolders: true, IncludeBlacklisted: true})
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Join(names(metas), ",")
	if got != "Alpha,Beta,Disabled,FolderMod" {
		t.Errorf("unexpected mods: %s", got)
	}

	index := ByName(metas)
	if !index["Disabled"].Blacklisted {
		t.Error("Disabled should be marked blacklisted")
	}
	if index["Alpha"].Blacklisted {
		t.Error("Alpha should not be blacklisted")
	}
}

func TestScanMissingFolder(t *testing.T) {
	metas, err := Scan(filepath.Join(t.TempDir(), "nope"), ScanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 0 {
		t.Errorf("expected no mods, got %v", names(metas))
	}
}

func TestEnable(t *testing.T) {
	dir := setupModsFolder(t)

	if err := Enable(dir, "Disabled.zip"); err != nil {
		t.Fatal(err)
	}

	metas, err := Scan(dir, ScanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, m := range metas {
		if m.Name == "Disabled" {
			found = true
			if m.Blacklisted {
				t.Error("Disabled should no longer be blacklisted")
			}
		}
	}
	if !found {
		t.Error("Disabled should be visible after Enable")
	}
}

func TestEnableWithoutBlacklist(t *testing.T) {
	if err := Enable(t.TempDir(), "Whatever.zip"); err != nil {
		t.Errorf("Enable without blacklist.txt should be a no-op, got %v", err)
	}
}
