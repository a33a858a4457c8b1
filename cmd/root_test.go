package cmd

import (
	"strings"
	"testing"
)

func TestRootVersionString(t *testing.T) {
	if !strings.Contains(rootCmd.Version, buildVersion) {
		t.Errorf("Version = %q, missing %q", rootCmd.Version, buildVersion)
	}
	if !strings.Contains(rootCmd.Version, buildCommit) {
		t.Errorf("Version = %q, missing %q", rootCmd.Version, buildCommit)
	}
}

func TestRootRegistersCommandGroups(t *testing.T) {
	want := map[string]bool{"mods": false, "everest": false, "install": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}
