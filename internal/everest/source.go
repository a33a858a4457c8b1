// Package everest locates and unpacks mod-loader builds published through
// the EverestAPI Azure DevOps pipeline.
package everest

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/evermod/everctl/internal/logger"
	"github.com/evermod/everctl/internal/version"
)

const (
	defaultBuildsURL = "https://dev.azure.com/EverestAPI/Everest/_apis/build/builds"

	// Published build numbers are the Azure build id plus this offset.
	buildOffset = 700

	// The CI artifact wraps the actual build zip under this entry.
	nestedBuildEntry = "olympus-build/build.zip"

	// Plain build zips prefix their content with this directory.
	mainPrefix = "main/"
)

// ErrBranchNotFound means no completed successful build exists for the
// requested branch.
var ErrBranchNotFound = errors.New("branch not found")

// Source resolves version specs against the build pipeline.
type Source struct {
	// BuildsURL is the Azure DevOps builds API endpoint.
	BuildsURL string

	client *http.Client
}

// NewSource creates a Source against the default pipeline.
func NewSource() *Source {
	return &Source{
		BuildsURL: defaultBuildsURL,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ResolveBuild turns a version spec into a build number. A spec is a bare
// build number, a published version of the form 1.<build>.0, or a branch
// name looked up against the pipeline (empty means any branch).
func (s *Source) ResolveBuild(ctx context.Context, spec string) (int, error) {
	text := spec
	if strings.HasPrefix(text, "1.") && strings.HasSuffix(text, ".0") {
		text = text[2 : len(text)-2]
	}
	if build, err := strconv.Atoi(text); err == nil && build > 0 {
		return build, nil
	}
	return s.LatestBuild(ctx, spec)
}

// azureBuild is the subset of the Azure DevOps build record we filter on.
type azureBuild struct {
	ID           int    `json:"id"`
	Status       string `json:"status"`
	Result       string `json:"result"`
	Reason       string `json:"reason"`
	SourceBranch string `json:"sourceBranch"`
}

// LatestBuild returns the newest completed successful build of branch.
// Scheduled pipeline runs are skipped; only manual and per-commit builds
// count as releases.
func (s *Source) LatestBuild(ctx context.Context, branch string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BuildsURL+"?api-version=6.0", nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("listing builds: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("listing builds: HTTP %d", resp.StatusCode)
	}

	var payload struct {
		Value []azureBuild `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("parsing build list: %w", err)
	}

	for _, build := range payload.Value {
		if build.Status != "completed" || build.Result != "succeeded" {
			continue
		}
		if build.Reason != "manual" && build.Reason != "individualCI" {
			continue
		}
		if branch != "" && branch != strings.TrimPrefix(build.SourceBranch, "refs/heads/") {
			continue
		}
		return build.ID + buildOffset, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBranchNotFound, branch)
}

// ArtifactURL is the download location of a build's olympus-build
// artifact zip.
func (s *Source) ArtifactURL(build int) string {
	return fmt.Sprintf("%s/%d/artifacts?artifactName=olympus-build&api-version=6.0&%%24format=zip",
		s.BuildsURL, build-buildOffset)
}

// VersionOf is the published version of a build number.
func VersionOf(build int) version.Version {
	if build <= 0 {
		return version.NoVersion
	}
	return version.Version{Major: 1, Minor: build, Build: 0, Revision: -1}
}

// Unpack extracts a downloaded build artifact into installDir. The CI
// artifact nests the real build zip under olympus-build/build.zip; a
// plain build zip keeps its files under a main/ directory, which is
// stripped.
func Unpack(artifactPath, installDir string) error {
	archive, err := zip.OpenReader(artifactPath)
	if err != nil {
		return fmt.Errorf("opening artifact %s: %w", artifactPath, err)
	}
	defer archive.Close()

	for _, f := range archive.File {
		if f.Name != nestedBuildEntry {
			continue
		}
		logger.Debug("unpacking nested build", "entry", f.Name)
		nested, err := readNested(f)
		if err != nil {
			return err
		}
		return extract(nested, installDir, "")
	}
	return extract(&archive.Reader, installDir, mainPrefix)
}

func readNested(f *zip.File) (*zip.Reader, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Name, err)
	}
	nested, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening nested build zip: %w", err)
	}
	return nested, nil
}

// extract writes the entries under prefix into root, stripping the
// prefix. Entries escaping root are rejected.
func extract(archive *zip.Reader, root, prefix string) error {
	for _, f := range archive.File {
		if prefix != "" && !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		rel := strings.TrimPrefix(f.Name, prefix)
		if rel == "" {
			continue
		}
		target := filepath.Join(root, filepath.FromSlash(rel))
		if !strings.HasPrefix(target, filepath.Clean(root)+string(os.PathSeparator)) {
			return fmt.Errorf("artifact entry %q escapes install directory", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("creating %s: %w", target, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, f.Mode().Perm()|0600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("extracting %s: %w", f.Name, err)
	}
	return nil
}
