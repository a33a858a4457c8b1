package download

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/evermod/everctl/internal/mods"
	"github.com/evermod/everctl/internal/version"
)

func serveBytes(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestInstallAllPrimary(t *testing.T) {
	body := bytes.Repeat([]byte("celeste"), 1000)
	server := serveBytes(t, body)
	dir := t.TempDir()

	var last Progress
	pool := NewPool()
	pool.OnProgress = func(ev Progress) {
		if !ev.Done {
			last = ev
		}
	}

	req := Request{Name: "TestMod", URL: server.URL, Dest: filepath.Join(dir, "TestMod.zip")}
	summary, err := pool.InstallAll(context.Background(), dir, []Request{req}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Succeeded != 1 || summary.Failed != 0 || summary.Skipped != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if !bytes.Equal(readFile(t, req.Dest), body) {
		t.Error("downloaded content does not match")
	}
	if last.Transferred != int64(len(body)) {
		t.Errorf("progress reported %d of %d bytes", last.Transferred, len(body))
	}
}

func TestInstallAllMirrorRetry(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer primary.Close()
	mirror := serveBytes(t, []byte("mirror content"))
	dir := t.TempDir()

	pool := NewPool()
	req := Request{Name: "Mirrored", URL: primary.URL, Mirror: mirror.URL, Dest: filepath.Join(dir, "Mirrored.zip")}
	summary, err := pool.InstallAll(context.Background(), dir, []Request{req}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Succeeded != 1 || summary.Failed != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if string(readFile(t, req.Dest)) != "mirror content" {
		t.Error("mirror content not written")
	}
}

func TestInstallAllNoMirrorRetryWhenSame(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()
	dir := t.TempDir()

	pool := NewPool()
	req := Request{Name: "Broken", URL: server.URL, Mirror: server.URL, Dest: filepath.Join(dir, "Broken.zip")}
	summary, err := pool.InstallAll(context.Background(), dir, []Request{req}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if hits != 1 {
		t.Errorf("server hit %d times, want 1", hits)
	}
}

func TestInstallAllStagedBarrier(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer broken.Close()
	good := serveBytes(t, []byte("requested mod"))
	dir := t.TempDir()

	pool := NewPool()
	primary := Request{Name: "Dep", URL: broken.URL, Dest: filepath.Join(dir, "Dep.zip")}
	staged := Request{Name: "Wanted", URL: good.URL, Dest: filepath.Join(dir, "Wanted.zip")}

	summary, err := pool.InstallAll(context.Background(), dir, []Request{primary}, []Request{staged})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 1 || summary.Succeeded != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	// The staged mod downloaded fine but must not land while any item of
	// the batch failed.
	if _, err := os.Stat(staged.Dest); !errors.Is(err, os.ErrNotExist) {
		t.Error("staged mod was installed despite a failed batch")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("staging leftovers in mod folder: %v", entries)
	}
}

func TestInstallAllStagedSuccess(t *testing.T) {
	server := serveBytes(t, []byte("mod payload"))
	dir := t.TempDir()

	pool := NewPool()
	primary := Request{Name: "Dep", URL: server.URL, Dest: filepath.Join(dir, "Dep.zip")}
	staged := Request{Name: "Wanted", URL: server.URL, Dest: filepath.Join(dir, "Wanted.zip")}

	summary, err := pool.InstallAll(context.Background(), dir, []Request{primary}, []Request{staged})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Succeeded != 2 || summary.Failed != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if string(readFile(t, staged.Dest)) != "mod payload" {
		t.Error("staged mod not moved into place")
	}
}

func TestInstallAllSkipsUnzippedMod(t *testing.T) {
	server := serveBytes(t, []byte("new version"))
	dir := t.TempDir()

	// An update target that is an unpacked folder, not a zip.
	folderMod := filepath.Join(dir, "FolderMod")
	if err := os.Mkdir(folderMod, 0755); err != nil {
		t.Fatal(err)
	}

	update := mods.NewUpdateInfo(
		mods.ModMeta{Name: "FolderMod", Version: version.Must("1.0.0"), Path: folderMod},
		version.Must("1.1.0"), server.URL, "", 0)

	pool := NewPool()
	summary, err := pool.InstallAll(context.Background(), dir, []Request{ForUpdate(update)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 1 || summary.Succeeded != 0 || summary.Failed != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if info, err := os.Stat(folderMod); err != nil || !info.IsDir() {
		t.Error("folder mod should be untouched")
	}
}

func TestInstallAllInterrupt(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 1024))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	}))
	defer server.Close()
	defer close(release)
	dir := t.TempDir()

	pool := NewPool()
	pool.OnProgress = func(ev Progress) {
		if ev.Transferred > 0 {
			pool.Interrupt()
		}
	}

	req := Request{Name: "Big", URL: server.URL, Dest: filepath.Join(dir, "Big.zip")}
	_, err := pool.InstallAll(context.Background(), dir, []Request{req}, nil)
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	if _, err := os.Stat(req.Dest); !errors.Is(err, os.ErrNotExist) {
		t.Error("aborted download must not leave the destination file")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("temp leftovers after abort: %v", entries)
	}
}

func TestForModDefaults(t *testing.T) {
	meta := mods.ModMeta{Name: "Sample", Version: version.Must("1.0.0"), Size: 42}
	d := mods.NewModDownload(meta, "https://example.com/sample.zip", "")

	req := ForMod(d, "/tmp/Mods")
	if req.Dest != filepath.Join("/tmp/Mods", "Sample.zip") {
		t.Errorf("unexpected dest %q", req.Dest)
	}
	if req.Mirror != req.URL {
		t.Error("mirror should default to the primary URL")
	}
	if req.Size != 42 {
		t.Errorf("unexpected size %d", req.Size)
	}
}
