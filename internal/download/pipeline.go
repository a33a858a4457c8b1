// Package download runs batches of mod artifact downloads through a fixed
// worker pool with atomic writes, mirror fallback and cooperative
// cancellation.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evermod/everctl/internal/logger"
	"github.com/evermod/everctl/internal/mods"
)

// ErrAborted is returned by InstallAll when the batch was interrupted
// before every item finished.
var ErrAborted = errors.New("download aborted")

const (
	defaultWorkers = 8
	connectTimeout = 5 * time.Second
	stallTimeout   = 30 * time.Second
	chunkSize      = 32 * 1024
)

// Request is one artifact to fetch. Mirror is tried once after URL fails;
// Size is advisory and only used for progress when the server does not
// report a length.
type Request struct {
	Name   string
	URL    string
	Mirror string
	Dest   string
	Size   int64
}

// ForMod builds the request that installs a fresh mod into modFolder.
func ForMod(d mods.ModDownload, modFolder string) Request {
	return Request{
		Name:   d.Meta.Name,
		URL:    d.URL,
		Mirror: d.Mirror,
		Dest:   filepath.Join(modFolder, d.Meta.Name+".zip"),
		Size:   int64(d.Meta.Size),
	}
}

// ForUpdate builds the request that replaces an installed mod in place.
func ForUpdate(u mods.UpdateInfo) Request {
	return Request{
		Name:   u.Old.Name,
		URL:    u.URL,
		Mirror: u.Mirror,
		Dest:   u.Old.Path,
		Size:   int64(u.Size),
	}
}

// Progress is one per-item transfer event. Done fires exactly once per
// item, with Err set when the item failed or was skipped.
type Progress struct {
	Name        string
	Total       int64
	Transferred int64
	Done        bool
	Err         error
}

// Summary is the outcome of one InstallAll batch.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
	Elapsed   time.Duration
}

// Pool downloads requests with a fixed number of workers. Interrupt may be
// called from any goroutine (a signal handler, typically); in-flight
// transfers stop at the next chunk boundary.
type Pool struct {
	Workers    int
	Client     *http.Client
	OnProgress func(Progress)

	interrupted atomic.Bool
}

// NewPool returns a Pool with default worker count and a client using a
// short connect timeout. Stalled reads are handled per transfer.
func NewPool() *Pool {
	return &Pool{
		Workers: defaultWorkers,
		Client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
	}
}

// Interrupt requests cooperative cancellation of the current batch.
func (p *Pool) Interrupt() {
	p.interrupted.Store(true)
}

type job struct {
	req    Request
	dest   string
	staged bool
}

type outcome struct {
	job job
	err error
}

// InstallAll downloads the primary requests directly to their destinations
// and the staged requests into a private staging directory, moving staged
// artifacts into place only once every item in both groups succeeded. A
// request whose destination is a directory (an unzipped mod) is skipped.
// Returns ErrAborted when the batch was interrupted; final paths never
// hold truncated data.
func (p *Pool) InstallAll(ctx context.Context, modFolder string, primary, staged []Request) (Summary, error) {
	start := time.Now()
	summary := Summary{}

	if err := os.MkdirAll(modFolder, 0755); err != nil {
		return summary, fmt.Errorf("creating mod folder: %w", err)
	}

	stagingDir := ""
	if len(staged) > 0 {
		// Inside modFolder so the final rename stays on one filesystem.
		dir, err := os.MkdirTemp(modFolder, ".staged-")
		if err != nil {
			return summary, fmt.Errorf("creating staging directory: %w", err)
		}
		stagingDir = dir
		defer os.RemoveAll(stagingDir)
	}

	batchDone := make(chan struct{})
	defer close(batchDone)
	go func() {
		select {
		case <-ctx.Done():
			p.interrupted.Store(true)
		case <-batchDone:
		}
	}()

	var jobs []job
	for _, r := range primary {
		jobs = append(jobs, job{req: r, dest: r.Dest})
	}
	for _, r := range staged {
		jobs = append(jobs, job{req: r, dest: filepath.Join(stagingDir, filepath.Base(r.Dest)), staged: true})
	}

	queue := make(chan job, len(jobs))
	results := make(chan outcome, len(jobs))

	workers := p.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				results <- outcome{job: j, err: p.runJob(ctx, j)}
			}
		}()
	}
	for _, j := range jobs {
		queue <- j
	}
	close(queue)
	go func() {
		wg.Wait()
		close(results)
	}()

	aborted := false
	stagedFailed := false
	var stagedDone []job
	for out := range results {
		switch {
		case out.err == nil:
			if out.job.staged {
				stagedDone = append(stagedDone, out.job)
			} else {
				summary.Succeeded++
			}
		case errors.Is(out.err, ErrSkipped):
			summary.Skipped++
		case errors.Is(out.err, ErrAborted):
			aborted = true
			if out.job.staged {
				stagedFailed = true
			}
		default:
			logger.Error("download failed", "mod", out.job.req.Name, "error", out.err)
			summary.Failed++
			if out.job.staged {
				stagedFailed = true
			}
		}
	}

	// Staged artifacts land in modFolder only when the whole batch came
	// through clean; otherwise the staging directory is discarded.
	if !aborted && !stagedFailed && summary.Failed == 0 {
		for _, j := range stagedDone {
			if err := os.Rename(j.dest, j.req.Dest); err != nil {
				logger.Error("installing staged mod", "mod", j.req.Name, "error", err)
				summary.Failed++
				continue
			}
			summary.Succeeded++
		}
	}

	summary.Elapsed = time.Since(start)
	if aborted {
		return summary, ErrAborted
	}
	return summary, nil
}

// ErrSkipped marks a request whose destination cannot be overwritten, so
// nothing was downloaded for it.
var ErrSkipped = errors.New("skipped")

func (p *Pool) runJob(ctx context.Context, j job) error {
	if info, err := os.Stat(j.req.Dest); err == nil && info.IsDir() {
		logger.Warn("not overwriting unzipped mod", "mod", j.req.Name, "path", j.req.Dest)
		p.emit(Progress{Name: j.req.Name, Done: true, Err: ErrSkipped})
		return ErrSkipped
	}

	err := p.fetch(ctx, j.req, j.req.URL, j.dest)
	if err != nil && !errors.Is(err, ErrAborted) && j.req.Mirror != "" && j.req.Mirror != j.req.URL {
		logger.Warn("retrying from mirror", "mod", j.req.Name, "error", err)
		err = p.fetch(ctx, j.req, j.req.Mirror, j.dest)
	}
	p.emit(Progress{Name: j.req.Name, Done: true, Err: err})
	return err
}

// fetch streams url into dest through a temp file in the destination
// directory, renaming only on success. The interrupt flag is checked
// between chunks, and a read that stalls past stallTimeout cancels this
// transfer only.
func (p *Pool) fetch(ctx context.Context, req Request, url, dest string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", url, err)
	}
	resp, err := p.client().Do(httpReq)
	if err != nil {
		if p.interrupted.Load() {
			return ErrAborted
		}
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: HTTP %d", url, resp.StatusCode)
	}

	total := resp.ContentLength
	if total < 0 {
		total = req.Size
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		tmp.Close()
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	stall := time.AfterFunc(stallTimeout, cancel)
	defer stall.Stop()

	buf := make([]byte, chunkSize)
	var transferred int64
	for {
		if p.interrupted.Load() {
			return ErrAborted
		}
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			stall.Reset(stallTimeout)
			if _, werr := tmp.Write(buf[:n]); werr != nil {
				return fmt.Errorf("writing %s: %w", dest, werr)
			}
			transferred += int64(n)
			p.emit(Progress{Name: req.Name, Total: total, Transferred: transferred})
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if p.interrupted.Load() {
				return ErrAborted
			}
			return fmt.Errorf("reading %s: %w", url, rerr)
		}
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("renaming %s: %w", dest, err)
	}
	committed = true
	return nil
}

func (p *Pool) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

func (p *Pool) emit(ev Progress) {
	if p.OnProgress != nil {
		p.OnProgress(ev)
	}
}
