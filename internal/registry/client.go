// Package registry fetches and caches the remote mod database and
// dependency graph documents.
package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenk/backoff"
	"github.com/charmbracelet/log"
	circuit "github.com/rubyist/circuitbreaker"
	"gopkg.in/yaml.v3"
)

const (
	// DatabasePointerURL serves a one-line text file holding the current
	// mod database URL.
	DatabasePointerURL = "https://everestapi.github.io/modupdater.txt"

	// DefaultGraphURL is the published dependency graph document.
	DefaultGraphURL = "https://maddie480.ovh/celeste/mod_dependency_graph.yaml"

	databaseCacheName = "mod_database.yaml"
	graphCacheName    = "dependency_graph.yaml"

	defaultTTL = 15 * time.Minute
	maxRetries = 3
)

// Client fetches the registry documents with on-disk caching. Documents
// are refetched once the cache outlives TTL, using conditional requests;
// when the network is down a stale cache is served instead.
type Client struct {
	// DatabaseURL overrides the pointer-file lookup when set.
	DatabaseURL string
	GraphURL    string
	TTL         time.Duration

	cacheDir string
	logger   *log.Logger
	client   *http.Client

	mu       sync.Mutex
	breakers map[string]*circuit.Breaker
	dbURL    string
}

// NewClient creates a registry client caching under cacheDir.
func NewClient(cacheDir string, logger *log.Logger) *Client {
	return &Client{
		GraphURL: DefaultGraphURL,
		TTL:      defaultTTL,
		cacheDir: cacheDir,
		logger:   logger,
		client:   &http.Client{Timeout: 30 * time.Second},
		breakers: make(map[string]*circuit.Breaker),
	}
}

// Database returns the mod update database.
func (c *Client) Database(ctx context.Context, forceRefresh bool) (Database, error) {
	dbURL, err := c.databaseURL(ctx)
	if err != nil {
		return nil, err
	}
	data, err := c.fetchDocument(ctx, dbURL, databaseCacheName, forceRefresh)
	if err != nil {
		return nil, err
	}
	var db Database
	if err := yaml.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("parsing mod database: %w", err)
	}
	return db, nil
}

// Graph returns the published dependency graph.
func (c *Client) Graph(ctx context.Context, forceRefresh bool) (DependencyGraph, error) {
	data, err := c.fetchDocument(ctx, c.GraphURL, graphCacheName, forceRefresh)
	if err != nil {
		return nil, err
	}
	var graph DependencyGraph
	if err := yaml.Unmarshal(data, &graph); err != nil {
		return nil, fmt.Errorf("parsing dependency graph: %w", err)
	}
	return graph, nil
}

// databaseURL resolves the mod database location through the pointer file,
// once per client.
func (c *Client) databaseURL(ctx context.Context) (string, error) {
	if c.DatabaseURL != "" {
		return c.DatabaseURL, nil
	}
	c.mu.Lock()
	cached := c.dbURL
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	resp, err := c.get(ctx, DatabasePointerURL, "")
	if err != nil {
		return "", fmt.Errorf("resolving mod database location: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("resolving mod database location: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("resolving mod database location: %w", err)
	}
	resolved := strings.TrimSpace(string(data))

	c.mu.Lock()
	c.dbURL = resolved
	c.mu.Unlock()
	return resolved, nil
}

// fetchDocument implements the cache discipline shared by both documents.
func (c *Client) fetchDocument(ctx context.Context, docURL, cacheName string, forceRefresh bool) ([]byte, error) {
	cachePath := filepath.Join(c.cacheDir, cacheName)
	etagPath := cachePath + ".etag"

	cached, cacheTime, cacheErr := loadCache(cachePath)
	if cacheErr == nil && !forceRefresh && time.Since(cacheTime) < c.TTL {
		c.logger.Debug("using cached registry document",
			"doc", cacheName, "age", time.Since(cacheTime).Round(time.Second))
		return cached, nil
	}

	etag := ""
	if cached != nil {
		if data, err := os.ReadFile(etagPath); err == nil {
			etag = strings.TrimSpace(string(data))
		}
	}

	fresh, newETag, err := c.fetchConditional(ctx, docURL, etag)
	if err != nil {
		if cached != nil {
			c.logger.Warn("registry fetch failed, using stale cache",
				"doc", cacheName, "error", err,
				"cache_age", time.Since(cacheTime).Round(time.Minute))
			return cached, nil
		}
		return nil, fmt.Errorf("fetching %s with no cache available: %w", docURL, err)
	}

	// Not modified; the cached copy is current again.
	if fresh == nil {
		if cached == nil {
			return nil, fmt.Errorf("%s returned not-modified but no cache exists", docURL)
		}
		now := time.Now()
		_ = os.Chtimes(cachePath, now, now)
		return cached, nil
	}

	if err := saveCache(c.cacheDir, cachePath, fresh); err != nil {
		c.logger.Warn("failed to save registry cache", "doc", cacheName, "error", err)
	} else if newETag != "" {
		_ = os.WriteFile(etagPath, []byte(newETag), 0644)
	}
	return fresh, nil
}

// fetchConditional downloads docURL with retries, returning (nil, "", nil)
// on 304 Not Modified.
func (c *Client) fetchConditional(ctx context.Context, docURL, etag string) ([]byte, string, error) {
	breaker := c.breaker(docURL)
	if !breaker.Ready() {
		return nil, "", fmt.Errorf("circuit breaker open for %s", hostOf(docURL))
	}

	var body []byte
	var newETag string
	notModified := false

	fetch := func() error {
		return breaker.Call(func() error {
			resp, err := c.get(ctx, docURL, etag)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusNotModified:
				notModified = true
				return nil
			case resp.StatusCode == http.StatusOK:
				data, err := io.ReadAll(resp.Body)
				if err != nil {
					return fmt.Errorf("reading response: %w", err)
				}
				body = data
				newETag = resp.Header.Get("ETag")
				return nil
			case resp.StatusCode >= 500:
				return fmt.Errorf("server error: HTTP %d", resp.StatusCode)
			default:
				return backoff.Permanent(fmt.Errorf("unexpected status: HTTP %d", resp.StatusCode))
			}
		}, 0)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(fetch, policy); err != nil {
		return nil, "", err
	}
	if notModified {
		return nil, "", nil
	}
	return body, newETag, nil
}

func (c *Client) get(ctx context.Context, docURL, etag string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "everctl/1.0 (Everest mod manager)")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	return c.client.Do(req)
}

// breaker returns the circuit breaker for docURL's host, creating it on
// first use. Trips after 5 consecutive failures, reopening on an
// exponential schedule.
func (c *Client) breaker(docURL string) *circuit.Breaker {
	host := hostOf(docURL)

	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.breakers[host]; ok {
		return b
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Reset()

	b := circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	})
	c.breakers[host] = b
	return b
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}

func loadCache(path string) ([]byte, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	return data, info.ModTime(), nil
}

func saveCache(dir, path string, data []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
