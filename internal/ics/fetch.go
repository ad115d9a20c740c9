package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	appLog "evcal/internal/log"
)

const (
	// maxFeedBytes bounds a downloaded feed.
	maxFeedBytes = 8 << 20
	// maxCacheEntries bounds the number of cached feeds; the least
	// recently refreshed ones are evicted first.
	maxCacheEntries = 32
)

var (
	// ErrUnsupportedURL is returned for anything but absolute http(s) URLs.
	ErrUnsupportedURL = errors.New("only http and https urls are supported")
	// ErrForbiddenHost is returned when a feed host resolves to a
	// loopback, private, link-local or otherwise non-public address.
	ErrForbiddenHost = errors.New("feed host is not a public address")
)

// Feed is a downloaded iCalendar document.
type Feed struct {
	URL       string
	Body      []byte
	FromCache bool
}

type feedMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads remote calendars for import. With a cache directory
// it sends conditional requests and falls back to the last good body
// when the server is unreachable or answers with an error.
type Fetcher struct {
	client     *http.Client
	cacheDir   string
	maxEntries int
}

// NewFetcher returns a Fetcher caching under cacheDir; an empty cacheDir
// disables caching. A nil client is replaced by one that only dials
// public addresses, which is what servers importing user-supplied URLs
// should use.
func NewFetcher(client *http.Client, cacheDir string) *Fetcher {
	if client == nil {
		client = publicClient()
	}
	return &Fetcher{client: client, cacheDir: cacheDir, maxEntries: maxCacheEntries}
}

// publicClient refuses to connect to non-public addresses. The check
// runs on the resolved address at dial time, so redirects and DNS names
// pointing inward are caught too. Proxies are not used since the proxy
// address would be checked instead of the feed host.
func publicClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: func(network, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			ip, err := netip.ParseAddr(host)
			if err != nil {
				return err
			}
			if !isPublicAddr(ip) {
				return fmt.Errorf("%w: %s", ErrForbiddenHost, ip)
			}
			return nil
		},
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.Proxy = nil
	tr.DialContext = dialer.DialContext
	return &http.Client{Timeout: 15 * time.Second, Transport: tr}
}

func isPublicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsValid() &&
		!ip.IsLoopback() &&
		!ip.IsPrivate() &&
		!ip.IsLinkLocalUnicast() &&
		!ip.IsLinkLocalMulticast() &&
		!ip.IsInterfaceLocalMulticast() &&
		!ip.IsMulticast() &&
		!ip.IsUnspecified()
}

func checkFeedURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrUnsupportedURL
	}
	return nil
}

// Fetch downloads rawURL, which must be an absolute http or https URL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Feed, error) {
	if err := checkFeedURL(rawURL); err != nil {
		return Feed{}, fmt.Errorf("ics fetch: %w", err)
	}

	var (
		meta   feedMeta
		cached []byte
		dir    string
	)
	if f.cacheDir != "" {
		dir = f.cacheEntryDir(rawURL)
		meta, _ = loadFeedMeta(dir)
		cached, _ = os.ReadFile(filepath.Join(dir, "body.ics"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Feed{}, fmt.Errorf("ics fetch: %w", err)
	}
	if len(cached) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Info("ics fetch start", "url", redactURL(rawURL))
	resp, err := f.client.Do(req)
	if err != nil {
		if len(cached) > 0 {
			appLog.Error("ics fetch failed; using cached body", err, "url", redactURL(rawURL))
			return Feed{URL: rawURL, Body: cached, FromCache: true}, nil
		}
		return Feed{}, fmt.Errorf("ics fetch: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
		if err != nil {
			return Feed{}, fmt.Errorf("ics fetch: read body: %w", err)
		}
		if dir != "" {
			meta = feedMeta{
				URL:          rawURL,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			}
			if err := saveFeed(dir, meta, body); err != nil {
				appLog.Error("ics cache save failed", err, "url", redactURL(rawURL))
			}
			f.pruneCache(dir)
		}
		appLog.Info("ics fetch success", "url", redactURL(rawURL), "bytes", len(body))
		return Feed{URL: rawURL, Body: body}, nil

	case resp.StatusCode == http.StatusNotModified && len(cached) > 0:
		appLog.Info("ics fetch not modified; using cache", "url", redactURL(rawURL))
		return Feed{URL: rawURL, Body: cached, FromCache: true}, nil

	case len(cached) > 0:
		appLog.Error("ics fetch non-OK; using cached body", errors.New(resp.Status), "url", redactURL(rawURL))
		return Feed{URL: rawURL, Body: cached, FromCache: true}, nil

	default:
		return Feed{}, fmt.Errorf("ics fetch: %s", resp.Status)
	}
}

func (f *Fetcher) cacheEntryDir(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

// pruneCache drops the oldest entries beyond maxEntries, never keep.
func (f *Fetcher) pruneCache(keep string) {
	entries, err := os.ReadDir(f.cacheDir)
	if err != nil || len(entries) <= f.maxEntries {
		return
	}

	type cached struct {
		dir     string
		updated time.Time
	}
	all := make([]cached, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(f.cacheDir, e.Name())
		c := cached{dir: dir}
		if info, err := os.Stat(filepath.Join(dir, "meta.json")); err == nil {
			c.updated = info.ModTime()
		}
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].updated.After(all[j].updated) })

	kept := 0
	for _, c := range all {
		if c.dir == keep || kept < f.maxEntries-1 {
			if c.dir != keep {
				kept++
			}
			continue
		}
		if err := os.RemoveAll(c.dir); err != nil {
			appLog.Warn("ics cache prune failed", "err", err)
		}
	}
}

func loadFeedMeta(dir string) (feedMeta, error) {
	var meta feedMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return feedMeta{}, err
	}
	return meta, nil
}

// saveFeed writes the body before the metadata so meta never points at
// a missing body.
func saveFeed(dir string, meta feedMeta, body []byte) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps scheme and host only; calendar URLs often embed tokens.
func redactURL(u string) string {
	_, rest, ok := cutScheme(u)
	if !ok {
		return "ics://...(redacted)"
	}
	host := rest
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' || rest[i] == '?' {
			host = rest[:i]
			break
		}
	}
	return u[:len(u)-len(rest)] + host + "/...(redacted)"
}

func cutScheme(u string) (scheme, rest string, ok bool) {
	for i := 0; i+2 < len(u); i++ {
		if u[i:i+3] == "://" {
			return u[:i], u[i+3:], true
		}
	}
	return "", "", false
}
