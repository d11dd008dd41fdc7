package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/dtnitsch/vincenzo/models"
)

// Options configures a Fetcher. Zero values fall back to the config defaults.
type Options struct {
	Proxy        models.ProxyConfig
	Timeout      time.Duration
	UserAgent    string
	MaxPageBytes int64
	Mode         string // models.FetchModeHTTP or models.FetchModeBrowser
}

// OptionsFromConfig threads the loaded configuration into fetcher options.
func OptionsFromConfig(cfg *models.Config) Options {
	return Options{
		Proxy:        cfg.Proxy(),
		Timeout:      cfg.Timeout(),
		UserAgent:    cfg.UserAgent,
		MaxPageBytes: cfg.MaxPageBytes,
		Mode:         cfg.FetchMode,
	}
}

// Fetcher issues single-attempt HTTP requests. It never retries.
type Fetcher struct {
	client *http.Client
	opts   Options
}

func NewFetcher(opts Options) (*Fetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = models.DefaultUserAgent
	}
	if opts.MaxPageBytes <= 0 {
		opts.MaxPageBytes = 10 << 20
	}
	if opts.Mode == "" {
		opts.Mode = models.FetchModeHTTP
	}

	transport := &http.Transport{
		// Environment proxies are ignored; the config file is the only proxy source.
		Proxy: nil,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		IdleConnTimeout:     90 * time.Second,
	}
	if proxyURL := opts.Proxy.URL(); proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", proxyURL, err)
		}
		transport.Proxy = http.ProxyURL(u)
	}

	return &Fetcher{
		client: &http.Client{Transport: transport, Timeout: opts.Timeout},
		opts:   opts,
	}, nil
}

// Mode reports how pages are fetched.
func (f *Fetcher) Mode() string {
	return f.opts.Mode
}

func (f *Fetcher) newRequest(ctx context.Context, method, rawURL, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", accept)
	return req, nil
}

// GetPage fetches the page markup at rawURL, decoded to UTF-8.
// Non-2xx responses and network failures wrap models.ErrFetch.
func (f *Fetcher) GetPage(ctx context.Context, rawURL string) (*models.Page, error) {
	if f.opts.Mode == models.FetchModeBrowser {
		return f.renderPage(ctx, rawURL)
	}

	req, err := f.newRequest(ctx, http.MethodGet, rawURL, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to make HTTP request: %v", models.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status code %d", models.ErrFetch, resp.StatusCode)
	}

	raw, err := readBody(resp.Body, f.opts.MaxPageBytes)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	body, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode body: %v", models.ErrFetch, err)
	}
	html, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode body: %v", models.ErrFetch, err)
	}

	return &models.Page{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		HTML:        string(html),
	}, nil
}

// GetBytes downloads rawURL and returns the body with its media type.
func (f *Fetcher) GetBytes(ctx context.Context, rawURL string, limit int64) ([]byte, string, error) {
	req, err := f.newRequest(ctx, http.MethodGet, rawURL, "*/*")
	if err != nil {
		return nil, "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to make HTTP request: %v", models.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: status code %d", models.ErrFetch, resp.StatusCode)
	}

	if limit <= 0 {
		limit = f.opts.MaxPageBytes
	}
	data, err := readBody(resp.Body, limit)
	if err != nil {
		return nil, "", err
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return data, mediaType, nil
}

// readBody reads at most limit bytes. A longer body is an error rather than a
// silently truncated result.
func readBody(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", models.ErrFetch, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", models.ErrFetch, limit)
	}
	return data, nil
}

var dispositionFilename = regexp.MustCompile(`(?i)filename\*?=(?:UTF-8'')?"?([^";]+)"?`)

// ResolveFileName asks the server for the real download name of a file URL
// via one HEAD request and its Content-Disposition header.
func (f *Fetcher) ResolveFileName(ctx context.Context, fileURL string) (string, error) {
	req, err := f.newRequest(ctx, http.MethodHead, fileURL, "*/*")
	if err != nil {
		return "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: failed to make HEAD request: %v", models.ErrFetch, err)
	}
	resp.Body.Close()

	name := FilenameFromDisposition(resp.Header.Get("Content-Disposition"))
	if name == "" {
		return "", fmt.Errorf("no filename in response from %s", fileURL)
	}
	return name, nil
}

// FilenameFromDisposition extracts the file name from a Content-Disposition value.
func FilenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(header); err == nil && params["filename"] != "" {
		return strings.TrimSpace(params["filename"])
	}

	m := dispositionFilename.FindStringSubmatch(header)
	if len(m) < 2 {
		return ""
	}
	name := strings.TrimSpace(m[1])
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return name
}
