package fetcher

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/dtnitsch/vincenzo/models"
)

// browserFlags lists the Chrome flags added on top of chromedp's defaults.
func (f *Fetcher) browserFlags() map[string]interface{} {
	flags := map[string]interface{}{
		"headless":              true,
		"disable-gpu":           true,
		"disable-dev-shm-usage": true,
		"user-agent":            f.opts.UserAgent,
	}
	if proxyURL := f.opts.Proxy.URL(); proxyURL != "" {
		flags["proxy-server"] = proxyURL
	}
	return flags
}

// browserOptions builds the headless Chrome allocator options, honoring the proxy setting.
func (f *Fetcher) browserOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range f.browserFlags() {
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// renderPage loads rawURL in headless Chrome and returns the rendered markup.
// The browser does not expose the HTTP status, so a loaded page is reported as 200.
func (f *Fetcher) renderPage(ctx context.Context, rawURL string) (*models.Page, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, f.browserOptions()...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, f.opts.Timeout)
	defer cancelTimeout()

	var html, finalURL string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: browser render failed: %v", models.ErrFetch, err)
	}
	if int64(len(html)) > f.opts.MaxPageBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", models.ErrFetch, f.opts.MaxPageBytes)
	}

	return &models.Page{
		URL:         rawURL,
		FinalURL:    finalURL,
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
		HTML:        html,
	}, nil
}
