// Package fetcher renders pages in a remote browser and reduces them to a
// lightweight markdown form for extraction.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/job-audit/internal/domain"
)

// BlobStore persists page artifacts
type BlobStore interface {
	Put(ctx context.Context, path string, content []byte, contentType string) error
}

// Page is a fetched page
type Page struct {
	URL        string
	HTML       string
	Text       string
	Screenshot []byte
}

// Fetcher loads pages through a Browser and snapshots them to a BlobStore
type Fetcher struct {
	browser Browser
	blobs   BlobStore
	logger  *slog.Logger
}

// New creates a Fetcher. blobs may be nil to skip snapshots.
func New(browser Browser, blobs BlobStore, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		browser: browser,
		blobs:   blobs,
		logger:  logger,
	}
}

// Fetch renders url and returns its cleaned HTML and markdown text. Any
// browser failure or an empty page is reported as domain.ErrFetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	page, err := f.load(ctx, url, false)
	if err != nil {
		return nil, err
	}

	stem := "job_extraction/" + SanitizeURL(url)
	f.snapshot(ctx, stem+".html", []byte(page.HTML), "text/html")
	f.snapshot(ctx, stem+".md", []byte(page.Text), "text/markdown")

	return page, nil
}

// FetchWithScreenshot is Fetch plus a full-page PNG, without snapshots
func (f *Fetcher) FetchWithScreenshot(ctx context.Context, url string) (*Page, error) {
	return f.load(ctx, url, true)
}

func (f *Fetcher) load(ctx context.Context, url string, screenshot bool) (*Page, error) {
	session, err := f.browser.Open(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFetchFailed, url, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			f.logger.Warn("Failed to close browser session",
				slog.String("url", url),
				slog.Any("error", err),
			)
		}
	}()

	raw, err := session.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFetchFailed, url, err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: %s: empty page", domain.ErrFetchFailed, url)
	}

	cleaned, text, err := Clean(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFetchFailed, url, err)
	}

	page := &Page{URL: url, HTML: cleaned, Text: text}

	if screenshot {
		page.Screenshot, err = session.Screenshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrFetchFailed, url, err)
		}
	}

	f.logger.Debug("Page fetched",
		slog.String("url", url),
		slog.Int("html_bytes", len(cleaned)),
		slog.Int("text_bytes", len(text)),
	)

	return page, nil
}

func (f *Fetcher) snapshot(ctx context.Context, path string, content []byte, contentType string) {
	if f.blobs == nil {
		return
	}
	if err := f.blobs.Put(ctx, path, content, contentType); err != nil {
		f.logger.Warn("Failed to upload page snapshot",
			slog.String("path", path),
			slog.Any("error", err),
		)
	}
}
