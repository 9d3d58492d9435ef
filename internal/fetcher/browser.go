package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Browser opens one rendered page per call
type Browser interface {
	Open(ctx context.Context, url string) (Session, error)
}

// Session is a navigated page. Close must always be called.
type Session interface {
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// ChromeBrowser drives a remote Chrome over the DevTools protocol. Each Open
// gets its own connection so hosted browsers can hand out one session per page.
type ChromeBrowser struct {
	cdpURL     string
	navTimeout time.Duration
}

// NewChromeBrowser creates a browser bound to cdpURL
func NewChromeBrowser(cdpURL string, navTimeout time.Duration) *ChromeBrowser {
	return &ChromeBrowser{
		cdpURL:     cdpURL,
		navTimeout: navTimeout,
	}
}

// Open connects, creates a tab and navigates it to url
func (b *ChromeBrowser) Open(ctx context.Context, url string) (Session, error) {
	var opts []chromedp.RemoteAllocatorOption
	if strings.HasPrefix(b.cdpURL, "wss://") || strings.Contains(b.cdpURL, "/devtools/browser/") {
		opts = append(opts, chromedp.NoModifyURL)
	}

	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.Background(), b.cdpURL, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		tabCtx: tabCtx,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
	}
	// tear the tab down if the caller gives up
	s.stop = context.AfterFunc(ctx, s.cancel)

	// the first Run allocates the tab and must not carry a timeout
	if err := chromedp.Run(tabCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	navCtx, cancelNav := context.WithTimeout(tabCtx, b.navTimeout)
	defer cancelNav()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	return s, nil
}

type chromeSession struct {
	tabCtx context.Context
	cancel func()
	stop   func() bool
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := s.bound(ctx)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page html: %w", err)
	}
	return html, nil
}

func (s *chromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	runCtx, cancel := s.bound(ctx)
	defer cancel()

	var buf []byte
	// quality 100 produces png
	if err := chromedp.Run(runCtx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

func (s *chromeSession) Close() error {
	s.stop()
	s.cancel()
	return nil
}

// bound derives a tab context that also honours the caller's deadline
func (s *chromeSession) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(s.tabCtx, deadline)
	} else {
		runCtx, cancel = context.WithCancel(s.tabCtx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
