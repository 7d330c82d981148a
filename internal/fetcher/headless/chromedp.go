// Package headless contains a browser-backed fetcher for storefronts that
// refuse plain HTTP clients. Script execution is disabled, so the returned
// markup matches what a static fetch would see.
package headless

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/stockwatcher/internal/stock"
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
}

// Fetcher implements stock.Fetcher using chromedp and headless Chrome.
type Fetcher struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a headless fetcher backed by chromedp.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close shuts down the browser.
func (f *Fetcher) Close() error {
	f.allocCancel()
	return nil
}

// Fetch navigates with scripts disabled and returns the document markup.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (stock.Page, error) {
	if err := f.acquire(ctx); err != nil {
		return stock.Page{}, err
	}
	defer f.release()

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.navTimeout())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	body, finalURL, err := f.runHeadless(taskCtx, rawURL, meta)
	if err != nil {
		return stock.Page{}, err
	}

	status, responseURL := meta.snapshotWithFallbacks(rawURL, finalURL)
	return stock.Page{
		URL:        responseURL,
		StatusCode: status,
		Body:       []byte(body),
	}, nil
}

func (f *Fetcher) runHeadless(ctx context.Context, rawURL string, meta *responseMeta) (string, string, error) {
	var finalURL string
	if err := chromedp.Run(ctx,
		f.setupAction(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
	); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}

	var body string
	if err := chromedp.Run(ctx, contentAction(meta.mimeType(), &body)); err != nil {
		return "", "", fmt.Errorf("chromedp read content: %w", err)
	}
	return body, finalURL, nil
}

// contentAction reads the page markup. Chrome wraps non-HTML documents such
// as JSON in a <pre> viewer; for those the raw text is read instead.
func contentAction(mimeType string, body *string) chromedp.Action {
	sel, raw := contentSelector(mimeType)
	if raw {
		return chromedp.Text(sel, body, chromedp.ByQuery)
	}
	return chromedp.OuterHTML(sel, body, chromedp.ByQuery)
}

func contentSelector(mimeType string) (string, bool) {
	if isRawDocument(mimeType) {
		return "pre", true
	}
	return "html", false
}

func isRawDocument(mimeType string) bool {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}
	switch {
	case mt == "application/json", mt == "text/plain":
		return true
	case strings.HasSuffix(mt, "+json"):
		return true
	default:
		return false
	}
}

func (f *Fetcher) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := emulation.SetScriptExecutionDisabled(true).Do(ctx); err != nil {
			return fmt.Errorf("disable scripts: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}

func (f *Fetcher) navTimeout() time.Duration {
	if f.cfg.NavigationTimeout > 0 {
		return f.cfg.NavigationTimeout
	}
	return 45 * time.Second
}

// responseMeta records the main document's status, URL and MIME type.
type responseMeta struct {
	mu     sync.RWMutex
	status int
	url    string
	mime   string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.url = event.Response.URL
	m.mime = event.Response.MimeType
	m.mu.Unlock()
}

func (m *responseMeta) mimeType() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mime
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, string) {
	m.mu.RLock()
	status, url := m.status, m.url
	m.mu.RUnlock()

	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, url
}
