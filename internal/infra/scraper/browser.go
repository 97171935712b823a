package scraper

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/bryanwahyu/fineprint/internal/domain/analysis"
)

const DefaultRenderTimeout = 10 * time.Second

// BrowserFetcher renders pages in headless Chrome for sites that build their
// content with JavaScript. The browser is started on first use.
// Chrome does its own DNS, so only literal internal hosts are refused.
type BrowserFetcher struct {
	controlURL string
	timeout    time.Duration

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// NewBrowserFetcher connects to controlURL when set, otherwise launches a
// local Chrome.
func NewBrowserFetcher(controlURL string, timeout time.Duration) *BrowserFetcher {
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	return &BrowserFetcher{controlURL: controlURL, timeout: timeout}
}

func (f *BrowserFetcher) connect() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser != nil {
		return f.browser, nil
	}

	wsURL := f.controlURL
	if wsURL == "" {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, err
		}
		wsURL = u
		f.lnch = l
		zap.L().Info("browser launched", zap.String("control_url", wsURL))
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if f.lnch != nil {
			f.lnch.Cleanup()
			f.lnch = nil
		}
		return nil, err
	}
	f.browser = b
	return b, nil
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (*analysis.Page, error) {
	if err := guardURL(url); err != nil {
		return nil, &analysis.FetchError{Kind: analysis.FetchNetwork, URL: url, Err: err}
	}
	b, err := f.connect()
	if err != nil {
		return nil, &analysis.FetchError{Kind: analysis.FetchNetwork, URL: url, Err: err}
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, &analysis.FetchError{Kind: analysis.FetchNetwork, URL: url, Err: err}
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		return nil, &analysis.FetchError{Kind: analysis.FetchNetwork, URL: url, Err: err}
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		zap.L().Warn("browser wait load", zap.String("url", url), zap.Error(err))
	}

	html, err := page.Context(navCtx).HTML()
	if err != nil {
		return nil, &analysis.FetchError{Kind: analysis.FetchNetwork, URL: url, Err: err}
	}
	if strings.TrimSpace(html) == "" {
		return nil, &analysis.FetchError{Kind: analysis.FetchEmpty, URL: url, Err: errors.New("rendered page is empty")}
	}

	final := url
	if info, err := page.Info(); err == nil && info.URL != "" {
		final = info.URL
	}
	if err := guardURL(final); err != nil {
		return nil, &analysis.FetchError{Kind: analysis.FetchNetwork, URL: url, Err: err}
	}
	return &analysis.Page{
		URL:        url,
		FinalURL:   final,
		StatusCode: 200,
		HTML:       html,
		Rendered:   true,
	}, nil
}

func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if f.browser != nil {
		err = f.browser.Close()
		f.browser = nil
	}
	if f.lnch != nil {
		f.lnch.Cleanup()
		f.lnch = nil
	}
	return err
}
