package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/fineprint/internal/domain/analysis"
)

const (
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultMaxBodyBytes = 4 << 20
	DefaultTimeout      = 20 * time.Second
	maxRedirects        = 10
)

// HTTPFetcher retrieves pages with a plain HTTP GET. By default it refuses
// to connect to loopback, private and link-local addresses, including after
// redirects.
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
}

func NewHTTPFetcher(timeout time.Duration, userAgent string, maxBodyBytes int64) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:       timeout,
			Transport:     newTransport(publicOnly),
			CheckRedirect: checkRedirect,
		},
		userAgent:    userAgent,
		maxBodyBytes: maxBodyBytes,
	}
}

// AllowPrivateNetworks lifts the internal address guard, for deployments
// that analyze intranet pages.
func (f *HTTPFetcher) AllowPrivateNetworks() *HTTPFetcher {
	f.client.Transport = newTransport(nil)
	return f
}

// newTransport never uses an environment proxy: the proxy would resolve the
// target itself and bypass control.
func newTransport(control func(network, address string, c syscall.RawConn) error) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = nil
	t.DialContext = (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   control,
	}).DialContext
	return t
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("redirect to unsupported scheme %q", req.URL.Scheme)
	}
	return nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*analysis.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &analysis.FetchError{Kind: analysis.FetchNetwork, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &analysis.FetchError{Kind: analysis.FetchNetwork, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &analysis.FetchError{
			Kind:       analysis.FetchHTTPStatus,
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        errors.New(resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return nil, &analysis.FetchError{Kind: analysis.FetchNetwork, URL: url, StatusCode: resp.StatusCode, Err: err}
	}
	if strings.TrimSpace(string(body)) == "" {
		return nil, &analysis.FetchError{Kind: analysis.FetchEmpty, URL: url, StatusCode: resp.StatusCode}
	}

	final := url
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	zap.L().Debug("page fetched",
		zap.String("url", url),
		zap.String("final_url", final),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &analysis.Page{
		URL:        url,
		FinalURL:   final,
		StatusCode: resp.StatusCode,
		HTML:       string(body),
	}, nil
}
