package scraper

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/fineprint/internal/domain/analysis"
)

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/promo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, "<html><body><p>50% off</p></body></html>")
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/promo", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "  \n ")
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("a", 1000))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func fetchErr(t *testing.T, err error) *analysis.FetchError {
	t.Helper()
	var fe *analysis.FetchError
	require.True(t, errors.As(err, &fe), "expected FetchError, got %v", err)
	return fe
}

func TestHTTPFetcher_OK(t *testing.T) {
	srv := newSite(t)
	f := NewHTTPFetcher(0, "", 0).AllowPrivateNetworks()

	page, err := f.Fetch(context.Background(), srv.URL+"/promo")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, srv.URL+"/promo", page.FinalURL)
	assert.Contains(t, page.HTML, "50% off")
	assert.False(t, page.Rendered)
}

func TestHTTPFetcher_FollowsRedirects(t *testing.T) {
	srv := newSite(t)

	page, err := NewHTTPFetcher(0, "", 0).AllowPrivateNetworks().Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/old", page.URL)
	assert.Equal(t, srv.URL+"/promo", page.FinalURL)
}

func TestHTTPFetcher_Failures(t *testing.T) {
	srv := newSite(t)
	f := NewHTTPFetcher(time.Second, "", 0).AllowPrivateNetworks()

	tests := []struct {
		path   string
		kind   analysis.FetchErrorKind
		status int
	}{
		{"/missing", analysis.FetchHTTPStatus, http.StatusNotFound},
		{"/empty", analysis.FetchEmpty, http.StatusOK},
		{"/loop", analysis.FetchNetwork, 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), srv.URL+tt.path)
			fe := fetchErr(t, err)
			assert.Equal(t, tt.kind, fe.Kind)
			assert.Equal(t, tt.status, fe.StatusCode)
		})
	}
}

func TestHTTPFetcher_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewHTTPFetcher(time.Second, "", 0).AllowPrivateNetworks().Fetch(context.Background(), addr)
	assert.Equal(t, analysis.FetchNetwork, fetchErr(t, err).Kind)
}

func TestHTTPFetcher_BodyLimit(t *testing.T) {
	srv := newSite(t)

	page, err := NewHTTPFetcher(0, "", 100).AllowPrivateNetworks().Fetch(context.Background(), srv.URL+"/big")
	require.NoError(t, err)
	assert.Len(t, page.HTML, 100)
}

func TestHTTPFetcher_RefusesInternalAddresses(t *testing.T) {
	srv := newSite(t)
	f := NewHTTPFetcher(time.Second, "", 0)

	// a terms link lifted from untrusted HTML that points back at the host
	doc, err := NewExtractor(0, 0).Parse(&analysis.Page{
		URL:      "https://shop.example/promo",
		FinalURL: "https://shop.example/promo",
		HTML:     `<html><body><a href="` + srv.URL + `/terms">Terms</a></body></html>`,
	})
	require.NoError(t, err)
	require.Equal(t, []string{srv.URL + "/terms"}, doc.Links)

	for _, target := range []string{srv.URL + "/promo", doc.Links[0]} {
		_, err := f.Fetch(context.Background(), target)
		fe := fetchErr(t, err)
		assert.Equal(t, analysis.FetchNetwork, fe.Kind)
		assert.ErrorIs(t, err, ErrBlockedAddress)
	}
}

func TestPublicOnly(t *testing.T) {
	blocked := []string{
		"127.0.0.1:80", "[::1]:443", "10.1.2.3:80", "172.16.0.9:80", "192.168.0.1:80",
		"169.254.169.254:80", "0.0.0.0:80", "[fe80::1]:80", "[fd00::1]:80",
	}
	for _, addr := range blocked {
		assert.ErrorIs(t, publicOnly("tcp", addr, nil), ErrBlockedAddress, addr)
	}
	for _, addr := range []string{"93.184.216.34:443", "[2606:4700::1111]:443"} {
		assert.NoError(t, publicOnly("tcp", addr, nil), addr)
	}
}

func TestCheckHost(t *testing.T) {
	for raw, blocked := range map[string]bool{
		"http://localhost:3000/":     true,
		"http://app.localhost/":      true,
		"http://127.0.0.1/":          true,
		"http://192.168.1.10/admin":  true,
		"https://shop.example/promo": false,
		"https://93.184.216.34/":     false,
	} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		if blocked {
			assert.ErrorIs(t, checkHost(u), ErrBlockedAddress, raw)
		} else {
			assert.NoError(t, checkHost(u), raw)
		}
	}
}

func TestCheckRedirect(t *testing.T) {
	next := func(raw string) *http.Request {
		u, _ := url.Parse(raw)
		return &http.Request{URL: u}
	}
	assert.NoError(t, checkRedirect(next("https://shop.example/terms"), nil))
	assert.Error(t, checkRedirect(next("file:///etc/passwd"), nil))
	assert.Error(t, checkRedirect(next("https://shop.example/"), make([]*http.Request, maxRedirects)))
}
