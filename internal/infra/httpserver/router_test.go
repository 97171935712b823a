package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/fineprint/internal/application"
	appanalysis "github.com/bryanwahyu/fineprint/internal/application/analysis"
	appquota "github.com/bryanwahyu/fineprint/internal/application/quota"
	"github.com/bryanwahyu/fineprint/internal/domain/ai"
	"github.com/bryanwahyu/fineprint/internal/domain/analysis"
	"github.com/bryanwahyu/fineprint/internal/domain/quota"
	"github.com/bryanwahyu/fineprint/internal/infra/ai/prompt"
	"github.com/bryanwahyu/fineprint/internal/infra/db/memory"
	"github.com/bryanwahyu/fineprint/internal/infra/scraper"
	"github.com/bryanwahyu/fineprint/internal/middleware"
)

const (
	promoURL = "https://shop.example/promo"
	adminKey = "admin-s3cret"
)

const promoPage = `<html><head><title>Streamly</title></head><body>
<h1>Streamly Premium</h1>
<p>50% off for 3 months, auto-renews at $14.99.</p>
<footer><small>*Cancel by phone only. Offer for new subscribers.</small></footer>
</body></html>`

const modelReply = `{
  "offerSummary": "Half price Streamly Premium for three months.",
  "plainEnglishSummary": "It is cheap at first and then costs $14.99 every month.",
  "hiddenRequirements": ["Auto-renews at $14.99"],
  "redFlags": ["Cancellation by phone only"],
  "riskScore": 58,
  "clarityScore": 44,
  "cancellationDifficulty": "Hard"
}`

type siteFetcher map[string]string

func (s siteFetcher) Fetch(_ context.Context, url string) (*analysis.Page, error) {
	body, ok := s[url]
	if !ok {
		return nil, &analysis.FetchError{Kind: analysis.FetchHTTPStatus, URL: url, StatusCode: http.StatusNotFound}
	}
	return &analysis.Page{URL: url, FinalURL: url, StatusCode: http.StatusOK, HTML: body}, nil
}

type cannedModel struct {
	reply string
	err   error
	calls int
}

func (m *cannedModel) Complete(context.Context, ai.CompletionRequest) (string, error) {
	m.calls++
	return m.reply, m.err
}

type testServer struct {
	handler http.Handler
	quota   *appquota.Service
	model   *cannedModel
	site    siteFetcher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clock := &application.FixedClock{T: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	q := &appquota.Service{
		Repo:     memory.NewQuotaRepository(),
		Policy:   quota.Policy{DailyFreeLimit: 1},
		Clock:    clock,
		Location: time.UTC,
	}
	ts := &testServer{
		quota: q,
		model: &cannedModel{reply: modelReply},
		site: siteFetcher{
			promoURL:                   promoPage,
			"https://shop.example/bare": "<html><body><p>Hi</p></body></html>",
		},
	}
	svc := &appanalysis.Service{
		Quota:     q,
		Fetcher:   ts.site,
		Extractor: scraper.NewExtractor(20, 0),
		Prompts:   prompt.NewBuilder(),
		Model:     ts.model,
		Parser:    prompt.NewParser(),
		Clock:     clock,

		MaxRelatedPages: 3,
	}
	ts.handler = NewRouter(svc, q, Options{
		AdminKey:        adminKey,
		Model:           "gpt-4o",
		ModelConfigured: true,
		Checkers: map[string]middleware.HealthChecker{
			"quota_store": middleware.PingChecker{Target: q.Repo},
		},
	})
	return ts
}

func (ts *testServer) do(method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) analyze(url, user string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]string{"url": url, "user_id": user})
	return ts.do(http.MethodPost, "/analyze/url", string(body))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	d, ok := decode(t, rec)["detail"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return d["error"].(string), d["message"].(string)
}

func (ts *testServer) used(t *testing.T, user string) int {
	t.Helper()
	rec, _, err := ts.quota.Status(context.Background(), user)
	require.NoError(t, err)
	return rec.ScansUsedToday
}

func TestAnalyzeURL_SuccessThenLimit(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.analyze(promoURL, "u1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Analysis-ID"))

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Analysis completed successfully", body["message"])
	assert.EqualValues(t, 0, body["scans_remaining_today"])
	result := body["analysis"].(map[string]any)
	assert.EqualValues(t, 58, result["riskScore"])
	assert.Equal(t, "Hard", result["cancellationDifficulty"])
	assert.Equal(t, []any{"Auto-renews at $14.99"}, result["hiddenRequirements"])

	rec = ts.analyze(promoURL, "u1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	code, msg := detail(t, rec)
	assert.Equal(t, "limit_reached", code)
	assert.Contains(t, msg, "1 free scan")
	assert.Equal(t, 1, ts.model.calls)
}

func TestAnalyzeURL_AddsScheme(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.analyze("shop.example/promo", "u1")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAnalyzeURL_Failures(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		model  *cannedModel
		status int
		code   string
	}{
		{"page missing", "https://shop.example/gone", nil, http.StatusUnprocessableEntity, "fetch_failed"},
		{"too little text", "https://shop.example/bare", nil, http.StatusUnprocessableEntity, "analysis_failed"},
		{"model busy", promoURL, &cannedModel{err: ai.NewModelError(ai.KindRateLimited, 429, nil)}, http.StatusServiceUnavailable, "model_unavailable"},
		{"model down", promoURL, &cannedModel{err: ai.NewModelError(ai.KindUnavailable, 500, nil)}, http.StatusServiceUnavailable, "model_unavailable"},
		{"bad key", promoURL, &cannedModel{err: ai.NewModelError(ai.KindAuth, 401, nil)}, http.StatusInternalServerError, "service_unavailable"},
		{"model timeout", promoURL, &cannedModel{err: ai.NewModelError(ai.KindTimeout, 0, context.DeadlineExceeded)}, http.StatusGatewayTimeout, "analysis_failed"},
		{"bad reply", promoURL, &cannedModel{reply: `{"offerSummary": "x"}`}, http.StatusBadGateway, "analysis_failed"},
		{"wrong enum", promoURL, &cannedModel{reply: strings.Replace(modelReply, `"Hard"`, `"Impossible"`, 1)}, http.StatusBadGateway, "analysis_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			if tt.model != nil {
				*ts.model = *tt.model
			}

			rec := ts.analyze(tt.url, "u1")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			code, msg := detail(t, rec)
			assert.Equal(t, tt.code, code)
			assert.NotEmpty(t, msg)

			assert.Equal(t, 0, ts.used(t, "u1"))
		})
	}
}

func TestAnalyzeURL_InvalidRequest(t *testing.T) {
	ts := newTestServer(t)

	for name, body := range map[string]string{
		"not json":     `url=x`,
		"missing user": `{"url": "https://shop.example/promo"}`,
		"missing url":  `{"user_id": "u1"}`,
		"loopback":     `{"url": "http://127.0.0.1/admin", "user_id": "u1"}`,
		"bad scheme":   `{"url": "file:///etc/passwd", "user_id": "u1"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/analyze/url", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			code, _ := detail(t, rec)
			assert.Equal(t, "invalid_request", code)
		})
	}
	assert.Equal(t, 0, ts.model.calls)
}

func TestHealthAndRoot(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["openai_configured"])

	rec = ts.do(http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Version, decode(t, rec)["version"])
}

func TestMetricsCountsOutcomes(t *testing.T) {
	ts := newTestServer(t)
	ts.analyze(promoURL, "u1")
	ts.analyze(promoURL, "u1")

	body := decode(t, ts.do(http.MethodGet, "/metrics", ""))
	assert.EqualValues(t, 1, body["analyses_succeeded"])
	assert.Equal(t, map[string]any{"limit_reached": float64(1)}, body["analyses_failed_by_kind"])
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t)
	auth := []string{"Authorization", "Bearer " + adminKey}

	rec := ts.do(http.MethodGet, "/admin/users/u1", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodGet, "/admin/users/u1", "", auth...)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusOK, ts.analyze(promoURL, "u1").Code)

	rec = ts.do(http.MethodGet, "/admin/users/u1", "", auth...)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["scans_used_today"])
	assert.EqualValues(t, 0, body["scans_remaining_today"])

	rec = ts.do(http.MethodPost, "/admin/users/u1/reset", "", auth...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, ts.analyze(promoURL, "u1").Code)

	rec = ts.do(http.MethodPut, "/admin/users/u1/tier", `{"paid": true}`, auth...)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.analyze(promoURL, "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, quota.Unlimited, decode(t, rec)["scans_remaining_today"])

	rec = ts.do(http.MethodPut, "/admin/users/u1/tier", `{}`, auth...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/admin/users/nobody/reset", "", auth...)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminDisabledWithoutKey(t *testing.T) {
	ts := newTestServer(t)
	ts.handler = NewRouter(nil, ts.quota, Options{})

	rec := ts.do(http.MethodGet, "/admin/users/u1", "", "Authorization", "Bearer x")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimitForwardedFor(t *testing.T) {
	send := func(h http.Handler, forwardedFor string) int {
		req := httptest.NewRequest(http.MethodPost, "/analyze/url", strings.NewReader(`url=x`))
		req.RemoteAddr = "198.51.100.7:4000"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("ignored by default", func(t *testing.T) {
		h := NewRouter(nil, nil, Options{RateLimitRPS: 0.01, RateLimitBurst: 1})
		assert.Equal(t, http.StatusBadRequest, send(h, "203.0.113.1"))
		assert.Equal(t, http.StatusTooManyRequests, send(h, "203.0.113.2"))
	})

	t.Run("trusted behind a proxy", func(t *testing.T) {
		h := NewRouter(nil, nil, Options{RateLimitRPS: 0.01, RateLimitBurst: 1, TrustProxy: true})
		assert.Equal(t, http.StatusBadRequest, send(h, "203.0.113.1"))
		assert.Equal(t, http.StatusBadRequest, send(h, "203.0.113.2"))
		assert.Equal(t, http.StatusTooManyRequests, send(h, "203.0.113.1"))
	})
}
