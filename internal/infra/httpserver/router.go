package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/bryanwahyu/fineprint/internal/domain/ai"
	"github.com/bryanwahyu/fineprint/internal/domain/analysis"
	"github.com/bryanwahyu/fineprint/internal/domain/quota"
	"github.com/bryanwahyu/fineprint/internal/middleware"
)

const (
	Version      = "1.0.0"
	maxBodyBytes = 64 << 10
)

// Analyzer runs the analysis pipeline for one user.
type Analyzer interface {
	Analyze(ctx context.Context, userID, rawURL string) (*analysis.Report, error)
}

// QuotaAdmin is the quota surface exposed to the admin API.
type QuotaAdmin interface {
	Status(ctx context.Context, userID string) (*quota.Record, int, error)
	Reset(ctx context.Context, userID string) error
	SetPaid(ctx context.Context, userID string, paid bool) error
}

type Options struct {
	Debug           bool
	CORSOrigins     []string
	RateLimitRPS    float64
	RateLimitBurst  int
	AdminKey        string
	TrustProxy      bool
	Model           string
	ModelConfigured bool
	Checkers        map[string]middleware.HealthChecker
	Metrics         *middleware.Metrics
}

type Router struct {
	analyzer Analyzer
	quota    QuotaAdmin
	metrics  *middleware.Metrics
}

func NewRouter(analyzer Analyzer, quotaSvc QuotaAdmin, opts Options) http.Handler {
	if opts.Metrics == nil {
		opts.Metrics = middleware.NewMetrics()
	}
	r := &Router{analyzer: analyzer, quota: quotaSvc, metrics: opts.Metrics}
	mux := chi.NewRouter()

	if opts.TrustProxy {
		mux.Use(chimw.RealIP)
	}
	mux.Use(middleware.RequestID)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(chimw.Recoverer)
	mux.Use(opts.Metrics.Middleware)
	mux.Use(corsHandler(opts))

	mux.Get("/", r.handleRoot)
	mux.Get("/health", middleware.LivenessHandler(opts.Model, opts.ModelConfigured))
	mux.Get("/ready", middleware.HealthHandler(opts.Checkers))
	mux.Get("/metrics", opts.Metrics.Handler)

	mux.Group(func(rt chi.Router) {
		if opts.RateLimitRPS > 0 {
			rt.Use(middleware.RateLimitMiddleware(opts.RateLimitRPS, opts.RateLimitBurst))
		}
		rt.Post("/analyze/url", r.wrap(r.handleAnalyzeURL))
	})

	mux.Route("/admin", func(rt chi.Router) {
		rt.Use(middleware.APIKeyAuth(opts.AdminKey))
		rt.Get("/users/{userID}", r.wrap(r.handleUserStatus))
		rt.Post("/users/{userID}/reset", r.wrap(r.handleUserReset))
		rt.Put("/users/{userID}/tier", r.wrap(r.handleUserTier))
	})

	return mux
}

func corsHandler(opts Options) func(http.Handler) http.Handler {
	origins := opts.CORSOrigins
	credentials := true
	if opts.Debug {
		origins = []string{"*"}
		credentials = false
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: credentials,
		MaxAge:           300,
	})
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status, code, msg := classify(err)
			log := zap.L().With(
				zap.String("request_id", middleware.GetRequestID(req.Context())),
				zap.String("path", req.URL.Path),
				zap.Int("status", status),
				zap.String("error_code", code),
				zap.Error(err),
			)
			if status >= 500 {
				log.Error("request failed")
			} else {
				log.Info("request rejected")
			}
			middleware.WriteError(w, status, code, msg)
		}
	}
}

// classify maps a failure to its HTTP status, error code and user-facing message.
func classify(err error) (int, string, string) {
	var (
		invalid  *analysis.InvalidRequestError
		limit    *quota.LimitError
		fetchErr *analysis.FetchError
		extract  *analysis.ExtractionError
		modelErr *ai.ModelError
		parseErr *analysis.ParseError
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest, "invalid_request", invalid.Error()
	case errors.As(err, &limit):
		return http.StatusTooManyRequests, "limit_reached", limit.Message()
	case errors.As(err, &fetchErr):
		if fetchErr.Kind == analysis.FetchHTTPStatus {
			return http.StatusUnprocessableEntity, "fetch_failed",
				fmt.Sprintf("Failed to fetch the page: the site responded with status %d.", fetchErr.StatusCode)
		}
		return http.StatusUnprocessableEntity, "fetch_failed",
			"Failed to fetch the page. Check the URL or try again later."
	case errors.As(err, &extract):
		return http.StatusUnprocessableEntity, "analysis_failed",
			"Could not extract enough content from this page. The page may be protected against scraping or may not contain promotional terms. Try a different page."
	case errors.As(err, &modelErr):
		switch modelErr.Kind {
		case ai.KindAuth:
			return http.StatusInternalServerError, "service_unavailable",
				"The analysis service is not available right now."
		case ai.KindRateLimited, ai.KindUnavailable:
			return http.StatusServiceUnavailable, "model_unavailable",
				"The analysis service is busy. Please try again in a minute."
		case ai.KindTimeout:
			return http.StatusGatewayTimeout, "analysis_failed",
				"The analysis took too long. Please try again."
		}
		return http.StatusBadGateway, "analysis_failed", "Analysis failed, please try again."
	case errors.As(err, &parseErr):
		return http.StatusBadGateway, "analysis_failed", "Analysis failed, please try again."
	case errors.Is(err, quota.ErrNotFound):
		return http.StatusNotFound, "not_found", "user not found"
	}
	return http.StatusInternalServerError, "internal_error", "Something went wrong. Please try again."
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// GET /
func (r *Router) handleRoot(w http.ResponseWriter, _ *http.Request) {
	_ = writeJSON(w, http.StatusOK, map[string]any{
		"name":    "FinePrint API",
		"version": Version,
		"status":  "running",
		"endpoints": map[string]string{
			"health":  "/health",
			"ready":   "/ready",
			"metrics": "/metrics",
			"analyze": "/analyze/url (POST)",
		},
	})
}

type analyzeResponse struct {
	Success             bool                     `json:"success"`
	Analysis            *analysis.AnalysisResult `json:"analysis"`
	Message             string                   `json:"message"`
	ScansRemainingToday int                      `json:"scans_remaining_today"`
}

// POST /analyze/url
// Body: {"url": "...", "user_id": "..."}
func (r *Router) handleAnalyzeURL(w http.ResponseWriter, req *http.Request) error {
	body, err := decodeAnalyzeRequest(w, req)
	if err != nil {
		r.metrics.AnalysisFailed("invalid_request")
		return err
	}

	report, err := r.analyzer.Analyze(req.Context(), body.UserID, body.URL)
	if err != nil {
		_, code, _ := classify(err)
		r.metrics.AnalysisFailed(code)
		return err
	}
	r.metrics.AnalysisSucceeded()

	w.Header().Set("X-Analysis-ID", report.ID)
	return writeJSON(w, http.StatusOK, analyzeResponse{
		Success:             true,
		Analysis:            report.Result,
		Message:             "Analysis completed successfully",
		ScansRemainingToday: report.ScansRemaining,
	})
}

func decodeAnalyzeRequest(w http.ResponseWriter, req *http.Request) (*analysis.AnalyzeRequest, error) {
	var body analysis.AnalyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		return nil, &analysis.InvalidRequestError{Field: "body", Reason: "expected JSON object with url and user_id"}
	}

	body.UserID = middleware.SanitizeString(body.UserID)
	if err := middleware.ValidateUserID(body.UserID); err != nil {
		return nil, &analysis.InvalidRequestError{Field: "user_id", Reason: err.Error()}
	}

	body.URL = middleware.NormalizeURL(middleware.SanitizeString(body.URL))
	if err := middleware.ValidateURL(body.URL); err != nil {
		return nil, &analysis.InvalidRequestError{Field: "url", Reason: err.Error()}
	}
	return &body, nil
}

type userStatus struct {
	*quota.Record
	ScansRemainingToday int `json:"scans_remaining_today"`
}

// GET /admin/users/{userID}
func (r *Router) handleUserStatus(w http.ResponseWriter, req *http.Request) error {
	userID := chi.URLParam(req, "userID")
	rec, remaining, err := r.quota.Status(req.Context(), userID)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, userStatus{Record: rec, ScansRemainingToday: remaining})
}

// POST /admin/users/{userID}/reset
func (r *Router) handleUserReset(w http.ResponseWriter, req *http.Request) error {
	userID := chi.URLParam(req, "userID")
	if err := r.quota.Reset(req.Context(), userID); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Reset scan count for user %s", userID),
	})
}

// PUT /admin/users/{userID}/tier
// Body: {"paid": true}
func (r *Router) handleUserTier(w http.ResponseWriter, req *http.Request) error {
	userID := chi.URLParam(req, "userID")
	if err := middleware.ValidateUserID(userID); err != nil {
		return &analysis.InvalidRequestError{Field: "user_id", Reason: err.Error()}
	}

	var body struct {
		Paid *bool `json:"paid"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes)).Decode(&body); err != nil || body.Paid == nil {
		return &analysis.InvalidRequestError{Field: "paid", Reason: "expected {\"paid\": true|false}"}
	}
	if err := r.quota.SetPaid(req.Context(), userID, *body.Paid); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user_id": userID,
		"is_paid": *body.Paid,
		"message": fmt.Sprintf("Tier updated for user %s", userID),
	})
}
