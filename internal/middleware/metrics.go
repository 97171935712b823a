package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	requestsTotal      atomic.Uint64
	requestsInProgress atomic.Int64
	requestsSuccess    atomic.Uint64
	requestsFailed     atomic.Uint64
	analysesSucceeded  atomic.Uint64
	startTime          time.Time

	mu             sync.Mutex
	analysesFailed map[string]uint64
}

func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now(), analysesFailed: map[string]uint64{}}
}

// AnalysisSucceeded counts one completed analysis.
func (m *Metrics) AnalysisSucceeded() {
	m.analysesSucceeded.Add(1)
}

// AnalysisFailed counts one failed analysis under its error code.
func (m *Metrics) AnalysisFailed(code string) {
	m.mu.Lock()
	m.analysesFailed[code]++
	m.mu.Unlock()
}

// Snapshot returns current metrics
func (m *Metrics) Snapshot() map[string]any {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m.mu.Lock()
	failed := make(map[string]uint64, len(m.analysesFailed))
	var failedTotal uint64
	for k, v := range m.analysesFailed {
		failed[k] = v
		failedTotal += v
	}
	m.mu.Unlock()

	return map[string]any{
		"requests_total":          m.requestsTotal.Load(),
		"requests_in_progress":    m.requestsInProgress.Load(),
		"requests_success":        m.requestsSuccess.Load(),
		"requests_failed":         m.requestsFailed.Load(),
		"analyses_succeeded":      m.analysesSucceeded.Load(),
		"analyses_failed":         failedTotal,
		"analyses_failed_by_kind": failed,
		"uptime_seconds":          time.Since(m.startTime).Seconds(),
		"memory": map[string]any{
			"alloc_bytes":       mem.Alloc,
			"total_alloc_bytes": mem.TotalAlloc,
			"sys_bytes":         mem.Sys,
			"num_gc":            mem.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requestsTotal.Add(1)
		m.requestsInProgress.Add(1)
		defer m.requestsInProgress.Add(-1)

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			m.requestsSuccess.Add(1)
		} else {
			m.requestsFailed.Add(1)
		}
	})
}

// Handler returns metrics as JSON
func (m *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m.Snapshot())
}
