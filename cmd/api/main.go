package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/bryanwahyu/fineprint/internal/bootstrap"
	"github.com/bryanwahyu/fineprint/internal/config"
	"github.com/bryanwahyu/fineprint/internal/infra/httpserver"
	"github.com/bryanwahyu/fineprint/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer zap.L().Sync() //nolint:errcheck

	if dump, err := cfg.Redacted(); err == nil {
		zap.L().Debug("effective config", zap.String("yaml", dump))
	}

	if budget := cfg.PipelineBudget(bootstrap.RetryBackoff); cfg.Server.WriteTimeout() < budget {
		zap.L().Warn("server.write_timeout_secs is shorter than the worst-case analysis",
			zap.Duration("write_timeout", cfg.Server.WriteTimeout()),
			zap.Duration("pipeline_budget", budget),
		)
	}

	ctx := context.Background()

	// refuses to start without a model key
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		zap.L().Fatal("startup failed", zap.Error(err))
	}
	defer app.Close()

	handler := httpserver.NewRouter(app.Analysis, app.Quota, httpserver.Options{
		Debug:           cfg.Server.Debug,
		CORSOrigins:     cfg.Server.CORSOrigins,
		RateLimitRPS:    cfg.Server.RateLimitRPS,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		AdminKey:        cfg.Server.AdminKey,
		TrustProxy:      cfg.Server.TrustProxyHeaders,
		Model:           cfg.OpenAI.Model,
		ModelConfigured: cfg.OpenAI.APIKey != "",
		Checkers: map[string]middleware.HealthChecker{
			"quota_store": middleware.PingChecker{Target: app.Repo},
			"model":       middleware.ModelHealthChecker{Configured: cfg.OpenAI.APIKey != "", Client: app.Model},
		},
		Metrics: middleware.NewMetrics(),
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
		IdleTimeout:  cfg.Server.IdleTimeout(),
	}

	go func() {
		zap.L().Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	zap.L().Info("shutting down server")

	ctx2, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		zap.L().Error("shutdown error", zap.Error(err))
	}
}
