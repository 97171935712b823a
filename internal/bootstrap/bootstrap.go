// Package bootstrap wires configuration into ready-to-use services.
package bootstrap

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bryanwahyu/fineprint/internal/application"
	appai "github.com/bryanwahyu/fineprint/internal/application/ai"
	appanalysis "github.com/bryanwahyu/fineprint/internal/application/analysis"
	appquota "github.com/bryanwahyu/fineprint/internal/application/quota"
	"github.com/bryanwahyu/fineprint/internal/config"
	"github.com/bryanwahyu/fineprint/internal/domain/quota"
	"github.com/bryanwahyu/fineprint/internal/infra/ai/openai"
	"github.com/bryanwahyu/fineprint/internal/infra/ai/prompt"
	"github.com/bryanwahyu/fineprint/internal/infra/db/memory"
	mysqlp "github.com/bryanwahyu/fineprint/internal/infra/db/mysql"
	"github.com/bryanwahyu/fineprint/internal/infra/db/postgres"
	"github.com/bryanwahyu/fineprint/internal/infra/db/sqlite"
	"github.com/bryanwahyu/fineprint/internal/infra/scraper"
)

// RetryBackoff is the pause between model attempts.
const RetryBackoff = 2 * time.Second

// App holds the wired services. Close releases the store and the browser.
type App struct {
	Quota    *appquota.Service
	Analysis *appanalysis.Service
	Model    *openai.Client
	Repo     quota.Repository
	Renderer *scraper.BrowserFetcher
}

func (a *App) Close() error {
	var first error
	if a.Renderer != nil {
		if err := a.Renderer.Close(); err != nil {
			first = err
		}
	}
	if a.Repo != nil {
		if err := a.Repo.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenRepository connects to the configured quota store and migrates it.
func OpenRepository(ctx context.Context, cfg *config.Config) (quota.Repository, error) {
	dsn := cfg.StoreDSN()
	switch cfg.Store.Driver {
	case "memory":
		return memory.NewQuotaRepository(), nil
	case "sqlite":
		repo, err := sqlite.Open(dsn)
		if err != nil {
			return nil, err
		}
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil
	case "mysql":
		db, err := mysqlp.Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		repo := mysqlp.NewQuotaRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil
	case "postgres":
		db, err := postgres.Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		repo := postgres.NewQuotaRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil
	}
	return nil, eris.Errorf("bootstrap: unknown store driver %q", cfg.Store.Driver)
}

// NewQuota builds the quota service over repo.
func NewQuota(cfg *config.Config, repo quota.Repository) (*appquota.Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &appquota.Service{
		Repo: repo,
		Policy: quota.Policy{
			DailyFreeLimit:    cfg.Quota.DailyFreeLimit,
			DisableLimits:     cfg.Quota.DisableLimits,
			UnlimitedPrefixes: cfg.Quota.UnlimitedPrefixes,
		},
		Clock:    application.SystemClock{},
		Location: loc,
	}, nil
}

// New wires every service. It fails without model credentials.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.RequireModelCredentials(); err != nil {
		return nil, err
	}

	repo, err := OpenRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app := &App{Repo: repo}

	if app.Quota, err = NewQuota(cfg, repo); err != nil {
		app.Close()
		return nil, err
	}

	app.Model = openai.NewClient(openai.Options{
		APIKey:      cfg.OpenAI.APIKey,
		Model:       cfg.OpenAI.Model,
		BaseURL:     cfg.OpenAI.BaseURL,
		Temperature: cfg.OpenAI.Temperature,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Timeout:     cfg.OpenAI.Timeout(),
	})

	fetcher := scraper.NewHTTPFetcher(cfg.Scrape.Timeout(), cfg.Scrape.UserAgent, cfg.Scrape.MaxBodyBytes)
	if cfg.Scrape.AllowPrivateNetworks {
		zap.L().Warn("fetcher may reach private networks")
		fetcher.AllowPrivateNetworks()
	}

	svc := &appanalysis.Service{
		Quota:           app.Quota,
		Fetcher:         fetcher,
		Extractor:       scraper.NewExtractor(cfg.Scrape.MinContentChars, cfg.Scrape.MaxContentChars),
		Prompts:         prompt.NewBuilder(),
		Model:           appai.NewService(app.Model, cfg.OpenAI.RetryAttempts, RetryBackoff),
		Parser:          prompt.NewParser(),
		Clock:           application.SystemClock{},
		MaxRelatedPages: cfg.Scrape.MaxRelatedPages,
	}
	if cfg.Scrape.EnableDynamic {
		app.Renderer = scraper.NewBrowserFetcher(cfg.Scrape.BrowserURL, cfg.Scrape.DynamicTimeout())
		svc.Renderer = app.Renderer
	}
	app.Analysis = svc

	zap.L().Info("services ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("model", app.Model.Model),
		zap.Bool("dynamic_rendering", cfg.Scrape.EnableDynamic),
		zap.Int("daily_free_limit", cfg.Quota.DailyFreeLimit),
	)
	return app, nil
}
