package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/fineprint/internal/application"
	"github.com/bryanwahyu/fineprint/internal/domain/ai"
	domain "github.com/bryanwahyu/fineprint/internal/domain/analysis"
)

// QuotaGate is the part of the quota service the pipeline needs.
type QuotaGate interface {
	Check(ctx context.Context, userID string) error
	RecordScan(ctx context.Context, userID string) (int, error)
}

// Service runs one analysis request end to end.
// Safe for concurrent use; each call is independent apart from the quota store.
type Service struct {
	Quota     QuotaGate
	Fetcher   domain.Fetcher
	Renderer  domain.Fetcher // optional headless browser fallback
	Extractor domain.Extractor
	Prompts   domain.PromptBuilder
	Model     ai.Client
	Parser    domain.ReplyParser
	Clock     application.Clock

	MaxRelatedPages int
}

type run struct {
	stages []domain.Stage
}

func (r *run) reach(s domain.Stage) { r.stages = append(r.stages, s) }

func (r *run) last() domain.Stage { return r.stages[len(r.stages)-1] }

func (r *run) fail(err error) error {
	return &domain.PipelineError{From: r.last(), Err: err}
}

// Analyze checks the user's quota, runs the pipeline for rawURL and charges one
// scan only when a valid result was produced.
func (s *Service) Analyze(ctx context.Context, userID, rawURL string) (*domain.Report, error) {
	start := s.now()
	r := &run{}
	r.reach(domain.StageReceived)
	log := zap.L().With(zap.String("user_id", userID), zap.String("url", rawURL))

	if err := s.Quota.Check(ctx, userID); err != nil {
		log.Info("analysis rejected", zap.Error(err))
		return nil, r.fail(err)
	}
	r.reach(domain.StageQuotaChecked)

	report, err := s.pipeline(ctx, r, rawURL)
	if err != nil {
		log.Warn("analysis failed", zap.String("stage", string(r.last())), zap.Error(err))
		return nil, r.fail(err)
	}

	remaining, err := s.Quota.RecordScan(ctx, userID)
	if err != nil {
		log.Error("quota update failed", zap.Error(err))
		return nil, r.fail(err)
	}
	r.reach(domain.StageQuotaRecorded)
	r.reach(domain.StageDone)

	report.ScansRemaining = remaining
	report.Stages = r.stages
	report.Duration = s.now().Sub(start)
	log.Info("analysis complete",
		zap.String("analysis_id", report.ID),
		zap.Int("risk_score", report.Result.RiskScore),
		zap.Int("clarity_score", report.Result.ClarityScore),
		zap.Int("scans_remaining", remaining),
		zap.Duration("elapsed", report.Duration),
	)
	return report, nil
}

// Inspect runs the pipeline without touching any quota.
func (s *Service) Inspect(ctx context.Context, rawURL string) (*domain.Report, error) {
	start := s.now()
	r := &run{}
	r.reach(domain.StageReceived)
	report, err := s.pipeline(ctx, r, rawURL)
	if err != nil {
		return nil, r.fail(err)
	}
	r.reach(domain.StageDone)
	report.ScansRemaining = -1
	report.Stages = r.stages
	report.Duration = s.now().Sub(start)
	return report, nil
}

func (s *Service) pipeline(ctx context.Context, r *run, rawURL string) (*domain.Report, error) {
	page, err := s.Fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	r.reach(domain.StageFetched)

	text, err := s.extract(ctx, page)
	if err != nil && s.Renderer != nil && isInsufficient(err) {
		zap.L().Info("static page too thin, rendering", zap.String("url", page.FinalURL))
		rendered, rerr := s.Renderer.Fetch(ctx, rawURL)
		if rerr != nil {
			zap.L().Warn("render failed", zap.String("url", rawURL), zap.Error(rerr))
		} else {
			page = rendered
			text, err = s.extract(ctx, page)
		}
	}
	if err != nil {
		return nil, err
	}
	r.reach(domain.StageExtracted)

	req := s.Prompts.Build(text, page.FinalURL)
	r.reach(domain.StagePrompted)

	reply, err := s.Model.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	r.reach(domain.StageModelCalled)

	result, err := s.Parser.Parse(reply)
	if err != nil {
		return nil, err
	}
	r.reach(domain.StageParsed)

	return &domain.Report{
		ID:        uuid.NewString(),
		SourceURL: rawURL,
		FinalURL:  page.FinalURL,
		Result:    result,
	}, nil
}

// extract parses the page, fetches at most MaxRelatedPages terms links and
// merges everything into prompt text. Related pages that fail are skipped.
func (s *Service) extract(ctx context.Context, page *domain.Page) (string, error) {
	doc, err := s.Extractor.Parse(page)
	if err != nil {
		return "", err
	}

	links := doc.Links
	if len(links) > s.MaxRelatedPages {
		links = links[:max(s.MaxRelatedPages, 0)]
	}

	var related []*domain.Document
	for _, link := range links {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		p, err := s.Fetcher.Fetch(ctx, link)
		if err != nil {
			zap.L().Debug("related page skipped", zap.String("url", link), zap.Error(err))
			continue
		}
		rd, err := s.Extractor.Parse(p)
		if err != nil {
			zap.L().Debug("related page unreadable", zap.String("url", link), zap.Error(err))
			continue
		}
		related = append(related, rd)
	}
	return s.Extractor.Text(doc, related...)
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func isInsufficient(err error) bool {
	var ee *domain.ExtractionError
	return errors.As(err, &ee) && ee.Insufficient()
}
