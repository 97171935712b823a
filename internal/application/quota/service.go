package quota

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bryanwahyu/fineprint/internal/application"
	domain "github.com/bryanwahyu/fineprint/internal/domain/quota"
)

// Service is the quota store: policy on top of a Repository.
// Safe for concurrent use; per-user atomicity comes from Repository.Increment.
type Service struct {
	Repo     domain.Repository
	Policy   domain.Policy
	Clock    application.Clock
	Location *time.Location
}

func (s *Service) today() string {
	return domain.Day(s.Clock.Now(), s.Location)
}

// CanScan reports whether userID may start a scan today. The user's record is
// created on the first attempt.
func (s *Service) CanScan(ctx context.Context, userID string) (bool, error) {
	rec, err := s.Repo.Ensure(ctx, userID)
	if err != nil {
		return false, eris.Wrapf(err, "quota: load %s", userID)
	}
	return s.Policy.Allows(*rec, s.today()), nil
}

// Check is CanScan returning *domain.LimitError on denial.
func (s *Service) Check(ctx context.Context, userID string) error {
	ok, err := s.CanScan(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.LimitError{UserID: userID, Limit: s.Policy.DailyFreeLimit}
	}
	return nil
}

// RecordScan charges one scan and returns what is left today.
func (s *Service) RecordScan(ctx context.Context, userID string) (int, error) {
	day := s.today()
	rec, err := s.Repo.Increment(ctx, userID, day)
	if err != nil {
		return 0, eris.Wrapf(err, "quota: record scan for %s", userID)
	}
	zap.L().Debug("quota recorded",
		zap.String("user_id", userID),
		zap.Int("scans_used_today", rec.ScansUsedToday),
		zap.String("day", day),
	)
	return s.Policy.Remaining(*rec, day), nil
}

// Status returns the stored record and the scans it has left today, or
// domain.ErrNotFound. It never creates a record.
func (s *Service) Status(ctx context.Context, userID string) (*domain.Record, int, error) {
	rec, err := s.Repo.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, 0, domain.ErrNotFound
	}
	if err != nil {
		return nil, 0, eris.Wrapf(err, "quota: load %s", userID)
	}
	return rec, s.Policy.Remaining(*rec, s.today()), nil
}

// Reset clears today's usage for userID.
func (s *Service) Reset(ctx context.Context, userID string) error {
	if err := s.Repo.Reset(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return eris.Wrapf(err, "quota: reset %s", userID)
	}
	zap.L().Info("quota reset", zap.String("user_id", userID))
	return nil
}

// SetPaid toggles the placeholder paid flag.
func (s *Service) SetPaid(ctx context.Context, userID string, paid bool) error {
	if _, err := s.Repo.Ensure(ctx, userID); err != nil {
		return eris.Wrapf(err, "quota: load %s", userID)
	}
	if err := s.Repo.SetPaid(ctx, userID, paid); err != nil {
		return eris.Wrapf(err, "quota: set tier for %s", userID)
	}
	zap.L().Info("quota tier changed", zap.String("user_id", userID), zap.Bool("paid", paid))
	return nil
}
