package ai

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/fineprint/internal/domain/ai"
)

const defaultBackoff = 2 * time.Second

// Service calls the model client, optionally retrying transient failures.
// Attempts <= 1 means a single call. Auth, empty-reply and unavailable
// failures are never retried.
type Service struct {
	client   ai.Client
	attempts int
	backoff  time.Duration
}

func NewService(client ai.Client, attempts int, backoff time.Duration) *Service {
	if attempts < 1 {
		attempts = 1
	}
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &Service{client: client, attempts: attempts, backoff: backoff}
}

func (s *Service) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		reply, err := s.client.Complete(ctx, req)
		if err == nil {
			return reply, nil
		}
		lastErr = err

		var me *ai.ModelError
		if !errors.As(err, &me) || !me.Transient() || attempt == s.attempts {
			return "", err
		}
		if ctx.Err() != nil {
			return "", err
		}

		zap.L().Warn("model call failed, retrying",
			zap.Int("attempt", attempt),
			zap.String("kind", string(me.Kind)),
			zap.Duration("backoff", s.backoff),
		)
		timer := time.NewTimer(s.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", err
		case <-timer.C:
		}
	}
	return "", lastErr
}
