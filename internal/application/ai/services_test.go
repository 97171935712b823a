package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/fineprint/internal/domain/ai"
)

type scriptedClient struct {
	errs  []error
	reply string
	calls int
}

func (c *scriptedClient) Complete(context.Context, ai.CompletionRequest) (string, error) {
	c.calls++
	if c.calls <= len(c.errs) {
		return "", c.errs[c.calls-1]
	}
	return c.reply, nil
}

func TestService_SingleAttemptByDefault(t *testing.T) {
	client := &scriptedClient{errs: []error{ai.NewModelError(ai.KindRateLimited, 429, nil)}, reply: "{}"}
	svc := NewService(client, 0, time.Millisecond)

	_, err := svc.Complete(context.Background(), ai.CompletionRequest{})
	assert.ErrorIs(t, err, ai.ErrRateLimited)
	assert.Equal(t, 1, client.calls)
}

func TestService_RetriesTransient(t *testing.T) {
	client := &scriptedClient{
		errs: []error{
			ai.NewModelError(ai.KindRateLimited, 429, nil),
			ai.NewModelError(ai.KindTimeout, 0, nil),
		},
		reply: `{"ok":true}`,
	}
	svc := NewService(client, 3, time.Millisecond)

	got, err := svc.Complete(context.Background(), ai.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, got)
	assert.Equal(t, 3, client.calls)
}

func TestService_NeverRetriesAuth(t *testing.T) {
	client := &scriptedClient{errs: []error{ai.NewModelError(ai.KindAuth, 401, nil)}, reply: "{}"}
	svc := NewService(client, 5, time.Millisecond)

	_, err := svc.Complete(context.Background(), ai.CompletionRequest{})
	assert.ErrorIs(t, err, ai.ErrAuth)
	assert.Equal(t, 1, client.calls)
}

func TestService_NonModelErrorNotRetried(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("boom")}, reply: "{}"}
	svc := NewService(client, 5, time.Millisecond)

	_, err := svc.Complete(context.Background(), ai.CompletionRequest{})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, client.calls)
}

func TestService_StopsOnCancelledContext(t *testing.T) {
	client := &scriptedClient{
		errs:  []error{ai.NewModelError(ai.KindTimeout, 0, nil), ai.NewModelError(ai.KindTimeout, 0, nil)},
		reply: "{}",
	}
	svc := NewService(client, 3, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Complete(ctx, ai.CompletionRequest{})
	assert.ErrorIs(t, err, ai.ErrTimeout)
	assert.Equal(t, 1, client.calls)
}
