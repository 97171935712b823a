package ai

import "context"

// CompletionRequest is one system + user message pair sent to the model.
type CompletionRequest struct {
	System string
	User   string
}

// Client sends a single completion request and returns the raw text reply.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
