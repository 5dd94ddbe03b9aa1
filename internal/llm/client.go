// Package llm is a minimal client for hosted language-model APIs.
package llm

import (
	"context"
	"time"
)

// Message is one chat turn.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// RequestOptions configures a single completion.
type RequestOptions struct {
	MaxTokens int
}

// Response is a completion.
type Response struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
	Model        string
	StopReason   string // "end_turn", "max_tokens", "stop_sequence"
}

// WasTruncated reports whether the response hit the token limit.
func (r *Response) WasTruncated() bool {
	return r.StopReason == "max_tokens"
}

// Client is implemented by model providers.
type Client interface {
	Complete(ctx context.Context, systemPrompt string, messages []Message, opts *RequestOptions) (*Response, error)
	CompleteWithRetry(ctx context.Context, systemPrompt string, messages []Message, maxRetries int, opts *RequestOptions) (*Response, error)
}
