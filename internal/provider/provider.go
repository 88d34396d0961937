// Package provider implements the gateway to LLM back-ends: a local
// Ollama-style server (generate, chat, embeddings) and a remote
// OpenAI-compatible chat/completions service. All calls are non-streaming.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Message represents a chat message in the provider wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chatter is the chat completion surface consumed by the answer engine
// and the classifier.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []Message, temperature float64) (string, error)
}

// Embedder is the embedding surface consumed by the index.
type Embedder interface {
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

// Kind classifies a provider failure so callers can pick a fallback path.
type Kind int

const (
	// KindNetwork covers transport failures and non-2xx statuses.
	KindNetwork Kind = iota
	// KindTimeout covers deadline expiry on the request.
	KindTimeout
	// KindSchema covers responses that cannot be coerced into the
	// expected shape even after lenient parsing.
	KindSchema
	// KindStopped covers calls abandoned because the caller cancelled.
	KindStopped
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindSchema:
		return "schema"
	case KindStopped:
		return "stopped"
	}
	return "unknown"
}

// Error is the typed failure returned by all provider calls.
type Error struct {
	Kind Kind
	Op   string // "chat", "generate", "embed"
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrKind reports the failure kind of err, if it is a provider error.
func ErrKind(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}

// classify maps a transport-level error to a provider error for op.
// Cancellation wins over deadline so an abandoned call reports as stopped.
func classify(op string, err error) *Error {
	switch {
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindStopped, Op: op, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// schemaErr wraps a response-shape failure.
func schemaErr(op string, err error) *Error {
	return &Error{Kind: KindSchema, Op: op, Err: err}
}
