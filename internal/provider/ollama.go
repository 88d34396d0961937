package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultChatTimeout  = 15 * time.Second
	defaultEmbedTimeout = 15 * time.Second
)

// LocalClient talks to a local Ollama-style inference server over HTTP.
// It serves generate, chat, and embeddings; streaming is never requested.
type LocalClient struct {
	baseURL    string
	httpClient *http.Client

	// ChatTimeout and EmbedTimeout bound single calls. Zero means default.
	ChatTimeout  time.Duration
	EmbedTimeout time.Duration
}

// NewLocalClient creates a LocalClient targeting the given base URL.
func NewLocalClient(baseURL string) *LocalClient {
	return &LocalClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Per-call deadlines are set via context; no client-wide timeout.
		httpClient: &http.Client{Timeout: 0},
	}
}

// IsRunning returns true if the server responds to GET /api/tags with 200.
func (c *LocalClient) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// tagsResponse mirrors the JSON returned by GET /api/tags.
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the names of all models available on the local server.
func (c *LocalClient) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify("tags", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: KindNetwork, Op: "tags", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, schemaErr("tags", err)
	}
	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

// HasModel reports whether the given model name is present locally.
func (c *LocalClient) HasModel(ctx context.Context, name string) bool {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false
	}
	for _, m := range models {
		// The server may return "qwen2.5:3b" for a query of "qwen2.5".
		if m == name || strings.HasPrefix(m, name+":") {
			return true
		}
	}
	return false
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	Model    string      `json:"model"`
	Messages []Message   `json:"messages"`
	Stream   bool        `json:"stream"`
	Options  chatOptions `json:"options"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
}

// Chat sends messages to the given model and returns the assistant's
// response content.
func (c *LocalClient) Chat(ctx context.Context, model string, messages []Message, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Options:  chatOptions{Temperature: temperature},
	})
	if err != nil {
		return "", err
	}

	raw, err := c.post(ctx, "chat", "/api/chat", body, c.chatTimeout())
	if err != nil {
		return "", err
	}
	content, err := decodeChat(raw)
	if err != nil {
		return "", schemaErr("chat", err)
	}
	return content, nil
}

// generateRequest is the JSON body for POST /api/generate.
type generateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Generate sends a raw prompt to the given model and returns the completion.
func (c *LocalClient) Generate(ctx context.Context, model, prompt string, temperature float64) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:       model,
		Prompt:      prompt,
		Stream:      false,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}

	raw, err := c.post(ctx, "generate", "/api/generate", body, c.chatTimeout())
	if err != nil {
		return "", err
	}
	content, err := decodeGenerate(raw)
	if err != nil {
		return "", schemaErr("generate", err)
	}
	return content, nil
}

// embedRequest is the JSON body for POST /api/embeddings.
type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// Embed returns the embedding vector for the given text.
func (c *LocalClient) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: model, Prompt: text, Stream: false})
	if err != nil {
		return nil, err
	}

	raw, err := c.post(ctx, "embed", "/api/embeddings", body, c.embedTimeout())
	if err != nil {
		return nil, err
	}
	vec, err := decodeEmbedding(raw)
	if err != nil {
		return nil, schemaErr("embed", err)
	}
	return vec, nil
}

// post issues a JSON POST and returns the raw response body.
// Failures are classified into the provider error taxonomy.
func (c *LocalClient) post(ctx context.Context, op, path string, body []byte, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(op, err)
	}
	return raw, nil
}

func (c *LocalClient) chatTimeout() time.Duration {
	if c.ChatTimeout > 0 {
		return c.ChatTimeout
	}
	return defaultChatTimeout
}

func (c *LocalClient) embedTimeout() time.Duration {
	if c.EmbedTimeout > 0 {
		return c.EmbedTimeout
	}
	return defaultEmbedTimeout
}
