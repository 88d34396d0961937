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

// RemoteClient talks to an OpenAI-compatible chat/completions service.
// Only the chat surface is served remotely; embeddings stay local.
type RemoteClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// ChatTimeout bounds single calls. Zero means default.
	ChatTimeout time.Duration
}

// NewRemoteClient creates a RemoteClient with the given API key and base URL.
func NewRemoteClient(apiKey, baseURL string) *RemoteClient {
	return &RemoteClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 0},
	}
}

// completionsRequest is the JSON body for POST /chat/completions.
type completionsRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Chat sends messages to the remote service and returns the assistant's
// response content.
func (c *RemoteClient) Chat(ctx context.Context, model string, messages []Message, temperature float64) (string, error) {
	body, err := json.Marshal(completionsRequest{
		Model:       model,
		Messages:    messages,
		Stream:      false,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}

	timeout := c.ChatTimeout
	if timeout <= 0 {
		timeout = defaultChatTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classify("chat", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &Error{Kind: KindNetwork, Op: "chat", Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify("chat", err)
	}
	content, err := decodeCompletions(raw)
	if err != nil {
		return "", schemaErr("chat", err)
	}
	return content, nil
}
