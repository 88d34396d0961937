package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLocalClient_Chat(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		w.Write([]byte(`{"message":{"role":"assistant","content":"hello"},"model":"m"}`))
	}))
	defer srv.Close()

	c := NewLocalClient(srv.URL)
	got, err := c.Chat(context.Background(), "m", []Message{{Role: "user", Content: "hi"}}, 0)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "hello" {
		t.Errorf("Chat = %q, want %q", got, "hello")
	}
	if stream, ok := gotBody["stream"].(bool); !ok || stream {
		t.Errorf("stream = %v, want false", gotBody["stream"])
	}
	opts, _ := gotBody["options"].(map[string]any)
	if opts == nil {
		t.Fatal("options missing from request body")
	}
	if temp := opts["temperature"].(float64); temp != 0 {
		t.Errorf("temperature = %v, want 0", temp)
	}
}

func TestLocalClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if stream, _ := body["stream"].(bool); stream {
			t.Error("stream must be false")
		}
		w.Write([]byte(`{"response":"done","model":"m"}`))
	}))
	defer srv.Close()

	c := NewLocalClient(srv.URL)
	got, err := c.Generate(context.Background(), "m", "prompt", 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "done" {
		t.Errorf("Generate = %q, want %q", got, "done")
	}
}

func TestLocalClient_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %q, want /api/embeddings", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["prompt"] != "some text" {
			t.Errorf("prompt = %v", body["prompt"])
		}
		w.Write([]byte(`{"embedding":[0.5,0.25]}`))
	}))
	defer srv.Close()

	c := NewLocalClient(srv.URL)
	vec, err := c.Embed(context.Background(), "embed-model", "some text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Errorf("vec = %v", vec)
	}
}

func TestLocalClient_EmbedSchemaError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":"shape"}`))
	}))
	defer srv.Close()

	c := NewLocalClient(srv.URL)
	_, err := c.Embed(context.Background(), "m", "text")
	if err == nil {
		t.Fatal("expected error")
	}
	if kind, ok := ErrKind(err); !ok || kind != KindSchema {
		t.Errorf("kind = %v, want schema", err)
	}
}

func TestLocalClient_ChatTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"message":{"content":"late"}}`))
	}))
	defer srv.Close()

	c := NewLocalClient(srv.URL)
	c.ChatTimeout = 20 * time.Millisecond
	_, err := c.Chat(context.Background(), "m", []Message{{Role: "user", Content: "hi"}}, 0)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if kind, ok := ErrKind(err); !ok || kind != KindTimeout {
		t.Errorf("kind = %v, want timeout", err)
	}
}

func TestLocalClient_ChatStopped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"message":{"content":"late"}}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	c := NewLocalClient(srv.URL)
	_, err := c.Chat(ctx, "m", []Message{{Role: "user", Content: "hi"}}, 0)
	if err == nil {
		t.Fatal("expected stopped error")
	}
	if kind, ok := ErrKind(err); !ok || kind != KindStopped {
		t.Errorf("kind = %v, want stopped", err)
	}
}

func TestLocalClient_IsRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[{"name":"qwen2.5:3b"}]}`))
	}))
	defer srv.Close()

	c := NewLocalClient(srv.URL)
	if !c.IsRunning(context.Background()) {
		t.Error("IsRunning = false, want true")
	}
	if !c.HasModel(context.Background(), "qwen2.5") {
		t.Error("HasModel(qwen2.5) = false, want true (tag suffix match)")
	}
	if c.HasModel(context.Background(), "mistral") {
		t.Error("HasModel(mistral) = true, want false")
	}

	down := NewLocalClient("http://127.0.0.1:1")
	if down.IsRunning(context.Background()) {
		t.Error("IsRunning on unreachable server = true, want false")
	}
}

func TestRemoteClient_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer key123" {
			t.Errorf("Authorization = %q", auth)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if stream, _ := body["stream"].(bool); stream {
			t.Error("stream must be false")
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"remote answer"}}]}`))
	}))
	defer srv.Close()

	c := NewRemoteClient("key123", srv.URL)
	got, err := c.Chat(context.Background(), "gpt-4o-mini", []Message{{Role: "user", Content: "q"}}, 0)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "remote answer" {
		t.Errorf("Chat = %q, want %q", got, "remote answer")
	}
}

func TestRemoteClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewRemoteClient("k", srv.URL)
	_, err := c.Chat(context.Background(), "m", nil, 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if kind, ok := ErrKind(err); !ok || kind != KindNetwork {
		t.Errorf("kind = %v, want network", err)
	}
}
