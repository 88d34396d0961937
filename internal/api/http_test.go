package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/applypilot/applypilot/internal/index"
	"github.com/applypilot/applypilot/internal/journal"
	"github.com/applypilot/applypilot/internal/profile"
	"github.com/applypilot/applypilot/internal/provider"
	"github.com/applypilot/applypilot/internal/storage"
)

const testToken = "test-token-12345"

// --- mocks ---

type mockAnswerer struct {
	answer   string
	question string
	options  []string
}

func (m *mockAnswerer) Answer(_ context.Context, question string, options []string) string {
	m.question = question
	m.options = options
	return m.answer
}

type mockIngester struct {
	report index.IngestReport
	err    error
	length int
}

func (m *mockIngester) Ingest(_ context.Context, _ *profile.Profile, _ index.Progress) (index.IngestReport, error) {
	return m.report, m.err
}

func (m *mockIngester) Len(_ context.Context) int { return m.length }

type mockFlusher struct {
	flushed bool
	pending int
}

func (m *mockFlusher) Flush(_ context.Context) { m.flushed = true }
func (m *mockFlusher) Len() int                { return m.pending }

// --- helpers ---

func testAPIProfile(t *testing.T) *profile.Profile {
	t.Helper()
	p, err := profile.ParseYAML([]byte("personal_information:\n  email: jane@x.io\n"))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func setupAppHandler(t *testing.T, token string) (http.Handler, *storage.Store, *mockAnswerer, *mockFlusher) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	answerer := &mockAnswerer{answer: "42"}
	flusher := &mockFlusher{pending: 2}
	handler := NewAppHandler(AppDeps{
		Engine:  answerer,
		Index:   &mockIngester{report: index.IngestReport{Total: 5, Indexed: 5}, length: 5},
		Profile: testAPIProfile(t),
		Store:   store,
		Journal: flusher,
		Token:   token,
	})
	return handler, store, answerer, flusher
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// --- tests ---

func TestHealth_NoAuthRequired(t *testing.T) {
	h, _, _, _ := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestAuth_MissingToken(t *testing.T) {
	h, _, _, _ := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/v1/answer", `{"question":"q"}`, ""))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestAuth_EmptyTokenDisablesCheck(t *testing.T) {
	h, _, _, _ := setupAppHandler(t, "")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/v1/answer", `{"question":"q"}`, ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestAnswer(t *testing.T) {
	h, _, answerer, _ := setupAppHandler(t, testToken)

	body := `{"question":"What is your email?","options":["a","b"]}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/v1/answer", body, testToken))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp AnswerResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Answer != "42" {
		t.Errorf("Answer = %q, want 42", resp.Answer)
	}
	if want := journal.QuestionID("What is your email?"); resp.QuestionID != want {
		t.Errorf("QuestionID = %q, want %q", resp.QuestionID, want)
	}
	if answerer.question != "What is your email?" || len(answerer.options) != 2 {
		t.Errorf("engine got question %q options %v", answerer.question, answerer.options)
	}
}

func TestAnswer_MissingQuestion(t *testing.T) {
	h, _, _, _ := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/v1/answer", `{"options":["a"]}`, testToken))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestIndexRebuild(t *testing.T) {
	h, _, _, _ := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/v1/index", "", testToken))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var report index.IngestReport
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if report.Indexed != 5 {
		t.Errorf("Indexed = %d, want 5", report.Indexed)
	}
}

func TestIndexRebuild_QuotaError(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	h := NewAppHandler(AppDeps{
		Engine:  &mockAnswerer{},
		Index:   &mockIngester{err: &index.StorageQuotaError{Chunk: 1, Err: io.ErrShortWrite}},
		Profile: testAPIProfile(t),
		Store:   store,
		Journal: &mockFlusher{},
		Token:   testToken,
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/v1/index", "", testToken))

	if rr.Code != http.StatusInsufficientStorage {
		t.Fatalf("status = %d, want 507", rr.Code)
	}
}

func TestListConversations(t *testing.T) {
	h, store, _, _ := setupAppHandler(t, testToken)

	rec := journal.Record{
		Company:    "ACME",
		JobTitle:   "Gopher",
		QuestionID: "what is your email?",
		Messages: []provider.Message{
			{Role: "system", Content: "s"},
			{Role: "user", Content: "What is your email?"},
			{Role: "assistant", Content: "jane@x.io"},
		},
		Answer: "jane@x.io",
	}
	if err := store.Record(context.Background(), rec); err != nil {
		t.Fatalf("seeding conversation: %v", err)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/v1/conversations?company=ACME&job_title=Gopher", "", testToken))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var convs []storage.Conversation
	if err := json.Unmarshal(rr.Body.Bytes(), &convs); err != nil {
		t.Fatalf("decoding conversations: %v", err)
	}
	if len(convs) != 1 || convs[0].Answer != "jane@x.io" {
		t.Errorf("conversations = %+v", convs)
	}
}

func TestListConversations_MissingParams(t *testing.T) {
	h, _, _, _ := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/v1/conversations?company=ACME", "", testToken))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestFlush(t *testing.T) {
	h, _, _, flusher := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/v1/flush", "", testToken))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !flusher.flushed {
		t.Error("journal was not flushed")
	}
}

func TestGetProfile(t *testing.T) {
	h, _, _, _ := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/v1/profile", "", testToken))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "jane@x.io") {
		t.Errorf("profile response missing data: %s", rr.Body.String())
	}
}
