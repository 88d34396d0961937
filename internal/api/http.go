package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/applypilot/applypilot/internal/index"
	"github.com/applypilot/applypilot/internal/journal"
	"github.com/applypilot/applypilot/internal/profile"
	"github.com/applypilot/applypilot/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Answerer abstracts the answering engine for the API layer.
type Answerer interface {
	Answer(ctx context.Context, question string, options []string) string
}

// Ingester abstracts the embedding index for the API layer.
type Ingester interface {
	Ingest(ctx context.Context, p *profile.Profile, progress index.Progress) (index.IngestReport, error)
	Len(ctx context.Context) int
}

// Flusher abstracts the journal for the API layer.
type Flusher interface {
	Flush(ctx context.Context)
	Len() int
}

// ConversationStore abstracts persisted conversation listing.
type ConversationStore interface {
	Conversations(ctx context.Context, company, jobTitle string) ([]storage.Conversation, error)
}

type AppDeps struct {
	Engine  Answerer
	Index   Ingester
	Profile *profile.Profile
	Store   ConversationStore
	Journal Flusher
	Token   string
}

type AnswerRequest struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

type AnswerResponse struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// NewAppHandler returns the REST surface of the answering service.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/v1/answer", handleAnswer(deps))
		r.Post("/v1/index", handleIndexRebuild(deps))
		r.Get("/v1/index", handleIndexStatus(deps))
		r.Get("/v1/profile", handleGetProfile(deps))
		r.Get("/v1/conversations", handleListConversations(deps))
		r.Post("/v1/flush", handleFlush(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleAnswer(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req AnswerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Question == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}

		ans := deps.Engine.Answer(r.Context(), req.Question, req.Options)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(AnswerResponse{
			QuestionID: journal.QuestionID(req.Question),
			Answer:     ans,
		})
	}
}

func handleIndexRebuild(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := deps.Index.Ingest(r.Context(), deps.Profile, nil)
		if err != nil {
			var quota *index.StorageQuotaError
			if errors.As(err, &quota) {
				httpError(w, http.StatusInsufficientStorage, "storage_error", "index spill failed: %v", err)
				return
			}
			httpError(w, http.StatusBadGateway, "api_error", "indexing failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	}
}

func handleIndexStatus(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"entries": deps.Index.Len(r.Context())})
	}
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if root := deps.Profile.Root(); root != nil {
			json.NewEncoder(w).Encode(root)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"text": deps.Profile.FreeText()})
	}
}

func handleListConversations(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		company := r.URL.Query().Get("company")
		jobTitle := r.URL.Query().Get("job_title")
		if company == "" || jobTitle == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "company and job_title are required")
			return
		}

		convs, err := deps.Store.Conversations(r.Context(), company, jobTitle)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list conversations: %v", err)
			return
		}
		if convs == nil {
			convs = []storage.Conversation{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(convs)
	}
}

func handleFlush(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Journal.Flush(r.Context())

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "flushed",
			"pending": deps.Journal.Len(),
		})
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
