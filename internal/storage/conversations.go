package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/applypilot/applypilot/internal/journal"
	"github.com/applypilot/applypilot/internal/provider"
)

// Conversation is one persisted question/answer exchange.
type Conversation struct {
	ID         string             `json:"id"`
	Company    string             `json:"company"`
	JobTitle   string             `json:"job_title"`
	QuestionID string             `json:"question_id"`
	Messages   []provider.Message `json:"messages"`
	Answer     string             `json:"answer"`
	Options    []string           `json:"options,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Record persists a journal record, superseding an earlier record for the
// same (company, job title, question). Store implements journal.Recorder.
func (s *Store) Record(ctx context.Context, rec journal.Record) error {
	messages, err := json.Marshal(rec.Messages)
	if err != nil {
		return fmt.Errorf("encoding messages: %w", err)
	}
	options := []byte("[]")
	if rec.Options != nil {
		if options, err = json.Marshal(rec.Options); err != nil {
			return fmt.Errorf("encoding options: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, company, job_title, question_id, messages, answer, options, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (company, job_title, question_id) DO UPDATE SET
			messages = excluded.messages,
			answer = excluded.answer,
			options = excluded.options,
			created_at = excluded.created_at`,
		uuid.NewString(), rec.Company, rec.JobTitle, rec.QuestionID,
		string(messages), rec.Answer, string(options), rec.Timestamp.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

// Conversations returns all records for one (company, job title) pair in
// insertion order.
func (s *Store) Conversations(ctx context.Context, company, jobTitle string) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company, job_title, question_id, messages, answer, options, created_at
		FROM conversations WHERE company = ? AND job_title = ?
		ORDER BY created_at ASC, rowid ASC`, company, jobTitle)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		var messages, options, createdAt string
		if err := rows.Scan(&c.ID, &c.Company, &c.JobTitle, &c.QuestionID, &messages, &c.Answer, &options, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		if err := json.Unmarshal([]byte(messages), &c.Messages); err != nil {
			return nil, fmt.Errorf("decoding messages for %s: %w", c.ID, err)
		}
		if err := json.Unmarshal([]byte(options), &c.Options); err != nil {
			return nil, fmt.Errorf("decoding options for %s: %w", c.ID, err)
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", c.ID, err)
		}
		c.CreatedAt = t
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountConversations returns the total number of persisted records.
func (s *Store) CountConversations(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversations").Scan(&count)
	return count, err
}
