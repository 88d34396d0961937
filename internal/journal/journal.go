// Package journal batches answered questions and writes them behind a
// debounce window, so answering latency is decoupled from persistence.
package journal

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/applypilot/applypilot/internal/provider"
)

// defaultDebounce is the idle period after the last enqueue before the
// queue drains on its own.
const defaultDebounce = 2 * time.Second

const questionIDLimit = 50

const systemMessage = "You are answering job application questions on behalf of the applicant, using their profile as the source of truth."

// Record is one persisted conversation: the synthesised three-message
// exchange for a single answered question.
type Record struct {
	Company    string
	JobTitle   string
	QuestionID string
	Messages   []provider.Message
	Answer     string
	Options    []string
	Timestamp  time.Time
}

// Recorder is the persistence collaborator. No success guarantee is
// required; failed records are logged and dropped.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

type entry struct {
	question string
	answer   string
	options  []string
	ts       time.Time
}

// Journal is a debounced write-behind batcher for one (company, job title)
// pair. Enqueue is cheap and non-blocking; records drain after the debounce
// window or on an explicit Flush.
type Journal struct {
	recorder Recorder
	company  string
	jobTitle string
	debounce time.Duration

	mu       sync.Mutex
	queue    []entry
	timer    *time.Timer
	inFlight bool
}

// New creates a Journal with the standard 2-second debounce.
func New(recorder Recorder, company, jobTitle string) *Journal {
	return NewWithDebounce(recorder, company, jobTitle, defaultDebounce)
}

// NewWithDebounce creates a Journal with a custom debounce window (tests).
func NewWithDebounce(recorder Recorder, company, jobTitle string, debounce time.Duration) *Journal {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Journal{
		recorder: recorder,
		company:  company,
		jobTitle: jobTitle,
		debounce: debounce,
	}
}

// Enqueue appends an answered question and re-arms the debounce timer.
func (j *Journal) Enqueue(question, answer string, options []string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.queue = append(j.queue, entry{
		question: question,
		answer:   answer,
		options:  options,
		ts:       time.Now().UTC(),
	})

	if j.timer != nil {
		j.timer.Stop()
	}
	j.timer = time.AfterFunc(j.debounce, func() {
		j.Flush(context.Background())
	})
}

// Flush cancels the pending timer and drains the queue immediately. The
// host calls this before page transitions and on stop. Re-entrant calls
// while a flush is in progress are no-ops.
func (j *Journal) Flush(ctx context.Context) {
	j.mu.Lock()
	if j.inFlight {
		j.mu.Unlock()
		return
	}
	j.inFlight = true
	if j.timer != nil {
		j.timer.Stop()
		j.timer = nil
	}
	batch := j.queue
	j.queue = nil
	j.mu.Unlock()

	defer func() {
		j.mu.Lock()
		j.inFlight = false
		j.mu.Unlock()
	}()

	for _, e := range batch {
		rec := Record{
			Company:    j.company,
			JobTitle:   j.jobTitle,
			QuestionID: QuestionID(e.question),
			Messages:   synthesize(e),
			Answer:     e.answer,
			Options:    e.options,
			Timestamp:  e.ts,
		}
		if err := j.recorder.Record(ctx, rec); err != nil {
			// Dropped to avoid head-of-line blocking.
			slog.Warn("journal record failed, dropping",
				"question_id", rec.QuestionID, "error", err)
		}
	}
}

// Len reports the number of queued, unflushed entries.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.queue)
}

// synthesize builds the three-message conversation for one entry.
func synthesize(e entry) []provider.Message {
	user := e.question
	if len(e.options) > 0 {
		user += "\nOptions: " + strings.Join(e.options, " | ")
	}
	return []provider.Message{
		{Role: "system", Content: systemMessage},
		{Role: "user", Content: user},
		{Role: "assistant", Content: e.answer},
	}
}

// QuestionID derives the stable record key for a question: whitespace
// collapsed and truncated to 50 characters.
func QuestionID(question string) string {
	cleaned := strings.Join(strings.Fields(question), " ")
	runes := []rune(cleaned)
	if len(runes) > questionIDLimit {
		return string(runes[:questionIDLimit])
	}
	return cleaned
}
