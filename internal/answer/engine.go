// Package answer orchestrates the question answering pipeline: direct
// profile lookup, semantic retrieval, prompt construction, response
// validation, and journaling.
package answer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/applypilot/applypilot/internal/classify"
	"github.com/applypilot/applypilot/internal/index"
	"github.com/applypilot/applypilot/internal/jobinfo"
	"github.com/applypilot/applypilot/internal/journal"
	"github.com/applypilot/applypilot/internal/match"
	"github.com/applypilot/applypilot/internal/profile"
	"github.com/applypilot/applypilot/internal/provider"
)

// NotAvailable is the answer of last resort for open questions.
const NotAvailable = "Information not available"

// defaultTopK is how many profile entries back a generated answer when no
// retrieval depth is configured.
const defaultTopK = 3

// Searcher is the retrieval surface the engine needs. Implemented by
// index.Index.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]index.Match, error)
}

// Enqueuer is the journaling surface the engine needs. Implemented by
// journal.Journal.
type Enqueuer interface {
	Enqueue(question, answer string, options []string)
}

// Tagger is the optional advisory classifier. Implemented by
// classify.Classifier.
type Tagger interface {
	Classify(ctx context.Context, question string) classify.Classification
}

// Engine answers application-form questions for one profile and one job.
type Engine struct {
	profile *profile.Profile
	index   Searcher
	chatter provider.Chatter
	model   string
	journal Enqueuer
	tagger  Tagger // optional
	job     jobinfo.Context
	topK    int
}

// SetJob attaches the job posting context. The description is included in
// generation prompts so answers can reference the position.
func (e *Engine) SetJob(job jobinfo.Context) {
	e.job = job
}

// SetTopK overrides the retrieval depth. Values below 1 keep the default.
func (e *Engine) SetTopK(k int) {
	if k >= 1 {
		e.topK = k
	}
}

// New wires an Engine. tagger may be nil; classification is advisory and
// the engine does not branch on it.
func New(p *profile.Profile, ix Searcher, chatter provider.Chatter, model string, j Enqueuer, tagger Tagger) *Engine {
	return &Engine{
		profile: p,
		index:   ix,
		chatter: chatter,
		model:   model,
		journal: j,
		tagger:  tagger,
		topK:    defaultTopK,
	}
}

// Answer produces an answer for the question. It never fails: provider
// errors degrade to profile-derived fallbacks, and when options are given
// the result is always element-equal to one of them. Every produced answer
// is journaled, except when ctx was cancelled mid-call.
func (e *Engine) Answer(ctx context.Context, question string, options []string) string {
	question = strings.TrimSpace(question)
	if question == "" {
		return e.defaultAnswer(options)
	}

	// 1. Deterministic path: direct profile match.
	if direct, ok := e.profile.DirectMatch(question); ok {
		ans := direct
		if len(options) > 0 {
			ans = match.Match(direct, options)
		}
		e.emit(ctx, question, ans, options)
		return ans
	}

	// 2. Semantic retrieval over the profile.
	matches, err := e.index.Search(ctx, question, e.topK)
	if err != nil {
		slog.Warn("retrieval failed, continuing without context", "error", err)
		matches = nil
	}
	contextText := renderContext(matches)

	// 3. Advisory classification; the engine does not branch on it.
	if e.tagger != nil {
		cls := e.tagger.Classify(ctx, question)
		slog.Debug("question classified",
			"type", cls.QuestionType, "format", cls.ExpectedFormat, "confidence", cls.Confidence)
	}

	// 4. Generate.
	var messages []provider.Message
	if len(options) > 0 {
		messages = buildOptionsPrompt(question, contextText, e.job, options)
	} else {
		messages = buildOpenPrompt(question, contextText, e.job, e.profile.Phone(), e.profile.Salary())
	}

	raw, err := e.chatter.Chat(ctx, e.model, messages, 0)
	if err != nil {
		ans, stopped := e.fallback(question, options, matches, err)
		if !stopped {
			e.emit(ctx, question, ans, options)
		}
		return ans
	}

	// 5–7. Normalise, coerce, validate.
	ans := StripReasoning(raw)
	if IsNumeric(question) {
		ans = coerceNumber(ans, isExperience(question))
	}
	if len(options) > 0 {
		ans = match.Match(ans, options)
	} else if ans == "" {
		ans = NotAvailable
	}

	// 8. Journal.
	e.emit(ctx, question, ans, options)
	return ans
}

// fallback derives the best available answer after a provider failure.
// The second return is true when the failure was a cancellation, in which
// case the caller must not journal the result.
func (e *Engine) fallback(question string, options []string, matches []index.Match, err error) (string, bool) {
	kind, _ := provider.ErrKind(err)
	stopped := kind == provider.KindStopped
	slog.Warn("provider call failed, answering from profile",
		"kind", kind.String(), "error", err)

	var ans string
	switch {
	case len(matches) > 0:
		ans = matches[0].Text
		if IsNumeric(question) {
			ans = coerceNumber(ans, isExperience(question))
		}
	case containsAny(question, "salary", "gehalt", "compensation"):
		if ans = e.profile.Salary(); ans == "" {
			ans = "Negotiable"
		}
	case containsAny(question, "phone", "telefon", "mobile", "handy"):
		if ans = e.profile.Phone(); ans == "" {
			ans = "Not provided"
		}
	default:
		ans = NotAvailable
	}

	if len(options) > 0 {
		ans = match.Match(ans, options)
	}
	return ans, stopped
}

// defaultAnswer is the unconditional last resort.
func (e *Engine) defaultAnswer(options []string) string {
	if len(options) >= 2 {
		return options[1]
	}
	if len(options) == 1 {
		return options[0]
	}
	return NotAvailable
}

// emit journals the answered question unless the session was cancelled.
func (e *Engine) emit(ctx context.Context, question, ans string, options []string) {
	if ctx.Err() != nil {
		return
	}
	e.journal.Enqueue(question, ans, options)
}

func containsAny(question string, keywords ...string) bool {
	q := strings.ToLower(question)
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// QuestionID re-exports the journal's record key derivation for hosts that
// need to correlate answers with persisted records.
func QuestionID(question string) string {
	return journal.QuestionID(question)
}
