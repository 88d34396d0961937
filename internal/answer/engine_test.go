package answer

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/applypilot/applypilot/internal/index"
	"github.com/applypilot/applypilot/internal/profile"
	"github.com/applypilot/applypilot/internal/provider"
)

type fakeSearcher struct {
	matches []index.Match
	err     error
	lastK   int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, k int) ([]index.Match, error) {
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	if len(f.matches) > k {
		return f.matches[:k], nil
	}
	return f.matches, nil
}

type fakeChatter struct {
	mu         sync.Mutex
	response   string
	err        error
	calls      int
	lastPrompt string
}

func (f *fakeChatter) Chat(ctx context.Context, model string, messages []provider.Message, temperature float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(messages) > 0 {
		f.lastPrompt = messages[len(messages)-1].Content
	}
	return f.response, f.err
}

type memJournal struct {
	mu      sync.Mutex
	entries []struct {
		question, answer string
		options          []string
	}
}

func (j *memJournal) Enqueue(question, answer string, options []string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, struct {
		question, answer string
		options          []string
	}{question, answer, options})
}

func (j *memJournal) len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

func testProfile(t *testing.T) *profile.Profile {
	t.Helper()
	p, err := profile.ParseYAML([]byte(`
personal_information:
  name: Jane
  surname: Doe
  email: jane@x.io
  phone_prefix: "+49"
  phone: "1761234567"
  country: Germany
  salary: 75000
`))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	return p
}

func newTestEngine(t *testing.T, chatter *fakeChatter, searcher *fakeSearcher) (*Engine, *memJournal) {
	t.Helper()
	if searcher == nil {
		searcher = &fakeSearcher{}
	}
	j := &memJournal{}
	return New(testProfile(t), searcher, chatter, "test-model", j, nil), j
}

func TestAnswer_DirectEmail(t *testing.T) {
	chatter := &fakeChatter{}
	e, j := newTestEngine(t, chatter, nil)

	got := e.Answer(context.Background(), "What is your email address?", nil)
	if got != "jane@x.io" {
		t.Errorf("Answer = %q, want jane@x.io", got)
	}
	if chatter.calls != 0 {
		t.Errorf("provider called %d times for direct match, want 0", chatter.calls)
	}
	if j.len() != 1 {
		t.Errorf("journal has %d entries, want 1", j.len())
	}
}

func TestAnswer_DirectPhoneGerman(t *testing.T) {
	e, _ := newTestEngine(t, &fakeChatter{}, nil)
	got := e.Answer(context.Background(), "Mobile Telefon?", nil)
	if got != "+491761234567" {
		t.Errorf("Answer = %q, want +491761234567", got)
	}
}

func TestAnswer_DirectCountryThroughOptions(t *testing.T) {
	e, j := newTestEngine(t, &fakeChatter{}, nil)
	options := []string{"Option auswählen", "Deutschland (+49)", "Frankreich (+33)"}

	got := e.Answer(context.Background(), "Landesvorwahl", options)
	if got != "Deutschland (+49)" {
		t.Errorf("Answer = %q, want Deutschland (+49)", got)
	}
	if j.len() != 1 {
		t.Errorf("journal has %d entries, want 1", j.len())
	}
}

func TestAnswer_NumericExperience(t *testing.T) {
	chatter := &fakeChatter{response: "<think>Let me check the profile.</think>I have about 5 years of experience."}
	searcher := &fakeSearcher{matches: []index.Match{
		{Key: "experiences[0].employment_period", Text: "Employment period: 2019-2024", Score: 0.8},
	}}
	e, _ := newTestEngine(t, chatter, searcher)

	got := e.Answer(context.Background(), "Wie viele Jahre Erfahrung haben Sie mit Python?", nil)
	if got != "5" {
		t.Errorf("Answer = %q, want a single numeric literal 5", got)
	}
	if n := len(numberRe.FindAllString(got, -1)); n != 1 {
		t.Errorf("answer carries %d numeric literals, want 1", n)
	}
}

func TestAnswer_ExperienceClampedToOne(t *testing.T) {
	chatter := &fakeChatter{response: "0.5 years"}
	e, _ := newTestEngine(t, chatter, nil)
	got := e.Answer(context.Background(), "How many years of experience with Rust?", nil)
	if got != "1" {
		t.Errorf("Answer = %q, want clamp to 1", got)
	}
}

func TestAnswer_SalaryNumeric(t *testing.T) {
	chatter := &fakeChatter{response: "75000 EUR per year"}
	e, _ := newTestEngine(t, chatter, nil)
	got := e.Answer(context.Background(), "What are your salary expectations (EUR)?", nil)
	if got != "75000" {
		t.Errorf("Answer = %q, want 75000", got)
	}
}

func TestAnswer_OptionsClosure(t *testing.T) {
	options := []string{"Bitte wählen", "Ja", "Nein"}

	// Model answers something usable.
	chatter := &fakeChatter{response: "ja"}
	e, _ := newTestEngine(t, chatter, nil)
	if got := e.Answer(context.Background(), "Sind Sie rechtlich befugt, in Deutschland zu arbeiten?", options); got != "Ja" {
		t.Errorf("Answer = %q, want Ja", got)
	}
	if !strings.Contains(chatter.lastPrompt, "EXACTLY ONE option, EXACTLY as written") {
		t.Errorf("options prompt lacks strict instruction: %q", chatter.lastPrompt)
	}

	// Model answers garbage: placeholder avoided, second option returned.
	chatter = &fakeChatter{response: "I cannot tell."}
	e, _ = newTestEngine(t, chatter, nil)
	if got := e.Answer(context.Background(), "Random selector question", options); got != "Ja" {
		t.Errorf("fallback Answer = %q, want options[1]", got)
	}
}

func TestAnswer_EmptyResponse(t *testing.T) {
	chatter := &fakeChatter{response: "<think>only reasoning, nothing else</think>"}
	e, _ := newTestEngine(t, chatter, nil)
	got := e.Answer(context.Background(), "Describe your ideal team.", nil)
	if got != NotAvailable {
		t.Errorf("Answer = %q, want %q", got, NotAvailable)
	}
}

func TestAnswer_ProviderFailureWithContext(t *testing.T) {
	chatter := &fakeChatter{err: &provider.Error{Kind: provider.KindNetwork, Op: "chat"}}
	searcher := &fakeSearcher{matches: []index.Match{
		{Key: "skills", Text: "Skills: Go; Python", Score: 0.7},
	}}
	e, j := newTestEngine(t, chatter, searcher)

	got := e.Answer(context.Background(), "Tell us about your skills", nil)
	if got != "Skills: Go; Python" {
		t.Errorf("Answer = %q, want the top retrieved entry", got)
	}
	if j.len() != 1 {
		t.Errorf("fallback not journaled: %d entries", j.len())
	}
}

func TestAnswer_ProviderFailureCategories(t *testing.T) {
	tests := []struct {
		question string
		want     string
	}{
		{"What are your salary expectations?", "75000"},
		{"Phone number?", "+491761234567"}, // direct match beats the provider path
		{"Anything else to add?", NotAvailable},
	}
	for _, tt := range tests {
		chatter := &fakeChatter{err: &provider.Error{Kind: provider.KindTimeout, Op: "chat"}}
		e, _ := newTestEngine(t, chatter, nil)
		if got := e.Answer(context.Background(), tt.question, nil); got != tt.want {
			t.Errorf("Answer(%q) = %q, want %q", tt.question, got, tt.want)
		}
	}
}

func TestAnswer_ProviderFailureSalaryMissing(t *testing.T) {
	p, err := profile.ParseYAML([]byte("personal_information:\n  name: Jane\n"))
	if err != nil {
		t.Fatal(err)
	}
	chatter := &fakeChatter{err: &provider.Error{Kind: provider.KindNetwork, Op: "chat"}}
	j := &memJournal{}
	e := New(p, &fakeSearcher{}, chatter, "m", j, nil)

	if got := e.Answer(context.Background(), "Salary expectations?", nil); got != "Negotiable" {
		t.Errorf("Answer = %q, want Negotiable", got)
	}
}

func TestAnswer_StoppedNotJournaled(t *testing.T) {
	chatter := &fakeChatter{err: &provider.Error{Kind: provider.KindStopped, Op: "chat", Err: context.Canceled}}
	e, j := newTestEngine(t, chatter, nil)

	got := e.Answer(context.Background(), "Describe a project you are proud of", nil)
	if got != NotAvailable {
		t.Errorf("Answer = %q, want best fallback", got)
	}
	if j.len() != 0 {
		t.Errorf("stopped answer was journaled: %d entries", j.len())
	}
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	e, j := newTestEngine(t, &fakeChatter{}, nil)
	if got := e.Answer(context.Background(), "   ", []string{"Select", "Real"}); got != "Real" {
		t.Errorf("Answer = %q, want options[1]", got)
	}
	if got := e.Answer(context.Background(), "", nil); got != NotAvailable {
		t.Errorf("Answer = %q, want %q", got, NotAvailable)
	}
	if j.len() != 0 {
		t.Error("empty questions must not be journaled")
	}
}

func TestAnswer_RetrievalDepthConfigurable(t *testing.T) {
	chatter := &fakeChatter{response: "I build developer tooling."}
	searcher := &fakeSearcher{}
	e, _ := newTestEngine(t, chatter, searcher)

	e.Answer(context.Background(), "What motivates you?", nil)
	if searcher.lastK != 3 {
		t.Errorf("default search depth = %d, want 3", searcher.lastK)
	}

	e.SetTopK(5)
	e.Answer(context.Background(), "What motivates you?", nil)
	if searcher.lastK != 5 {
		t.Errorf("search depth = %d, want 5", searcher.lastK)
	}

	e.SetTopK(0)
	e.Answer(context.Background(), "What motivates you?", nil)
	if searcher.lastK != 5 {
		t.Errorf("search depth after SetTopK(0) = %d, want previous value 5", searcher.lastK)
	}
}

func TestStripReasoning(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"<think>hmm</think>42", "42"},
		{"42", "42"},
		{"<think>a</think>x<think>b</think>y", "xy"},
		{"  <think>only</think>  ", ""},
	}
	for _, tt := range tests {
		if got := StripReasoning(tt.in); got != tt.want {
			t.Errorf("StripReasoning(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsNumeric(t *testing.T) {
	numeric := []string{
		"How many years of experience?",
		"Wie viele Jahre Erfahrung haben Sie?",
		"Expected Gehalt?",
		"Salary in EUR",
		"What number should we call?",
	}
	for _, q := range numeric {
		if !IsNumeric(q) {
			t.Errorf("IsNumeric(%q) = false, want true", q)
		}
	}
	if IsNumeric("Describe your ideal role") {
		t.Error("IsNumeric matched a prose question")
	}
}
