package answer

import (
	"fmt"
	"strings"

	"github.com/applypilot/applypilot/internal/index"
	"github.com/applypilot/applypilot/internal/jobinfo"
	"github.com/applypilot/applypilot/internal/provider"
)

// descriptionLimit caps the job description excerpt in prompts.
const descriptionLimit = 600

// fallbackContext stands in when retrieval yields nothing relevant.
const fallbackContext = "The applicant is a qualified professional with strong relevant experience and skills for this position."

// renderContext joins retrieved entries as "key: text, …".
func renderContext(matches []index.Match) string {
	if len(matches) == 0 {
		return fallbackContext
	}
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.Key + ": " + m.Text
	}
	return strings.Join(parts, ", ")
}

// renderJob is one line naming the position, plus a description excerpt.
func renderJob(job jobinfo.Context) string {
	var sb strings.Builder
	switch {
	case job.Title != "" && job.Company != "":
		fmt.Fprintf(&sb, "Position: %s at %s\n", job.Title, job.Company)
	case job.Title != "":
		fmt.Fprintf(&sb, "Position: %s\n", job.Title)
	case job.Company != "":
		fmt.Fprintf(&sb, "Company: %s\n", job.Company)
	}
	if job.Description != "" {
		desc := job.Description
		if len(desc) > descriptionLimit {
			desc = desc[:descriptionLimit] + "..."
		}
		fmt.Fprintf(&sb, "Job description: %s\n", desc)
	}
	return sb.String()
}

// buildOpenPrompt is the single user turn for free-form questions.
func buildOpenPrompt(question, context string, job jobinfo.Context, phone, salary string) []provider.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are filling out a job application form on behalf of the applicant.\n\n")
	if j := renderJob(job); j != "" {
		sb.WriteString(j)
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "Question: %s\n\n", question)
	fmt.Fprintf(&sb, "Applicant profile context: %s\n", context)
	if phone != "" {
		fmt.Fprintf(&sb, "Applicant phone number: %s\n", phone)
	}
	if salary != "" {
		fmt.Fprintf(&sb, "Applicant desired salary: %s\n", salary)
	}
	sb.WriteString("\nReply with the answer value only. No explanations, no preamble, no surrounding punctuation. If the question asks for a number, reply with a single number.")

	return []provider.Message{{Role: "user", Content: sb.String()}}
}

// buildOptionsPrompt is the single user turn for closed-choice questions.
// Options are listed verbatim; the model must echo one of them exactly.
func buildOptionsPrompt(question, context string, job jobinfo.Context, options []string) []provider.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are filling out a job application form on behalf of the applicant.\n\n")
	if j := renderJob(job); j != "" {
		sb.WriteString(j)
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "Question: %s\n\n", question)
	fmt.Fprintf(&sb, "Applicant profile context: %s\n\n", context)
	sb.WriteString("Options:\n")
	for _, opt := range options {
		fmt.Fprintf(&sb, "- %s\n", opt)
	}
	sb.WriteString("\nYou MUST choose EXACTLY ONE option, EXACTLY as written above. Reply with the chosen option text and nothing else.")

	return []provider.Message{{Role: "user", Content: sb.String()}}
}
