// Package jobinfo carries the job posting context used to label persisted
// conversation records.
package jobinfo

import (
	"strings"

	"golang.org/x/net/html"
)

// Context identifies the job an answering session belongs to. It is set
// before answering begins and used only for labelling records.
type Context struct {
	Company     string `json:"company"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// WithDescription returns a copy of the context with the description
// normalised: HTML bodies are reduced to their visible text.
func (c Context) WithDescription(desc string) Context {
	c.Description = DescriptionText(desc)
	return c
}

// DescriptionText extracts the visible text of a job description. Plain
// text passes through unchanged (modulo whitespace); HTML is tokenised and
// script/style content is dropped.
func DescriptionText(s string) string {
	if !strings.ContainsRune(s, '<') {
		return collapse(s)
	}

	tz := html.NewTokenizer(strings.NewReader(s))
	var sb strings.Builder
	skipDepth := 0
	for {
		switch tz.Next() {
		case html.ErrorToken:
			return collapse(sb.String())
		case html.StartTagToken:
			name, _ := tz.TagName()
			if skippedTag(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tz.TagName()
			if skippedTag(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				sb.Write(tz.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

func skippedTag(name string) bool {
	return name == "script" || name == "style" || name == "noscript"
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
