package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/applypilot/applypilot/internal/index"
	"github.com/applypilot/applypilot/internal/profile"
)

// MCPSearcher abstracts semantic profile search for the MCP layer.
type MCPSearcher interface {
	Search(ctx context.Context, query string, k int) ([]index.Match, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Engine   Answerer
	Searcher MCPSearcher
	Profile  *profile.Profile
	Journal  Flusher
}

// NewMCPServer creates an MCP server exposing the answering engine to
// browser extensions and agent hosts.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"applypilot",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("applypilot answers job application form questions from the applicant's profile."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("answer_question",
			mcp.WithDescription("Answer a job application form question from the applicant's profile. For select fields, pass the available options and the answer will be one of them."),
			mcp.WithString("question", mcp.Description("The form question text"), mcp.Required()),
			mcp.WithArray("options", mcp.Description("Options of a select field, in display order")),
		),
		mcpAnswerQuestion(deps),
	)

	s.AddTool(
		mcp.NewTool("search_profile",
			mcp.WithDescription("Semantically search the applicant's profile and return the most relevant entries."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 3)")),
		),
		mcpSearchProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("flush_journal",
			mcp.WithDescription("Persist all pending answered questions immediately instead of waiting for the write-behind debounce."),
		),
		mcpFlushJournal(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"applicant://profile",
			"Applicant Profile",
			mcp.WithResourceDescription("The applicant profile as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	return s
}

func mcpAnswerQuestion(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		options := req.GetStringSlice("options", nil)

		ans := deps.Engine.Answer(ctx, question, options)
		return mcpText(ans), nil
	}
}

func mcpSearchProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 3)
		if limit <= 0 {
			limit = 3
		}
		if limit > 20 {
			limit = 20
		}

		matches, err := deps.Searcher.Search(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(matches) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(matches)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpFlushJournal(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pending := deps.Journal.Len()
		deps.Journal.Flush(ctx)
		return mcpText(fmt.Sprintf("Flushed %d pending conversations", pending)), nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		var payload any
		if root := deps.Profile.Root(); root != nil {
			payload = root
		} else {
			payload = map[string]string{"text": deps.Profile.FreeText()}
		}

		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
