// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the journal as tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/solace/internal/analytics"
	"github.com/starford/solace/internal/apperr"
	"github.com/starford/solace/internal/auth"
	"github.com/starford/solace/internal/journal"
	"github.com/starford/solace/internal/models"
	"github.com/starford/solace/internal/patterns"
)

const moodScaleURI = "solace://mood-scale"

// Server wraps the MCP server with journal tools. Every tool call acts as
// the identity the server was started with.
type Server struct {
	mcp      *server.MCPServer
	sessions *journal.Sessions
	patterns *patterns.Registry
	identity auth.Identity
}

// New creates a new MCP server with all journal tools registered.
func New(sessions *journal.Sessions, reg *patterns.Registry, id auth.Identity) *Server {
	s := &Server{sessions: sessions, patterns: reg, identity: id}

	s.mcp = server.NewMCPServer(
		"Solace",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("create_entry",
		mcp.WithDescription("Record a mood check-in. Read the mood scale first via the "+
			"solace://mood-scale resource. An insight is generated in the background."),
		mcp.WithString("mood", mcp.Required(), mcp.Description("Mood label (awful, low, okay, good, great) or score 1-5")),
		mcp.WithString("gratitude", mcp.Description("What the user is grateful for")),
		mcp.WithString("intentions", mcp.Description("The user's intentions or goals")),
		mcp.WithString("thoughts", mcp.Description("Free-form thoughts")),
	), s.createEntry)

	s.mcp.AddTool(mcp.NewTool("list_entries",
		mcp.WithDescription("List journal entries, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default 20)")),
	), s.listEntries)

	s.mcp.AddTool(mcp.NewTool("generate_insights",
		mcp.WithDescription("Generate or regenerate the AI insight for an entry."),
		mcp.WithString("entry_id", mcp.Required(), mcp.Description("Entry id from list_entries")),
	), s.generateInsights)

	s.mcp.AddTool(mcp.NewTool("weekly_reflection",
		mcp.WithDescription("Return the weekly reflection, generating a new one when asked or when none exists."),
		mcp.WithBoolean("regenerate", mcp.Description("Force a new reflection (default false)")),
	), s.weeklyReflection)

	s.mcp.AddTool(mcp.NewTool("get_analytics",
		mcp.WithDescription("Compute journal analytics."),
		mcp.WithString("kind", mcp.Required(),
			mcp.Enum("streak", "trend", "distribution", "weekly_report"),
			mcp.Description("Which view to compute")),
		mcp.WithNumber("days", mcp.Description("Window in days for distribution (0 = all entries)")),
	), s.getAnalytics)

	s.mcp.AddTool(mcp.NewTool("list_patterns",
		mcp.WithDescription("List recurring patterns detected across entries, most relevant first."),
	), s.listPatterns)

	// Resource: mood scale.
	s.mcp.AddResource(
		mcp.NewResource(moodScaleURI, "Mood Scale",
			mcp.WithResourceDescription("The mood labels and scores used by the journal."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMoodScaleResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// session returns the acting store and a context carrying the identity.
func (s *Server) session(ctx context.Context) (context.Context, *journal.Store) {
	ctx = auth.WithIdentity(ctx, s.identity)
	return ctx, s.sessions.For(ctx)
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

// toolError turns a journal error into a tool error without upstream detail.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrAuthentication):
		return mcp.NewToolResultError("not authenticated: configure mcp.token")
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(err.Error())
	case errors.Is(err, apperr.ErrEmptyGeneration):
		return mcp.NewToolResultError("no text generated, try again")
	case errors.Is(err, apperr.ErrUpstream):
		return mcp.NewToolResultError("enrichment service unavailable, try again later")
	default:
		return mcp.NewToolResultError("internal error")
	}
}

func optional(req mcp.CallToolRequest, key string) *string {
	v := req.GetString(key, "")
	if v == "" {
		return nil
	}
	return &v
}

func (s *Server) createEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mood, err := req.RequireString("mood")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ctx, store := s.session(ctx)
	e, err := store.CreateEntry(ctx, models.Draft{
		Mood:       models.ParseMood(mood),
		Gratitude:  optional(req, "gratitude"),
		Intentions: optional(req, "intentions"),
		Thoughts:   optional(req, "thoughts"),
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(e), nil
}

func (s *Server) listEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := int(req.GetFloat("limit", 20))
	if limit <= 0 {
		limit = 20
	}
	ctx, store := s.session(ctx)
	entries, err := store.LoadEntries(ctx)
	if err != nil {
		return toolError(err), nil
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return jsonResult(entries), nil
}

func (s *Server) generateInsights(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("entry_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ctx, store := s.session(ctx)
	if err := store.Ensure(ctx); err != nil {
		return toolError(err), nil
	}
	e, err := store.GenerateInsights(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(models.Deref(e.AIInsights)), nil
}

func (s *Server) weeklyReflection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, store := s.session(ctx)
	if r, ok := store.WeeklyReflection(); ok && !req.GetBool("regenerate", false) {
		return jsonResult(r), nil
	}
	if err := store.Ensure(ctx); err != nil {
		return toolError(err), nil
	}
	r, err := store.GenerateWeeklyReflection(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(r), nil
}

func (s *Server) getAnalytics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ctx, store := s.session(ctx)
	if err := store.Ensure(ctx); err != nil {
		return toolError(err), nil
	}
	entries, now := store.Entries(), store.Now()

	switch kind {
	case "streak":
		return jsonResult(map[string]int{"streak": analytics.Streak(entries, now)}), nil
	case "trend":
		return jsonResult(analytics.MoodTrend(entries, now)), nil
	case "distribution":
		days := int(req.GetFloat("days", 0))
		if days < 0 {
			return mcp.NewToolResultError("days must not be negative"), nil
		}
		return jsonResult(analytics.Distribution(entries, now, days)), nil
	case "weekly_report":
		return jsonResult(analytics.WeeklyReport(entries, now)), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown analytics kind: %s", kind)), nil
	}
}

func (s *Server) listPatterns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ps := s.patterns.List()
	if len(ps) == 0 {
		return mcp.NewToolResultText("no patterns detected yet"), nil
	}
	return jsonResult(ps), nil
}

func (s *Server) readMoodScaleResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      moodScaleURI,
			MIMEType: "text/markdown",
			Text:     MoodScale,
		},
	}, nil
}
