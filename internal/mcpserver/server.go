// Package mcpserver exposes memoflow operations as MCP (Model Context
// Protocol) tools over stdio transport, so LLM clients can capture, file,
// and query notes directly.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hankxu/memoflow/internal/notestore"
	"github.com/hankxu/memoflow/internal/search"
	"github.com/hankxu/memoflow/internal/taxonomy"
)

// Server wraps the MCP server with memoflow tools.
type Server struct {
	mcp   *server.MCPServer
	store *notestore.Store
	tax   *taxonomy.Engine
	db    *search.DB
}

// New creates an MCP server with all memoflow tools registered. db may be
// nil, in which case search_notes and get_backlinks report the cache as
// unavailable.
func New(store *notestore.Store, tax *taxonomy.Engine, db *search.DB) *Server {
	s := &Server{store: store, tax: tax, db: db}

	s.mcp = server.NewMCPServer(
		"Memoflow",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("capture_note",
		mcp.WithDescription("Capture a new note into the inbox. Returns the note's hash and provisional location code."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
		mcp.WithString("type", mcp.Description("Note type: meeting, note, task, or email (optional)")),
		mcp.WithString("body", mcp.Description("Markdown body (optional)")),
	), s.captureNote)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note by its hash or unique hash prefix."),
		mcp.WithString("hash", mcp.Required(), mcp.Description("Full hash or unique prefix")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("query_notes",
		mcp.WithDescription("List notes filtered by status and/or type. Use type 'untyped' for notes without a type."),
		mcp.WithString("status", mcp.Description("Filter: open, done, or archived")),
		mcp.WithString("type", mcp.Description("Filter: meeting, note, task, email, or untyped")),
	), s.queryNotes)

	s.mcp.AddTool(mcp.NewTool("move_note",
		mcp.WithDescription("Move a note to a new location code. The note's current code must be supplied as a guard against stale state."),
		mcp.WithString("hash", mcp.Required(), mcp.Description("Full hash or unique prefix")),
		mcp.WithString("from", mcp.Required(), mcp.Description("The note's current location code")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Target location code, e.g. HANK-12.050")),
	), s.moveNote)

	s.mcp.AddTool(mcp.NewTool("next_free_code",
		mcp.WithDescription("Suggest the lowest unused location code within a category."),
		mcp.WithNumber("area", mcp.Required(), mcp.Description("Area id, e.g. 10")),
		mcp.WithNumber("category", mcp.Required(), mcp.Description("Category id within the area, e.g. 12")),
	), s.nextFreeCode)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note titles and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find the notes whose bodies link to the given hash."),
		mcp.WithString("hash", mcp.Required(), mcp.Description("Hash of the note to find backlinks for")),
	), s.getBacklinks)

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

func (s *Server) captureNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind := req.GetString("type", "")
	body := req.GetString("body", "")

	n, audit, err := s.store.Create(ctx, kind, title, body)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := map[string]string{
		"hash": n.Hash,
		"id":   n.Code,
		"path": n.Path,
	}
	if audit.Logged() {
		out["revision"] = audit.Revision
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hash, err := req.RequireString("hash")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.renderNote(hash)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(data), nil
}

// renderNote returns a compact JSON header plus the note body.
func (s *Server) renderNote(hash string) (string, error) {
	n, err := s.store.Read(hash)
	if err != nil {
		return "", err
	}
	head := map[string]any{
		"hash":   n.Hash,
		"id":     n.Code,
		"title":  n.Title,
		"status": n.Status,
		"type":   n.KindLabel(),
		"path":   n.Path,
	}
	if n.DueDate != nil {
		head["due_date"] = n.DueDate.Format("2006-01-02")
	}
	if len(n.Tags) > 0 {
		head["tags"] = n.Tags
	}
	meta, _ := json.MarshalIndent(head, "", "  ")
	return string(meta) + "\n\n" + n.Body, nil
}

func (s *Server) queryNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := notestore.Filter{
		Status: req.GetString("status", ""),
		Kind:   req.GetString("type", ""),
	}
	notes, err := s.store.Query(filter)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(notes) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	var lines []string
	for _, n := range notes {
		// Hand-edited files may carry a uuid shorter than a prefix.
		prefix := n.Hash
		if len(prefix) > 6 {
			prefix = prefix[:6]
		}
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s\t%s\t%s",
			prefix, n.Code, n.Status, n.KindLabel(), n.Title))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) moveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hash, err := req.RequireString("hash")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	newPath, _, err := s.store.Move(ctx, hash, from, to)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("moved to %s (%s)", to, newPath)), nil
}

func (s *Server) nextFreeCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	area, err := req.RequireInt("area")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	category, err := req.RequireInt("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	code, ok, err := s.tax.NextFreeCode(area, category)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no free slot in category %d of area %d", category, area)), nil
	}
	return mcp.NewToolResultText(code), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.db == nil {
		return mcp.NewToolResultError("search cache unavailable"), nil
	}
	results, err := s.db.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hash, err := req.RequireString("hash")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.db == nil {
		return mcp.NewToolResultError("search cache unavailable"), nil
	}
	bl, err := s.db.Backlinks(hash)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}
