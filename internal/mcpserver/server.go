// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes marginalia tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/notes"
)

const inboxFormatURI = "marginalia://inbox-format"

// Server wraps the MCP server with marginalia tools. Every tool acts on
// behalf of a single user, since stdio carries no credentials.
type Server struct {
	mcp    *server.MCPServer
	svc    *notes.Service
	userID string
}

// New creates a new MCP server with all tools registered.
func New(svc *notes.Service, userID, version string) *Server {
	s := &Server{svc: svc, userID: userID}

	s.mcp = server.NewMCPServer(
		"Marginalia",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search reading notes by meaning (semantic) or by words (text)."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("mode", mcp.Description("semantic (default) or text"), mcp.Enum("semantic", "text")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note with its quote, page reference and book."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note ID")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("related_notes",
		mcp.WithDescription("List notes semantically linked to a note, with the concepts they share."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note ID")),
	), s.relatedNotes)

	s.mcp.AddTool(mcp.NewTool("note_concepts",
		mcp.WithDescription("Extract the key concepts of a note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note ID")),
	), s.noteConcepts)

	s.mcp.AddTool(mcp.NewTool("ask",
		mcp.WithDescription("Answer a question using the closest reading notes as context. "+
			"Returns the answer and the notes it was grounded on."),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question in any language")),
		mcp.WithNumber("top_k", mcp.Description("How many notes to use as context (default 8)")),
	), s.ask)

	s.mcp.AddTool(mcp.NewTool("list_books",
		mcp.WithDescription("List books, newest first."),
	), s.listBooks)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a reading note. The note is filed under book_id, or under the "+
			"book titled book (created when missing). It is embedded and linked to similar notes."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Your thoughts, up to 1200 characters")),
		mcp.WithString("book_id", mcp.Description("Existing book ID")),
		mcp.WithString("book", mcp.Description("Book title, used when book_id is empty")),
		mcp.WithString("quote", mcp.Description("Quoted passage, up to 600 characters")),
		mcp.WithString("page_ref", mcp.Description("Page reference, up to 40 characters")),
		mcp.WithBoolean("same_book_only", mcp.Description("Only link to notes of the same book")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("get_inbox_contract",
		mcp.WithDescription("Returns the Markdown format accepted by the inbox importer."),
	), s.getInboxContract)

	s.mcp.AddResource(
		mcp.NewResource(inboxFormatURI, "Inbox Format Contract",
			mcp.WithResourceDescription("Markdown format of files imported from the inbox."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readInboxFormatResource,
	)

	return s
}

// Listen serves MCP over the given streams until ctx is cancelled or in
// is closed.
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	switch req.GetString("mode", "semantic") {
	case "semantic":
		return jsonResult(s.svc.SemanticSearch(ctx, s.userID, query))
	case "text":
		return jsonResult(s.svc.TextSearch(ctx, s.userID, query, 0))
	default:
		return mcp.NewToolResultError("mode must be semantic or text"), nil
	}
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.GetNote(ctx, s.userID, id)
	if err != nil {
		return toolError(id, err), nil
	}
	book, err := s.svc.GetBook(ctx, s.userID, n.BookID)
	if err != nil {
		return toolError(n.BookID, err), nil
	}
	return jsonResult(map[string]any{"note": n, "book_title": book.Title}, nil)
}

func (s *Server) relatedNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	related, err := s.svc.RelatedNotes(ctx, s.userID, id)
	if err != nil {
		return toolError(id, err), nil
	}
	return jsonResult(related, nil)
}

func (s *Server) noteConcepts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.svc.Concepts(ctx, s.userID, id)
	if err != nil {
		return toolError(id, err), nil
	}
	return jsonResult(c, nil)
}

func (s *Server) ask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.Ask(ctx, s.userID, question, req.GetInt("top_k", 0)))
}

func (s *Server) listBooks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.ListBooks(ctx, s.userID))
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	bookID := req.GetString("book_id", "")
	if bookID == "" {
		title := req.GetString("book", "")
		if title == "" {
			return mcp.NewToolResultError("book_id or book is required"), nil
		}
		book, err := s.svc.EnsureBook(ctx, s.userID, title)
		if err != nil {
			return toolError(title, err), nil
		}
		bookID = book.ID
	}

	n, err := s.svc.CreateNote(ctx, s.userID, notes.NoteInput{
		BookID:       bookID,
		Content:      content,
		Quote:        req.GetString("quote", ""),
		PageRef:      req.GetString("page_ref", ""),
		SameBookOnly: req.GetBool("same_book_only", false),
	})
	if err != nil {
		return toolError(bookID, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", n.ID)), nil
}

func (s *Server) getInboxContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(InboxFormatContract), nil
}

func (s *Server) readInboxFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      inboxFormatURI,
			MIMEType: "text/markdown",
			Text:     InboxFormatContract,
		},
	}, nil
}

func jsonResult(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func toolError(subject string, err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", subject))
	}
	return mcp.NewToolResultError(err.Error())
}
