// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes outline tree tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/outline/internal/tree"
)

// Origin is recorded on audit entries written through MCP tools.
const Origin = "mcp"

// Server wraps the MCP server with outline tools.
type Server struct {
	mcp    *server.MCPServer
	engine *tree.Engine
}

// New creates a new MCP server with all tree tools registered.
func New(engine *tree.Engine) *Server {
	s := &Server{engine: engine}

	s.mcp = server.NewMCPServer(
		"Outline",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("move_to_parent",
		mcp.WithDescription("Move a note placement to the end of another parent's children."),
		mcp.WithString("edge_id", mcp.Required(), mcp.Description("Tree edge id of the note placement to move")),
		mcp.WithString("parent_id", mcp.Required(), mcp.Description("Note id of the new parent")),
	), s.moveToParent)

	s.mcp.AddTool(mcp.NewTool("move_before",
		mcp.WithDescription("Move a note placement directly before a sibling, under the sibling's parent."),
		mcp.WithString("edge_id", mcp.Required(), mcp.Description("Tree edge id to move")),
		mcp.WithString("anchor_id", mcp.Required(), mcp.Description("Tree edge id the note should precede")),
	), s.moveBefore)

	s.mcp.AddTool(mcp.NewTool("move_after",
		mcp.WithDescription("Move a note placement directly after a sibling, under the sibling's parent."),
		mcp.WithString("edge_id", mcp.Required(), mcp.Description("Tree edge id to move")),
		mcp.WithString("anchor_id", mcp.Required(), mcp.Description("Tree edge id the note should follow")),
	), s.moveAfter)

	s.mcp.AddTool(mcp.NewTool("set_expanded",
		mcp.WithDescription("Expand or collapse a note in the tree view. Display only; not synced."),
		mcp.WithString("edge_id", mcp.Required(), mcp.Description("Tree edge id")),
		mcp.WithBoolean("expanded", mcp.Required(), mcp.Description("true to expand, false to collapse")),
	), s.setExpanded)

	s.mcp.AddTool(mcp.NewTool("list_children",
		mcp.WithDescription("List the active children of a note in display order."),
		mcp.WithString("parent_id", mcp.Required(), mcp.Description("Note id of the parent")),
	), s.listChildren)

	s.mcp.AddResource(
		mcp.NewResource("outline://tree-ordering", "Tree Ordering Contract",
			mcp.WithResourceDescription("How sibling positions behave under the move tools."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readOrderingResource,
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

func (s *Server) moveToParent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	edgeID, err := req.RequireString("edge_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	parentID, err := req.RequireString("parent_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.engine.MoveTo(tree.WithOrigin(ctx, Origin), edgeID, parentID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("moved %s under %s", edgeID, parentID)), nil
}

func (s *Server) moveBefore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.moveBeside(ctx, req, "before", s.engine.MoveBefore)
}

func (s *Server) moveAfter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.moveBeside(ctx, req, "after", s.engine.MoveAfter)
}

func (s *Server) moveBeside(ctx context.Context, req mcp.CallToolRequest, where string, move func(context.Context, string, string) error) (*mcp.CallToolResult, error) {
	edgeID, err := req.RequireString("edge_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	anchorID, err := req.RequireString("anchor_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := move(tree.WithOrigin(ctx, Origin), edgeID, anchorID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("moved %s %s %s", edgeID, where, anchorID)), nil
}

func (s *Server) setExpanded(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	edgeID, err := req.RequireString("edge_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	expanded, err := req.RequireBool("expanded")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.engine.SetExpanded(ctx, edgeID, expanded); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s expanded=%t", edgeID, expanded)), nil
}

func (s *Server) listChildren(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	parentID, err := req.RequireString("parent_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	children, err := s.engine.Children(ctx, parentID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(children, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readOrderingResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "outline://tree-ordering",
			MIMEType: "text/markdown",
			Text:     OrderingContract,
		},
	}, nil
}
