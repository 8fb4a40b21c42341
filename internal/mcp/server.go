// Package mcp exposes the code RAG pipeline as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gcpark/coderag/internal/index"
	"github.com/gcpark/coderag/internal/rag"
	"github.com/gcpark/coderag/internal/store"
	"github.com/gcpark/coderag/pkg/types"
)

// Server implements the MCP server.
type Server struct {
	mcpServer *server.MCPServer
	indexer   *index.Indexer
	chain     *rag.Chain
	store     *store.Store
}

// Config contains server configuration.
type Config struct {
	Indexer *index.Indexer
	Chain   *rag.Chain
	Store   *store.Store
	Version string
}

// New creates a new MCP server.
func New(cfg Config) *Server {
	s := &Server{
		indexer: cfg.Indexer,
		chain:   cfg.Chain,
		store:   cfg.Store,
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	mcpServer := server.NewMCPServer(
		"coderag",
		version,
		server.WithLogging(),
	)
	s.registerTools(mcpServer)
	s.mcpServer = mcpServer

	return s
}

// registerTools registers all MCP tools.
func (s *Server) registerTools(mcpServer *server.MCPServer) {
	// index_codebase - Index a directory tree as a project
	mcpServer.AddTool(mcp.NewTool("index_codebase",
		mcp.WithDescription("Index a codebase directory for semantic search"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Directory to index")),
		mcp.WithString("project", mcp.Description("Project name (default: directory base name)")),
		mcp.WithBoolean("force", mcp.Description("Reindex even if the project is already indexed")),
	), s.handleIndexCodebase)

	// search_code - Semantic code search
	mcpServer.AddTool(mcp.NewTool("search_code",
		mcp.WithDescription("Search indexed code using semantic similarity"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithNumber("top_k", mcp.Description("Maximum results (default 5)")),
		mcp.WithString("project", mcp.Description("Filter by project name")),
		mcp.WithString("language", mcp.Description("Filter by language: python, java, vue, javascript")),
	), s.handleSearchCode)

	// ask_codebase - RAG question answering
	mcpServer.AddTool(mcp.NewTool("ask_codebase",
		mcp.WithDescription("Ask a question about the indexed code and get an answer with sources"),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question about the code")),
		mcp.WithNumber("top_k", mcp.Description("Chunks to retrieve (default 5)")),
		mcp.WithString("project", mcp.Description("Filter by project name")),
	), s.handleAskCodebase)

	// get_status - Index statistics
	mcpServer.AddTool(mcp.NewTool("get_status",
		mcp.WithDescription("Get index status and per-project statistics"),
	), s.handleGetStatus)

	// delete_project - Remove one project from the index
	mcpServer.AddTool(mcp.NewTool("delete_project",
		mcp.WithDescription("Remove all indexed chunks for a project"),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
	), s.handleDeleteProject)
}

func (s *Server) handleIndexCodebase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return mcp.NewToolResultError("path is required"), nil
	}
	project := req.GetString("project", "")
	force := req.GetBool("force", false)

	result, err := s.indexer.IndexPath(ctx, path, project, force)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("indexing failed: %v", err)), nil
	}

	return toolResultJSON(result)
}

func (s *Server) handleSearchCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	topK := req.GetInt("top_k", 5)

	results, err := s.chain.SearchOnly(ctx, query, topK, filtersFromRequest(req))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	return toolResultJSON(map[string]any{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleAskCodebase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question := req.GetString("question", "")
	if question == "" {
		return mcp.NewToolResultError("question is required"), nil
	}

	answer, err := s.chain.Query(ctx, question, filtersFromRequest(req))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}

	return toolResultJSON(answer)
}

func (s *Server) handleGetStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.store.Stats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}

	return toolResultJSON(stats)
}

func (s *Server) handleDeleteProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := req.GetString("project", "")
	if project == "" {
		return mcp.NewToolResultError("project is required"), nil
	}

	removed, err := s.store.DeleteByProject(project)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete project: %v", err)), nil
	}

	return toolResultJSON(map[string]any{
		"project": project,
		"removed": removed,
	})
}

// filtersFromRequest builds search filters from the optional project and
// language arguments.
func filtersFromRequest(req mcp.CallToolRequest) *types.SearchFilters {
	filters := &types.SearchFilters{}
	if project := req.GetString("project", ""); project != "" {
		filters.Projects = []string{project}
	}
	if language := req.GetString("language", ""); language != "" {
		filters.Languages = []string{language}
	}
	if len(filters.Projects) == 0 && len(filters.Languages) == 0 {
		return nil
	}
	return filters
}

func toolResultJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
