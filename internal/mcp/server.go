package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tutao/search-core/internal/app"
	"github.com/tutao/search-core/internal/config"
	"github.com/tutao/search-core/internal/model"
	"github.com/tutao/search-core/pkg/version"
)

// Server exposes the search core's three operations, search, pagination,
// and index extension, as MCP tools, the way the teacher's server exposes
// its hybrid search engine.
type Server struct {
	mcp    *mcp.Server
	app    *app.App
	config *config.Config
	logger *slog.Logger
}

// NewServer creates a new MCP server wrapping an already-built search core.
func NewServer(a *app.App, cfg *config.Config) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("search core is required")
	}
	if cfg == nil {
		cfg = config.New()
	}

	s := &Server{
		app:    a,
		config: cfg,
		logger: slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "tuta-search",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "tuta-search", version.Version
}

// registerTools registers search, get_more_search_results and extend_index.
func (s *Server) registerTools() {
	s.logger.Debug("registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Tokenizes a query and runs it against the encrypted mail index, returning the first page of matching (listId, id) pairs newest-first. A double-quoted multi-word query additionally requires the terms to appear in that order.",
	}, s.mcpSearchHandler)
	s.logger.Debug("registered tool", slog.String("name", "search"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_more_search_results",
		Description: "Resumes the cursor state returned by a previous search or get_more_search_results call and fetches additional results.",
	}, s.mcpGetMoreSearchResultsHandler)
	s.logger.Debug("registered tool", slog.String("name", "get_more_search_results"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "extend_index",
		Description: "Extends mail index coverage back to a given point in time by reading and encrypting not-yet-indexed documents.",
	}, s.mcpExtendIndexHandler)
	s.logger.Debug("registered tool", slog.String("name", "extend_index"))

	s.logger.Info("MCP tools registered", slog.Int("count", 3))
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query is required")
	}

	restriction := model.SearchRestriction{Type: app.ParseRestrictionType(input.RestrictionType)}
	for _, id := range input.AttributeIDs {
		restriction.AttributeIDs = append(restriction.AttributeIDs, uint8(id))
	}
	if input.ListID != "" {
		l := model.ListID(input.ListID)
		restriction.ListID = &l
	}
	if input.Start != "" {
		t, err := app.ParseTime(input.Start)
		if err != nil {
			return nil, SearchOutput{}, NewInvalidParamsError("invalid start: " + err.Error())
		}
		restriction.Start = &t
	}
	if input.End != "" {
		t, err := app.ParseTime(input.End)
		if err != nil {
			return nil, SearchOutput{}, NewInvalidParamsError("invalid end: " + err.Error())
		}
		restriction.End = &t
	}

	maxResults := s.config.Pagination.DefaultMaxResults
	if input.MaxResults > 0 {
		maxResults = input.MaxResults
	}

	result, err := s.app.Orchestrator.Search(ctx, input.Query, restriction, input.MinSuggestionCount, &maxResults)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	state := app.ToState(result)
	output := SearchOutput{
		Query:   result.Query,
		Results: toSearchResultOutputs(state),
		State:   state,
	}
	return nil, output, nil
}

func (s *Server) mcpGetMoreSearchResultsHandler(ctx context.Context, _ *mcp.CallToolRequest, input GetMoreSearchResultsInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	result, err := app.FromState(input.State)
	if err != nil {
		return nil, SearchOutput{}, NewInvalidParamsError("invalid state: " + err.Error())
	}

	count := input.Count
	if count <= 0 {
		count = 10
	}

	if err := s.app.Orchestrator.GetMoreSearchResults(ctx, result, count); err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	state := app.ToState(result)
	output := SearchOutput{
		Query:   result.Query,
		Results: toSearchResultOutputs(state),
		State:   state,
	}
	return nil, output, nil
}

func (s *Server) mcpExtendIndexHandler(ctx context.Context, _ *mcp.CallToolRequest, input ExtendIndexInput) (
	*mcp.CallToolResult,
	ExtendIndexOutput,
	error,
) {
	if input.Since == "" {
		return nil, ExtendIndexOutput{}, NewInvalidParamsError("since is required")
	}
	since, err := app.ParseTime(input.Since)
	if err != nil {
		return nil, ExtendIndexOutput{}, NewInvalidParamsError("invalid since: " + err.Error())
	}

	if err := s.app.Indexer.IndexMailboxes(ctx, since.UnixMilli()); err != nil {
		return nil, ExtendIndexOutput{}, MapError(err)
	}

	output := ExtendIndexOutput{
		CurrentIndexTimestamp: s.app.Indexer.CurrentIndexTimestamp().Format("2006-01-02T15:04:05Z07:00"),
	}
	return nil, output, nil
}

// Serve starts the server over the given transport. Only stdio is
// implemented; it is what mail clients embedding this core actually use.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport))

	switch transport {
	case "", "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
