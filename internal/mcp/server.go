// Package mcp exposes the pipeline as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/smartsense/smartsense/application/service"
	"github.com/smartsense/smartsense/domain/floorplan"
	"github.com/smartsense/smartsense/domain/property"
	"github.com/smartsense/smartsense/internal/database"
)

// ServerName is reported in the MCP initialize handshake.
const ServerName = "smartsense"

// FloorplanParser runs detection on one image file.
type FloorplanParser interface {
	Parse(ctx context.Context, imagePath string) floorplan.Detection
}

// Ingestor runs one ingestion to completion.
type Ingestor interface {
	RunSync(ctx context.Context) (property.BatchReport, error)
}

// PropertySearcher ranks properties for a query.
type PropertySearcher interface {
	Properties(ctx context.Context, text string, opts ...service.SearchOption) ([]service.PropertyMatch, error)
}

// RecordFinder looks up a stored property.
type RecordFinder interface {
	Find(ctx context.Context, propertyID string) (property.Record, error)
}

// Server wraps the MCP server with the pipeline tools.
type Server struct {
	mcpServer  *server.MCPServer
	floorplans FloorplanParser
	ingestor   Ingestor
	searcher   PropertySearcher
	records    RecordFinder
	version    string
	logger     *slog.Logger
}

// NewServer creates a new MCP server. Any dependency may be nil; its tool
// then reports that it is not configured.
func NewServer(
	floorplans FloorplanParser,
	ingestor Ingestor,
	searcher PropertySearcher,
	records RecordFinder,
	version string,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		floorplans: floorplans,
		ingestor:   ingestor,
		searcher:   searcher,
		records:    records,
		version:    version,
		logger:     logger,
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("parse_floorplan",
		mcp.WithDescription("Detect and count rooms, doors and other objects in a floorplan image"),
		mcp.WithString("image_path",
			mcp.Required(),
			mcp.Description("Path of the floorplan image on the server"),
		),
	), s.handleParseFloorplan)

	mcpServer.AddTool(mcp.NewTool("run_ingestion",
		mcp.WithDescription("Re-ingest the configured listings workbook into the relational and vector stores and return the batch report"),
	), s.handleRunIngestion)

	mcpServer.AddTool(mcp.NewTool("search_properties",
		mcp.WithDescription("Semantic search over property descriptions and certificates"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What to look for, in natural language"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Number of properties to return (default: 5)"),
		),
		mcp.WithString("chunk_type",
			mcp.Description("Restrict matches to description or certificate text"),
		),
	), s.handleSearchProperties)

	mcpServer.AddTool(mcp.NewTool("get_property",
		mcp.WithDescription("Get the stored record of one property, including its parsed floorplan"),
		mcp.WithString("property_id",
			mcp.Required(),
			mcp.Description("The property ID from the listings workbook"),
		),
	), s.handleGetProperty)

	mcpServer.AddTool(mcp.NewTool("get_version",
		mcp.WithDescription("Get the server version"),
	), s.handleGetVersion)
}

func (s *Server) handleParseFloorplan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("image_path")
	if err != nil || path == "" {
		return mcp.NewToolResultError("image_path is required"), nil
	}
	if s.floorplans == nil {
		return mcp.NewToolResultError("floorplan parsing not configured"), nil
	}

	return jsonResult(s.floorplans.Parse(ctx, path))
}

func (s *Server) handleRunIngestion(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.ingestor == nil {
		return mcp.NewToolResultError("ingestion not configured"), nil
	}

	report, err := s.ingestor.RunSync(ctx)
	switch {
	case errors.Is(err, service.ErrBusy):
		return mcp.NewToolResultError(err.Error()), nil
	case errors.Is(err, service.ErrFatalConfig), errors.Is(err, service.ErrConnection), errors.Is(err, service.ErrClosed):
		s.logger.ErrorContext(ctx, "ingestion failed", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("ingestion failed: %v", err)), nil
	}
	// Finalization errors still come with a full report.
	return jsonResult(report)
}

type propertyResult struct {
	PropertyID string           `json:"property_id"`
	Score      float64          `json:"score"`
	ChunkType  string           `json:"chunk_type"`
	Text       string           `json:"text"`
	Property   *property.Record `json:"property,omitempty"`
}

func (s *Server) handleSearchProperties(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	if s.searcher == nil {
		return mcp.NewToolResultError("search not configured"), nil
	}

	opts := []service.SearchOption{service.WithLimit(request.GetInt("top_k", 0))}
	if kind := property.ChunkKind(request.GetString("chunk_type", "")); kind != "" {
		if !kind.Valid() {
			return mcp.NewToolResultError("chunk_type must be description or certificate"), nil
		}
		opts = append(opts, service.WithChunkKind(kind))
	}

	matches, err := s.searcher.Properties(ctx, query, opts...)
	if err != nil {
		s.logger.ErrorContext(ctx, "search failed", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	results := make([]propertyResult, len(matches))
	for i, m := range matches {
		chunk := m.Best.Chunk()
		results[i] = propertyResult{
			PropertyID: m.PropertyID,
			Score:      m.Score,
			ChunkType:  string(chunk.Kind()),
			Text:       chunk.Text(),
			Property:   m.Record,
		}
	}
	return jsonResult(results)
}

func (s *Server) handleGetProperty(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("property_id")
	if err != nil || id == "" {
		return mcp.NewToolResultError("property_id is required"), nil
	}
	if s.records == nil {
		return mcp.NewToolResultError("property lookup not configured"), nil
	}

	record, err := s.records.Find(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("property %s not found", id)), nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to get property", slog.String("property_id", id), slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("failed to get property: %v", err)), nil
	}
	return jsonResult(record)
}

func (s *Server) handleGetVersion(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.version), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
