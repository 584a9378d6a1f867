package v1

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/smartsense/smartsense/application/service"
	"github.com/smartsense/smartsense/domain/property"
	"github.com/smartsense/smartsense/domain/search"
	"github.com/smartsense/smartsense/infrastructure/api/middleware"
	"github.com/smartsense/smartsense/infrastructure/api/v1/dto"
)

// Searcher answers semantic queries.
type Searcher interface {
	Chunks(ctx context.Context, text string, opts ...service.SearchOption) ([]search.Hit, error)
	Properties(ctx context.Context, text string, opts ...service.SearchOption) ([]service.PropertyMatch, error)
}

// SearchRouter handles search API endpoints.
type SearchRouter struct {
	searcher Searcher
	logger   *slog.Logger
}

// NewSearchRouter creates a new SearchRouter.
func NewSearchRouter(searcher Searcher, logger *slog.Logger) *SearchRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchRouter{searcher: searcher, logger: logger}
}

// Routes returns the chi router for search endpoints.
func (r *SearchRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", r.Search)

	return router
}

// Search handles POST /search. Results are ranked per property unless
// group_by is "chunk".
func (r *SearchRouter) Search(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var body dto.SearchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.BadRequest("invalid JSON body", err), r.logger)
		return
	}
	query := strings.TrimSpace(body.Query)
	if query == "" {
		middleware.WriteError(w, req, middleware.BadRequest("query is required", nil), r.logger)
		return
	}

	opts, err := searchOptions(body)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	response := dto.SearchResponse{Query: query, GroupBy: dto.GroupByProperty, Results: []dto.SearchResult{}}

	switch body.GroupBy {
	case "", dto.GroupByProperty:
		matches, err := r.searcher.Properties(ctx, query, opts...)
		if err != nil {
			middleware.WriteError(w, req, err, r.logger)
			return
		}
		for _, m := range matches {
			chunk := m.Best.Chunk()
			response.Results = append(response.Results, dto.SearchResult{
				PropertyID: m.PropertyID,
				Score:      m.Score,
				ChunkType:  string(chunk.Kind()),
				Text:       chunk.Text(),
				Property:   m.Record,
			})
		}
	case dto.GroupByChunk:
		response.GroupBy = dto.GroupByChunk
		hits, err := r.searcher.Chunks(ctx, query, opts...)
		if err != nil {
			middleware.WriteError(w, req, err, r.logger)
			return
		}
		for _, h := range hits {
			chunk := h.Chunk()
			response.Results = append(response.Results, dto.SearchResult{
				PropertyID: chunk.PropertyID(),
				Score:      h.Score(),
				ChunkType:  string(chunk.Kind()),
				Text:       chunk.Text(),
			})
		}
	default:
		middleware.WriteError(w, req, middleware.BadRequest("group_by must be property or chunk", nil), r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, response)
}

func searchOptions(body dto.SearchRequest) ([]service.SearchOption, error) {
	var opts []service.SearchOption
	if body.Limit != nil {
		if *body.Limit <= 0 {
			return nil, middleware.BadRequest("limit must be positive", nil)
		}
		opts = append(opts, service.WithLimit(*body.Limit))
	}
	if body.ChunkType != "" {
		kind := property.ChunkKind(body.ChunkType)
		if !kind.Valid() {
			return nil, middleware.BadRequest("chunk_type must be description or certificate", nil)
		}
		opts = append(opts, service.WithChunkKind(kind))
	}
	if body.PropertyID != "" {
		opts = append(opts, service.WithPropertyID(body.PropertyID))
	}
	if body.MinScore != nil {
		opts = append(opts, service.WithMinScore(*body.MinScore))
	}
	return opts, nil
}
