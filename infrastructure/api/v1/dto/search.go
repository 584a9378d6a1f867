// Package dto holds the request and response bodies of the v1 API.
package dto

import "github.com/smartsense/smartsense/domain/property"

// Search grouping modes.
const (
	GroupByProperty = "property"
	GroupByChunk    = "chunk"
)

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query      string   `json:"query"`
	Limit      *int     `json:"limit,omitempty"`
	ChunkType  string   `json:"chunk_type,omitempty"`
	PropertyID string   `json:"property_id,omitempty"`
	MinScore   *float64 `json:"min_score,omitempty"`
	GroupBy    string   `json:"group_by,omitempty"`
}

// SearchResult is one ranked match.
type SearchResult struct {
	PropertyID string           `json:"property_id"`
	Score      float64          `json:"score"`
	ChunkType  string           `json:"chunk_type"`
	Text       string           `json:"text"`
	Property   *property.Record `json:"property,omitempty"`
}

// SearchResponse is the body returned by POST /search.
type SearchResponse struct {
	Query   string         `json:"query"`
	GroupBy string         `json:"group_by"`
	Results []SearchResult `json:"results"`
}
