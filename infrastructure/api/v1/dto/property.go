package dto

import "github.com/smartsense/smartsense/domain/property"

// PageMeta describes one page of a listing.
type PageMeta struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Count    int `json:"count"`
}

// PropertyListResponse is the body of GET /properties.
type PropertyListResponse struct {
	Data []property.Record `json:"data"`
	Meta PageMeta          `json:"meta"`
}
