// Package property provides the listing domain: spreadsheet rows, typed
// listings, stored records, text chunks and the batch report of one
// ingestion run.
package property

import (
	"maps"
	"strings"
)

// Column names of the row source. Headers are matched case-insensitively.
const (
	ColumnPropertyID      = "property_id"
	ColumnTitle           = "title"
	ColumnLongDescription = "long_description"
	ColumnLocation        = "location"
	ColumnPrice           = "price"
	ColumnSellerType      = "seller_type"
	ColumnListingDate     = "listing_date"
	ColumnCertificates    = "certificates"
	ColumnSellerContact   = "seller_contact"
	ColumnMetadataTags    = "metadata_tags"
	ColumnImageFile       = "image_file"
)

// Columns lists every column the pipeline reads, in source order.
var Columns = []string{
	ColumnPropertyID,
	ColumnTitle,
	ColumnLongDescription,
	ColumnLocation,
	ColumnPrice,
	ColumnSellerType,
	ColumnListingDate,
	ColumnCertificates,
	ColumnSellerContact,
	ColumnMetadataTags,
	ColumnImageFile,
}

// Row is one data row of the row source. A blank cell is absent rather
// than present-and-empty, so Clean can tell the two apart.
type Row struct {
	index int
	cells map[string]string
}

// NewRow creates a Row. Index is the 1-based data row number, excluding
// the header. Keys are normalised to lower case; blank values are dropped.
func NewRow(index int, cells map[string]string) Row {
	normalised := make(map[string]string, len(cells))
	for k, v := range cells {
		key := NormaliseHeader(k)
		if key == "" || strings.TrimSpace(v) == "" {
			continue
		}
		normalised[key] = v
	}
	return Row{index: index, cells: normalised}
}

// NormaliseHeader lower-cases and trims a column header.
func NormaliseHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// Index returns the 1-based data row number.
func (r Row) Index() int { return r.index }

// Value returns a cell and whether it was present.
func (r Row) Value(column string) (string, bool) {
	v, ok := r.cells[column]
	return v, ok
}

// Get returns a cell, or "" when absent.
func (r Row) Get(column string) string {
	return r.cells[column]
}

// Has reports whether a cell is present.
func (r Row) Has(column string) bool {
	_, ok := r.cells[column]
	return ok
}

// Len returns the number of present cells.
func (r Row) Len() int { return len(r.cells) }

// Cells returns a copy of the present cells.
func (r Row) Cells() map[string]string {
	return maps.Clone(r.cells)
}

// With returns a copy of the row with one cell set.
func (r Row) With(column, value string) Row {
	cells := maps.Clone(r.cells)
	if cells == nil {
		cells = make(map[string]string, 1)
	}
	cells[column] = value
	return Row{index: r.index, cells: cells}
}

// textDefaults are filled with "" by Clean when absent.
var textDefaults = []string{ColumnTitle, ColumnLongDescription, ColumnCertificates}

// DefaultPrice is stored when a row has no price.
const DefaultPrice = "0.0"

// Clean applies the default-filling pass to every row before any row is
// processed: absent title, long_description and certificates become "",
// absent price becomes 0.0. Other absent columns are left absent.
func Clean(rows []Row) []Row {
	cleaned := make([]Row, len(rows))
	for i, row := range rows {
		for _, column := range textDefaults {
			if !row.Has(column) {
				row = row.With(column, "")
			}
		}
		if !row.Has(ColumnPrice) {
			row = row.With(ColumnPrice, DefaultPrice)
		}
		cleaned[i] = row
	}
	return cleaned
}
