package property

import (
	"encoding/json"
	"time"

	"github.com/smartsense/smartsense/domain/floorplan"
)

type recordJSON struct {
	PropertyID      string              `json:"property_id"`
	Title           string              `json:"title"`
	LongDescription string              `json:"long_description"`
	Location        string              `json:"location"`
	Price           float64             `json:"price"`
	SellerType      string              `json:"seller_type"`
	ListingDate     string              `json:"listing_date"`
	Certificates    string              `json:"certificates"`
	SellerContact   string              `json:"seller_contact"`
	MetadataTags    string              `json:"metadata_tags"`
	ImageFile       string              `json:"image_file"`
	ParsedFloorplan floorplan.Detection `json:"parsed_floorplan"`
	UpdatedAt       *time.Time          `json:"updated_at,omitempty"`
}

// MarshalJSON encodes the record with its stored column names.
func (r Record) MarshalJSON() ([]byte, error) {
	l := r.listing
	out := recordJSON{
		PropertyID:      l.propertyID,
		Title:           l.title,
		LongDescription: l.longDescription,
		Location:        l.location,
		Price:           l.price,
		SellerType:      l.sellerType,
		ListingDate:     l.listingDate,
		Certificates:    l.certificates,
		SellerContact:   l.sellerContact,
		MetadataTags:    l.metadataTags,
		ImageFile:       l.imageFile,
		ParsedFloorplan: r.floorplan,
	}
	if !r.updatedAt.IsZero() {
		ts := r.updatedAt.UTC()
		out.UpdatedAt = &ts
	}
	return json.Marshal(out)
}
