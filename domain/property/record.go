package property

import (
	"time"

	"github.com/smartsense/smartsense/domain/floorplan"
)

// Record is the relational representation of one property. Exactly one
// record exists per property ID; re-ingestion overwrites every other column.
type Record struct {
	id        int64
	listing   Listing
	floorplan floorplan.Detection
	updatedAt time.Time
}

// NewRecord creates a Record ready to be upserted.
func NewRecord(listing Listing, detection floorplan.Detection) Record {
	return Record{
		listing:   listing,
		floorplan: detection,
	}
}

// ReconstructRecord reconstructs a Record from persistence.
func ReconstructRecord(id int64, listing Listing, detection floorplan.Detection, updatedAt time.Time) Record {
	return Record{
		id:        id,
		listing:   listing,
		floorplan: detection,
		updatedAt: updatedAt,
	}
}

// ReconstructListing rebuilds a Listing from stored columns.
func ReconstructListing(
	propertyID, title, longDescription, location string,
	price float64,
	sellerType, listingDate, certificates, sellerContact, metadataTags, imageFile string,
) Listing {
	return Listing{
		propertyID:      propertyID,
		title:           title,
		longDescription: longDescription,
		location:        location,
		price:           price,
		sellerType:      sellerType,
		listingDate:     listingDate,
		certificates:    certificates,
		sellerContact:   sellerContact,
		metadataTags:    metadataTags,
		imageFile:       imageFile,
	}
}

// ID returns the surrogate key, zero before the first save.
func (r Record) ID() int64 { return r.id }

// PropertyID returns the stable external key.
func (r Record) PropertyID() string { return r.listing.propertyID }

// Listing returns the listing fields.
func (r Record) Listing() Listing { return r.listing }

// Floorplan returns the detection result stored with the record.
func (r Record) Floorplan() floorplan.Detection { return r.floorplan }

// UpdatedAt returns when the record was last written.
func (r Record) UpdatedAt() time.Time { return r.updatedAt }
