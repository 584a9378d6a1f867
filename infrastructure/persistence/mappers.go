package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/smartsense/smartsense/domain/floorplan"
	"github.com/smartsense/smartsense/domain/property"
)

// PropertyMapper maps between domain Record and persistence PropertyModel.
type PropertyMapper struct{}

// ToDomain converts a PropertyModel to a domain Record. A floorplan column
// that cannot be decoded is surfaced as an inference failure rather than
// hiding the record.
func (m PropertyMapper) ToDomain(e PropertyModel) property.Record {
	listing := property.ReconstructListing(
		e.PropertyID,
		e.Title,
		e.LongDescription,
		e.Location,
		e.Price,
		e.SellerType,
		e.ListingDate,
		e.Certificates,
		e.SellerContact,
		e.MetadataTags,
		e.ImageFile,
	)

	detection, err := floorplan.Parse([]byte(e.FloorplanData))
	if err != nil {
		detection = floorplan.Failed(floorplan.ReasonInferenceError, fmt.Sprintf("stored floorplan data: %v", err))
	}

	return property.ReconstructRecord(e.ID, listing, detection, e.UpdatedAt)
}

// ToModel converts a domain Record to a PropertyModel.
func (m PropertyMapper) ToModel(r property.Record) (PropertyModel, error) {
	data, err := json.Marshal(r.Floorplan())
	if err != nil {
		return PropertyModel{}, fmt.Errorf("marshal floorplan: %w", err)
	}

	l := r.Listing()
	return PropertyModel{
		ID:              r.ID(),
		PropertyID:      l.PropertyID(),
		Title:           l.Title(),
		LongDescription: l.LongDescription(),
		Location:        l.Location(),
		Price:           l.Price(),
		SellerType:      l.SellerType(),
		ListingDate:     l.ListingDate(),
		Certificates:    l.Certificates(),
		SellerContact:   l.SellerContact(),
		MetadataTags:    l.MetadataTags(),
		ImageFile:       l.ImageFile(),
		FloorplanData:   string(data),
		UpdatedAt:       r.UpdatedAt(),
	}, nil
}
