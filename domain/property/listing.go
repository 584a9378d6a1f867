package property

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMissingPropertyID indicates a row without a property identifier.
var ErrMissingPropertyID = errors.New("missing property_id")

// ErrInvalidPrice indicates a price that is not a non-negative number.
var ErrInvalidPrice = errors.New("invalid price")

// CertificateSeparator separates file names in the certificates column.
const CertificateSeparator = "|"

// Listing is the typed form of one cleaned row.
type Listing struct {
	propertyID      string
	title           string
	longDescription string
	location        string
	price           float64
	sellerType      string
	listingDate     string
	certificates    string
	sellerContact   string
	metadataTags    string
	imageFile       string
}

// ParseListing converts a cleaned row into a Listing.
func ParseListing(row Row) (Listing, error) {
	id := strings.TrimSpace(row.Get(ColumnPropertyID))
	if id == "" {
		return Listing{}, ErrMissingPropertyID
	}

	price, err := ParsePrice(row.Get(ColumnPrice))
	if err != nil {
		return Listing{}, err
	}

	return Listing{
		propertyID:      id,
		title:           row.Get(ColumnTitle),
		longDescription: row.Get(ColumnLongDescription),
		location:        row.Get(ColumnLocation),
		price:           price,
		sellerType:      row.Get(ColumnSellerType),
		listingDate:     row.Get(ColumnListingDate),
		certificates:    row.Get(ColumnCertificates),
		sellerContact:   row.Get(ColumnSellerContact),
		metadataTags:    row.Get(ColumnMetadataTags),
		imageFile:       strings.TrimSpace(row.Get(ColumnImageFile)),
	}, nil
}

// ParsePrice parses a price cell. Thousands separators and surrounding
// whitespace are accepted; an empty cell is 0.
func ParsePrice(s string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" {
		return 0, nil
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("%w: %q must be a non-negative number", ErrInvalidPrice, s)
	}
	return price, nil
}

// PropertyID returns the stable external key.
func (l Listing) PropertyID() string { return l.propertyID }

// Title returns the listing title.
func (l Listing) Title() string { return l.title }

// LongDescription returns the free-text description.
func (l Listing) LongDescription() string { return l.longDescription }

// Location returns the location.
func (l Listing) Location() string { return l.location }

// Price returns the asking price.
func (l Listing) Price() float64 { return l.price }

// SellerType returns the seller type.
func (l Listing) SellerType() string { return l.sellerType }

// ListingDate returns the listing date as displayed in the source.
func (l Listing) ListingDate() string { return l.listingDate }

// Certificates returns the raw certificate file list.
func (l Listing) Certificates() string { return l.certificates }

// SellerContact returns the seller contact.
func (l Listing) SellerContact() string { return l.sellerContact }

// MetadataTags returns the metadata tags.
func (l Listing) MetadataTags() string { return l.metadataTags }

// ImageFile returns the floorplan image file name.
func (l Listing) ImageFile() string { return l.imageFile }

// CertificateFiles splits the certificate list on "|", trimming each
// name and dropping empty entries.
func (l Listing) CertificateFiles() []string {
	if strings.TrimSpace(l.certificates) == "" {
		return nil
	}
	parts := strings.Split(l.certificates, CertificateSeparator)
	files := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			files = append(files, name)
		}
	}
	return files
}

// DescriptionText returns the text embedded as the description chunk.
func (l Listing) DescriptionText() string {
	return fmt.Sprintf("Title: %s. Description: %s", l.title, l.longDescription)
}
