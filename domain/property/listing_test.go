package property

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListing_AllColumns(t *testing.T) {
	row := Clean([]Row{NewRow(1, map[string]string{
		"property_id":      "101",
		"title":            "Sea View",
		"long_description": "Two bed flat",
		"location":         "Goa",
		"price":            "1,250,000.50",
		"seller_type":      "owner",
		"listing_date":     "2024-03-01",
		"certificates":     "a.pdf | b.pdf",
		"seller_contact":   "owner@example.com",
		"metadata_tags":    "sea,balcony",
		"image_file":       " plan.png ",
	})})[0]

	l, err := ParseListing(row)
	require.NoError(t, err)

	assert.Equal(t, "101", l.PropertyID())
	assert.Equal(t, "Sea View", l.Title())
	assert.Equal(t, 1250000.50, l.Price())
	assert.Equal(t, "2024-03-01", l.ListingDate())
	assert.Equal(t, "plan.png", l.ImageFile())
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, l.CertificateFiles())
	assert.Equal(t, "Title: Sea View. Description: Two bed flat", l.DescriptionText())
}

func TestParseListing_Defaults(t *testing.T) {
	l, err := ParseListing(Clean([]Row{NewRow(1, map[string]string{"property_id": "P-9"})})[0])
	require.NoError(t, err)

	assert.Equal(t, 0.0, l.Price())
	assert.Equal(t, "", l.Title())
	assert.Equal(t, "", l.Location())
	assert.Nil(t, l.CertificateFiles())
	assert.Equal(t, "Title: . Description: ", l.DescriptionText())
}

func TestParseListing_Errors(t *testing.T) {
	_, err := ParseListing(NewRow(1, map[string]string{"title": "x"}))
	assert.ErrorIs(t, err, ErrMissingPropertyID)

	_, err = ParseListing(NewRow(1, map[string]string{"property_id": "P", "price": "cheap"}))
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = ParseListing(NewRow(1, map[string]string{"property_id": "P", "price": "-5"}))
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestCertificateFiles_SkipsEmptySegments(t *testing.T) {
	l, err := ParseListing(NewRow(1, map[string]string{"property_id": "P", "certificates": "|a.pdf||  |b.pdf|"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, l.CertificateFiles())
}
