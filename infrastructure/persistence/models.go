package persistence

import "time"

// PropertyModel represents one property row in the database.
type PropertyModel struct {
	ID              int64     `gorm:"primaryKey;autoIncrement"`
	PropertyID      string    `gorm:"column:property_id;uniqueIndex;size:255;not null"`
	Title           string    `gorm:"column:title;size:1024"`
	LongDescription string    `gorm:"column:long_description;type:text"`
	Location        string    `gorm:"column:location;size:1024"`
	Price           float64   `gorm:"column:price"`
	SellerType      string    `gorm:"column:seller_type;size:255"`
	ListingDate     string    `gorm:"column:listing_date;size:255"`
	Certificates    string    `gorm:"column:certificates;size:1024"`
	SellerContact   string    `gorm:"column:seller_contact;size:255"`
	MetadataTags    string    `gorm:"column:metadata_tags;size:1024"`
	ImageFile       string    `gorm:"column:image_file;size:1024"`
	FloorplanData   string    `gorm:"column:floorplan_data;type:text"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

// TableName returns the table name.
func (PropertyModel) TableName() string {
	return "properties"
}

// upsertColumns are overwritten when a row with the same property_id
// already exists. The surrogate and natural keys are never touched.
var upsertColumns = []string{
	"title",
	"long_description",
	"location",
	"price",
	"seller_type",
	"listing_date",
	"certificates",
	"seller_contact",
	"metadata_tags",
	"image_file",
	"floorplan_data",
	"updated_at",
}
