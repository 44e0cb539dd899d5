package models

import "time"

type AnnouncementImage struct {
	ID             int64     `json:"id"`
	Image          string    `json:"image"`
	ImageURL       string    `json:"image_url"`
	ImageSmallURL  string    `json:"image_small_url"`
	ImageMediumURL string    `json:"image_medium_url"`
	IsPrimary      bool      `json:"is_primary"`
	Order          int       `json:"order"`
	CreatedAt      time.Time `json:"created_at"`
}

type Announcement struct {
	ID              string              `json:"id"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	PropertyType    string              `json:"property_type"`
	ListingType     string              `json:"listing_type"`
	BuildingType    *string             `json:"building_type"`
	Condition       *string             `json:"condition"`
	District        *District           `json:"district"`
	Latitude        *string             `json:"latitude"`
	Longitude       *string             `json:"longitude"`
	Price           string              `json:"price"`
	Currency        string              `json:"currency"`
	Area            string              `json:"area"`
	AreaUnit        string              `json:"area_unit"`
	Rooms           *int                `json:"rooms"`
	Floor           *int                `json:"floor"`
	TotalFloors     *int                `json:"total_floors"`
	Phone           string              `json:"phone"`
	Images          []AnnouncementImage `json:"images"`
	Seller          int64               `json:"seller"`
	SellerName      string              `json:"seller_name"`
	SellerPhone     *string             `json:"seller_phone"`
	Status          string              `json:"status"`
	PaymentStatus   string              `json:"payment_status"`
	IsModerated     bool                `json:"is_moderated"`
	ModeratedBy     *int64              `json:"moderated_by"`
	ModeratedByName *string             `json:"moderated_by_name"`
	ModeratedAt     *time.Time          `json:"moderated_at"`
	RejectionReason string              `json:"rejection_reason"`
	IsFeatured      bool                `json:"is_featured"`
	FeaturedUntil   *time.Time          `json:"featured_until"`
	PromotionType   string              `json:"promotion_type"`
	ViewsCount      int                 `json:"views_count"`
	FavoritesCount  int                 `json:"favorites_count"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	PostedAt        *time.Time          `json:"posted_at"`
}

// PrimaryImage returns the image flagged primary, else the first one.
func (a Announcement) PrimaryImage() *AnnouncementImage {
	for i := range a.Images {
		if a.Images[i].IsPrimary {
			return &a.Images[i]
		}
	}
	if len(a.Images) > 0 {
		return &a.Images[0]
	}
	return nil
}
