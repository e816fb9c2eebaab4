package models

import "time"

// Listing is the read-only view of a marketplace listing this service needs:
// who sells it. Listings are written by the catalog service.
type Listing struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	SellerID  string    `gorm:"type:varchar(64);not null;index" json:"seller_id"`
	Title     string    `gorm:"type:varchar(255)" json:"title"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
