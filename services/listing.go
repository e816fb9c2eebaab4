package services

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"listing-chat/apperrors"
	"listing-chat/models"
)

// ListingCatalog resolves who sells a listing.
type ListingCatalog interface {
	SellerOf(ctx context.Context, listingID string) (string, error)
}

// GormListingCatalog reads the listings table maintained by the catalog service.
type GormListingCatalog struct {
	db *gorm.DB
}

func NewGormListingCatalog(db *gorm.DB) *GormListingCatalog {
	return &GormListingCatalog{db: db}
}

func (c *GormListingCatalog) SellerOf(ctx context.Context, listingID string) (string, error) {
	var listing models.Listing
	err := c.db.WithContext(ctx).Select("id", "seller_id").Where("id = ?", listingID).First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.ErrListingNotFound
		}
		return "", apperrors.Internal("lookup listing", errors.Wrap(err, "listingCatalog.SellerOf.First"))
	}
	return listing.SellerID, nil
}
