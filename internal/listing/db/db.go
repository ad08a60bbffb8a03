package db

import (
	"context"

	"hobbydork/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetListingByID(id string) (*models.Listing, error) {
	var listing models.Listing
	err := d.Bun.NewSelect().
		Model(&listing).
		Where("listing_id = ?", id).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (d *DB) CreateListing(listing models.Listing) error {
	_, err := d.Bun.NewInsert().Model(&listing).Exec(context.Background())
	return err
}

func (d *DB) UpdateListingStatus(id string, status models.ListingStatus) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Listing)(nil)).
		Set("status = ?", status).
		Where("listing_id = ?", id).
		Exec(context.Background())
	return err
}

func (d *DB) GetListingsByStore(storeID string) ([]models.Listing, error) {
	var listings []models.Listing
	err := d.Bun.NewSelect().
		Model(&listings).
		Where("store_id = ?", storeID).
		Where("status = ?", models.ListingActive).
		Order("created_at DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return listings, nil
}
