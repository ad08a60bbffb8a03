package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"hobbydork/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
	// Bid deletes run in chunks of this size so a rerun with thousands of
	// bids never holds one giant transaction.
	BidDeleteBatchSize int
}

// ---------------- AUCTIONS ----------------

func (d *DB) CreateAuction(auction models.BlindBidAuction) error {
	_, err := d.Bun.NewInsert().Model(&auction).Exec(context.Background())
	return err
}

func (d *DB) GetAuctionByID(id string) (*models.BlindBidAuction, error) {
	var auction models.BlindBidAuction
	err := d.Bun.NewSelect().
		Model(&auction).
		Where("auction_id = ?", id).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &auction, nil
}

// UpdateAuction → update mutable auction fields
func (d *DB) UpdateAuction(auction models.BlindBidAuction) error {
	_, err := d.Bun.NewUpdate().
		Model(&auction).
		Column("title", "description", "image_url", "status", "flat_fee_paid",
			"stripe_payment_intent_id", "winner_bid_id", "winner_uid", "ends_at", "closed_at").
		Where("auction_id = ?", auction.AuctionID).
		Exec(context.Background())
	return err
}

// GetOpenAuctionsPastDeadline → auctions still OPEN whose deadline has passed
func (d *DB) GetOpenAuctionsPastDeadline(now time.Time) ([]models.BlindBidAuction, error) {
	var auctions []models.BlindBidAuction
	err := d.Bun.NewSelect().
		Model(&auctions).
		Where("status = ?", models.AuctionOpen).
		Where("ends_at <= ?", now).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return auctions, nil
}

func (d *DB) GetAuctionsBySeller(sellerUID string) ([]models.BlindBidAuction, error) {
	var auctions []models.BlindBidAuction
	err := d.Bun.NewSelect().
		Model(&auctions).
		Where("seller_uid = ?", sellerUID).
		Order("created_at DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return auctions, nil
}

// ---------------- BIDS ----------------

func (d *DB) CreateBid(bid models.Bid) error {
	_, err := d.Bun.NewInsert().Model(&bid).Exec(context.Background())
	return err
}

func (d *DB) GetBidByID(id string) (*models.Bid, error) {
	var bid models.Bid
	err := d.Bun.NewSelect().
		Model(&bid).
		Where("bid_id = ?", id).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

func (d *DB) GetBidsByAuction(auctionID string) ([]models.Bid, error) {
	var bids []models.Bid
	err := d.Bun.NewSelect().
		Model(&bids).
		Where("auction_id = ?", auctionID).
		Order("created_at ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return bids, nil
}

// GetHighestAuthorizedBid → winning candidate at close time. Ties break on
// earliest submission. Returns (nil, nil) when no authorized bids remain, so
// callers can tell an empty result from a failed query.
func (d *DB) GetHighestAuthorizedBid(auctionID string) (*models.Bid, error) {
	var bid models.Bid
	err := d.Bun.NewSelect().
		Model(&bid).
		Where("auction_id = ?", auctionID).
		Where("status = ?", models.BidAuthorized).
		Order("amount DESC", "created_at ASC").
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

func (d *DB) UpdateBidStatus(bidID string, status models.BidStatus) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Bid)(nil)).
		Set("status = ?", status).
		Where("bid_id = ?", bidID).
		Exec(context.Background())
	return err
}

// DeleteBidsForAuction removes all bids of an auction in fixed-size batches.
func (d *DB) DeleteBidsForAuction(auctionID string) (int, error) {
	batchSize := d.BidDeleteBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	deleted := 0
	for {
		var bidIDs []string
		err := d.Bun.NewSelect().
			Column("bid_id").
			Table("bids").
			Where("auction_id = ?", auctionID).
			Limit(batchSize).
			Scan(context.Background(), &bidIDs)
		if err != nil {
			return deleted, err
		}
		if len(bidIDs) == 0 {
			return deleted, nil
		}

		_, err = d.Bun.NewDelete().
			Model((*models.Bid)(nil)).
			Where("bid_id IN (?)", bun.In(bidIDs)).
			Exec(context.Background())
		if err != nil {
			return deleted, err
		}
		deleted += len(bidIDs)
	}
}
