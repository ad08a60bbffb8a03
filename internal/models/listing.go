package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ListingStatus string

const (
	ListingActive  ListingStatus = "ACTIVE"
	ListingSold    ListingStatus = "SOLD"
	ListingRemoved ListingStatus = "REMOVED"
)

type Listing struct {
	bun.BaseModel `bun:"table:listings"`

	ListingID   string        `bun:"listing_id,pk" json:"listing_id"`
	StoreID     string        `bun:"store_id" json:"store_id"`
	SellerUID   string        `bun:"seller_uid" json:"seller_uid"`
	Title       string        `bun:"title" json:"title"`
	Description string        `bun:"description,nullzero" json:"description,omitempty"`
	Category    string        `bun:"category,nullzero" json:"category,omitempty"`
	PriceCents  int64         `bun:"price_cents" json:"price_cents"`
	ImageURL    string        `bun:"image_url,nullzero" json:"image_url,omitempty"`
	Status      ListingStatus `bun:"status" json:"status"`
	CreatedAt   time.Time     `bun:"created_at" json:"created_at"`
}
