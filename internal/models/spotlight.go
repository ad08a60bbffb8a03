package models

import (
	"time"

	"github.com/uptrace/bun"
)

// SpotlightSlot is a paid 7-day promotional window on a storefront, created
// transactionally from a completed checkout session.
type SpotlightSlot struct {
	bun.BaseModel `bun:"table:spotlight_slots"`

	SlotID    string    `bun:"slot_id,pk" json:"slot_id"`
	StoreID   string    `bun:"store_id" json:"store_id"`
	OwnerUID  string    `bun:"owner_uid" json:"owner_uid"`
	StartAt   time.Time `bun:"start_at" json:"start_at"`
	EndAt     time.Time `bun:"end_at" json:"end_at"`
	Active    bool      `bun:"active" json:"active"`
	CreatedAt time.Time `bun:"created_at" json:"created_at"`
}
