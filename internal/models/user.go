package models

import (
	"time"

	"github.com/uptrace/bun"
)

type SellerTier string

const (
	TierBronze SellerTier = "BRONZE"
	TierSilver SellerTier = "SILVER"
	TierGold   SellerTier = "GOLD"
)

type SellerStatus string

const (
	SellerActive    SellerStatus = "ACTIVE"
	SellerPending   SellerStatus = "PENDING"
	SellerSuspended SellerStatus = "SUSPENDED"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	UserID          string       `bun:"user_id,pk" json:"user_id"`
	Email           string       `bun:"email" json:"email"`
	DisplayName     string       `bun:"display_name" json:"display_name"`
	IsAdmin         bool         `bun:"is_admin" json:"is_admin"`
	IsSeller        bool         `bun:"is_seller" json:"is_seller"`
	SellerStatus    SellerStatus `bun:"seller_status,nullzero" json:"seller_status,omitempty"`
	SellerTier      SellerTier   `bun:"seller_tier,nullzero" json:"seller_tier,omitempty"`
	StripeAccountID string       `bun:"stripe_account_id,nullzero" json:"stripe_account_id,omitempty"`
	CreatedAt       time.Time    `bun:"created_at" json:"created_at"`
}

// TierChange is the audit trail for admin tier mutations.
type TierChange struct {
	bun.BaseModel `bun:"table:tier_changes"`

	ChangeID  string     `bun:"change_id,pk" json:"change_id"`
	UserID    string     `bun:"user_id" json:"user_id"`
	OldTier   SellerTier `bun:"old_tier,nullzero" json:"old_tier,omitempty"`
	NewTier   SellerTier `bun:"new_tier" json:"new_tier"`
	ChangedBy string     `bun:"changed_by" json:"changed_by"`
	Reason    string     `bun:"reason,nullzero" json:"reason,omitempty"`
	CreatedAt time.Time  `bun:"created_at" json:"created_at"`
}

type SellerApplicationStatus string

const (
	ApplicationPending  SellerApplicationStatus = "PENDING"
	ApplicationApproved SellerApplicationStatus = "APPROVED"
	ApplicationRejected SellerApplicationStatus = "REJECTED"
)

type SellerApplication struct {
	bun.BaseModel `bun:"table:seller_applications"`

	ApplicationID string                  `bun:"application_id,pk" json:"application_id"`
	UserID        string                  `bun:"user_id" json:"user_id"`
	Status        SellerApplicationStatus `bun:"status" json:"status"`
	DecidedBy     string                  `bun:"decided_by,nullzero" json:"decided_by,omitempty"`
	DecidedAt     time.Time               `bun:"decided_at,nullzero" json:"decided_at,omitempty"`
	CreatedAt     time.Time               `bun:"created_at" json:"created_at"`
}

type Store struct {
	bun.BaseModel `bun:"table:stores"`

	StoreID        string    `bun:"store_id,pk" json:"store_id"`
	OwnerUID       string    `bun:"owner_uid" json:"owner_uid"`
	DisplayName    string    `bun:"display_name" json:"display_name"`
	IsSpotlighted  bool      `bun:"is_spotlighted" json:"is_spotlighted"`
	SpotlightUntil time.Time `bun:"spotlight_until,nullzero" json:"spotlight_until,omitempty"`
	CreatedAt      time.Time `bun:"created_at" json:"created_at"`
}
