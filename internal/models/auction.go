package models

import (
	"time"

	"github.com/uptrace/bun"
)

type AuctionStatus string

const (
	// Auctions are persisted PENDING_PAYMENT and flipped to OPEN by the
	// webhook once the listing fee payment is confirmed.
	AuctionPendingPayment AuctionStatus = "PENDING_PAYMENT"
	AuctionOpen           AuctionStatus = "OPEN"
	AuctionClosed         AuctionStatus = "CLOSED"
)

type BlindBidAuction struct {
	bun.BaseModel `bun:"table:blind_bid_auctions"`

	AuctionID             string        `bun:"auction_id,pk" json:"auction_id"`
	SellerUID             string        `bun:"seller_uid" json:"seller_uid"`
	Title                 string        `bun:"title" json:"title"`
	Description           string        `bun:"description,nullzero" json:"description,omitempty"`
	ImageURL              string        `bun:"image_url,nullzero" json:"image_url,omitempty"`
	Status                AuctionStatus `bun:"status" json:"status"`
	FlatFeePaid           bool          `bun:"flat_fee_paid" json:"flat_fee_paid"`
	StripePaymentIntentID string        `bun:"stripe_payment_intent_id,nullzero" json:"stripe_payment_intent_id,omitempty"`
	SellerTier            SellerTier    `bun:"seller_tier" json:"seller_tier"`
	AuctionFeeCents       int64         `bun:"auction_fee_cents" json:"auction_fee_cents"`
	WinnerBidID           string        `bun:"winner_bid_id,nullzero" json:"winner_bid_id,omitempty"`
	WinnerUID             string        `bun:"winner_uid,nullzero" json:"winner_uid,omitempty"`
	CreatedAt             time.Time     `bun:"created_at" json:"created_at"`
	EndsAt                time.Time     `bun:"ends_at" json:"ends_at"`
	ClosedAt              time.Time     `bun:"closed_at,nullzero" json:"closed_at,omitempty"`
}

type BidStatus string

const (
	// Bid payments are authorized at submit time and captured only if the
	// bid wins; losing authorizations are released at close.
	BidAuthorized BidStatus = "AUTHORIZED"
	BidCaptured   BidStatus = "CAPTURED"
	BidReleased   BidStatus = "RELEASED"
)

type Bid struct {
	bun.BaseModel `bun:"table:bids"`

	BidID                 string    `bun:"bid_id,pk" json:"bid_id"`
	AuctionID             string    `bun:"auction_id" json:"auction_id"`
	BidderUID             string    `bun:"bidder_uid" json:"bidder_uid"`
	Amount                float64   `bun:"amount" json:"amount"`
	Status                BidStatus `bun:"status" json:"status"`
	StripePaymentIntentID string    `bun:"stripe_payment_intent_id,nullzero" json:"stripe_payment_intent_id,omitempty"`
	CreatedAt             time.Time `bun:"created_at" json:"created_at"`
}

type CreateAuctionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url,omitempty"`
}

type CreateAuctionResponse struct {
	AuctionID                 string `json:"auction_id"`
	PaymentIntentClientSecret string `json:"payment_intent_client_secret"`
}

type SubmitBidRequest struct {
	Amount float64 `json:"amount"`
}

type SubmitBidResponse struct {
	BidID                     string `json:"bid_id"`
	PaymentIntentClientSecret string `json:"payment_intent_client_secret"`
}

type AuctionImageRequest struct {
	ImageURL string `json:"image_url"`
}

type RerunAuctionRequest struct {
	NewEndsAt time.Time `json:"new_ends_at"`
	ClearBids bool      `json:"clear_bids,omitempty"`
}

type AuctionFeeCheckoutRequest struct {
	AuctionID    string `json:"auction_id"`
	AuctionTitle string `json:"auction_title"`
	AmountCents  int64  `json:"amount_cents"`
	AppBaseURL   string `json:"app_base_url"`
}
