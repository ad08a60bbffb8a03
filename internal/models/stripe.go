package models

// Payment intent metadata keys used to classify webhook events. The webhook
// dispatcher checks these in priority order: spotlight, auction fee, order.
const (
	MetaSpotlightStoreID = "spotlight_store_id"
	MetaAuctionID        = "auction_id"
	MetaSellerUID        = "seller_uid"
	MetaOrderID          = "order_id"
	MetaBuyerUID         = "buyer_uid"
	MetaBidderUID        = "bidder_uid"
	MetaType             = "type"

	IntentTypeBlindBidderListing = "blind_bidder_listing"
	IntentTypeBlindBidderBid     = "blind_bidder_bid"
)

// StripeAccountInfo mirrors the subset of a Connect account the seller
// dashboard needs.
type StripeAccountInfo struct {
	Email            string `json:"email"`
	DetailsSubmitted bool   `json:"details_submitted"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	DashboardURL     string `json:"dashboardUrl,omitempty"`
}

type StripePayout struct {
	PayoutID    string `json:"payout_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	ArrivalDate int64  `json:"arrival_date"`
}

type StripeBalance struct {
	AvailableCents int64 `json:"available_cents"`
	PendingCents   int64 `json:"pending_cents"`
}

type StripePayoutsResponse struct {
	Balance StripeBalance  `json:"balance"`
	Payouts []StripePayout `json:"payouts"`
}

type OnboardingResponse struct {
	URL string `json:"url"`
}

type FinalizeSellerResponse struct {
	OK      bool   `json:"ok"`
	StoreID string `json:"storeId"`
}
