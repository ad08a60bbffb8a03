package handler

import (
	"encoding/json"
	"net/http"

	"hobbydork/internal/apperr"
	"hobbydork/internal/auth"
	"hobbydork/internal/listing"
	"hobbydork/internal/logger"
	"hobbydork/internal/models"

	"github.com/stripe/stripe-go/v82"
)

type CheckoutGateway interface {
	CreateOrderCheckoutSession(req models.CheckoutSessionRequest, buyerUID string) (*stripe.CheckoutSession, error)
	CreateAuctionFeeCheckoutSession(req models.AuctionFeeCheckoutRequest, sellerUID string) (*stripe.CheckoutSession, error)
}

type AuctionLookup interface {
	GetAuction(id string) (*models.BlindBidAuction, error)
}

// CheckoutHandler creates hosted Stripe checkout sessions. Amounts always
// come from server-side records; client-supplied amounts are ignored.
type CheckoutHandler struct {
	Listings *listing.ListingService
	Auctions AuctionLookup
	Stripe   CheckoutGateway
	Log      *logger.Logger
}

// CreateOrderSession handles POST /api/checkout/session. The body names a
// listing; the server opens the pending order and prices the session from
// the listing row.
func (h *CheckoutHandler) CreateOrderSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ListingID  string `json:"listing_id"`
		AppBaseURL string `json:"app_base_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	caller := auth.From(r.Context())
	order, err := h.Listings.StartOrder(caller, req.ListingID)
	if err != nil {
		http.Error(w, apperr.MessageOf(err), apperr.HTTPStatus(err))
		return
	}

	lst, err := h.Listings.GetListing(req.ListingID)
	if err != nil {
		http.Error(w, apperr.MessageOf(err), apperr.HTTPStatus(err))
		return
	}

	session, err := h.Stripe.CreateOrderCheckoutSession(models.CheckoutSessionRequest{
		OrderID:      order.OrderID,
		ListingTitle: lst.Title,
		AmountCents:  order.AmountCents,
		AppBaseURL:   req.AppBaseURL,
	}, caller.UserID)
	if err != nil {
		http.Error(w, "Failed to create checkout session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.CheckoutSessionResponse{
		SessionID: session.ID,
		URL:       session.URL,
	})
}

// CreateAuctionFeeSession handles POST /api/checkout/auction-fee, the hosted
// alternative to the embedded listing fee intent. Seller only.
func (h *CheckoutHandler) CreateAuctionFeeSession(w http.ResponseWriter, r *http.Request) {
	var req models.AuctionFeeCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	caller := auth.From(r.Context())
	auction, err := h.Auctions.GetAuction(req.AuctionID)
	if err != nil {
		http.Error(w, apperr.MessageOf(err), apperr.HTTPStatus(err))
		return
	}
	if auction.SellerUID != caller.UserID {
		http.Error(w, "Not your auction", http.StatusForbidden)
		return
	}
	if auction.Status != models.AuctionPendingPayment {
		http.Error(w, "Auction fee is not payable", http.StatusPreconditionFailed)
		return
	}

	// Price from the auction row, not the request.
	req.AuctionTitle = auction.Title
	req.AmountCents = auction.AuctionFeeCents

	session, err := h.Stripe.CreateAuctionFeeCheckoutSession(req, caller.UserID)
	if err != nil {
		http.Error(w, "Failed to create checkout session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.CheckoutSessionResponse{
		SessionID: session.ID,
		URL:       session.URL,
	})
}
