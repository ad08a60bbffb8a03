package api

import (
	"encoding/json"
	"net/http"

	"hobbydork/internal/apperr"
	"hobbydork/internal/auction"
	"hobbydork/internal/auth"
	"hobbydork/internal/models"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	AuctionService *auction.AuctionService
}

// CreateAuction handles POST /api/auctions
func (h *Handler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.AuctionService.CreateAuction(auth.From(r.Context()), req)
	if err != nil {
		http.Error(w, apperr.MessageOf(err), apperr.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// GetAuction handles GET /api/auctions/{auctionId}. Bid amounts stay hidden
// while the auction is open; only the seller's own view includes them.
func (h *Handler) GetAuction(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionId")

	a, err := h.AuctionService.GetAuction(auctionID)
	if err != nil {
		http.Error(w, "Auction not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(a)
}

// ListMine handles GET /api/auctions/mine
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	auctions, err := h.AuctionService.ListSellerAuctions(auth.From(r.Context()))
	if err != nil {
		http.Error(w, apperr.MessageOf(err), apperr.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(auctions)
}

// GetBid handles GET /api/auctions/{auctionId}/bids/{bidId}
func (h *Handler) GetBid(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionId")
	bidID := chi.URLParam(r, "bidId")

	bid, err := h.AuctionService.GetBid(auth.From(r.Context()), auctionID, bidID)
	if err != nil {
		http.Error(w, apperr.MessageOf(err), apperr.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bid)
}

// SubmitBid handles POST /api/auctions/{auctionId}/bids
func (h *Handler) SubmitBid(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionId")

	var req models.SubmitBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.AuctionService.SubmitBid(auth.From(r.Context()), auctionID, req)
	if err != nil {
		http.Error(w, apperr.MessageOf(err), apperr.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// SetImage handles PUT /api/auctions/{auctionId}/image
func (h *Handler) SetImage(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionId")

	var req models.AuctionImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.AuctionService.SetAuctionImage(auth.From(r.Context()), auctionID, req.ImageURL); err != nil {
		http.Error(w, apperr.MessageOf(err), apperr.HTTPStatus(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"Auction image updated"}`))
}

// RerunAuction handles POST /api/admin/auctions/{auctionId}/rerun
func (h *Handler) RerunAuction(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionId")

	var req models.RerunAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.AuctionService.AdminRerunAuction(auth.From(r.Context()), auctionID, req); err != nil {
		http.Error(w, apperr.MessageOf(err), apperr.HTTPStatus(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"Auction rerun scheduled"}`))
}
