package api

import (
	"encoding/json"
	"net/http"

	"hobbydork/internal/apperr"
	"hobbydork/internal/auth"
	"hobbydork/internal/models"
	"hobbydork/internal/seller"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	SellerService *seller.SellerService
}

// StartOnboarding handles POST /api/seller/onboarding
func (h *Handler) StartOnboarding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppBaseURL string `json:"app_base_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.SellerService.CreateStripeOnboarding(auth.From(r.Context()), req.AppBaseURL)
	if err != nil {
		http.Error(w, apperr.MessageOf(err), apperr.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// FinalizeSeller handles POST /api/seller/finalize
func (h *Handler) FinalizeSeller(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StoreName string `json:"store_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.SellerService.FinalizeSeller(auth.From(r.Context()), req.StoreName)
	if err != nil {
		http.Error(w, apperr.MessageOf(err), apperr.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetAccountStatus handles GET /api/seller/account/{accountId}
func (h *Handler) GetAccountStatus(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	info, err := h.SellerService.GetAccountStatus(auth.From(r.Context()), accountID)
	if err != nil {
		http.Error(w, apperr.MessageOf(err), apperr.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

// GetPayouts handles GET /api/seller/payouts/{accountId}
func (h *Handler) GetPayouts(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	payouts, err := h.SellerService.GetPayouts(auth.From(r.Context()), accountID)
	if err != nil {
		http.Error(w, apperr.MessageOf(err), apperr.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payouts)
}

// Apply handles POST /api/seller/apply
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	app, err := h.SellerService.ApplyAsSeller(auth.From(r.Context()))
	if err != nil {
		http.Error(w, apperr.MessageOf(err), apperr.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(app)
}

// DecideApplication handles POST /api/admin/seller-applications/{applicationId}
func (h *Handler) DecideApplication(w http.ResponseWriter, r *http.Request) {
	applicationID := chi.URLParam(r, "applicationId")

	var req struct {
		Approve bool `json:"approve"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.SellerService.DecideApplication(auth.From(r.Context()), applicationID, req.Approve); err != nil {
		http.Error(w, apperr.MessageOf(err), apperr.HTTPStatus(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"Application decided"}`))
}

// SetTier handles POST /api/admin/users/{userId}/tier
func (h *Handler) SetTier(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req struct {
		Tier   models.SellerTier `json:"tier"`
		Reason string            `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.SellerService.AdminSetTier(auth.From(r.Context()), userID, req.Tier, req.Reason); err != nil {
		http.Error(w, apperr.MessageOf(err), apperr.HTTPStatus(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"Tier updated"}`))
}
