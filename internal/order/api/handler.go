package api

import (
	"encoding/json"
	"net/http"
	"time"

	"hobbydork/internal/apperr"
	"hobbydork/internal/auth"
	"hobbydork/internal/models"
	"hobbydork/internal/order"
	"hobbydork/internal/order/qr"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	OrderService *order.OrderService
	QR           *qr.QRGenerator
}

// UpdateOrder handles PATCH /api/orders/{orderId}. The body is a bare field
// map; anything outside the allow-list rejects the whole request.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := h.OrderService.UpdateOrder(auth.From(r.Context()), orderID, updates)
	if err != nil {
		http.Error(w, apperr.MessageOf(err), apperr.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// ListPurchases handles GET /api/orders/purchases, ListSales handles
// GET /api/orders/sales. Each returns only the caller's side.
func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	orders, err := h.OrderService.ListPurchases(auth.From(r.Context()))
	if err != nil {
		http.Error(w, apperr.MessageOf(err), apperr.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}

func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	orders, err := h.OrderService.ListSales(auth.From(r.Context()))
	if err != nil {
		http.Error(w, apperr.MessageOf(err), apperr.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}

// AuditTrail handles GET /api/admin/orders/{orderId}/audit.
func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	entries, err := h.OrderService.GetAuditTrail(auth.From(r.Context()), orderID)
	if err != nil {
		http.Error(w, apperr.MessageOf(err), apperr.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// FindByIntent handles GET /api/admin/orders/by-intent/{intentId}, mapping a
// Stripe payment intent back to its order.
func (h *Handler) FindByIntent(w http.ResponseWriter, r *http.Request) {
	intentID := chi.URLParam(r, "intentId")

	o, err := h.OrderService.FindByPaymentIntent(auth.From(r.Context()), intentID)
	if err != nil {
		http.Error(w, apperr.MessageOf(err), apperr.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(o)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	o, err := h.OrderService.GetOrder(orderID)
	if err != nil {
		http.Error(w, "Order not found", http.StatusNotFound)
		return
	}

	caller := auth.From(r.Context())
	if caller.UserID != o.BuyerUID && caller.UserID != o.SellerUID && !caller.Admin {
		http.Error(w, "Not your order", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(o)
}

// ReceiptQR returns a PNG QR code carrying the encrypted receipt for a paid
// order. Only the buyer can pull it.
func (h *Handler) ReceiptQR(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	o, err := h.OrderService.GetOrder(orderID)
	if err != nil {
		http.Error(w, "Order not found", http.StatusNotFound)
		return
	}

	caller := auth.From(r.Context())
	if caller.UserID != o.BuyerUID {
		http.Error(w, "Only the buyer can fetch the receipt", http.StatusForbidden)
		return
	}
	if o.Status == models.OrderPendingPayment || o.Status == models.OrderCancelled {
		http.Error(w, "Order has no receipt yet", http.StatusPreconditionFailed)
		return
	}

	png, err := h.QR.GenerateEncryptedQR(qr.Receipt{
		OrderID:     o.OrderID,
		BuyerUID:    o.BuyerUID,
		SellerUID:   o.SellerUID,
		AmountCents: o.AmountCents,
		IssuedAt:    time.Now(),
	})
	if err != nil {
		http.Error(w, "Failed to generate receipt QR", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
