package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"hobbydork/internal/apperr"
	"hobbydork/internal/logger"
	"hobbydork/internal/models"
	"hobbydork/internal/payment/storage"

	"github.com/go-redis/redis/v8"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// WebhookError represents an error that occurred during webhook processing
type WebhookError struct {
	Category      string // "configuration", "validation", "processing"
	StatusCode    int    // HTTP status code
	PublicError   string // Safe to expose to clients
	InternalError string // Detailed error for logs only
	OriginalErr   error  // Underlying error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

type OrderFlow interface {
	MarkPaid(orderID, paymentIntentID string) error
	GetOrder(id string) (*models.Order, error)
}

type AuctionFlow interface {
	MarkFeePaid(auctionID string) (*models.BlindBidAuction, error)
}

type SpotlightFlow interface {
	ActivateFromCheckout(storeID string) (*models.SpotlightSlot, error)
}

type ListingFlow interface {
	MarkSold(listingID string) error
}

// WebhookHandler verifies, deduplicates and dispatches incoming Stripe
// events. Dispatch order on a succeeded intent: spotlight purchase, auction
// listing fee, order payment.
type WebhookHandler struct {
	secret    string
	events    storage.EventStore
	redis     *redis.Client
	orders    OrderFlow
	auctions  AuctionFlow
	spotlight SpotlightFlow
	listings  ListingFlow
	log       *logger.Logger
}

func NewWebhookHandler(secret string, events storage.EventStore, redisClient *redis.Client,
	orders OrderFlow, auctions AuctionFlow, spotlight SpotlightFlow, listings ListingFlow,
	log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		secret:    secret,
		events:    events,
		redis:     redisClient,
		orders:    orders,
		auctions:  auctions,
		spotlight: spotlight,
		listings:  listings,
		log:       log,
	}
}

// HandleStripeWebhook is mounted at POST /webhook/stripe without auth
// middleware; the signature header is the authentication.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	message, werr := h.process(r)
	if werr != nil {
		h.log.Error("WEBHOOK", werr.InternalError)
		http.Error(w, werr.PublicError, werr.StatusCode)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(message))
}

func (h *WebhookHandler) process(r *http.Request) (string, *WebhookError) {
	if h.secret == "" {
		return "", &WebhookError{
			Category:      "configuration",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: "Stripe webhook secret is not configured",
		}
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return "", &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook payload",
			InternalError: fmt.Sprintf("Failed to read webhook payload: %v", err),
			OriginalErr:   err,
		}
	}

	// Verify signature with API version mismatch tolerance
	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), h.secret, opts)
	if err != nil {
		return "", &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook signature",
			InternalError: fmt.Sprintf("Webhook signature verification failed: %v", err),
			OriginalErr:   err,
		}
	}

	h.log.LogWebhook(string(event.Type), fmt.Sprintf("Received event %s", event.ID))

	// The ledger row is written only after dispatch succeeds, so a replay of
	// a processed event short-circuits here while a retry of a failed
	// delivery falls through and is dispatched again. Redis is a fast-path
	// cache of the same fact, populated on success.
	dedupKey := "webhook_processed:stripe:" + event.ID
	if h.redis != nil {
		n, err := h.redis.Exists(context.Background(), dedupKey).Result()
		if err != nil {
			h.log.Warn("WEBHOOK", fmt.Sprintf("Redis dedup check failed for %s: %v", event.ID, err))
		} else if n > 0 {
			h.log.LogWebhook(string(event.Type), fmt.Sprintf("Event %s already processed (redis)", event.ID))
			return "Already processed", nil
		}
	}

	processed, err := h.events.WasProcessed("stripe", event.ID)
	if err != nil {
		return "", &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Failed to record event",
			InternalError: fmt.Sprintf("Failed to check event %s: %v", event.ID, err),
			OriginalErr:   err,
		}
	}
	if processed {
		h.log.LogWebhook(string(event.Type), fmt.Sprintf("Event %s already processed", event.ID))
		h.cacheProcessed(dedupKey)
		return "Already processed", nil
	}

	message, werr := h.dispatch(&event)
	if werr != nil {
		return "", werr
	}

	// Downstream handlers are idempotent, so an unrecorded success only
	// costs a redundant no-op dispatch on the next delivery.
	if _, err := h.events.MarkProcessed("stripe", event.ID, string(event.Type)); err != nil {
		h.log.Error("WEBHOOK", fmt.Sprintf("Failed to record event %s after dispatch: %v", event.ID, err))
	} else {
		h.cacheProcessed(dedupKey)
	}

	return message, nil
}

// cacheProcessed mirrors the ledger row into Redis so replays skip the
// Postgres lookup. Best effort.
func (h *WebhookHandler) cacheProcessed(key string) {
	if h.redis == nil {
		return
	}
	if err := h.redis.Set(context.Background(), key, "1", 24*time.Hour).Err(); err != nil {
		h.log.Warn("WEBHOOK", fmt.Sprintf("Failed to cache processed event: %v", err))
	}
}

func (h *WebhookHandler) dispatch(event *stripe.Event) (string, *WebhookError) {
	switch event.Type {
	case "payment_intent.succeeded":
		var paymentIntent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
			return "", &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid event data",
				InternalError: fmt.Sprintf("Failed to unmarshal payment intent: %v", err),
				OriginalErr:   err,
			}
		}
		return h.dispatchSucceededIntent(&paymentIntent)

	case "payment_intent.payment_failed":
		var paymentIntent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
			return "", &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid event data",
				InternalError: fmt.Sprintf("Failed to unmarshal payment intent: %v", err),
				OriginalErr:   err,
			}
		}
		// Nothing to roll back: orders stay PENDING_PAYMENT for a retry
		// and auctions never opened.
		h.log.LogWebhook(string(event.Type), fmt.Sprintf("Payment failed for intent %s", paymentIntent.ID))
		return "Received", nil

	default:
		h.log.LogWebhook(string(event.Type), "Unhandled event type")
		return "Received", nil
	}
}

func (h *WebhookHandler) dispatchSucceededIntent(pi *stripe.PaymentIntent) (string, *WebhookError) {
	// Branch 1: spotlight purchase
	if storeID, ok := pi.Metadata[models.MetaSpotlightStoreID]; ok && storeID != "" {
		if _, err := h.spotlight.ActivateFromCheckout(storeID); err != nil {
			if apperr.CodeOf(err) == apperr.NotFound {
				return "", &WebhookError{
					Category:      "processing",
					StatusCode:    http.StatusNotFound,
					PublicError:   "Store not found",
					InternalError: fmt.Sprintf("Spotlight store %s not found: %v", storeID, err),
					OriginalErr:   err,
				}
			}
			return "", &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusInternalServerError,
				PublicError:   "Failed to activate spotlight",
				InternalError: fmt.Sprintf("Failed to activate spotlight for %s: %v", storeID, err),
				OriginalErr:   err,
			}
		}
		return "Spotlight activated", nil
	}

	// Branch 2: auction listing fee
	if auctionID, ok := pi.Metadata[models.MetaAuctionID]; ok && auctionID != "" &&
		pi.Metadata[models.MetaType] == models.IntentTypeBlindBidderListing {
		if _, err := h.auctions.MarkFeePaid(auctionID); err != nil {
			return "", &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusInternalServerError,
				PublicError:   "Failed to process auction fee",
				InternalError: fmt.Sprintf("Failed to open auction %s: %v", auctionID, err),
				OriginalErr:   err,
			}
		}
		return "Auction fee processed", nil
	}

	// Branch 3: order payment
	if orderID, ok := pi.Metadata[models.MetaOrderID]; ok && orderID != "" {
		if err := h.orders.MarkPaid(orderID, pi.ID); err != nil {
			return "", &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusInternalServerError,
				PublicError:   "Failed to process payment",
				InternalError: fmt.Sprintf("Failed to mark order %s paid: %v", orderID, err),
				OriginalErr:   err,
			}
		}
		if order, err := h.orders.GetOrder(orderID); err == nil && order.ListingID != "" {
			if err := h.listings.MarkSold(order.ListingID); err != nil {
				h.log.Error("WEBHOOK", fmt.Sprintf("Failed to mark listing %s sold: %v", order.ListingID, err))
			}
		}
		return "Order payment processed", nil
	}

	h.log.LogWebhook("payment_intent.succeeded", fmt.Sprintf("Intent %s carries no known metadata", pi.ID))
	return "Received", nil
}
