package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderPaid           OrderStatus = "PAID"
	OrderShipped        OrderStatus = "SHIPPED"
	OrderDelivered      OrderStatus = "DELIVERED"
	OrderCancelled      OrderStatus = "CANCELLED"
	OrderRefunded       OrderStatus = "REFUNDED"
	OrderDisputed       OrderStatus = "DISPUTED"
)

// ValidOrderStatuses is the full set a caller may request.
var ValidOrderStatuses = map[OrderStatus]bool{
	OrderPendingPayment: true,
	OrderPaid:           true,
	OrderShipped:        true,
	OrderDelivered:      true,
	OrderCancelled:      true,
	OrderRefunded:       true,
	OrderDisputed:       true,
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID           string      `bun:"order_id,pk" json:"order_id"`
	BuyerUID          string      `bun:"buyer_uid" json:"buyer_uid"`
	SellerUID         string      `bun:"seller_uid" json:"seller_uid"`
	ListingID         string      `bun:"listing_id,nullzero" json:"listing_id,omitempty"`
	Status            OrderStatus `bun:"status" json:"status"`
	AmountCents       int64       `bun:"amount_cents" json:"amount_cents"`
	TrackingNumber    string      `bun:"tracking_number,nullzero" json:"tracking_number,omitempty"`
	ShippingLabelURL  string      `bun:"shipping_label_url,nullzero" json:"shipping_label_url,omitempty"`
	EstimatedDelivery time.Time   `bun:"estimated_delivery,nullzero" json:"estimated_delivery,omitempty"`
	Feedback          string      `bun:"feedback,nullzero" json:"feedback,omitempty"`
	PaymentIntentID   string      `bun:"payment_intent_id,nullzero" json:"payment_intent_id,omitempty"`
	CreatedAt         time.Time   `bun:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

type CheckoutSessionRequest struct {
	OrderID      string `json:"order_id"`
	ListingTitle string `json:"listing_title"`
	AmountCents  int64  `json:"amount_cents"`
	AppBaseURL   string `json:"app_base_url"`
}

type CheckoutSessionResponse struct {
	SessionID string `json:"session_id,omitempty"`
	URL       string `json:"url"`
}
