package order

import (
	"encoding/json"
	"fmt"
	"time"

	"hobbydork/internal/apperr"
	"hobbydork/internal/auth"
	"hobbydork/internal/logger"
	"hobbydork/internal/models"
)

// allowedUpdateFields is the full set a PATCH may touch. Anything else in
// the request body rejects the whole update.
var allowedUpdateFields = map[string]bool{
	"status":             true,
	"tracking_number":    true,
	"shipping_label_url": true,
	"estimated_delivery": true,
	"feedback":           true,
	"updated_at":         true,
}

// validTransitions is the explicit order status graph. A requested status
// not reachable from the current one is a failed precondition, even when
// both statuses are individually valid.
var validTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPendingPayment: {models.OrderPaid, models.OrderCancelled},
	models.OrderPaid:           {models.OrderShipped, models.OrderCancelled, models.OrderRefunded, models.OrderDisputed},
	models.OrderShipped:        {models.OrderDelivered, models.OrderDisputed},
	models.OrderDisputed:       {models.OrderRefunded, models.OrderCancelled, models.OrderShipped},
	models.OrderDelivered:      {},
	models.OrderCancelled:      {},
	models.OrderRefunded:       {},
}

type DBLayer interface {
	GetOrderByID(id string) (*models.Order, error)
	GetOrdersByBuyer(buyerUID string) ([]models.Order, error)
	GetOrdersBySeller(sellerUID string) ([]models.Order, error)
	CreateOrder(order models.Order) error
	UpdateOrderFields(id string, updates map[string]interface{}) error
	GetOrderByPaymentIntent(paymentIntentID string) (*models.Order, error)
	InsertAuditEntry(entry models.OrderAuditEntry) error
	GetAuditEntriesByOrder(orderID string) ([]models.OrderAuditEntry, error)
	InsertErrorLog(entry models.ErrorLogEntry) error
}

type Notifier interface {
	OrderStatusChanged(order *models.Order, status models.OrderStatus)
}

type OrderService struct {
	DB     DBLayer
	Notify Notifier
	Log    *logger.Logger
}

func NewOrderService(db DBLayer, notify Notifier, log *logger.Logger) *OrderService {
	return &OrderService{DB: db, Notify: notify, Log: log}
}

func (s *OrderService) GetOrder(id string) (*models.Order, error) {
	order, err := s.DB.GetOrderByID(id)
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, fmt.Sprintf("order %s not found", id), err)
	}
	return order, nil
}

// UpdateOrder applies a caller-supplied field map to an order. The caller
// must be the buyer or the seller; SHIPPED is seller-only and DELIVERED is
// buyer-only. Failures are written to the error log before they surface.
func (s *OrderService) UpdateOrder(caller auth.Identity, orderID string, updates map[string]interface{}) (*models.Order, error) {
	order, err := s.update(caller, orderID, updates)
	if err != nil {
		s.logFailure("UpdateOrder", orderID, caller.UserID, err)
		return nil, err
	}
	return order, nil
}

func (s *OrderService) update(caller auth.Identity, orderID string, updates map[string]interface{}) (*models.Order, error) {
	if caller.UserID == "" {
		return nil, apperr.New(apperr.Unauthenticated, "sign in to update orders")
	}
	if len(updates) == 0 {
		return nil, apperr.New(apperr.InvalidArgument, "no fields to update")
	}

	for field := range updates {
		if !allowedUpdateFields[field] {
			return nil, apperr.Newf(apperr.PermissionDenied, "field %q cannot be updated", field)
		}
	}

	order, err := s.DB.GetOrderByID(orderID)
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, fmt.Sprintf("order %s not found", orderID), err)
	}

	role := ""
	switch caller.UserID {
	case order.BuyerUID:
		role = "buyer"
	case order.SellerUID:
		role = "seller"
	default:
		s.Log.LogSecurity("ORDER_ACCESS", fmt.Sprintf("user %s is neither buyer nor seller of order %s", caller.UserID, orderID))
		return nil, apperr.New(apperr.PermissionDenied, "only the buyer or seller can update this order")
	}

	var newStatus models.OrderStatus
	if raw, ok := updates["status"]; ok {
		str, ok := raw.(string)
		if !ok {
			return nil, apperr.New(apperr.InvalidArgument, "status must be a string")
		}
		newStatus = models.OrderStatus(str)

		if !models.ValidOrderStatuses[newStatus] {
			return nil, apperr.Newf(apperr.InvalidArgument, "invalid order status %q", str)
		}
		if newStatus == models.OrderShipped && role != "seller" {
			return nil, apperr.New(apperr.PermissionDenied, "only the seller can mark an order shipped")
		}
		if newStatus == models.OrderDelivered && role != "buyer" {
			return nil, apperr.New(apperr.PermissionDenied, "only the buyer can mark an order delivered")
		}
		if !transitionAllowed(order.Status, newStatus) {
			return nil, apperr.Newf(apperr.FailedPrecondition,
				"cannot move order from %s to %s", order.Status, newStatus)
		}
	}

	updates["updated_at"] = time.Now()

	if err := s.DB.UpdateOrderFields(orderID, updates); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to update order", err)
	}

	snapshot, _ := json.Marshal(updates)
	if err := s.DB.InsertAuditEntry(models.OrderAuditEntry{
		Action:    "order_update",
		OrderID:   orderID,
		UpdatedBy: caller.UserID,
		Role:      role,
		Updates:   string(snapshot),
	}); err != nil {
		s.Log.Error("ORDER", fmt.Sprintf("Failed to write audit entry for %s: %v", orderID, err))
	}

	s.Log.LogOrder("UPDATE", orderID, fmt.Sprintf("%s(%s) applied %d field(s)", caller.UserID, role, len(updates)))

	if newStatus != "" {
		s.Notify.OrderStatusChanged(order, newStatus)
	}

	return s.DB.GetOrderByID(orderID)
}

// MarkPaid flips a pending order to PAID; called from the Stripe webhook
// once checkout completes, never from a user-facing handler.
func (s *OrderService) MarkPaid(orderID, paymentIntentID string) error {
	order, err := s.DB.GetOrderByID(orderID)
	if err != nil {
		return apperr.Wrap(apperr.NotFound, fmt.Sprintf("order %s not found", orderID), err)
	}
	if order.Status == models.OrderPaid {
		s.Log.LogOrder("PAYMENT", orderID, "already marked paid, skipping")
		return nil
	}
	if !transitionAllowed(order.Status, models.OrderPaid) {
		return apperr.Newf(apperr.FailedPrecondition,
			"cannot mark order paid from status %s", order.Status)
	}

	updates := map[string]interface{}{
		"status":     models.OrderPaid,
		"updated_at": time.Now(),
	}
	if paymentIntentID != "" {
		updates["payment_intent_id"] = paymentIntentID
	}
	if err := s.DB.UpdateOrderFields(orderID, updates); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to mark order paid", err)
	}

	snapshot, _ := json.Marshal(updates)
	if err := s.DB.InsertAuditEntry(models.OrderAuditEntry{
		Action:    "order_paid",
		OrderID:   orderID,
		UpdatedBy: "stripe-webhook",
		Role:      "system",
		Updates:   string(snapshot),
	}); err != nil {
		s.Log.Error("ORDER", fmt.Sprintf("Failed to write audit entry for %s: %v", orderID, err))
	}

	s.Log.LogOrder("PAYMENT", orderID, "marked paid")
	return nil
}

// ListPurchases returns the caller's orders as a buyer, ListSales as a
// seller.
func (s *OrderService) ListPurchases(caller auth.Identity) ([]models.Order, error) {
	if caller.UserID == "" {
		return nil, apperr.New(apperr.Unauthenticated, "sign in first")
	}
	orders, err := s.DB.GetOrdersByBuyer(caller.UserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to load orders", err)
	}
	return orders, nil
}

func (s *OrderService) ListSales(caller auth.Identity) ([]models.Order, error) {
	if caller.UserID == "" {
		return nil, apperr.New(apperr.Unauthenticated, "sign in first")
	}
	orders, err := s.DB.GetOrdersBySeller(caller.UserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to load orders", err)
	}
	return orders, nil
}

// GetAuditTrail returns the mutation history of an order. Admin only; the
// trail includes both parties' actions, so neither party gets it raw.
func (s *OrderService) GetAuditTrail(caller auth.Identity, orderID string) ([]models.OrderAuditEntry, error) {
	if caller.UserID == "" {
		return nil, apperr.New(apperr.Unauthenticated, "sign in first")
	}
	if !caller.Admin {
		s.Log.LogSecurity("AUDIT_ACCESS", fmt.Sprintf("non-admin %s requested audit trail of %s", caller.UserID, orderID))
		return nil, apperr.New(apperr.PermissionDenied, "admin only")
	}
	if _, err := s.DB.GetOrderByID(orderID); err != nil {
		return nil, apperr.Wrap(apperr.NotFound, fmt.Sprintf("order %s not found", orderID), err)
	}
	entries, err := s.DB.GetAuditEntriesByOrder(orderID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to load audit trail", err)
	}
	return entries, nil
}

// FindByPaymentIntent resolves a Stripe payment intent id to its order, for
// support tooling chasing a webhook. Admin only.
func (s *OrderService) FindByPaymentIntent(caller auth.Identity, paymentIntentID string) (*models.Order, error) {
	if caller.UserID == "" {
		return nil, apperr.New(apperr.Unauthenticated, "sign in first")
	}
	if !caller.Admin {
		return nil, apperr.New(apperr.PermissionDenied, "admin only")
	}
	if paymentIntentID == "" {
		return nil, apperr.New(apperr.InvalidArgument, "payment intent id is required")
	}
	order, err := s.DB.GetOrderByPaymentIntent(paymentIntentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, fmt.Sprintf("no order for intent %s", paymentIntentID), err)
	}
	return order, nil
}

func transitionAllowed(from, to models.OrderStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// logFailure persists the error before it surfaces to the client.
func (s *OrderService) logFailure(operation, targetID, callerUID string, err error) {
	s.Log.Error("ORDER", fmt.Sprintf("[%s] %s - %v", operation, targetID, err))
	if dbErr := s.DB.InsertErrorLog(models.ErrorLogEntry{
		Operation: operation,
		TargetID:  targetID,
		CallerUID: callerUID,
		Message:   err.Error(),
	}); dbErr != nil {
		s.Log.Error("ORDER", fmt.Sprintf("Failed to persist error log for %s: %v", targetID, dbErr))
	}
}
