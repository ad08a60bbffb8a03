package order_test

import (
	"errors"
	"testing"
	"time"

	"hobbydork/internal/apperr"
	"hobbydork/internal/auth"
	"hobbydork/internal/logger"
	"hobbydork/internal/models"
	"hobbydork/internal/order"
)

// Mock implementations for testing

type MockOrderDB struct {
	orders       map[string]*models.Order
	auditEntries []models.OrderAuditEntry
	errorLogs    []models.ErrorLogEntry
	shouldFailOn string
	errorMsg     string
}

func NewMockOrderDB() *MockOrderDB {
	return &MockOrderDB{
		orders: make(map[string]*models.Order),
	}
}

func (m *MockOrderDB) GetOrderByID(id string) (*models.Order, error) {
	if m.shouldFailOn == "GetOrderByID" {
		return nil, errors.New(m.errorMsg)
	}
	o, exists := m.orders[id]
	if !exists {
		return nil, errors.New("order not found")
	}
	return o, nil
}

func (m *MockOrderDB) GetOrdersByBuyer(buyerUID string) ([]models.Order, error) {
	if m.shouldFailOn == "GetOrdersByBuyer" {
		return nil, errors.New(m.errorMsg)
	}
	var out []models.Order
	for _, o := range m.orders {
		if o.BuyerUID == buyerUID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *MockOrderDB) GetOrdersBySeller(sellerUID string) ([]models.Order, error) {
	if m.shouldFailOn == "GetOrdersBySeller" {
		return nil, errors.New(m.errorMsg)
	}
	var out []models.Order
	for _, o := range m.orders {
		if o.SellerUID == sellerUID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *MockOrderDB) CreateOrder(o models.Order) error {
	if m.shouldFailOn == "CreateOrder" {
		return errors.New(m.errorMsg)
	}
	m.orders[o.OrderID] = &o
	return nil
}

func (m *MockOrderDB) UpdateOrderFields(id string, updates map[string]interface{}) error {
	if m.shouldFailOn == "UpdateOrderFields" {
		return errors.New(m.errorMsg)
	}
	o, exists := m.orders[id]
	if !exists {
		return errors.New("order not found")
	}
	if raw, ok := updates["status"]; ok {
		switch v := raw.(type) {
		case string:
			o.Status = models.OrderStatus(v)
		case models.OrderStatus:
			o.Status = v
		}
	}
	if v, ok := updates["tracking_number"].(string); ok {
		o.TrackingNumber = v
	}
	if v, ok := updates["feedback"].(string); ok {
		o.Feedback = v
	}
	if v, ok := updates["payment_intent_id"].(string); ok {
		o.PaymentIntentID = v
	}
	if v, ok := updates["updated_at"].(time.Time); ok {
		o.UpdatedAt = v
	}
	return nil
}

func (m *MockOrderDB) GetOrderByPaymentIntent(paymentIntentID string) (*models.Order, error) {
	for _, o := range m.orders {
		if o.PaymentIntentID == paymentIntentID {
			return o, nil
		}
	}
	return nil, errors.New("order not found")
}

func (m *MockOrderDB) InsertAuditEntry(entry models.OrderAuditEntry) error {
	if m.shouldFailOn == "InsertAuditEntry" {
		return errors.New(m.errorMsg)
	}
	m.auditEntries = append(m.auditEntries, entry)
	return nil
}

func (m *MockOrderDB) GetAuditEntriesByOrder(orderID string) ([]models.OrderAuditEntry, error) {
	if m.shouldFailOn == "GetAuditEntriesByOrder" {
		return nil, errors.New(m.errorMsg)
	}
	var out []models.OrderAuditEntry
	for _, e := range m.auditEntries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockOrderDB) InsertErrorLog(entry models.ErrorLogEntry) error {
	if m.shouldFailOn == "InsertErrorLog" {
		return errors.New(m.errorMsg)
	}
	m.errorLogs = append(m.errorLogs, entry)
	return nil
}

type MockNotifier struct {
	statusChanges []models.OrderStatus
}

func (m *MockNotifier) OrderStatusChanged(order *models.Order, status models.OrderStatus) {
	m.statusChanges = append(m.statusChanges, status)
}

func setupOrderService() (*order.OrderService, *MockOrderDB, *MockNotifier) {
	db := NewMockOrderDB()
	notifier := &MockNotifier{}
	svc := order.NewOrderService(db, notifier, logger.NewLogger())
	return svc, db, notifier
}

func seedOrder(db *MockOrderDB, status models.OrderStatus) models.Order {
	o := models.Order{
		OrderID:     "order-1",
		BuyerUID:    "buyer-1",
		SellerUID:   "seller-1",
		ListingID:   "listing-1",
		Status:      status,
		AmountCents: 12500,
		CreatedAt:   time.Now(),
	}
	db.CreateOrder(o)
	return o
}

func TestUpdateOrderRejectsUnknownFields(t *testing.T) {
	svc, db, _ := setupOrderService()
	seedOrder(db, models.OrderPaid)

	_, err := svc.UpdateOrder(auth.Identity{UserID: "buyer-1"}, "order-1", map[string]interface{}{
		"amount_cents": int64(1),
	})
	if err == nil {
		t.Fatal("Expected error for disallowed field, got nil")
	}
	if apperr.CodeOf(err) != apperr.PermissionDenied {
		t.Errorf("Expected permission-denied, got %s", apperr.CodeOf(err))
	}

	// Failures are persisted to the error log before they surface
	if len(db.errorLogs) != 1 {
		t.Errorf("Expected 1 error log entry, got %d", len(db.errorLogs))
	}
}

func TestUpdateOrderRequiresAuthentication(t *testing.T) {
	svc, db, _ := setupOrderService()
	seedOrder(db, models.OrderPaid)

	_, err := svc.UpdateOrder(auth.Identity{}, "order-1", map[string]interface{}{
		"feedback": "great seller",
	})
	if apperr.CodeOf(err) != apperr.Unauthenticated {
		t.Errorf("Expected unauthenticated, got %v", err)
	}
}

func TestUpdateOrderRejectsThirdParties(t *testing.T) {
	svc, db, _ := setupOrderService()
	seedOrder(db, models.OrderPaid)

	_, err := svc.UpdateOrder(auth.Identity{UserID: "random-user"}, "order-1", map[string]interface{}{
		"feedback": "not my order",
	})
	if apperr.CodeOf(err) != apperr.PermissionDenied {
		t.Errorf("Expected permission-denied, got %v", err)
	}
}

func TestShippedIsSellerOnly(t *testing.T) {
	svc, db, _ := setupOrderService()
	seedOrder(db, models.OrderPaid)

	_, err := svc.UpdateOrder(auth.Identity{UserID: "buyer-1"}, "order-1", map[string]interface{}{
		"status": "SHIPPED",
	})
	if apperr.CodeOf(err) != apperr.PermissionDenied {
		t.Errorf("Expected permission-denied for buyer marking shipped, got %v", err)
	}

	updated, err := svc.UpdateOrder(auth.Identity{UserID: "seller-1"}, "order-1", map[string]interface{}{
		"status":          "SHIPPED",
		"tracking_number": "1Z999",
	})
	if err != nil {
		t.Fatalf("Expected seller to mark shipped, got %v", err)
	}
	if updated.Status != models.OrderShipped {
		t.Errorf("Expected status SHIPPED, got %s", updated.Status)
	}
	if updated.TrackingNumber != "1Z999" {
		t.Errorf("Expected tracking number to be set, got %q", updated.TrackingNumber)
	}
}

func TestDeliveredIsBuyerOnly(t *testing.T) {
	svc, db, _ := setupOrderService()
	seedOrder(db, models.OrderShipped)

	_, err := svc.UpdateOrder(auth.Identity{UserID: "seller-1"}, "order-1", map[string]interface{}{
		"status": "DELIVERED",
	})
	if apperr.CodeOf(err) != apperr.PermissionDenied {
		t.Errorf("Expected permission-denied for seller marking delivered, got %v", err)
	}

	updated, err := svc.UpdateOrder(auth.Identity{UserID: "buyer-1"}, "order-1", map[string]interface{}{
		"status": "DELIVERED",
	})
	if err != nil {
		t.Fatalf("Expected buyer to mark delivered, got %v", err)
	}
	if updated.Status != models.OrderDelivered {
		t.Errorf("Expected status DELIVERED, got %s", updated.Status)
	}
}

func TestUpdateOrderRejectsUnknownStatus(t *testing.T) {
	svc, db, _ := setupOrderService()
	seedOrder(db, models.OrderPaid)

	_, err := svc.UpdateOrder(auth.Identity{UserID: "seller-1"}, "order-1", map[string]interface{}{
		"status": "TELEPORTED",
	})
	if apperr.CodeOf(err) != apperr.InvalidArgument {
		t.Errorf("Expected invalid-argument for unknown status, got %v", err)
	}
}

func TestUpdateOrderEnforcesTransitionGraph(t *testing.T) {
	svc, db, _ := setupOrderService()
	seedOrder(db, models.OrderPendingPayment)

	// PENDING_PAYMENT cannot jump straight to SHIPPED
	_, err := svc.UpdateOrder(auth.Identity{UserID: "seller-1"}, "order-1", map[string]interface{}{
		"status": "SHIPPED",
	})
	if apperr.CodeOf(err) != apperr.FailedPrecondition {
		t.Errorf("Expected failed-precondition, got %v", err)
	}

	// Terminal states have no exits
	db.orders["order-1"].Status = models.OrderDelivered
	_, err = svc.UpdateOrder(auth.Identity{UserID: "buyer-1"}, "order-1", map[string]interface{}{
		"status": "REFUNDED",
	})
	if apperr.CodeOf(err) != apperr.FailedPrecondition {
		t.Errorf("Expected failed-precondition for terminal state, got %v", err)
	}
}

func TestUpdateOrderWritesAuditAndNotifies(t *testing.T) {
	svc, db, notifier := setupOrderService()
	seedOrder(db, models.OrderPaid)

	_, err := svc.UpdateOrder(auth.Identity{UserID: "seller-1"}, "order-1", map[string]interface{}{
		"status": "SHIPPED",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(db.auditEntries) != 1 {
		t.Fatalf("Expected 1 audit entry, got %d", len(db.auditEntries))
	}
	entry := db.auditEntries[0]
	if entry.Action != "order_update" || entry.UpdatedBy != "seller-1" || entry.Role != "seller" {
		t.Errorf("Unexpected audit entry: %+v", entry)
	}

	if len(notifier.statusChanges) != 1 || notifier.statusChanges[0] != models.OrderShipped {
		t.Errorf("Expected a SHIPPED notification, got %v", notifier.statusChanges)
	}
}

func TestUpdateOrderWithoutStatusDoesNotNotify(t *testing.T) {
	svc, db, notifier := setupOrderService()
	seedOrder(db, models.OrderPaid)

	_, err := svc.UpdateOrder(auth.Identity{UserID: "buyer-1"}, "order-1", map[string]interface{}{
		"feedback": "fast shipping",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(notifier.statusChanges) != 0 {
		t.Errorf("Expected no notifications for a non-status update, got %v", notifier.statusChanges)
	}
}

func TestMarkPaid(t *testing.T) {
	svc, db, _ := setupOrderService()
	seedOrder(db, models.OrderPendingPayment)

	if err := svc.MarkPaid("order-1", "pi_123"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	o, _ := db.GetOrderByID("order-1")
	if o.Status != models.OrderPaid {
		t.Errorf("Expected status PAID, got %s", o.Status)
	}
	if o.PaymentIntentID != "pi_123" {
		t.Errorf("Expected payment intent to be recorded, got %q", o.PaymentIntentID)
	}
	if len(db.auditEntries) != 1 || db.auditEntries[0].Action != "order_paid" {
		t.Errorf("Expected an order_paid audit entry, got %+v", db.auditEntries)
	}
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	svc, db, _ := setupOrderService()
	seedOrder(db, models.OrderPaid)

	// Webhook retry on an already paid order is a no-op
	if err := svc.MarkPaid("order-1", "pi_retry"); err != nil {
		t.Fatalf("Expected no error on retry, got %v", err)
	}
	if len(db.auditEntries) != 0 {
		t.Errorf("Expected no audit entry on a no-op, got %d", len(db.auditEntries))
	}
}

func TestMarkPaidRejectsBadTransition(t *testing.T) {
	svc, db, _ := setupOrderService()
	seedOrder(db, models.OrderShipped)

	err := svc.MarkPaid("order-1", "pi_late")
	if apperr.CodeOf(err) != apperr.FailedPrecondition {
		t.Errorf("Expected failed-precondition, got %v", err)
	}
}

func TestListPurchasesAndSalesSplitBySide(t *testing.T) {
	svc, db, _ := setupOrderService()
	seedOrder(db, models.OrderPaid)
	db.CreateOrder(models.Order{OrderID: "order-2", BuyerUID: "seller-1", SellerUID: "buyer-1", Status: models.OrderShipped})

	purchases, err := svc.ListPurchases(auth.Identity{UserID: "buyer-1"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(purchases) != 1 || purchases[0].OrderID != "order-1" {
		t.Errorf("Expected only order-1 as a purchase, got %+v", purchases)
	}

	sales, err := svc.ListSales(auth.Identity{UserID: "buyer-1"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(sales) != 1 || sales[0].OrderID != "order-2" {
		t.Errorf("Expected only order-2 as a sale, got %+v", sales)
	}
}

func TestListPurchasesRequiresAuthentication(t *testing.T) {
	svc, _, _ := setupOrderService()

	_, err := svc.ListPurchases(auth.Identity{})
	if apperr.CodeOf(err) != apperr.Unauthenticated {
		t.Errorf("Expected unauthenticated, got %v", err)
	}
	_, err = svc.ListSales(auth.Identity{})
	if apperr.CodeOf(err) != apperr.Unauthenticated {
		t.Errorf("Expected unauthenticated, got %v", err)
	}
}

func TestAuditTrailIsAdminOnly(t *testing.T) {
	svc, db, _ := setupOrderService()
	seedOrder(db, models.OrderPaid)
	if _, err := svc.UpdateOrder(auth.Identity{UserID: "seller-1"}, "order-1", map[string]interface{}{
		"status": "SHIPPED",
	}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	_, err := svc.GetAuditTrail(auth.Identity{UserID: "buyer-1"}, "order-1")
	if apperr.CodeOf(err) != apperr.PermissionDenied {
		t.Errorf("Expected permission-denied for the buyer, got %v", err)
	}

	entries, err := svc.GetAuditTrail(auth.Identity{UserID: "admin-1", Admin: true}, "order-1")
	if err != nil {
		t.Fatalf("Expected no error for admin, got %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "order_update" {
		t.Errorf("Expected the order_update entry, got %+v", entries)
	}

	_, err = svc.GetAuditTrail(auth.Identity{UserID: "admin-1", Admin: true}, "missing")
	if apperr.CodeOf(err) != apperr.NotFound {
		t.Errorf("Expected not-found for unknown order, got %v", err)
	}
}

func TestFindByPaymentIntent(t *testing.T) {
	svc, db, _ := setupOrderService()
	seedOrder(db, models.OrderPendingPayment)
	if err := svc.MarkPaid("order-1", "pi_123"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	_, err := svc.FindByPaymentIntent(auth.Identity{UserID: "buyer-1"}, "pi_123")
	if apperr.CodeOf(err) != apperr.PermissionDenied {
		t.Errorf("Expected permission-denied for non-admin, got %v", err)
	}

	o, err := svc.FindByPaymentIntent(auth.Identity{UserID: "admin-1", Admin: true}, "pi_123")
	if err != nil {
		t.Fatalf("Expected no error for admin, got %v", err)
	}
	if o.OrderID != "order-1" {
		t.Errorf("Expected order-1, got %s", o.OrderID)
	}

	_, err = svc.FindByPaymentIntent(auth.Identity{UserID: "admin-1", Admin: true}, "pi_unknown")
	if apperr.CodeOf(err) != apperr.NotFound {
		t.Errorf("Expected not-found for unknown intent, got %v", err)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	svc, _, _ := setupOrderService()

	_, err := svc.GetOrder("missing")
	if apperr.CodeOf(err) != apperr.NotFound {
		t.Errorf("Expected not-found, got %v", err)
	}
}
