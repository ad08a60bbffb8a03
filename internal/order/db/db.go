package db

import (
	"context"
	"time"

	"hobbydork/internal/models"
	"hobbydork/internal/utils"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- ORDERS ----------------

// GetOrderByID → fetch one order by its ID
func (d *DB) GetOrderByID(id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_id = ?", id).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateOrder → insert new order
func (d *DB) CreateOrder(order models.Order) error {
	_, err := d.Bun.NewInsert().Model(&order).Exec(context.Background())
	return err
}

// UpdateOrderFields applies the already-validated field map to one order.
// Callers own the allow-list; this layer never widens it.
func (d *DB) UpdateOrderFields(id string, updates map[string]interface{}) error {
	query := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Where("order_id = ?", id)
	for col, val := range updates {
		query = query.Set("? = ?", bun.Ident(col), val)
	}
	_, err := query.Exec(context.Background())
	return err
}

// GetOrdersByBuyer → fetch all orders for a buyer, newest first
func (d *DB) GetOrdersByBuyer(buyerUID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("buyer_uid = ?", buyerUID).
		Order("created_at DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrdersBySeller → fetch all orders for a seller, newest first
func (d *DB) GetOrdersBySeller(sellerUID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("seller_uid = ?", sellerUID).
		Order("created_at DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrderByPaymentIntent → find the order a Stripe payment intent belongs to
func (d *DB) GetOrderByPaymentIntent(paymentIntentID string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("payment_intent_id = ?", paymentIntentID).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ---------------- AUDIT ----------------

// InsertAuditEntry records an accepted order mutation.
func (d *DB) InsertAuditEntry(entry models.OrderAuditEntry) error {
	if entry.EntryID == "" {
		entry.EntryID = utils.GenerateID("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := d.Bun.NewInsert().Model(&entry).Exec(context.Background())
	return err
}

// InsertErrorLog persists a failure before the caller re-raises it.
func (d *DB) InsertErrorLog(entry models.ErrorLogEntry) error {
	if entry.EntryID == "" {
		entry.EntryID = utils.GenerateID("err")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := d.Bun.NewInsert().Model(&entry).Exec(context.Background())
	return err
}

// GetAuditEntriesByOrder → fetch the audit trail of one order, newest first
func (d *DB) GetAuditEntriesByOrder(orderID string) ([]models.OrderAuditEntry, error) {
	var entries []models.OrderAuditEntry
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return entries, nil
}
