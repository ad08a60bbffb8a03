package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"hobbydork/internal/logger"
	"hobbydork/internal/models"
)

// Producer is the slice of the Kafka producer the notifier needs.
type Producer interface {
	Publish(topic string, key string, value []byte) error
}

// Notifier fans user-facing notifications out through Kafka. Publish
// failures are logged and swallowed: a notification must never fail the
// state change that triggered it.
type Notifier struct {
	producer Producer
	topic    string
	log      *logger.Logger
}

func NewNotifier(producer Producer, topic string, log *logger.Logger) *Notifier {
	return &Notifier{producer: producer, topic: topic, log: log}
}

func (n *Notifier) Send(event models.NotificationEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	value, err := json.Marshal(event)
	if err != nil {
		n.log.Error("NOTIFY", fmt.Sprintf("Failed to marshal notification %s: %v", event.Type, err))
		return
	}

	if err := n.producer.Publish(n.topic, event.RecipientUID, value); err != nil {
		n.log.Error("NOTIFY", fmt.Sprintf("Failed to publish notification %s for %s: %v", event.Type, event.RecipientUID, err))
		return
	}

	n.log.LogKafka("NOTIFY", n.topic, fmt.Sprintf("%s -> %s", event.Type, event.RecipientUID))
}

// OrderStatusChanged maps a new order status to its recipients:
// SHIPPED→buyer, DELIVERED→seller, CANCELLED→both, REFUNDED→buyer,
// DISPUTED→seller.
func (n *Notifier) OrderStatusChanged(order *models.Order, status models.OrderStatus) {
	switch status {
	case models.OrderShipped:
		n.Send(models.NotificationEvent{
			Type:         "order.shipped",
			RecipientUID: order.BuyerUID,
			OrderID:      order.OrderID,
			Message:      "Your order has shipped",
		})
	case models.OrderDelivered:
		n.Send(models.NotificationEvent{
			Type:         "order.delivered",
			RecipientUID: order.SellerUID,
			OrderID:      order.OrderID,
			Message:      "The buyer marked the order delivered",
		})
	case models.OrderCancelled:
		n.Send(models.NotificationEvent{
			Type:         "order.cancelled",
			RecipientUID: order.BuyerUID,
			OrderID:      order.OrderID,
			Message:      "Order cancelled",
		})
		n.Send(models.NotificationEvent{
			Type:         "order.cancelled",
			RecipientUID: order.SellerUID,
			OrderID:      order.OrderID,
			Message:      "Order cancelled",
		})
	case models.OrderRefunded:
		n.Send(models.NotificationEvent{
			Type:         "order.refunded",
			RecipientUID: order.BuyerUID,
			OrderID:      order.OrderID,
			Message:      "Your order was refunded",
		})
	case models.OrderDisputed:
		n.Send(models.NotificationEvent{
			Type:         "order.disputed",
			RecipientUID: order.SellerUID,
			OrderID:      order.OrderID,
			Message:      "The buyer opened a dispute",
		})
	}
}

func (n *Notifier) AuctionLive(auction *models.BlindBidAuction) {
	n.Send(models.NotificationEvent{
		Type:         "auction.live",
		RecipientUID: auction.SellerUID,
		AuctionID:    auction.AuctionID,
		Message:      fmt.Sprintf("Your blind-bid auction %q is live", auction.Title),
	})
}

func (n *Notifier) SpotlightActivated(store *models.Store, until time.Time) {
	n.Send(models.NotificationEvent{
		Type:         "spotlight.activated",
		RecipientUID: store.OwnerUID,
		StoreID:      store.StoreID,
		Message:      fmt.Sprintf("Your store is spotlighted until %s", until.Format(time.RFC1123)),
	})
}
