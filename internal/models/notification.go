package models

import "time"

// NotificationEvent is streamed to Kafka for the notification fan-out
// consumers (email, in-app). RecipientUID addresses a single user.
type NotificationEvent struct {
	Type         string    `json:"type"`
	RecipientUID string    `json:"recipient_uid"`
	OrderID      string    `json:"order_id,omitempty"`
	AuctionID    string    `json:"auction_id,omitempty"`
	StoreID      string    `json:"store_id,omitempty"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
}
