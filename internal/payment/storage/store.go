package storage

import "time"

// ProcessedEvent is one row of the idempotency ledger, surfaced to the
// admin API for webhook debugging.
type ProcessedEvent struct {
	ID          int64     `json:"id"`
	Provider    string    `json:"provider"`
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	ProcessedAt time.Time `json:"processed_at"`
}

// EventStore is the idempotency ledger for incoming webhook events. An
// event ID is recorded exactly once per provider, and only after its
// dispatch succeeded; a failed dispatch leaves no row, so the provider's
// retry of the same event id is processed rather than short-circuited.
type EventStore interface {
	// WasProcessed reports whether the event already completed dispatch.
	WasProcessed(provider, eventID string) (bool, error)
	// MarkProcessed records the event and reports whether this call was
	// the first to record it.
	MarkProcessed(provider, eventID, eventType string) (bool, error)
	// RecentEvents returns the newest ledger rows, most recent first.
	RecentEvents(limit int) ([]ProcessedEvent, error)
	HealthCheck() error
	Close() error
}
