package models

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderAuditEntry records every accepted order mutation with the caller's
// role and a snapshot of the applied updates.
type OrderAuditEntry struct {
	bun.BaseModel `bun:"table:order_audit_log"`

	EntryID   string    `bun:"entry_id,pk" json:"entry_id"`
	Action    string    `bun:"action" json:"action"`
	OrderID   string    `bun:"order_id" json:"order_id"`
	UpdatedBy string    `bun:"updated_by" json:"updated_by"`
	Role      string    `bun:"role" json:"role"`
	Updates   string    `bun:"updates" json:"updates"`
	CreatedAt time.Time `bun:"created_at" json:"created_at"`
}

// ErrorLogEntry persists handler failures before they are re-raised, so the
// client-visible error keeps an audit trail.
type ErrorLogEntry struct {
	bun.BaseModel `bun:"table:error_log"`

	EntryID   string    `bun:"entry_id,pk" json:"entry_id"`
	Operation string    `bun:"operation" json:"operation"`
	TargetID  string    `bun:"target_id,nullzero" json:"target_id,omitempty"`
	CallerUID string    `bun:"caller_uid,nullzero" json:"caller_uid,omitempty"`
	Message   string    `bun:"message" json:"message"`
	CreatedAt time.Time `bun:"created_at" json:"created_at"`
}
