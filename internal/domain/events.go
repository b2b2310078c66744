package domain

import "time"

// Event types
const (
	EventTypeEntriesPosted     = "ledger.entries_posted"
	EventTypeEntriesReversed   = "ledger.entries_reversed"
	EventTypePaymentSettled    = "payment.settled"
	EventTypeSnapshotsCaptured = "fx.snapshots_captured"
)

// Aggregate types
const (
	AggregateTypePaymentLink = "payment_link"
	AggregateTypeJournal     = "journal"
)

// OutboxEvent is written in the same transaction as the state change it
// describes and published asynchronously.
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// EntriesPostedEvent payload
type EntriesPostedEvent struct {
	TenantID       string `json:"tenant_id"`
	PaymentLinkID  string `json:"payment_link_id"`
	IdempotencyKey string `json:"idempotency_key"`
	EntryCount     int    `json:"entry_count"`
	CorrelationID  string `json:"correlation_id,omitempty"`
}

// PaymentSettledEvent payload
type PaymentSettledEvent struct {
	TenantID      string `json:"tenant_id"`
	PaymentLinkID string `json:"payment_link_id"`
	TokenType     string `json:"token_type,omitempty"`
	Rate          string `json:"rate"`
	Provider      string `json:"provider"`
}
