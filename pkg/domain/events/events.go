// Package events defines the domain events exchanged over the event bus.
package events

import (
	"github.com/google/uuid"
)

// EventType names an event and its topic suffix.
type EventType string

// Event type constants
const (
	EventTypeOrderCompleted    EventType = "order.completed"
	EventTypePartnerActivated  EventType = "partner.activated"
	EventTypeTransactionPosted EventType = "ledger.transaction_posted"
)

// String returns the string representation of the event type.
func (et EventType) String() string {
	return string(et)
}

// Event is implemented by every domain event.
type Event interface {
	Type() string
}

// OrderCompleted is published by the shop when an order is paid or delivered.
type OrderCompleted struct {
	OrderID uuid.UUID `json:"order_id"`
}

func (e *OrderCompleted) Type() string { return EventTypeOrderCompleted.String() }

// PartnerActivated is published when a user becomes a partner.
type PartnerActivated struct {
	UserID uuid.UUID `json:"user_id"`
}

func (e *PartnerActivated) Type() string { return EventTypePartnerActivated.String() }

// TransactionPosted is emitted after a ledger transaction commits.
type TransactionPosted struct {
	TxnID       uuid.UUID   `json:"txn_id"`
	OperationID string      `json:"operation_id"`
	OpType      string      `json:"op_type"`
	AccountIDs  []uuid.UUID `json:"account_ids"`
}

func (e *TransactionPosted) Type() string { return EventTypeTransactionPosted.String() }

// EventTypes maps event types to constructors for decoding transport payloads.
var EventTypes = map[EventType]func() Event{
	EventTypeOrderCompleted:    func() Event { return &OrderCompleted{} },
	EventTypePartnerActivated:  func() Event { return &PartnerActivated{} },
	EventTypeTransactionPosted: func() Event { return &TransactionPosted{} },
}
