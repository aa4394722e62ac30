// Package order is the read-only view of shop orders used by compensation.
package order

import (
	"time"

	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/google/uuid"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

// Order carries the columns commission and volume logic read.
type Order struct {
	ID          uuid.UUID
	BuyerID     uuid.UUID
	BaseAmount  money.Amount
	PV          money.Amount
	Status      Status
	DeliveredAt *time.Time
	CreatedAt   time.Time
}

// IsCompleted reports whether the order is eligible for commission.
func (o Order) IsCompleted() bool {
	return o.Status == StatusPaid || o.Status == StatusDelivered
}
