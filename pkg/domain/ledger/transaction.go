package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirasaad/mlmcore/pkg/domain"
	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/google/uuid"
)

// ErrAlreadyReversed is returned when a transaction has already been reversed.
var ErrAlreadyReversed = fmt.Errorf("%w: transaction already reversed", domain.ErrIntegrity)

// ErrUnbalanced is returned when postings of a transaction do not net to zero.
var ErrUnbalanced = fmt.Errorf("%w: transaction is not zero-sum", domain.ErrIntegrity)

// OpType classifies a ledger transaction.
type OpType string

const (
	OpOrderPayment    OpType = "order_payment"
	OpReferralBonus   OpType = "referral_bonus"
	OpActivationBonus OpType = "activation_bonus"
	OpOptionBonus     OpType = "option_bonus"
	OpRefund          OpType = "refund"
	OpReversal        OpType = "reversal"
	OpAdjustment      OpType = "adjustment"
)

// IsValid reports whether t is a known operation type.
func (t OpType) IsValid() bool {
	switch t {
	case OpOrderPayment, OpReferralBonus, OpActivationBonus, OpOptionBonus, OpRefund, OpReversal, OpAdjustment:
		return true
	}
	return false
}

// Metadata is free-form transaction context persisted as JSON.
type Metadata map[string]any

// Txn is a ledger transaction header.
type Txn struct {
	ID            uuid.UUID
	OperationID   string
	OpType        OpType
	UserID        *uuid.UUID
	OrderID       *uuid.UUID
	Metadata      Metadata
	ReversedAt    *time.Time
	ReversalTxnID *uuid.UUID
	ReversesTxnID *uuid.UUID
	CreatedAt     time.Time
}

// IsReversed reports whether the transaction has been reversed.
func (t Txn) IsReversed() bool { return t.ReversedAt != nil }

// Posting is one debit/credit pair inside a transaction.
type Posting struct {
	ID              uuid.UUID
	TxnID           uuid.UUID
	DebitAccountID  uuid.UUID
	CreditAccountID uuid.UUID
	Amount          money.Amount
	Currency        money.Code
	Memo            string
	CreatedAt       time.Time
}

// PostingSpec describes a posting to be written.
type PostingSpec struct {
	DebitAccountID  uuid.UUID
	CreditAccountID uuid.UUID
	Amount          money.Amount
	Currency        money.Code
	Memo            string
}

// Validate checks the shape of a single posting.
func (p PostingSpec) Validate() error {
	switch {
	case !p.Amount.IsPositive():
		return fmt.Errorf("%w: posting amount must be positive, got %s", domain.ErrValidation, p.Amount)
	case !p.Currency.IsValid():
		return fmt.Errorf("%w: %w %q", domain.ErrValidation, money.ErrInvalidCurrency, p.Currency)
	case p.DebitAccountID == uuid.Nil || p.CreditAccountID == uuid.Nil:
		return fmt.Errorf("%w: posting requires both accounts", domain.ErrValidation)
	case p.DebitAccountID == p.CreditAccountID:
		return fmt.Errorf("%w: debit and credit accounts must differ", domain.ErrValidation)
	}
	return nil
}

// TxnRequest asks the engine to write a transaction atomically.
type TxnRequest struct {
	OperationID   string
	OpType        OpType
	UserID        *uuid.UUID
	OrderID       *uuid.UUID
	Metadata      Metadata
	Postings      []PostingSpec
	ReversesTxnID *uuid.UUID
}

// Validate checks the request before anything is written.
func (r TxnRequest) Validate() error {
	if !r.OpType.IsValid() {
		return fmt.Errorf("%w: unknown op type %q", domain.ErrValidation, r.OpType)
	}
	if len(r.OperationID) > 255 {
		return fmt.Errorf("%w: operation id too long", domain.ErrValidation)
	}
	if len(r.Postings) == 0 {
		return fmt.Errorf("%w: transaction requires at least one posting", domain.ErrValidation)
	}
	var errs []error
	for i, p := range r.Postings {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("posting %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// PostingRequest is the single-pair convenience form of TxnRequest.
type PostingRequest struct {
	OperationID     string
	OpType          OpType
	DebitAccountID  uuid.UUID
	CreditAccountID uuid.UUID
	Amount          money.Amount
	Currency        money.Code
	Memo            string
	UserID          *uuid.UUID
	OrderID         *uuid.UUID
	Metadata        Metadata
}

// TxnRequest converts the posting request into a one-posting transaction.
func (r PostingRequest) TxnRequest() TxnRequest {
	return TxnRequest{
		OperationID: r.OperationID,
		OpType:      r.OpType,
		UserID:      r.UserID,
		OrderID:     r.OrderID,
		Metadata:    r.Metadata,
		Postings: []PostingSpec{{
			DebitAccountID:  r.DebitAccountID,
			CreditAccountID: r.CreditAccountID,
			Amount:          r.Amount,
			Currency:        r.Currency,
			Memo:            r.Memo,
		}},
	}
}

// Result is the outcome of a transaction write.
// Existing is true when the operation id had already been recorded.
type Result struct {
	Txn      Txn
	Postings []Posting
	Existing bool
}

// ReversalOperationID returns the idempotency key used to reverse txnID.
func ReversalOperationID(txnID uuid.UUID) string {
	return "reversal:" + txnID.String()
}

// ReversalPostings mirrors postings with debit and credit swapped one-to-one.
func ReversalPostings(postings []Posting) []PostingSpec {
	out := make([]PostingSpec, 0, len(postings))
	for _, p := range postings {
		memo := "reversal"
		if strings.TrimSpace(p.Memo) != "" {
			memo = "reversal: " + p.Memo
		}
		out = append(out, PostingSpec{
			DebitAccountID:  p.CreditAccountID,
			CreditAccountID: p.DebitAccountID,
			Amount:          p.Amount,
			Currency:        p.Currency,
			Memo:            memo,
		})
	}
	return out
}
