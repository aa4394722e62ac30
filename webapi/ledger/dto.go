package ledger

import (
	"time"

	"github.com/amirasaad/mlmcore/pkg/domain/ledger"
	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/google/uuid"
)

//revive:disable

// EnsureAccountRequest represents the request body for opening (or finding) an account.
type EnsureAccountRequest struct {
	OwnerType string `json:"owner_type" validate:"required,oneof=user system"`
	OwnerID   string `json:"owner_id" validate:"required_if=OwnerType user,omitempty,uuid"`
	Currency  string `json:"currency" validate:"required,oneof=RUB PV VWC"`
	Type      string `json:"type" validate:"required,oneof=cash pv vwc referral reserve network_fund"`
}

// PostingInput is one debit/credit pair of a transaction request.
type PostingInput struct {
	DebitAccountID  string       `json:"debit_account_id" validate:"required,uuid"`
	CreditAccountID string       `json:"credit_account_id" validate:"required,uuid,nefield=DebitAccountID"`
	Amount          money.Amount `json:"amount" validate:"gt=0"`
	Currency        string       `json:"currency" validate:"required,oneof=RUB PV VWC"`
	Memo            string       `json:"memo" validate:"max=255"`
}

// CreateTransactionRequest represents the request body for writing a transaction.
// OperationID makes the call idempotent; one is generated when omitted.
type CreateTransactionRequest struct {
	OperationID string          `json:"operation_id" validate:"max=255"`
	OpType      string          `json:"op_type" validate:"required"`
	UserID      string          `json:"user_id" validate:"omitempty,uuid"`
	OrderID     string          `json:"order_id" validate:"omitempty,uuid"`
	Metadata    ledger.Metadata `json:"metadata"`
	Postings    []PostingInput  `json:"postings" validate:"required,min=1,dive"`
}

// ReverseRequest represents the request body for reversing a transaction.
type ReverseRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

// AccountDTO is the API representation of an account.
type AccountDTO struct {
	ID        uuid.UUID  `json:"id"`
	OwnerType string     `json:"owner_type"`
	OwnerID   *uuid.UUID `json:"owner_id,omitempty"`
	Currency  string     `json:"currency"`
	Type      string     `json:"type"`
	CreatedAt time.Time  `json:"created_at"`
}

// BalanceDTO is the derived balance of an account.
type BalanceDTO struct {
	AccountID uuid.UUID    `json:"account_id"`
	Currency  string       `json:"currency"`
	Balance   money.Amount `json:"balance"`
}

// PostingDTO is the API representation of a posting.
type PostingDTO struct {
	ID              uuid.UUID    `json:"id"`
	TxnID           uuid.UUID    `json:"txn_id"`
	DebitAccountID  uuid.UUID    `json:"debit_account_id"`
	CreditAccountID uuid.UUID    `json:"credit_account_id"`
	Amount          money.Amount `json:"amount"`
	Currency        string       `json:"currency"`
	Memo            string       `json:"memo,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// TransactionDTO is the API representation of a transaction with its postings.
type TransactionDTO struct {
	ID            uuid.UUID       `json:"id"`
	OperationID   string          `json:"operation_id"`
	OpType        string          `json:"op_type"`
	UserID        *uuid.UUID      `json:"user_id,omitempty"`
	OrderID       *uuid.UUID      `json:"order_id,omitempty"`
	Metadata      ledger.Metadata `json:"metadata,omitempty"`
	ReversedAt    *time.Time      `json:"reversed_at,omitempty"`
	ReversalTxnID *uuid.UUID      `json:"reversal_txn_id,omitempty"`
	ReversesTxnID *uuid.UUID      `json:"reverses_txn_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	Postings      []PostingDTO    `json:"postings"`
	Existing      bool            `json:"existing"`
}

func toAccountDTO(a *ledger.Account) AccountDTO {
	return AccountDTO{
		ID:        a.ID,
		OwnerType: string(a.OwnerType),
		OwnerID:   a.OwnerID,
		Currency:  a.Currency.String(),
		Type:      string(a.Type),
		CreatedAt: a.CreatedAt,
	}
}

func toPostingDTOs(postings []ledger.Posting) []PostingDTO {
	out := make([]PostingDTO, 0, len(postings))
	for _, p := range postings {
		out = append(out, PostingDTO{
			ID:              p.ID,
			TxnID:           p.TxnID,
			DebitAccountID:  p.DebitAccountID,
			CreditAccountID: p.CreditAccountID,
			Amount:          p.Amount,
			Currency:        p.Currency.String(),
			Memo:            p.Memo,
			CreatedAt:       p.CreatedAt,
		})
	}
	return out
}

// ToTransactionDTO converts a ledger write or read result.
func ToTransactionDTO(r *ledger.Result) TransactionDTO {
	t := r.Txn
	return TransactionDTO{
		ID:            t.ID,
		OperationID:   t.OperationID,
		OpType:        string(t.OpType),
		UserID:        t.UserID,
		OrderID:       t.OrderID,
		Metadata:      t.Metadata,
		ReversedAt:    t.ReversedAt,
		ReversalTxnID: t.ReversalTxnID,
		ReversesTxnID: t.ReversesTxnID,
		CreatedAt:     t.CreatedAt,
		Postings:      toPostingDTOs(r.Postings),
		Existing:      r.Existing,
	}
}

func optionalUUID(raw string) *uuid.UUID {
	if raw == "" {
		return nil
	}
	id := uuid.MustParse(raw)
	return &id
}

func (r CreateTransactionRequest) toDomain() ledger.TxnRequest {
	req := ledger.TxnRequest{
		OperationID: r.OperationID,
		OpType:      ledger.OpType(r.OpType),
		UserID:      optionalUUID(r.UserID),
		OrderID:     optionalUUID(r.OrderID),
		Metadata:    r.Metadata,
		Postings:    make([]ledger.PostingSpec, 0, len(r.Postings)),
	}
	for _, p := range r.Postings {
		req.Postings = append(req.Postings, ledger.PostingSpec{
			DebitAccountID:  uuid.MustParse(p.DebitAccountID),
			CreditAccountID: uuid.MustParse(p.CreditAccountID),
			Amount:          p.Amount,
			Currency:        money.Code(p.Currency),
			Memo:            p.Memo,
		})
	}
	return req
}

func (r EnsureAccountRequest) owner() ledger.Owner {
	if r.OwnerType == string(ledger.OwnerSystem) {
		return ledger.SystemOwner()
	}
	return ledger.UserOwner(uuid.MustParse(r.OwnerID))
}
