package repository

import (
	"context"
	"time"

	"github.com/amirasaad/mlmcore/pkg/domain/ledger"
	"github.com/amirasaad/mlmcore/pkg/domain/network"
	"github.com/amirasaad/mlmcore/pkg/domain/order"
	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/google/uuid"
)

// AccountRepository persists ledger accounts.
type AccountRepository interface {
	// Ensure inserts the account if its identity is new and returns the stored row.
	// Concurrent callers with the same key observe the same account.
	Ensure(ctx context.Context, key ledger.AccountKey) (*ledger.Account, error)
	Get(ctx context.Context, id uuid.UUID) (*ledger.Account, error)
	FindByKey(ctx context.Context, key ledger.AccountKey) (*ledger.Account, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]ledger.Account, error)
	ListByOwner(ctx context.Context, owner ledger.Owner) ([]ledger.Account, error)
}

// TransactionRepository persists ledger transactions and their postings.
type TransactionRepository interface {
	Create(ctx context.Context, txn *ledger.Txn) error
	Get(ctx context.Context, id uuid.UUID) (*ledger.Txn, error)
	GetByOperationID(ctx context.Context, operationID string) (*ledger.Txn, error)
	// MarkReversed sets the reversal link only if the transaction is not yet reversed.
	// It reports false when another writer got there first.
	MarkReversed(ctx context.Context, id, reversalTxnID uuid.UUID, at time.Time) (bool, error)

	CreatePostings(ctx context.Context, postings []ledger.Posting) error
	ListPostings(ctx context.Context, txnID uuid.UUID) ([]ledger.Posting, error)
	// ListAccountPostings returns the newest postings touching the account first.
	ListAccountPostings(ctx context.Context, accountID uuid.UUID, limit int) ([]ledger.Posting, error)
	// Balance is Σ debits − Σ credits of the account.
	Balance(ctx context.Context, accountID uuid.UUID) (money.Amount, error)
}

// NetworkRepository persists sponsor tree edges.
type NetworkRepository interface {
	// LockGraph serializes sponsor tree mutations until the surrounding transaction ends.
	LockGraph(ctx context.Context) error
	GetParent(ctx context.Context, childID uuid.UUID) (*network.Edge, error)
	// ListChildren returns edges whose parent is in parentIDs, in attach order.
	ListChildren(ctx context.Context, parentIDs []uuid.UUID) ([]network.Edge, error)
	Create(ctx context.Context, edge *network.Edge) error
	// DeleteByChild removes the child's edge and reports whether one existed.
	DeleteByChild(ctx context.Context, childID uuid.UUID) (bool, error)
}

// RankRuleRepository reads the rank ladder.
type RankRuleRepository interface {
	List(ctx context.Context) ([]network.RankRule, error)
}

// UserRepository is the narrow view of the users table.
type UserRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*network.Member, error)
	UpdateRankLevel(ctx context.Context, id uuid.UUID, level int) error
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)
}

// OrderRepository is the narrow view of the orders table.
type OrderRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*order.Order, error)
	// SumDeliveredPV sums PV of delivered orders inside the window per buyer.
	// Buyers without qualifying orders are absent from the result.
	SumDeliveredPV(ctx context.Context, buyerIDs []uuid.UUID, window network.Window) (map[uuid.UUID]money.Amount, error)
}
