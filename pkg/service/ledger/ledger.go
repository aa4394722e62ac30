// Package ledger implements the account registry and the double-entry ledger engine.
//
// Every write runs inside one UnitOfWork. A transaction is recorded at most once
// per operation id: the id is looked up first, a lost unique-constraint race is
// resolved by re-reading the winner, and concurrent in-process callers for the
// same id are collapsed with singleflight. Balances are derived from postings
// and cached aside; the cache is invalidated after each committed write and
// refuses balances read before the latest invalidation.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/mlmcore/pkg/cache"
	"github.com/amirasaad/mlmcore/pkg/config"
	"github.com/amirasaad/mlmcore/pkg/domain"
	"github.com/amirasaad/mlmcore/pkg/domain/events"
	"github.com/amirasaad/mlmcore/pkg/domain/ledger"
	"github.com/amirasaad/mlmcore/pkg/eventbus"
	"github.com/amirasaad/mlmcore/pkg/metrics"
	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/amirasaad/mlmcore/pkg/repository"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	defaultStatementLimit = 50
	maxStatementLimit     = 500
	defaultBalanceTTL     = 5 * time.Minute
)

// Service is the ledger engine.
type Service struct {
	uow      repository.UnitOfWork
	cache    cache.BalanceCache
	cacheTTL time.Duration
	bus      eventbus.Bus
	logger   *slog.Logger
	inflight singleflight.Group
	now      func() time.Time
}

// New creates a ledger Service from the shared dependencies.
// A nil cache or bus disables caching or event emission.
func New(deps config.Deps) *Service {
	s := &Service{
		uow:      deps.Uow,
		cache:    deps.BalanceCache,
		cacheTTL: defaultBalanceTTL,
		bus:      deps.EventBus,
		logger:   deps.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if deps.Config != nil && deps.Config.BalanceCache != nil && deps.Config.BalanceCache.TTL > 0 {
		s.cacheTTL = deps.Config.BalanceCache.TTL
	}
	return s
}

// EnsureAccount returns the account with the given identity, creating it on first use.
func (s *Service) EnsureAccount(
	ctx context.Context,
	owner ledger.Owner,
	currency money.Code,
	accountType ledger.AccountType,
) (*ledger.Account, error) {
	key, err := ledger.NewAccountKey(owner, currency, accountType)
	if err != nil {
		return nil, err
	}
	repo, err := s.uow.AccountRepository()
	if err != nil {
		return nil, err
	}
	acct, err := repo.Ensure(ctx, key)
	if err != nil {
		s.logger.Error("EnsureAccount failed", "owner", key.Owner.Key(), "currency", currency, "type", accountType, "error", err)
		return nil, err
	}
	return acct, nil
}

// GetAccount loads an account by id.
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	repo, err := s.uow.AccountRepository()
	if err != nil {
		return nil, err
	}
	return repo.Get(ctx, id)
}

// ListAccounts returns every account held by owner.
func (s *Service) ListAccounts(ctx context.Context, owner ledger.Owner) ([]ledger.Account, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	repo, err := s.uow.AccountRepository()
	if err != nil {
		return nil, err
	}
	return repo.ListByOwner(ctx, owner)
}

// CreatePosting writes a single debit/credit pair as its own transaction.
func (s *Service) CreatePosting(ctx context.Context, req ledger.PostingRequest) (*ledger.Result, error) {
	return s.CreateTransaction(ctx, req.TxnRequest())
}

// CreateTransaction writes the transaction and its postings atomically.
// Replays of a recorded operation id return the stored transaction with Existing set.
func (s *Service) CreateTransaction(ctx context.Context, req ledger.TxnRequest) (*ledger.Result, error) {
	if req.OperationID == "" {
		req.OperationID = uuid.NewString()
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	logger := s.logger.With("operation_id", req.OperationID, "op_type", req.OpType)

	v, err, _ := s.inflight.Do(req.OperationID, func() (any, error) {
		var res *ledger.Result
		err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
			var err error
			res, err = s.write(ctx, uow, req)
			return err
		})
		if errors.Is(err, domain.ErrAlreadyExists) {
			logger.Info("Operation recorded concurrently, returning winner")
			return s.loadByOperationID(ctx, req.OperationID)
		}
		if err != nil {
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		logger.Error("CreateTransaction failed", "error", err)
		return nil, err
	}
	res := *v.(*ledger.Result)
	s.afterWrite(ctx, &res)
	return &res, nil
}

// write records req inside uow unless its operation id already exists.
func (s *Service) write(ctx context.Context, uow repository.UnitOfWork, req ledger.TxnRequest) (*ledger.Result, error) {
	txRepo, err := uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	acctRepo, err := uow.AccountRepository()
	if err != nil {
		return nil, err
	}

	existing, err := txRepo.GetByOperationID(ctx, req.OperationID)
	switch {
	case err == nil:
		postings, err := txRepo.ListPostings(ctx, existing.ID)
		if err != nil {
			return nil, err
		}
		return &ledger.Result{Txn: *existing, Postings: postings, Existing: true}, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	txn := &ledger.Txn{
		ID:            uuid.New(),
		OperationID:   req.OperationID,
		OpType:        req.OpType,
		UserID:        req.UserID,
		OrderID:       req.OrderID,
		Metadata:      req.Metadata,
		ReversesTxnID: req.ReversesTxnID,
	}
	if err := txRepo.Create(ctx, txn); err != nil {
		return nil, err
	}

	postings := make([]ledger.Posting, 0, len(req.Postings))
	for _, p := range req.Postings {
		postings = append(postings, ledger.Posting{
			ID:              uuid.New(),
			TxnID:           txn.ID,
			DebitAccountID:  p.DebitAccountID,
			CreditAccountID: p.CreditAccountID,
			Amount:          p.Amount,
			Currency:        p.Currency,
			Memo:            p.Memo,
			CreatedAt:       txn.CreatedAt,
		})
	}
	if err := txRepo.CreatePostings(ctx, postings); err != nil {
		return nil, err
	}

	stored, err := txRepo.ListPostings(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	accounts, err := accountsOf(ctx, acctRepo, stored)
	if err != nil {
		return nil, err
	}
	if err := ledger.CheckZeroSum(txn.ID, stored, accounts).Err(); err != nil {
		return nil, err
	}
	return &ledger.Result{Txn: *txn, Postings: stored}, nil
}

func (s *Service) afterWrite(ctx context.Context, res *ledger.Result) {
	metrics.LedgerTransactions.WithLabelValues(string(res.Txn.OpType), metrics.Bool(res.Existing)).Inc()
	if res.Existing {
		return
	}
	ids := touchedAccounts(res.Postings)
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		s.logger.Warn("Balance cache invalidation failed", "txn_id", res.Txn.ID, "error", err)
	}
	if s.bus == nil {
		return
	}
	evt := &events.TransactionPosted{
		TxnID:       res.Txn.ID,
		OperationID: res.Txn.OperationID,
		OpType:      string(res.Txn.OpType),
		AccountIDs:  ids,
	}
	if err := s.bus.Emit(ctx, evt); err != nil {
		s.logger.Warn("Emit TransactionPosted failed", "txn_id", res.Txn.ID, "error", err)
	}
}

func (s *Service) loadByOperationID(ctx context.Context, operationID string) (*ledger.Result, error) {
	txRepo, err := s.uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	txn, err := txRepo.GetByOperationID(ctx, operationID)
	if err != nil {
		return nil, err
	}
	postings, err := txRepo.ListPostings(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	return &ledger.Result{Txn: *txn, Postings: postings, Existing: true}, nil
}

// GetTransaction returns a recorded transaction with its postings.
func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Result, error) {
	txRepo, err := s.uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	txn, err := txRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	postings, err := txRepo.ListPostings(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ledger.Result{Txn: *txn, Postings: postings, Existing: true}, nil
}

// GetTransactionByOperationID returns the transaction recorded for an operation id.
func (s *Service) GetTransactionByOperationID(ctx context.Context, operationID string) (*ledger.Result, error) {
	if operationID == "" {
		return nil, fmt.Errorf("%w: operation id is required", domain.ErrValidation)
	}
	return s.loadByOperationID(ctx, operationID)
}

// GetBalance returns Σ debits − Σ credits of the account.
func (s *Service) GetBalance(ctx context.Context, accountID uuid.UUID) (money.Amount, error) {
	if bal, ok, err := s.cache.Get(ctx, accountID); err != nil {
		s.logger.Warn("Balance cache read failed", "account_id", accountID, "error", err)
	} else if ok {
		return bal, nil
	}

	// The version is read before the ledger so a write committed meanwhile
	// makes the Set below a no-op.
	version, verErr := s.cache.Version(ctx, accountID)
	if verErr != nil {
		s.logger.Warn("Balance cache version read failed", "account_id", accountID, "error", verErr)
	}

	acctRepo, err := s.uow.AccountRepository()
	if err != nil {
		return 0, err
	}
	if _, err := acctRepo.Get(ctx, accountID); err != nil {
		return 0, err
	}
	txRepo, err := s.uow.TransactionRepository()
	if err != nil {
		return 0, err
	}
	bal, err := txRepo.Balance(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if verErr == nil {
		if err := s.cache.Set(ctx, accountID, bal, version, s.cacheTTL); err != nil {
			s.logger.Warn("Balance cache write failed", "account_id", accountID, "error", err)
		}
	}
	return bal, nil
}

// ListAccountPostings returns the newest postings touching the account.
// limit <= 0 selects the default page size.
func (s *Service) ListAccountPostings(ctx context.Context, accountID uuid.UUID, limit int) ([]ledger.Posting, error) {
	if limit <= 0 {
		limit = defaultStatementLimit
	}
	limit = min(limit, maxStatementLimit)

	acctRepo, err := s.uow.AccountRepository()
	if err != nil {
		return nil, err
	}
	if _, err := acctRepo.Get(ctx, accountID); err != nil {
		return nil, err
	}
	txRepo, err := s.uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	return txRepo.ListAccountPostings(ctx, accountID, limit)
}

// ValidateTransactionZeroSum audits a recorded transaction without modifying it.
func (s *Service) ValidateTransactionZeroSum(ctx context.Context, txnID uuid.UUID) (ledger.ZeroSumReport, error) {
	txRepo, err := s.uow.TransactionRepository()
	if err != nil {
		return ledger.ZeroSumReport{}, err
	}
	acctRepo, err := s.uow.AccountRepository()
	if err != nil {
		return ledger.ZeroSumReport{}, err
	}
	if _, err := txRepo.Get(ctx, txnID); err != nil {
		return ledger.ZeroSumReport{}, err
	}
	postings, err := txRepo.ListPostings(ctx, txnID)
	if err != nil {
		return ledger.ZeroSumReport{}, err
	}
	accounts, err := accountsOf(ctx, acctRepo, postings)
	if err != nil {
		return ledger.ZeroSumReport{}, err
	}
	return ledger.CheckZeroSum(txnID, postings, accounts), nil
}

func accountsOf(
	ctx context.Context,
	repo repository.AccountRepository,
	postings []ledger.Posting,
) (map[uuid.UUID]ledger.Account, error) {
	ids := touchedAccounts(postings)
	list, err := repo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]ledger.Account, len(list))
	for _, a := range list {
		out[a.ID] = a
	}
	return out, nil
}

// touchedAccounts lists the distinct accounts of postings in first-seen order.
func touchedAccounts(postings []ledger.Posting) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(postings)*2)
	ids := make([]uuid.UUID, 0, len(postings)*2)
	for _, p := range postings {
		for _, id := range [2]uuid.UUID{p.DebitAccountID, p.CreditAccountID} {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}
