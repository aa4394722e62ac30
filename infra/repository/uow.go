package repository

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/amirasaad/mlmcore/pkg/repository"
	"gorm.io/gorm"
)

// UoW provides transaction boundary and repository access in one abstraction.
// Repositories handed out inside Do share the transaction; outside Do they use the root session.
type UoW struct {
	db           *gorm.DB
	tx           *gorm.DB
	txOpts       *sql.TxOptions
	repoRegistry map[reflect.Type]func(*gorm.DB) any
}

// Option configures a UoW.
type Option func(*UoW)

// WithTxOptions sets the isolation level and read-only flag used by Do.
func WithTxOptions(opts *sql.TxOptions) Option {
	return func(u *UoW) { u.txOpts = opts }
}

// NewUoW creates a new UoW for the given *gorm.DB.
func NewUoW(db *gorm.DB, opts ...Option) *UoW {
	u := &UoW{
		db: db,
		repoRegistry: map[reflect.Type]func(*gorm.DB) any{
			reflect.TypeOf((*repository.AccountRepository)(nil)).Elem():     func(db *gorm.DB) any { return NewAccountRepository(db) },
			reflect.TypeOf((*repository.TransactionRepository)(nil)).Elem(): func(db *gorm.DB) any { return NewTransactionRepository(db) },
			reflect.TypeOf((*repository.NetworkRepository)(nil)).Elem():     func(db *gorm.DB) any { return NewNetworkRepository(db) },
			reflect.TypeOf((*repository.RankRuleRepository)(nil)).Elem():    func(db *gorm.DB) any { return NewRankRuleRepository(db) },
			reflect.TypeOf((*repository.UserRepository)(nil)).Elem():        func(db *gorm.DB) any { return NewUserRepository(db) },
			reflect.TypeOf((*repository.OrderRepository)(nil)).Elem():       func(db *gorm.DB) any { return NewOrderRepository(db) },
		},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Do runs the given function in a transaction boundary, providing a UoW with repository access.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	if u.tx != nil {
		// Already inside a transaction: join it.
		return fn(u)
	}
	var opts []*sql.TxOptions
	if u.txOpts != nil {
		opts = append(opts, u.txOpts)
	}
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txnUow := &UoW{db: u.db, tx: tx, txOpts: u.txOpts, repoRegistry: u.repoRegistry}
		return fn(txnUow)
	}, opts...)
}

// GetRepository provides type-safe access to repositories bound to the current session.
func (u *UoW) GetRepository(repoType reflect.Type) (any, error) {
	constructor, ok := u.repoRegistry[repoType]
	if !ok {
		return nil, fmt.Errorf("unsupported repository type: %v", repoType)
	}
	return constructor(u.session()), nil
}

func (u *UoW) session() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

// AccountRepository returns the account repository bound to the current session.
func (u *UoW) AccountRepository() (repository.AccountRepository, error) {
	return getRepo[repository.AccountRepository](u)
}

// TransactionRepository returns the ledger transaction repository bound to the current session.
func (u *UoW) TransactionRepository() (repository.TransactionRepository, error) {
	return getRepo[repository.TransactionRepository](u)
}

// NetworkRepository returns the sponsor tree repository bound to the current session.
func (u *UoW) NetworkRepository() (repository.NetworkRepository, error) {
	return getRepo[repository.NetworkRepository](u)
}

// RankRuleRepository returns the rank ladder repository bound to the current session.
func (u *UoW) RankRuleRepository() (repository.RankRuleRepository, error) {
	return getRepo[repository.RankRuleRepository](u)
}

// UserRepository returns the users adapter bound to the current session.
func (u *UoW) UserRepository() (repository.UserRepository, error) {
	return getRepo[repository.UserRepository](u)
}

// OrderRepository returns the orders adapter bound to the current session.
func (u *UoW) OrderRepository() (repository.OrderRepository, error) {
	return getRepo[repository.OrderRepository](u)
}

func getRepo[T any](u *UoW) (T, error) {
	var zero T
	repoAny, err := u.GetRepository(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return zero, err
	}
	repo, ok := repoAny.(T)
	if !ok {
		return zero, fmt.Errorf("repository type mismatch for %T", zero)
	}
	return repo, nil
}

var _ repository.UnitOfWork = (*UoW)(nil)
