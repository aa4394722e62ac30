package repository

import (
	"context"
	"reflect"
)

// UnitOfWork defines the contract for transactional work and type-safe repository access.
//
// Do runs fn inside one database transaction; every repository obtained from the
// UnitOfWork passed to fn shares that transaction. Repositories obtained from the
// root UnitOfWork run outside any transaction and must not be used inside fn.
type UnitOfWork interface {
	// Do executes the given function within a transaction boundary.
	// If the function returns an error, the transaction is rolled back.
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error

	// GetRepository returns a repository of the requested type, bound to the current session.
	//   repoAny, err := uow.GetRepository(reflect.TypeOf((*AccountRepository)(nil)).Elem())
	GetRepository(repoType reflect.Type) (any, error)

	AccountRepository() (AccountRepository, error)
	TransactionRepository() (TransactionRepository, error)
	NetworkRepository() (NetworkRepository, error)
	RankRuleRepository() (RankRuleRepository, error)
	UserRepository() (UserRepository, error)
	OrderRepository() (OrderRepository, error)
}
