package repository

import (
	"context"

	"github.com/amirasaad/mlmcore/pkg/domain/ledger"
	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/amirasaad/mlmcore/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates an account repository on the given session.
func NewAccountRepository(db *gorm.DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Ensure(ctx context.Context, key ledger.AccountKey) (*ledger.Account, error) {
	row := Account{
		ID:          uuid.New(),
		OwnerType:   string(key.Owner.Type),
		OwnerID:     key.Owner.ID,
		OwnerKey:    key.Owner.Key(),
		Currency:    string(key.Currency),
		AccountType: string(key.Type),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return r.FindByKey(ctx, key)
}

func (r *accountRepository) Get(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	var row Account
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return mapAccountModelToDomain(&row), nil
}

func (r *accountRepository) FindByKey(ctx context.Context, key ledger.AccountKey) (*ledger.Account, error) {
	var row Account
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_key = ? AND currency = ? AND account_type = ?",
			string(key.Owner.Type), key.Owner.Key(), string(key.Currency), string(key.Type)).
		First(&row).Error
	if err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return mapAccountModelToDomain(&row), nil
}

func (r *accountRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]ledger.Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []Account
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	out := make([]ledger.Account, 0, len(rows))
	for i := range rows {
		out = append(out, *mapAccountModelToDomain(&rows[i]))
	}
	return out, nil
}

func (r *accountRepository) ListByOwner(ctx context.Context, owner ledger.Owner) ([]ledger.Account, error) {
	var rows []Account
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_key = ?", string(owner.Type), owner.Key()).
		Order("currency, account_type").
		Find(&rows).Error
	if err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	out := make([]ledger.Account, 0, len(rows))
	for i := range rows {
		out = append(out, *mapAccountModelToDomain(&rows[i]))
	}
	return out, nil
}

func mapAccountModelToDomain(row *Account) *ledger.Account {
	return &ledger.Account{
		ID:        row.ID,
		OwnerType: ledger.OwnerType(row.OwnerType),
		OwnerID:   row.OwnerID,
		Currency:  money.Code(row.Currency),
		Type:      ledger.AccountType(row.AccountType),
		CreatedAt: row.CreatedAt,
	}
}
