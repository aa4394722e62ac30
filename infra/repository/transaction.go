package repository

import (
	"context"
	"time"

	"github.com/amirasaad/mlmcore/pkg/domain/ledger"
	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/amirasaad/mlmcore/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const balanceQuery = `
SELECT CAST(COALESCE(SUM(CASE WHEN debit_account_id = @id THEN amount ELSE 0 END), 0)
          - COALESCE(SUM(CASE WHEN credit_account_id = @id THEN amount ELSE 0 END), 0) AS BIGINT)
FROM ledger_postings
WHERE debit_account_id = @id OR credit_account_id = @id`

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a ledger transaction repository on the given session.
func NewTransactionRepository(db *gorm.DB) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, txn *ledger.Txn) error {
	row := mapTxnDomainToModel(txn)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return MapGormErrorToDomain(err)
	}
	txn.CreatedAt = row.CreatedAt
	return nil
}

func (r *transactionRepository) Get(ctx context.Context, id uuid.UUID) (*ledger.Txn, error) {
	var row LedgerTransaction
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return mapTxnModelToDomain(&row), nil
}

func (r *transactionRepository) GetByOperationID(ctx context.Context, operationID string) (*ledger.Txn, error) {
	var row LedgerTransaction
	if err := r.db.WithContext(ctx).First(&row, "operation_id = ?", operationID).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return mapTxnModelToDomain(&row), nil
}

func (r *transactionRepository) MarkReversed(
	ctx context.Context,
	id, reversalTxnID uuid.UUID,
	at time.Time,
) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&LedgerTransaction{}).
		Where("id = ? AND reversed_at IS NULL", id).
		Updates(map[string]any{
			"reversed_at":     at,
			"reversal_txn_id": reversalTxnID,
		})
	if res.Error != nil {
		return false, MapGormErrorToDomain(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *transactionRepository) CreatePostings(ctx context.Context, postings []ledger.Posting) error {
	if len(postings) == 0 {
		return nil
	}
	rows := make([]Posting, 0, len(postings))
	for i := range postings {
		row := mapPostingDomainToModel(&postings[i])
		row.Line = i + 1
		rows = append(rows, row)
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return MapGormErrorToDomain(err)
	}
	for i := range rows {
		postings[i].CreatedAt = rows[i].CreatedAt
	}
	return nil
}

func (r *transactionRepository) ListPostings(ctx context.Context, txnID uuid.UUID) ([]ledger.Posting, error) {
	var rows []Posting
	err := r.db.WithContext(ctx).
		Where("txn_id = ?", txnID).
		Order("line, id").
		Find(&rows).Error
	if err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return mapPostingModelsToDomain(rows), nil
}

func (r *transactionRepository) ListAccountPostings(
	ctx context.Context,
	accountID uuid.UUID,
	limit int,
) ([]ledger.Posting, error) {
	var rows []Posting
	q := r.db.WithContext(ctx).
		Where("debit_account_id = ? OR credit_account_id = ?", accountID, accountID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return mapPostingModelsToDomain(rows), nil
}

func (r *transactionRepository) Balance(ctx context.Context, accountID uuid.UUID) (money.Amount, error) {
	var balance int64
	err := r.db.WithContext(ctx).
		Raw(balanceQuery, map[string]any{"id": accountID}).
		Scan(&balance).Error
	if err != nil {
		return 0, MapGormErrorToDomain(err)
	}
	return money.Amount(balance), nil
}

func mapTxnDomainToModel(t *ledger.Txn) LedgerTransaction {
	return LedgerTransaction{
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
	}
}

func mapTxnModelToDomain(row *LedgerTransaction) *ledger.Txn {
	return &ledger.Txn{
		ID:            row.ID,
		OperationID:   row.OperationID,
		OpType:        ledger.OpType(row.OpType),
		UserID:        row.UserID,
		OrderID:       row.OrderID,
		Metadata:      row.Metadata,
		ReversedAt:    row.ReversedAt,
		ReversalTxnID: row.ReversalTxnID,
		ReversesTxnID: row.ReversesTxnID,
		CreatedAt:     row.CreatedAt,
	}
}

func mapPostingDomainToModel(p *ledger.Posting) Posting {
	return Posting{
		ID:              p.ID,
		TxnID:           p.TxnID,
		DebitAccountID:  p.DebitAccountID,
		CreditAccountID: p.CreditAccountID,
		Amount:          int64(p.Amount),
		Currency:        string(p.Currency),
		Memo:            p.Memo,
		CreatedAt:       p.CreatedAt,
	}
}

func mapPostingModelsToDomain(rows []Posting) []ledger.Posting {
	out := make([]ledger.Posting, 0, len(rows))
	for _, row := range rows {
		out = append(out, ledger.Posting{
			ID:              row.ID,
			TxnID:           row.TxnID,
			DebitAccountID:  row.DebitAccountID,
			CreditAccountID: row.CreditAccountID,
			Amount:          money.Amount(row.Amount),
			Currency:        money.Code(row.Currency),
			Memo:            row.Memo,
			CreatedAt:       row.CreatedAt,
		})
	}
	return out
}
