package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirasaad/mlmcore/pkg/domain"
	"github.com/amirasaad/mlmcore/pkg/domain/ledger"
	"github.com/amirasaad/mlmcore/pkg/metrics"
	"github.com/amirasaad/mlmcore/pkg/repository"
	"github.com/google/uuid"
)

// ReverseTransaction writes a mirror transaction that cancels txnID and marks the original reversed.
// A transaction is reversed at most once; reversals themselves cannot be reversed.
// reason and operator are recorded in the reversal's metadata when non-empty.
func (s *Service) ReverseTransaction(ctx context.Context, txnID uuid.UUID, reason, operator string) (*ledger.Result, error) {
	opID := ledger.ReversalOperationID(txnID)
	logger := s.logger.With("txn_id", txnID, "operation_id", opID)

	v, err, _ := s.inflight.Do(opID, func() (any, error) {
		var res *ledger.Result
		err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
			var err error
			res, err = s.reverse(ctx, uow, txnID, reason, operator)
			return err
		})
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Another writer inserted reversal:<id> first.
			return nil, ledger.ErrAlreadyReversed
		}
		return res, err
	})
	if err != nil {
		metrics.LedgerReversals.WithLabelValues(reversalResult(err)).Inc()
		logger.Error("ReverseTransaction failed", "error", err)
		return nil, err
	}
	metrics.LedgerReversals.WithLabelValues("reversed").Inc()
	res := *v.(*ledger.Result)
	s.afterWrite(ctx, &res)
	logger.Info("Transaction reversed", "reversal_txn_id", res.Txn.ID)
	return &res, nil
}

func (s *Service) reverse(
	ctx context.Context,
	uow repository.UnitOfWork,
	txnID uuid.UUID,
	reason, operator string,
) (*ledger.Result, error) {
	txRepo, err := uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	orig, err := txRepo.Get(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if orig.OpType == ledger.OpReversal || orig.ReversesTxnID != nil {
		return nil, fmt.Errorf("%w: transaction %s is itself a reversal", domain.ErrValidation, txnID)
	}
	if orig.IsReversed() {
		return nil, ledger.ErrAlreadyReversed
	}
	postings, err := txRepo.ListPostings(ctx, txnID)
	if err != nil {
		return nil, err
	}

	meta := ledger.Metadata{"reverses_operation_id": orig.OperationID}
	if reason != "" {
		meta["reason"] = reason
	}
	if operator != "" {
		meta["operator"] = operator
	}
	req := ledger.TxnRequest{
		OperationID:   ledger.ReversalOperationID(txnID),
		OpType:        ledger.OpReversal,
		UserID:        orig.UserID,
		OrderID:       orig.OrderID,
		Metadata:      meta,
		Postings:      ledger.ReversalPostings(postings),
		ReversesTxnID: &orig.ID,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	res, err := s.write(ctx, uow, req)
	if err != nil {
		return nil, err
	}
	if res.Existing {
		return nil, ledger.ErrAlreadyReversed
	}

	ok, err := txRepo.MarkReversed(ctx, txnID, res.Txn.ID, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ledger.ErrAlreadyReversed
	}
	return res, nil
}

func reversalResult(err error) string {
	switch {
	case errors.Is(err, ledger.ErrAlreadyReversed):
		return "already_reversed"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
