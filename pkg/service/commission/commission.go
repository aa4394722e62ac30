// Package commission pays referral shares up the sponsor tree and partner activation bonuses.
//
// Every payout is a single ledger transaction keyed by a deterministic operation id,
// so replays of the same order or activation never pay twice.
package commission

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/amirasaad/mlmcore/pkg/config"
	"github.com/amirasaad/mlmcore/pkg/domain"
	"github.com/amirasaad/mlmcore/pkg/domain/commission"
	"github.com/amirasaad/mlmcore/pkg/domain/ledger"
	"github.com/amirasaad/mlmcore/pkg/metrics"
	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/amirasaad/mlmcore/pkg/repository"
	ledgersvc "github.com/amirasaad/mlmcore/pkg/service/ledger"
	networksvc "github.com/amirasaad/mlmcore/pkg/service/network"
	"github.com/google/uuid"
)

const (
	kindOrder      = "order"
	kindActivation = "activation"
)

// Service is the commission distributor.
type Service struct {
	uow     repository.UnitOfWork
	ledger  *ledgersvc.Service
	network *networksvc.Service
	policy  commission.Policy
	logger  *slog.Logger
}

// New creates a commission Service. It fails when the configured policy is invalid.
func New(deps config.Deps, led *ledgersvc.Service, net *networksvc.Service) (*Service, error) {
	policy := commission.DefaultPolicy()
	if deps.Config != nil && deps.Config.Commission != nil {
		var err error
		if policy, err = deps.Config.Commission.Policy(); err != nil {
			return nil, err
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		uow:     deps.Uow,
		ledger:  led,
		network: net,
		policy:  policy,
		logger:  logger,
	}, nil
}

// Policy returns the active split policy.
func (s *Service) Policy() commission.Policy { return s.policy }

// DistributeOrderCommission pays the referral split of a completed order to its buyer's upline.
func (s *Service) DistributeOrderCommission(ctx context.Context, orderID uuid.UUID) (res commission.Result, err error) {
	logger := s.logger.With("order_id", orderID)
	defer func() {
		if err == nil {
			observe(kindOrder, res)
		}
	}()

	opID := commission.OrderOperationID(orderID)
	if paid, ok, err := s.alreadyPaid(ctx, opID); err != nil || ok {
		if ok {
			logger.Info("🔁 [SKIP] Order commission already paid", "txn_id", paid.TxnID)
		}
		return paid, err
	}

	orders, err := s.uow.OrderRepository()
	if err != nil {
		return res, err
	}
	o, err := orders.Get(ctx, orderID)
	if err != nil {
		return res, err
	}
	if !o.IsCompleted() {
		logger.Info("Order not completed, skipping commission", "status", o.Status)
		return commission.Skipped(commission.ReasonOrderNotCompleted), nil
	}
	if s.policy.Levels() == 0 {
		return commission.Skipped(commission.ReasonDisabled), nil
	}

	upline, err := s.network.GetUpline(ctx, o.BuyerID, s.policy.Levels())
	if err != nil {
		return res, err
	}
	if len(upline) == 0 {
		logger.Info("Buyer has no upline, skipping commission", "buyer_id", o.BuyerID)
		return commission.Skipped(commission.ReasonNoUpline), nil
	}

	pool, err := s.policy.Pool(o.BaseAmount)
	if err != nil {
		return res, err
	}
	shares := make([]commission.Share, 0, len(upline))
	for i, node := range upline {
		rate := s.policy.LevelRates[i]
		if !rate.IsPositive() {
			continue
		}
		amount, err := pool.Percent(rate)
		if err != nil {
			return res, err
		}
		if !amount.IsPositive() {
			continue
		}
		shares = append(shares, commission.Share{Level: node.Level, UserID: node.UserID, Amount: amount})
	}
	if len(shares) == 0 {
		logger.Info("Every level share rounds to zero, skipping commission", "pool", pool)
		return commission.Skipped(commission.ReasonZeroShares), nil
	}

	fund, err := s.ledger.EnsureAccount(ctx, ledger.SystemOwner(), money.RUB, ledger.AccountNetworkFund)
	if err != nil {
		return res, err
	}
	postings := make([]ledger.PostingSpec, 0, len(shares))
	levels := make([]any, 0, len(shares))
	for _, sh := range shares {
		acct, err := s.ledger.EnsureAccount(ctx, ledger.UserOwner(sh.UserID), money.RUB, ledger.AccountReferral)
		if err != nil {
			return res, err
		}
		postings = append(postings, ledger.PostingSpec{
			DebitAccountID:  acct.ID,
			CreditAccountID: fund.ID,
			Amount:          sh.Amount,
			Currency:        money.RUB,
			Memo:            "referral L" + strconv.Itoa(sh.Level),
		})
		levels = append(levels, map[string]any{
			"level":   sh.Level,
			"user_id": sh.UserID.String(),
			"amount":  sh.Amount.String(),
		})
	}

	buyerID := o.BuyerID
	written, err := s.ledger.CreateTransaction(ctx, ledger.TxnRequest{
		OperationID: opID,
		OpType:      ledger.OpReferralBonus,
		UserID:      &buyerID,
		OrderID:     &orderID,
		Metadata: ledger.Metadata{
			"base":         o.BaseAmount.String(),
			"pool":         pool.String(),
			"pool_percent": s.policy.PoolPercent.String(),
			"levels":       levels,
		},
		Postings: postings,
	})
	if err != nil {
		logger.Error("Commission transaction failed", "error", err)
		return res, err
	}
	if written.Existing {
		return alreadyPaidResult(written), nil
	}

	txnID := written.Txn.ID
	res = commission.Result{
		Outcome:    commission.OutcomePaid,
		TxnID:      &txnID,
		LevelsPaid: len(shares),
		Pool:       pool,
		Shares:     shares,
	}
	logger.Info("Order commission paid", "txn_id", txnID, "levels", len(shares), "pool", pool)
	return res, nil
}

// GrantActivationBonus pays the fixed activation bonus to the direct sponsor of a new partner.
// Missing or inconsistent sponsor data skips the payout instead of failing.
func (s *Service) GrantActivationBonus(ctx context.Context, userID uuid.UUID) (res commission.Result, err error) {
	logger := s.logger.With("user_id", userID)
	defer func() {
		if err == nil {
			observe(kindActivation, res)
		}
	}()

	bonus := s.policy.ActivationBonus
	if !bonus.IsPositive() {
		return commission.Skipped(commission.ReasonDisabled), nil
	}
	opID := commission.ActivationOperationID(userID)
	if paid, ok, err := s.alreadyPaid(ctx, opID); err != nil || ok {
		return paid, err
	}

	member, err := s.network.Member(ctx, userID)
	if err != nil {
		return res, err
	}
	if !member.IsPartner {
		return commission.Skipped(commission.ReasonNotPartner), nil
	}
	edge, err := s.network.GetParent(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Info("Partner has no sponsor, skipping activation bonus")
		return commission.Skipped(commission.ReasonNoSponsor), nil
	}
	if err != nil {
		return res, err
	}
	sponsor, err := s.network.Member(ctx, edge.ParentID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("Sponsor record missing, skipping activation bonus", "sponsor_id", edge.ParentID)
		return commission.Skipped(commission.ReasonNoSponsor), nil
	}
	if err != nil {
		return res, err
	}
	if !sponsor.Active {
		return commission.Skipped(commission.ReasonInactiveSponsor), nil
	}

	acct, err := s.ledger.EnsureAccount(ctx, ledger.UserOwner(sponsor.ID), money.RUB, ledger.AccountReferral)
	if err != nil {
		return res, err
	}
	fund, err := s.ledger.EnsureAccount(ctx, ledger.SystemOwner(), money.RUB, ledger.AccountNetworkFund)
	if err != nil {
		return res, err
	}
	written, err := s.ledger.CreatePosting(ctx, ledger.PostingRequest{
		OperationID:     opID,
		OpType:          ledger.OpActivationBonus,
		DebitAccountID:  acct.ID,
		CreditAccountID: fund.ID,
		Amount:          bonus,
		Currency:        money.RUB,
		Memo:            "partner activation",
		UserID:          &userID,
		Metadata:        ledger.Metadata{"sponsor_id": sponsor.ID.String(), "pool": bonus.String()},
	})
	if err != nil {
		logger.Error("Activation bonus transaction failed", "error", err)
		return res, err
	}
	if written.Existing {
		return alreadyPaidResult(written), nil
	}
	txnID := written.Txn.ID
	logger.Info("Activation bonus paid", "sponsor_id", sponsor.ID, "amount", bonus)
	return commission.Result{
		Outcome:    commission.OutcomePaid,
		TxnID:      &txnID,
		LevelsPaid: 1,
		Pool:       bonus,
		Shares:     []commission.Share{{Level: 1, UserID: sponsor.ID, Amount: bonus}},
	}, nil
}

func (s *Service) alreadyPaid(ctx context.Context, opID string) (commission.Result, bool, error) {
	existing, err := s.ledger.GetTransactionByOperationID(ctx, opID)
	if errors.Is(err, domain.ErrNotFound) {
		return commission.Result{}, false, nil
	}
	if err != nil {
		return commission.Result{}, false, err
	}
	return alreadyPaidResult(existing), true, nil
}

func alreadyPaidResult(r *ledger.Result) commission.Result {
	txnID := r.Txn.ID
	res := commission.Result{
		Outcome:    commission.OutcomeAlreadyPaid,
		TxnID:      &txnID,
		LevelsPaid: len(r.Postings),
	}
	if raw, ok := r.Txn.Metadata["pool"].(string); ok {
		if pool, err := money.Parse(raw); err == nil {
			res.Pool = pool
		}
	}
	return res
}

func observe(kind string, res commission.Result) {
	metrics.CommissionOutcomes.WithLabelValues(kind, string(res.Outcome), res.Reason).Inc()
	if res.Outcome != commission.OutcomePaid {
		return
	}
	for _, sh := range res.Shares {
		metrics.CommissionPaid.WithLabelValues(strconv.Itoa(sh.Level)).Observe(sh.Amount.Decimal().InexactFloat64())
	}
}
