package ledger_test

import (
	"strings"
	"testing"

	"github.com/amirasaad/mlmcore/pkg/domain"
	"github.com/amirasaad/mlmcore/pkg/domain/ledger"
	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwner_Validate(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name    string
		owner   ledger.Owner
		wantErr bool
	}{
		{"user with id", ledger.UserOwner(id), false},
		{"system", ledger.SystemOwner(), false},
		{"user without id", ledger.Owner{Type: ledger.OwnerUser}, true},
		{"system with id", ledger.Owner{Type: ledger.OwnerSystem, ID: &id}, true},
		{"unknown type", ledger.Owner{Type: "bank"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.owner.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			require.NoError(t, err)
		})
	}

	assert.Equal(t, "system", ledger.SystemOwner().Key())
	assert.Equal(t, id.String(), ledger.UserOwner(id).Key())
}

func TestNewAccountKey(t *testing.T) {
	_, err := ledger.NewAccountKey(ledger.SystemOwner(), money.RUB, ledger.AccountNetworkFund)
	require.NoError(t, err)

	_, err = ledger.NewAccountKey(ledger.SystemOwner(), "EUR", ledger.AccountNetworkFund)
	require.ErrorIs(t, err, domain.ErrValidation)
	require.ErrorIs(t, err, money.ErrInvalidCurrency)

	_, err = ledger.NewAccountKey(ledger.SystemOwner(), money.RUB, "savings")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestTxnRequest_Validate(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	valid := ledger.PostingSpec{DebitAccountID: a, CreditAccountID: b, Amount: 100, Currency: money.RUB}

	require.NoError(t, ledger.TxnRequest{OpType: ledger.OpAdjustment, Postings: []ledger.PostingSpec{valid}}.Validate())

	tests := map[string]ledger.TxnRequest{
		"no postings": {OpType: ledger.OpAdjustment},
		"bad op type": {OpType: "gift", Postings: []ledger.PostingSpec{valid}},
		"zero amount": {OpType: ledger.OpAdjustment, Postings: []ledger.PostingSpec{
			{DebitAccountID: a, CreditAccountID: b, Amount: 0, Currency: money.RUB},
		}},
		"same account": {OpType: ledger.OpAdjustment, Postings: []ledger.PostingSpec{
			{DebitAccountID: a, CreditAccountID: a, Amount: 1, Currency: money.RUB},
		}},
		"bad currency": {OpType: ledger.OpAdjustment, Postings: []ledger.PostingSpec{
			{DebitAccountID: a, CreditAccountID: b, Amount: 1, Currency: "USD"},
		}},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, req.Validate(), domain.ErrValidation)
		})
	}
}

func TestCheckZeroSum(t *testing.T) {
	txnID := uuid.New()
	user := ledger.Account{ID: uuid.New(), Currency: money.RUB}
	pool := ledger.Account{ID: uuid.New(), Currency: money.RUB}
	pv := ledger.Account{ID: uuid.New(), Currency: money.PV}
	accounts := map[uuid.UUID]ledger.Account{user.ID: user, pool.ID: pool, pv.ID: pv}

	t.Run("balanced", func(t *testing.T) {
		report := ledger.CheckZeroSum(txnID, []ledger.Posting{
			{ID: uuid.New(), DebitAccountID: user.ID, CreditAccountID: pool.ID, Amount: 5000, Currency: money.RUB},
			{ID: uuid.New(), DebitAccountID: user.ID, CreditAccountID: pool.ID, Amount: 2500, Currency: money.RUB},
		}, accounts)
		assert.True(t, report.Balanced)
		require.NoError(t, report.Err())
		require.Len(t, report.Totals, 1)
		assert.Equal(t, money.Amount(7500), report.Totals[0].Debit)
		assert.Equal(t, money.Amount(7500), report.Totals[0].Credit)
	})

	t.Run("currency mismatch", func(t *testing.T) {
		report := ledger.CheckZeroSum(txnID, []ledger.Posting{
			{ID: uuid.New(), DebitAccountID: user.ID, CreditAccountID: pv.ID, Amount: 100, Currency: money.RUB},
		}, accounts)
		assert.False(t, report.Balanced)
		require.ErrorIs(t, report.Err(), domain.ErrIntegrity)
		require.Len(t, report.Totals, 2)
		assert.Equal(t, ledger.CurrencyTotals{Currency: money.PV, Credit: 100}, report.Totals[0])
		assert.Equal(t, ledger.CurrencyTotals{Currency: money.RUB, Debit: 100}, report.Totals[1])
	})

	t.Run("totals follow account currency", func(t *testing.T) {
		report := ledger.CheckZeroSum(txnID, []ledger.Posting{
			{ID: uuid.New(), DebitAccountID: user.ID, CreditAccountID: pool.ID, Amount: 300, Currency: money.RUB},
			{ID: uuid.New(), DebitAccountID: pool.ID, CreditAccountID: pv.ID, Amount: 300, Currency: money.PV},
		}, accounts)
		assert.False(t, report.Balanced)
		var unbalanced []string
		for _, p := range report.Problems {
			if strings.HasPrefix(p, "currency ") {
				unbalanced = append(unbalanced, p)
			}
		}
		assert.Len(t, unbalanced, 2, "RUB and PV are each one-sided")
	})

	t.Run("unknown account", func(t *testing.T) {
		report := ledger.CheckZeroSum(txnID, []ledger.Posting{
			{ID: uuid.New(), DebitAccountID: uuid.New(), CreditAccountID: pool.ID, Amount: 100, Currency: money.RUB},
		}, accounts)
		require.ErrorIs(t, report.Err(), ledger.ErrUnbalanced)
	})
}

func TestReversalPostings_SwapSides(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	original := []ledger.Posting{
		{DebitAccountID: a, CreditAccountID: b, Amount: 1250, Currency: money.RUB, Memo: "L3"},
	}
	rev := ledger.ReversalPostings(original)
	require.Len(t, rev, 1)
	assert.Equal(t, b, rev[0].DebitAccountID)
	assert.Equal(t, a, rev[0].CreditAccountID)
	assert.Equal(t, money.Amount(1250), rev[0].Amount)
	assert.Equal(t, "reversal: L3", rev[0].Memo)

	id := uuid.New()
	assert.Equal(t, "reversal:"+id.String(), ledger.ReversalOperationID(id))
}
