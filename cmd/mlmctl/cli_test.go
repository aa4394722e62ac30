package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	infracache "github.com/amirasaad/mlmcore/infra/cache"
	infraeventbus "github.com/amirasaad/mlmcore/infra/eventbus"
	infrarepo "github.com/amirasaad/mlmcore/infra/repository"
	"github.com/amirasaad/mlmcore/pkg/app"
	"github.com/amirasaad/mlmcore/pkg/config"
	"github.com/amirasaad/mlmcore/pkg/domain/commission"
	"github.com/amirasaad/mlmcore/pkg/domain/ledger"
	"github.com/amirasaad/mlmcore/pkg/money"
	ranksvc "github.com/amirasaad/mlmcore/pkg/service/rank"
	"github.com/amirasaad/mlmcore/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

func testApp(t *testing.T) (*app.App, *gorm.DB) {
	t.Helper()
	db := testutils.NewSQLiteDB(t)
	logger := testutils.DiscardLogger()
	a, err := app.New(&config.Deps{
		Uow:          infrarepo.NewUoW(db),
		BalanceCache: infracache.NewMemoryCache(),
		EventBus:     infraeventbus.NewWithMemory(logger),
		Logger:       logger,
		Config: &config.App{
			Network: &config.Network{DefaultDepth: 16, HardDepthCap: 64, RequireActive: true},
			Rank:    &config.Rank{MinActivePV: "0", IncludeSelfInGroup: true, WindowDays: 30},
			Commission: &config.Commission{
				PoolPercent: "50", LevelRates: []string{"10", "5", "2.5"},
				ActivationBonus: "500.00", ActivationEnabled: true,
			},
		},
	})
	require.NoError(t, err)
	return a, db
}

func run(t *testing.T, a *app.App, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	boot := func(*cli.Context) (*app.App, func(), error) { return a, nil, nil }
	c := newCLI(boot)
	c.Writer = &out
	err := c.Run(append([]string{"mlmctl"}, args...))
	return out.String(), err
}

func TestDistributeThenReverseThenBalance(t *testing.T) {
	a, db := testApp(t)
	chain := testutils.SeedChain(t, db, 4)
	orderID := testutils.SeedOrder(t, db, testutils.OrderFixture{BuyerID: chain[3], Base: "1000.00"})

	out, err := run(t, a, "distribute", "--order", orderID.String())
	require.NoError(t, err)
	var res commission.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, commission.OutcomePaid, res.Outcome)
	require.NotNil(t, res.TxnID)

	out, err = run(t, a, "balance", "--user", chain[2].String())
	require.NoError(t, err)
	var bal struct {
		Balance money.Amount `json:"balance"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &bal))
	assert.Equal(t, money.MustParse("50.00"), bal.Balance)

	out, err = run(t, a, "accounts", "--user", chain[2].String())
	require.NoError(t, err)
	var accounts []struct {
		Currency string `json:"currency"`
		Type     string `json:"type"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &accounts))
	require.Len(t, accounts, 1)
	assert.Equal(t, "RUB", accounts[0].Currency)
	assert.Equal(t, string(ledger.AccountReferral), accounts[0].Type)

	_, err = run(t, a, "reverse", "--txn", res.TxnID.String(), "--reason", "refund", "--operator", "ops@mlm")
	require.NoError(t, err)
	rev, err := a.LedgerService.GetTransactionByOperationID(context.Background(), ledger.ReversalOperationID(*res.TxnID))
	require.NoError(t, err)
	assert.Equal(t, "refund", rev.Txn.Metadata["reason"])
	assert.Equal(t, "ops@mlm", rev.Txn.Metadata["operator"])

	out, err = run(t, a, "balance", "--user", chain[2].String())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &bal))
	assert.Equal(t, money.Amount(0), bal.Balance)
}

func TestStatsAndRecompute(t *testing.T) {
	a, db := testApp(t)
	chain := testutils.SeedChain(t, db, 2)
	hourAgo := time.Now().UTC().Add(-time.Hour)
	testutils.SeedOrder(t, db, testutils.OrderFixture{BuyerID: chain[0], PV: "100.00", DeliveredAt: &hourAgo})

	out, err := run(t, a, "stats", "--user", chain[0].String())
	require.NoError(t, err)
	assert.Contains(t, out, `"personal_pv": "100.00"`)

	out, err = run(t, a, "recompute-ranks", "--workers", "2")
	require.NoError(t, err)
	var sum ranksvc.RecomputeSummary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, int64(2), sum.Processed)
	assert.Zero(t, sum.Failed)
}

func TestArgumentErrors(t *testing.T) {
	a, _ := testApp(t)

	_, err := run(t, a, "balance")
	assert.Error(t, err)

	_, err = run(t, a, "distribute", "--order", "not-a-uuid")
	assert.Error(t, err)

	_, err = run(t, a, "reverse")
	assert.Error(t, err, "--txn is required")
}
