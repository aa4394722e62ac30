//go:build integration

package app_test

import (
	"context"
	"sync"
	"testing"

	infracache "github.com/amirasaad/mlmcore/infra/cache"
	infraeventbus "github.com/amirasaad/mlmcore/infra/eventbus"
	infrarepo "github.com/amirasaad/mlmcore/infra/repository"
	"github.com/amirasaad/mlmcore/pkg/app"
	"github.com/amirasaad/mlmcore/pkg/config"
	"github.com/amirasaad/mlmcore/pkg/domain/commission"
	"github.com/amirasaad/mlmcore/pkg/domain/ledger"
	"github.com/amirasaad/mlmcore/pkg/domain/network"
	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/amirasaad/mlmcore/pkg/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type PostgresSuite struct {
	suite.Suite
	db  *gorm.DB
	app *app.App
}

func TestPostgresSuite(t *testing.T) {
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	s.db = testutils.NewPostgresDB(s.T())
	logger := testutils.DiscardLogger()
	cfg := &config.App{
		DB:      &config.DB{Isolation: "read_committed"},
		Network: &config.Network{DefaultDepth: 16, HardDepthCap: 64, RequireActive: true},
	}
	opts, err := cfg.DB.TxOptions()
	s.Require().NoError(err)
	s.app, err = app.New(&config.Deps{
		Uow:          infrarepo.NewUoW(s.db, infrarepo.WithTxOptions(opts)),
		BalanceCache: infracache.NewMemoryCache(),
		EventBus:     infraeventbus.NewWithMemory(logger),
		Logger:       logger,
		Config:       cfg,
	})
	s.Require().NoError(err)
}

func (s *PostgresSuite) TestConcurrentEnsureAccountCreatesOne() {
	ctx := context.Background()
	owner := ledger.UserOwner(testutils.SeedUser(s.T(), s.db))

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 16)
	errs := make([]error, 16)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc, err := s.app.LedgerService.EnsureAccount(ctx, owner, money.RUB, ledger.AccountCash)
			errs[i] = err
			if err == nil {
				ids[i] = acc.ID
			}
		}()
	}
	wg.Wait()
	for i := range ids {
		s.Require().NoError(errs[i])
		s.Equal(ids[0], ids[i])
	}
}

func (s *PostgresSuite) TestDistributionIsPaidOnceAcrossConcurrentCallers() {
	ctx := context.Background()
	chain := testutils.SeedChain(s.T(), s.db, 4)
	orderID := testutils.SeedOrder(s.T(), s.db, testutils.OrderFixture{BuyerID: chain[3], Base: "1000.00"})

	var wg sync.WaitGroup
	results := make([]commission.Result, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = s.app.CommissionService.DistributeOrderCommission(ctx, orderID)
		}()
	}
	wg.Wait()

	paid := 0
	for i := range results {
		s.Require().NoError(errs[i])
		if results[i].Outcome == commission.OutcomePaid {
			paid++
		}
	}
	s.Equal(1, paid)

	l1, err := s.app.LedgerService.EnsureAccount(ctx, ledger.UserOwner(chain[2]), money.RUB, ledger.AccountReferral)
	s.Require().NoError(err)
	bal, err := s.app.LedgerService.GetBalance(ctx, l1.ID)
	s.Require().NoError(err)
	s.Equal(money.MustParse("50.00"), bal)

	res, err := s.app.LedgerService.GetTransactionByOperationID(ctx, commission.OrderOperationID(orderID))
	s.Require().NoError(err)
	report, err := s.app.LedgerService.ValidateTransactionZeroSum(ctx, res.Txn.ID)
	s.Require().NoError(err)
	s.True(report.Balanced)
}

func (s *PostgresSuite) TestConcurrentReversalWinsOnce() {
	ctx := context.Background()
	user := testutils.SeedUser(s.T(), s.db)
	acc, err := s.app.LedgerService.EnsureAccount(ctx, ledger.UserOwner(user), money.VWC, ledger.AccountVWC)
	s.Require().NoError(err)
	reserve, err := s.app.LedgerService.EnsureAccount(ctx, ledger.SystemOwner(), money.VWC, ledger.AccountReserve)
	s.Require().NoError(err)
	res, err := s.app.LedgerService.CreatePosting(ctx, ledger.PostingRequest{
		OpType: ledger.OpAdjustment, DebitAccountID: acc.ID, CreditAccountID: reserve.ID,
		Amount: money.MustParse("10.00"), Currency: money.VWC,
	})
	s.Require().NoError(err)

	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.app.LedgerService.ReverseTransaction(ctx, res.Txn.ID, "race", "")
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		s.ErrorIs(err, ledger.ErrAlreadyReversed)
	}
	s.Equal(1, ok)
	bal, err := s.app.LedgerService.GetBalance(ctx, acc.ID)
	s.Require().NoError(err)
	s.Zero(bal)
}

func (s *PostgresSuite) TestCycleRejectedOnPostgres() {
	ctx := context.Background()
	chain := testutils.SeedChain(s.T(), s.db, 3)
	_, err := s.app.NetworkService.AttachChildToParent(ctx, chain[2], chain[0])
	s.ErrorIs(err, network.ErrCycle)

	edge, err := s.app.NetworkService.GetParent(ctx, chain[1])
	s.Require().NoError(err)
	s.Equal(chain[0], edge.ParentID)
}

func (s *PostgresSuite) TestMutualAttachRaceLeavesNoCycle() {
	ctx := context.Background()
	for round := 0; round < 10; round++ {
		users := testutils.SeedUsers(s.T(), s.db, 2)
		a, b := users[0], users[1]

		var wg sync.WaitGroup
		start := make(chan struct{})
		errs := make([]error, 2)
		pairs := [][2]uuid.UUID{{a, b}, {b, a}}
		for i, p := range pairs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, errs[i] = s.app.NetworkService.AttachChildToParent(ctx, p[0], p[1])
			}()
		}
		close(start)
		wg.Wait()

		ok := 0
		for _, err := range errs {
			if err == nil {
				ok++
				continue
			}
			s.ErrorIs(err, network.ErrCycle)
		}
		s.Equal(1, ok, "round %d", round)

		var edges int64
		s.Require().NoError(s.db.Model(&infrarepo.NetworkEdge{}).
			Where("child_id IN ?", []uuid.UUID{a, b}).Count(&edges).Error)
		s.Equal(int64(1), edges, "round %d", round)
	}
}

func (s *PostgresSuite) TestConcurrentReattachKeepsSingleParent() {
	ctx := context.Background()
	users := testutils.SeedUsers(s.T(), s.db, 9)
	child, parents := users[0], users[1:]

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, len(parents))
	for i, parent := range parents {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = s.app.NetworkService.AttachChildToParent(ctx, parent, child)
		}()
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		s.Require().NoError(err)
	}
	var edges int64
	s.Require().NoError(s.db.Model(&infrarepo.NetworkEdge{}).Where("child_id = ?", child).Count(&edges).Error)
	s.Equal(int64(1), edges)

	edge, err := s.app.NetworkService.GetParent(ctx, child)
	s.Require().NoError(err)
	s.Contains(parents, edge.ParentID)
}
