// Package app wires the services on top of the infrastructure dependencies.
package app

import (
	"context"

	"github.com/amirasaad/mlmcore/pkg/config"
	"github.com/amirasaad/mlmcore/pkg/domain/events"
	"github.com/amirasaad/mlmcore/pkg/eventbus"
	commissionsvc "github.com/amirasaad/mlmcore/pkg/service/commission"
	ledgersvc "github.com/amirasaad/mlmcore/pkg/service/ledger"
	networksvc "github.com/amirasaad/mlmcore/pkg/service/network"
	ranksvc "github.com/amirasaad/mlmcore/pkg/service/rank"
)

type App struct {
	Deps              *config.Deps
	Config            *config.App
	LedgerService     *ledgersvc.Service
	NetworkService    *networksvc.Service
	RankService       *ranksvc.Service
	CommissionService *commissionsvc.Service
}

// New builds every service and registers the event handlers on the bus.
func New(deps *config.Deps) (*App, error) {
	a := &App{Deps: deps, Config: deps.Config}
	a.LedgerService = ledgersvc.New(*deps)
	a.NetworkService = networksvc.New(*deps)

	var err error
	if a.RankService, err = ranksvc.New(*deps, a.NetworkService); err != nil {
		return nil, err
	}
	if a.CommissionService, err = commissionsvc.New(*deps, a.LedgerService, a.NetworkService); err != nil {
		return nil, err
	}
	if deps.EventBus != nil {
		a.setupEventBus(deps.EventBus)
	}
	return a, nil
}

func (a *App) setupEventBus(bus eventbus.Bus) {
	a.CommissionService.RegisterHandlers(bus)

	logger := a.Deps.Logger
	if logger == nil {
		return
	}
	bus.Register(events.EventTypeTransactionPosted, eventbus.HandlerFunc(
		func(_ context.Context, e events.Event) error {
			if evt, ok := e.(*events.TransactionPosted); ok {
				logger.Debug("ledger transaction posted",
					"txn_id", evt.TxnID, "operation_id", evt.OperationID, "op_type", evt.OpType)
			}
			return nil
		}))
}
