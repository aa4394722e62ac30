package config

import (
	"log/slog"

	"github.com/amirasaad/mlmcore/pkg/cache"
	"github.com/amirasaad/mlmcore/pkg/eventbus"
	"github.com/amirasaad/mlmcore/pkg/repository"
)

// Deps holds all infrastructure dependencies for building the app and services.
type Deps struct {
	Uow          repository.UnitOfWork
	BalanceCache cache.BalanceCache
	EventBus     eventbus.Bus
	Logger       *slog.Logger
	Config       *App
}
