// Package initializer builds the process logger and the infrastructure dependencies.
package initializer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/amirasaad/mlmcore/infra"
	infraeventbus "github.com/amirasaad/mlmcore/infra/eventbus"
	infrarepo "github.com/amirasaad/mlmcore/infra/repository"
	"github.com/amirasaad/mlmcore/pkg/config"
	"github.com/amirasaad/mlmcore/pkg/domain"
	"github.com/amirasaad/mlmcore/pkg/eventbus"
)

// InitializeDependencies connects to the database, optionally migrates it,
// and builds the cache and event bus selected by configuration.
func InitializeDependencies(cfg *config.App) (*config.Deps, error) {
	logger := SetupLogger(cfg.Log)
	deps := &config.Deps{Logger: logger, Config: cfg}

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return nil, err
	}
	if cfg.DB.AutoMigrate {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		if err := infra.Migrate(sqlDB, logger); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	txOpts, err := cfg.DB.TxOptions()
	if err != nil {
		return nil, err
	}
	deps.Uow = infrarepo.NewUoW(db, infrarepo.WithTxOptions(txOpts))

	if deps.BalanceCache, err = infra.NewBalanceCache(logger, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize balance cache: %w", err)
	}
	if deps.EventBus, err = initEventBus(cfg, logger); err != nil {
		return nil, err
	}
	return deps, nil
}

// initEventBus builds the configured bus. A kafka bus whose brokers are unreachable
// at startup degrades to the asynchronous in-memory bus instead of failing the process.
func initEventBus(cfg *config.App, logger *slog.Logger) (eventbus.Bus, error) {
	bus, err := infra.NewEventBus(logger, cfg)
	if err == nil {
		return bus, nil
	}
	if errors.Is(err, domain.ErrValidation) {
		return nil, err
	}
	logger.Warn("Kafka unavailable, falling back to in-memory async event bus", "error", err)
	return infraeventbus.NewWithMemoryAsync(logger, 256), nil
}
