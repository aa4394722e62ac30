package infra

import (
	"fmt"
	"log/slog"
	"strings"

	infracache "github.com/amirasaad/mlmcore/infra/cache"
	infraeventbus "github.com/amirasaad/mlmcore/infra/eventbus"
	"github.com/amirasaad/mlmcore/pkg/cache"
	"github.com/amirasaad/mlmcore/pkg/config"
	"github.com/amirasaad/mlmcore/pkg/domain"
	"github.com/amirasaad/mlmcore/pkg/eventbus"
)

// NewBalanceCache builds the balance cache selected by BALANCE_CACHE_DRIVER.
func NewBalanceCache(logger *slog.Logger, cfg *config.App) (cache.BalanceCache, error) {
	driver := "none"
	if cfg.BalanceCache != nil {
		driver = strings.ToLower(strings.TrimSpace(cfg.BalanceCache.Driver))
	}
	switch driver {
	case "none", "":
		logger.Info("Balance cache disabled")
		return cache.Noop{}, nil
	case "memory":
		logger.Warn("Using in-memory balance cache; writes from other processes are not seen")
		return infracache.NewMemoryCache(), nil
	case "redis":
		r := cfg.Redis
		if r == nil {
			return nil, fmt.Errorf("redis balance cache requires REDIS_* settings")
		}
		c, err := infracache.NewRedisBalanceCacheFromURL(
			r.URL, r.KeyPrefix, r.PoolSize,
			r.DialTimeout, r.ReadTimeout, r.WriteTimeout,
			logger,
		)
		if err != nil {
			logger.Error("Invalid Redis URL", "url", maskURL(r.URL), "error", err)
			return nil, err
		}
		logger.Info("Using Redis balance cache", "url", maskURL(r.URL), "prefix", r.KeyPrefix)
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported BALANCE_CACHE_DRIVER %q", driver)
	}
}

// NewEventBus builds the event bus selected by EVENT_BUS_DRIVER.
// An empty driver selects the asynchronous in-memory bus. Configuration
// mistakes wrap domain.ErrValidation; a kafka dial failure does not.
func NewEventBus(logger *slog.Logger, cfg *config.App) (eventbus.Bus, error) {
	driver := ""
	if cfg.EventBus != nil {
		driver = strings.ToLower(strings.TrimSpace(cfg.EventBus.Driver))
	}
	switch driver {
	case "", "memory-async":
		logger.Info("Using asynchronous in-memory event bus")
		return infraeventbus.NewWithMemoryAsync(logger, 256), nil
	case "memory":
		logger.Info("Using in-memory event bus")
		return infraeventbus.NewWithMemory(logger), nil
	case "kafka":
		eb := cfg.EventBus
		if strings.TrimSpace(eb.Brokers) == "" {
			return nil, fmt.Errorf("%w: EVENT_BUS_BROKERS is required for the kafka event bus", domain.ErrValidation)
		}
		return infraeventbus.NewWithKafka(eb.Brokers, logger, infraeventbus.KafkaEventBusConfig{
			GroupID:     eb.GroupID,
			TopicPrefix: eb.TopicPrefix,
		})
	default:
		return nil, fmt.Errorf("%w: unsupported EVENT_BUS_DRIVER %q", domain.ErrValidation, driver)
	}
}

// maskURL hides credentials embedded in a connection URL for logging
func maskURL(u string) string {
	at := strings.LastIndex(u, "@")
	scheme := strings.Index(u, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return u
	}
	return u[:scheme+3] + "***" + u[at:]
}
