package cache

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/amirasaad/mlmcore/pkg/cache"
	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// setIfVersion writes KEYS[1] only while the version counter KEYS[2] equals ARGV[2].
var setIfVersion = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[2] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// RedisBalanceCache implements BalanceCache using Redis.
// Balances are stored as their minor-unit integer under <prefix>balance:<account id>
// and invalidation versions under <prefix>balance_version:<account id>.
type RedisBalanceCache struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// NewRedisBalanceCache creates a RedisBalanceCache on an existing client.
func NewRedisBalanceCache(client redis.UniversalClient, prefix string, logger *slog.Logger) *RedisBalanceCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBalanceCache{client: client, prefix: prefix, logger: logger.With("cache", "redis")}
}

// NewRedisBalanceCacheFromURL parses a redis:// URL and connects.
func NewRedisBalanceCacheFromURL(
	url, prefix string,
	poolSize int,
	dialTimeout, readTimeout, writeTimeout time.Duration,
	logger *slog.Logger,
) (*RedisBalanceCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if poolSize > 0 {
		opt.PoolSize = poolSize
	}
	opt.DialTimeout = dialTimeout
	opt.ReadTimeout = readTimeout
	opt.WriteTimeout = writeTimeout
	return NewRedisBalanceCache(redis.NewClient(opt), prefix, logger), nil
}

func (r *RedisBalanceCache) key(accountID uuid.UUID) string {
	return r.prefix + "balance:" + accountID.String()
}

func (r *RedisBalanceCache) versionKey(accountID uuid.UUID) string {
	return r.prefix + "balance_version:" + accountID.String()
}

func (r *RedisBalanceCache) Get(ctx context.Context, accountID uuid.UUID) (money.Amount, bool, error) {
	val, err := r.client.Get(ctx, r.key(accountID)).Result()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("Redis cache miss", "account_id", accountID)
		return 0, false, nil
	}
	if err != nil {
		r.logger.Error("Redis cache get error", "account_id", accountID, "error", err)
		return 0, false, err
	}
	minor, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		r.logger.Error("Redis cache decode error", "account_id", accountID, "value", val, "error", err)
		return 0, false, err
	}
	return money.Amount(minor), true, nil
}

func (r *RedisBalanceCache) Version(ctx context.Context, accountID uuid.UUID) (uint64, error) {
	v, err := r.client.Get(ctx, r.versionKey(accountID)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		r.logger.Error("Redis cache version error", "account_id", accountID, "error", err)
		return 0, err
	}
	return v, nil
}

func (r *RedisBalanceCache) Set(
	ctx context.Context,
	accountID uuid.UUID,
	balance money.Amount,
	version uint64,
	ttl time.Duration,
) error {
	stored, err := setIfVersion.Run(ctx, r.client,
		[]string{r.key(accountID), r.versionKey(accountID)},
		strconv.FormatInt(int64(balance), 10),
		strconv.FormatUint(version, 10),
		ttl.Milliseconds(),
	).Int()
	if err != nil {
		r.logger.Error("Redis cache set error", "account_id", accountID, "error", err)
		return err
	}
	if stored == 0 {
		r.logger.Debug("Redis cache set skipped, balance invalidated meanwhile", "account_id", accountID)
	}
	return nil
}

func (r *RedisBalanceCache) Invalidate(ctx context.Context, accountIDs ...uuid.UUID) error {
	if len(accountIDs) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range accountIDs {
			pipe.Incr(ctx, r.versionKey(id))
			pipe.Del(ctx, r.key(id))
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Redis cache invalidate error", "accounts", len(accountIDs), "error", err)
		return err
	}
	return nil
}

// Close releases the underlying client.
func (r *RedisBalanceCache) Close() error {
	return r.client.Close()
}

var _ cache.BalanceCache = (*RedisBalanceCache)(nil)
