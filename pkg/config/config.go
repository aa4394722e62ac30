package config

import (
	"time"
)

type DB struct {
	Url             string        `envconfig:"URL"`
	Isolation       string        `envconfig:"ISOLATION" default:"read_committed"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"25"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"1h"`
	AutoMigrate     bool          `envconfig:"AUTO_MIGRATE" default:"false"`
}

type Jwt struct {
	Secret string        `envconfig:"SECRET" required:"true"`
	Expiry time.Duration `envconfig:"EXPIRY" default:"24h"`
	Issuer string        `envconfig:"ISSUER" default:"mlmcore"`
}

type Auth struct {
	Jwt *Jwt `envconfig:"JWT"`
}

type Redis struct {
	URL          string        `envconfig:"URL" default:"redis://localhost:6379/0"`
	KeyPrefix    string        `envconfig:"KEY_PREFIX" default:"mlm:"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

// BalanceCache selects where derived balances are cached: none, memory or redis.
// memory is only coherent when a single process writes to the ledger.
type BalanceCache struct {
	Driver string        `envconfig:"DRIVER" default:"none"`
	TTL    time.Duration `envconfig:"TTL" default:"5m"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

// EventBus selects the event transport: memory or kafka.
type EventBus struct {
	Driver           string        `envconfig:"DRIVER" default:"memory"`
	Brokers          string        `envconfig:"BROKERS" default:"localhost:9092"`
	GroupID          string        `envconfig:"GROUP_ID" default:"mlmcore"`
	TopicPrefix      string        `envconfig:"TOPIC_PREFIX" default:"mlm.events"`
	DLQRetryInterval time.Duration `envconfig:"DLQ_RETRY_INTERVAL" default:"5m"`
	DLQBatchSize     int           `envconfig:"DLQ_BATCH_SIZE" default:"10"`
}

type Network struct {
	DefaultDepth  int  `envconfig:"DEFAULT_DEPTH" default:"16"`
	HardDepthCap  int  `envconfig:"HARD_DEPTH_CAP" default:"64"`
	RequireActive bool `envconfig:"REQUIRE_ACTIVE" default:"true"`
}

type Rank struct {
	MinActivePV        string `envconfig:"MIN_ACTIVE_PV" default:"0"`
	IncludeSelfInGroup bool   `envconfig:"INCLUDE_SELF_IN_GROUP" default:"true"`
	WindowDays         int    `envconfig:"WINDOW_DAYS" default:"30"`
}

type Commission struct {
	PoolPercent       string   `envconfig:"POOL_PERCENT" default:"50"`
	LevelRates        []string `envconfig:"LEVEL_RATES" default:"10,5,2.5"`
	ActivationBonus   string   `envconfig:"ACTIVATION_BONUS" default:"500.00"`
	ActivationEnabled bool     `envconfig:"ACTIVATION_ENABLED" default:"true"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"json"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[mlmcore]"`
}

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"3000"`
}

type App struct {
	Env          string        `envconfig:"APP_ENV" default:"development"`
	Server       *Server       `envconfig:"SERVER"`
	Log          *Log          `envconfig:"LOG"`
	DB           *DB           `envconfig:"DATABASE"`
	Auth         *Auth         `envconfig:"AUTH"`
	Redis        *Redis        `envconfig:"REDIS"`
	BalanceCache *BalanceCache `envconfig:"BALANCE_CACHE"`
	RateLimit    *RateLimit    `envconfig:"RATE_LIMIT"`
	EventBus     *EventBus     `envconfig:"EVENT_BUS"`
	Network      *Network      `envconfig:"NETWORK"`
	Rank         *Rank         `envconfig:"RANK"`
	Commission   *Commission   `envconfig:"COMMISSION"`
}
