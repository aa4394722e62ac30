package testutils

import (
	"context"
	"testing"
	"time"

	"github.com/amirasaad/mlmcore/infra"
	"github.com/amirasaad/mlmcore/pkg/config"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewPostgresDB starts a disposable Postgres container, applies the embedded
// migrations and returns a connected pool. The container is terminated on cleanup.
// TEST_POSTGRES_IMAGE and TEST_POSTGRES_STARTUP_TIMEOUT override the container defaults;
// SKIP_TESTCONTAINERS skips the calling test.
func NewPostgresDB(t testing.TB) *gorm.DB {
	t.Helper()
	if config.IsEnvSet("SKIP_TESTCONTAINERS") {
		t.Skip("SKIP_TESTCONTAINERS is set")
	}
	ctx := context.Background()

	pg, err := startPostgresContainer(ctx)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(config.GetEnvAsInt("TEST_POSTGRES_MAX_CONNS", 20))
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, infra.Migrate(sqlDB, DiscardLogger()))
	return db
}

func startPostgresContainer(ctx context.Context) (*tcpostgres.PostgresContainer, error) {
	return tcpostgres.Run(
		ctx,
		config.GetEnv("TEST_POSTGRES_IMAGE", "postgres:16-alpine"),
		tcpostgres.WithDatabase("mlmcore"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(config.GetEnvAsDuration("TEST_POSTGRES_STARTUP_TIMEOUT", 60*time.Second)),
		),
	)
}
