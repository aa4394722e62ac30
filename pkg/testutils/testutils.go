// Package testutils holds database fixtures shared by service, repository and API tests.
package testutils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	infrarepo "github.com/amirasaad/mlmcore/infra/repository"
	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultRankRules mirrors the ladder seeded by the network migration.
var DefaultRankRules = []infrarepo.RankRule{
	{Level: 1, Name: "consultant", MinActiveDirects: 0, MinPersonalPV: 5000, MinGroupPV: 0},
	{Level: 2, Name: "manager", MinActiveDirects: 2, MinPersonalPV: 10000, MinGroupPV: 50000},
	{Level: 3, Name: "director", MinActiveDirects: 5, MinPersonalPV: 20000, MinGroupPV: 300000},
	{Level: 4, Name: "diamond", MinActiveDirects: 10, MinPersonalPV: 20000, MinGroupPV: 1000000},
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewSQLiteDB opens a private in-memory SQLite database with the full schema
// and the default rank ladder. A single connection serializes writers the way
// row locks would on Postgres.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(infrarepo.Models()...))
	require.NoError(t, db.Create(&DefaultRankRules).Error)
	return db
}

// UserOption tweaks a seeded user row.
type UserOption func(*infrarepo.User)

// Inactive marks the user as deactivated.
func Inactive() UserOption { return func(u *infrarepo.User) { u.Active = false } }

// Partner marks the user as an activated partner.
func Partner() UserOption { return func(u *infrarepo.User) { u.IsPartner = true } }

// ReferrerLocked freezes the user's sponsor.
func ReferrerLocked() UserOption { return func(u *infrarepo.User) { u.ReferrerLocked = true } }

// SeedUser inserts an active user and returns its id.
func SeedUser(t testing.TB, db *gorm.DB, opts ...UserOption) uuid.UUID {
	t.Helper()
	id := uuid.New()
	row := infrarepo.User{
		ID:        id,
		Email:     "user_" + id.String()[:8] + "@example.com",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&row)
	}
	// Select("*") so false booleans are written instead of column defaults.
	require.NoError(t, db.Select("*").Create(&row).Error)
	return id
}

// SeedUsers inserts n active users.
func SeedUsers(t testing.TB, db *gorm.DB, n int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, 0, n)
	for range n {
		ids = append(ids, SeedUser(t, db))
	}
	return ids
}

// SeedEdge links child under parent directly, bypassing attach rules.
func SeedEdge(t testing.TB, db *gorm.DB, parentID, childID uuid.UUID) {
	t.Helper()
	require.NoError(t, db.Create(&infrarepo.NetworkEdge{
		ParentID:   parentID,
		ChildID:    childID,
		AttachedAt: time.Now().UTC(),
	}).Error)
}

// SeedChain creates a straight line of n users, each sponsored by the previous one.
// The first element is the root.
func SeedChain(t testing.TB, db *gorm.DB, n int) []uuid.UUID {
	t.Helper()
	ids := SeedUsers(t, db, n)
	for i := 1; i < n; i++ {
		SeedEdge(t, db, ids[i-1], ids[i])
	}
	return ids
}

// OrderFixture describes an order row to seed.
type OrderFixture struct {
	BuyerID     uuid.UUID
	Base        string
	PV          string
	Status      string
	DeliveredAt *time.Time
}

// SeedOrder inserts an order and returns its id.
func SeedOrder(t testing.TB, db *gorm.DB, f OrderFixture) uuid.UUID {
	t.Helper()
	if f.Status == "" {
		f.Status = "delivered"
	}
	if f.Base == "" {
		f.Base = "0"
	}
	if f.PV == "" {
		f.PV = "0"
	}
	if f.Status == "delivered" && f.DeliveredAt == nil {
		now := time.Now().UTC()
		f.DeliveredAt = &now
	}
	row := infrarepo.Order{
		ID:          uuid.New(),
		BuyerID:     f.BuyerID,
		BaseAmount:  int64(money.MustParse(f.Base)),
		PV:          int64(money.MustParse(f.PV)),
		Status:      f.Status,
		DeliveredAt: f.DeliveredAt,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, db.Create(&row).Error)
	return row.ID
}

// CountRows counts rows of a model, failing the test on error.
func CountRows(t testing.TB, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.WithContext(context.Background()).Model(model).Count(&n).Error)
	return n
}
