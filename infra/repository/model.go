package repository

import (
	"time"

	"github.com/google/uuid"
)

// Account is the GORM model of the accounts table.
// OwnerKey holds the owner uuid or "system" so the identity index never sees NULL.
type Account struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	OwnerType   string     `gorm:"size:16;not null;uniqueIndex:ux_accounts_identity,priority:1"`
	OwnerID     *uuid.UUID `gorm:"type:uuid"`
	OwnerKey    string     `gorm:"size:64;not null;uniqueIndex:ux_accounts_identity,priority:2"`
	Currency    string     `gorm:"size:3;not null;uniqueIndex:ux_accounts_identity,priority:3"`
	AccountType string     `gorm:"size:32;not null;uniqueIndex:ux_accounts_identity,priority:4"`
	CreatedAt   time.Time
}

// TableName specifies the table name for the Account model.
func (Account) TableName() string { return "accounts" }

// LedgerTransaction is the GORM model of a ledger transaction header.
type LedgerTransaction struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	OperationID   string         `gorm:"size:255;not null;uniqueIndex"`
	OpType        string         `gorm:"size:32;not null"`
	UserID        *uuid.UUID     `gorm:"type:uuid;index"`
	OrderID       *uuid.UUID     `gorm:"type:uuid;index"`
	Metadata      map[string]any `gorm:"serializer:json"`
	ReversedAt    *time.Time
	ReversalTxnID *uuid.UUID `gorm:"type:uuid"`
	ReversesTxnID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt     time.Time
}

// TableName specifies the table name for the LedgerTransaction model.
func (LedgerTransaction) TableName() string { return "ledger_transactions" }

// Posting is the GORM model of a single debit/credit pair.
type Posting struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	TxnID           uuid.UUID `gorm:"type:uuid;not null;index"`
	Line            int       `gorm:"not null;default:0"`
	DebitAccountID  uuid.UUID `gorm:"type:uuid;not null;index"`
	CreditAccountID uuid.UUID `gorm:"type:uuid;not null;index"`
	Amount          int64     `gorm:"not null"`
	Currency        string    `gorm:"size:3;not null"`
	Memo            string    `gorm:"size:255"`
	CreatedAt       time.Time
}

// TableName specifies the table name for the Posting model.
func (Posting) TableName() string { return "ledger_postings" }

// NetworkEdge is the GORM model of a sponsor tree edge.
type NetworkEdge struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	ParentID   uuid.UUID `gorm:"type:uuid;not null;index"`
	ChildID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	AttachedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for the NetworkEdge model.
func (NetworkEdge) TableName() string { return "network_edges" }

// RankRule is the GORM model of one rank ladder rung.
type RankRule struct {
	Level            int    `gorm:"primaryKey;autoIncrement:false"`
	Name             string `gorm:"size:64;not null"`
	MinActiveDirects int    `gorm:"not null;default:0"`
	MinPersonalPV    int64  `gorm:"column:min_personal_pv;not null;default:0"`
	MinGroupPV       int64  `gorm:"column:min_group_pv;not null;default:0"`
}

// TableName specifies the table name for the RankRule model.
func (RankRule) TableName() string { return "rank_rules" }

// User maps the columns of the users table this service reads.
type User struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email          string    `gorm:"size:255"`
	Active         bool      `gorm:"not null;default:true"`
	ReferrerLocked bool      `gorm:"not null;default:false"`
	IsPartner      bool      `gorm:"not null;default:false"`
	RankLevel      int       `gorm:"not null;default:0"`
	CreatedAt      time.Time
}

// TableName specifies the table name for the User model.
func (User) TableName() string { return "users" }

// Order maps the columns of the orders table this service reads.
type Order struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	BuyerID     uuid.UUID `gorm:"type:uuid;not null;index"`
	BaseAmount  int64     `gorm:"not null"`
	PV          int64     `gorm:"column:pv;not null;default:0"`
	Status      string    `gorm:"size:16;not null"`
	DeliveredAt *time.Time
	CreatedAt   time.Time
}

// TableName specifies the table name for the Order model.
func (Order) TableName() string { return "orders" }

// Models lists every model this package persists, for schema bootstrapping in tests.
func Models() []any {
	return []any{
		&Account{},
		&LedgerTransaction{},
		&Posting{},
		&NetworkEdge{},
		&RankRule{},
		&User{},
		&Order{},
	}
}
