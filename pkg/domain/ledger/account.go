// Package ledger holds the double-entry ledger domain types.
//
// Invariants:
//   - Balances are never stored; they derive from postings (Σdebit − Σcredit).
//   - Every transaction is zero-sum per currency.
//   - A transaction exists at most once per operation id.
package ledger

import (
	"fmt"
	"time"

	"github.com/amirasaad/mlmcore/pkg/domain"
	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/google/uuid"
)

// OwnerType distinguishes user-owned accounts from system pools.
type OwnerType string

const (
	OwnerUser   OwnerType = "user"
	OwnerSystem OwnerType = "system"
)

// SystemOwnerKey is the owner key shared by all system accounts.
const SystemOwnerKey = "system"

// AccountType is the purpose of an account.
type AccountType string

const (
	AccountCash        AccountType = "cash"
	AccountPV          AccountType = "pv"
	AccountVWC         AccountType = "vwc"
	AccountReferral    AccountType = "referral"
	AccountReserve     AccountType = "reserve"
	AccountNetworkFund AccountType = "network_fund"
)

// IsValid reports whether t is a known account type.
func (t AccountType) IsValid() bool {
	switch t {
	case AccountCash, AccountPV, AccountVWC, AccountReferral, AccountReserve, AccountNetworkFund:
		return true
	}
	return false
}

// Owner identifies who an account belongs to. System owners carry no id.
type Owner struct {
	Type OwnerType
	ID   *uuid.UUID
}

// UserOwner returns the owner descriptor for a user.
func UserOwner(id uuid.UUID) Owner {
	return Owner{Type: OwnerUser, ID: &id}
}

// SystemOwner returns the owner descriptor for system pools.
func SystemOwner() Owner {
	return Owner{Type: OwnerSystem}
}

// Validate checks the owner type and id combination.
func (o Owner) Validate() error {
	switch o.Type {
	case OwnerUser:
		if o.ID == nil || *o.ID == uuid.Nil {
			return fmt.Errorf("%w: user owner requires an id", domain.ErrValidation)
		}
	case OwnerSystem:
		if o.ID != nil {
			return fmt.Errorf("%w: system owner must not carry an id", domain.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown owner type %q", domain.ErrValidation, o.Type)
	}
	return nil
}

// Key is the non-null identity component stored alongside owner_id.
func (o Owner) Key() string {
	if o.Type == OwnerSystem || o.ID == nil {
		return SystemOwnerKey
	}
	return o.ID.String()
}

// Account is an immutable ledger account.
type Account struct {
	ID        uuid.UUID
	OwnerType OwnerType
	OwnerID   *uuid.UUID
	Currency  money.Code
	Type      AccountType
	CreatedAt time.Time
}

// Owner returns the account's owner descriptor.
func (a Account) Owner() Owner {
	return Owner{Type: a.OwnerType, ID: a.OwnerID}
}

// AccountKey is the natural identity of an account.
type AccountKey struct {
	Owner    Owner
	Currency money.Code
	Type     AccountType
}

// NewAccountKey validates and normalizes an account identity.
func NewAccountKey(owner Owner, currency money.Code, accountType AccountType) (AccountKey, error) {
	if err := owner.Validate(); err != nil {
		return AccountKey{}, err
	}
	if !currency.IsValid() {
		return AccountKey{}, fmt.Errorf("%w: %w %q", domain.ErrValidation, money.ErrInvalidCurrency, currency)
	}
	if !accountType.IsValid() {
		return AccountKey{}, fmt.Errorf("%w: unknown account type %q", domain.ErrValidation, accountType)
	}
	return AccountKey{Owner: owner, Currency: currency, Type: accountType}, nil
}
