package config

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/amirasaad/mlmcore/pkg/domain/commission"
	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/shopspring/decimal"
)

// Policy converts the commission settings into a validated domain policy.
func (c *Commission) Policy() (commission.Policy, error) {
	if c == nil {
		return commission.DefaultPolicy(), nil
	}
	pool, err := decimal.NewFromString(strings.TrimSpace(c.PoolPercent))
	if err != nil {
		return commission.Policy{}, fmt.Errorf("COMMISSION_POOL_PERCENT: %w", err)
	}
	rates := make([]decimal.Decimal, 0, len(c.LevelRates))
	for i, raw := range c.LevelRates {
		r, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return commission.Policy{}, fmt.Errorf("COMMISSION_LEVEL_RATES[%d]: %w", i, err)
		}
		rates = append(rates, r)
	}
	bonus := money.Amount(0)
	if c.ActivationEnabled {
		bonus, err = money.Parse(strings.TrimSpace(c.ActivationBonus))
		if err != nil {
			return commission.Policy{}, fmt.Errorf("COMMISSION_ACTIVATION_BONUS: %w", err)
		}
	}
	p := commission.Policy{PoolPercent: pool, LevelRates: rates, ActivationBonus: bonus}
	if err := p.Validate(); err != nil {
		return commission.Policy{}, err
	}
	return p, nil
}

// MinActive parses the PV threshold above which a direct counts as active.
func (r *Rank) MinActive() (money.Amount, error) {
	if r == nil || strings.TrimSpace(r.MinActivePV) == "" {
		return 0, nil
	}
	return money.Parse(strings.TrimSpace(r.MinActivePV))
}

// TxOptions maps DATABASE_ISOLATION onto sql transaction options.
// An empty value or "default" leaves the driver default in place.
func (d *DB) TxOptions() (*sql.TxOptions, error) {
	if d == nil {
		return nil, nil
	}
	switch strings.ToLower(strings.TrimSpace(d.Isolation)) {
	case "", "default":
		return nil, nil
	case "read_committed":
		return &sql.TxOptions{Isolation: sql.LevelReadCommitted}, nil
	case "repeatable_read":
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead}, nil
	case "serializable":
		return &sql.TxOptions{Isolation: sql.LevelSerializable}, nil
	default:
		return nil, fmt.Errorf("unsupported DATABASE_ISOLATION %q", d.Isolation)
	}
}
