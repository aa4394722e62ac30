package config

import (
	"database/sql"
	"testing"

	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommissionPolicy(t *testing.T) {
	c := &Commission{
		PoolPercent:       "50",
		LevelRates:        []string{"10", " 5", "2.5"},
		ActivationBonus:   "500.00",
		ActivationEnabled: true,
	}
	p, err := c.Policy()
	require.NoError(t, err)
	assert.True(t, p.PoolPercent.Equal(decimal.NewFromInt(50)))
	require.Equal(t, 3, p.Levels())
	assert.True(t, p.LevelRates[2].Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, money.MustParse("500.00"), p.ActivationBonus)

	c.ActivationEnabled = false
	p, err = c.Policy()
	require.NoError(t, err)
	assert.Zero(t, p.ActivationBonus)
}

func TestCommissionPolicy_Invalid(t *testing.T) {
	cases := map[string]*Commission{
		"bad pool":        {PoolPercent: "half", LevelRates: []string{"10"}},
		"pool over 100":   {PoolPercent: "150", LevelRates: []string{"10"}},
		"bad rate":        {PoolPercent: "50", LevelRates: []string{"ten"}},
		"negative rate":   {PoolPercent: "50", LevelRates: []string{"-1"}},
		"rates over 100":  {PoolPercent: "50", LevelRates: []string{"60", "50"}},
		"bad bonus":       {PoolPercent: "50", ActivationBonus: "lots", ActivationEnabled: true},
		"too precise fee": {PoolPercent: "50", ActivationBonus: "0.001", ActivationEnabled: true},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Policy()
			assert.Error(t, err)
		})
	}
}

func TestCommissionPolicy_NilUsesDefault(t *testing.T) {
	var c *Commission
	p, err := c.Policy()
	require.NoError(t, err)
	assert.Equal(t, 3, p.Levels())
}

func TestRankMinActive(t *testing.T) {
	v, err := (&Rank{MinActivePV: "12.50"}).MinActive()
	require.NoError(t, err)
	assert.Equal(t, money.Amount(1250), v)

	v, err = (*Rank)(nil).MinActive()
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = (&Rank{MinActivePV: "x"}).MinActive()
	assert.Error(t, err)
}

func TestDBTxOptions(t *testing.T) {
	cases := []struct {
		in   string
		want *sql.TxOptions
	}{
		{"", nil},
		{"default", nil},
		{"read_committed", &sql.TxOptions{Isolation: sql.LevelReadCommitted}},
		{"REPEATABLE_READ", &sql.TxOptions{Isolation: sql.LevelRepeatableRead}},
		{"serializable", &sql.TxOptions{Isolation: sql.LevelSerializable}},
	}
	for _, tc := range cases {
		got, err := (&DB{Isolation: tc.in}).TxOptions()
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := (&DB{Isolation: "snapshot"}).TxOptions()
	assert.Error(t, err)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "from-env-secret")
	t.Setenv("COMMISSION_LEVEL_RATES", "8,4")
	t.Setenv("EVENT_BUS_DRIVER", "kafka")

	cfg, err := Load("does-not-exist.env")
	require.NoError(t, err)
	assert.Equal(t, "from-env-secret", cfg.Auth.Jwt.Secret)
	assert.Equal(t, []string{"8", "4"}, cfg.Commission.LevelRates)
	assert.Equal(t, "kafka", cfg.EventBus.Driver)
	assert.Equal(t, 16, cfg.Network.DefaultDepth)
	assert.Equal(t, "read_committed", cfg.DB.Isolation)
}
