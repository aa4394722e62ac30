package money_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    money.Amount
		wantErr error
	}{
		{"whole", "1000", 100000, nil},
		{"two decimals", "87.50", 8750, nil},
		{"one decimal", "12.5", 1250, nil},
		{"trailing zeros", "1.500", 150, nil},
		{"negative", "-3.25", -325, nil},
		{"too precise", "0.005", 0, money.ErrTooPrecise},
		{"garbage", "abc", 0, money.ErrInvalidAmount},
		{"overflow", "99999999999999999999", 0, money.ErrAmountOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := money.Parse(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAmount_String(t *testing.T) {
	assert.Equal(t, "87.50", money.Amount(8750).String())
	assert.Equal(t, "0.01", money.Amount(1).String())
	assert.Equal(t, "-12.30", money.Amount(-1230).String())
	assert.Equal(t, "0.00", money.Amount(0).String())
}

func TestAmount_PercentRoundsHalfUp(t *testing.T) {
	tests := []struct {
		amount  string
		percent string
		want    string
	}{
		{"1000", "50", "500.00"},
		{"500", "10", "50.00"},
		{"500", "5", "25.00"},
		{"500", "2.5", "12.50"},
		{"0.05", "50", "0.03"},  // 0.025 -> 0.03
		{"0.03", "50", "0.02"},  // 0.015 -> 0.02
		{"0.01", "10", "0.00"},  // 0.001 -> 0.00
		{"33.33", "33.333", "11.11"},
	}
	for _, tt := range tests {
		t.Run(tt.amount+"x"+tt.percent, func(t *testing.T) {
			got, err := money.MustParse(tt.amount).Percent(decimal.RequireFromString(tt.percent))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	_, err := money.Amount(100).Percent(decimal.NewFromInt(-1))
	require.ErrorIs(t, err, money.ErrInvalidPercent)
}

func TestAmount_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Amount money.Amount `json:"amount"`
	}{Amount: 8750})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"87.50"}`, string(data))

	var fromString struct {
		Amount money.Amount `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"12.34"}`), &fromString))
	assert.Equal(t, money.Amount(1234), fromString.Amount)

	var fromNumber struct {
		Amount money.Amount `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"amount":12.5}`), &fromNumber))
	assert.Equal(t, money.Amount(1250), fromNumber.Amount)

	var bad struct {
		Amount money.Amount `json:"amount"`
	}
	require.Error(t, json.Unmarshal([]byte(`{"amount":"1.234"}`), &bad))
}

func TestSum(t *testing.T) {
	total, err := money.Sum(5000, 2500, 1250)
	require.NoError(t, err)
	assert.Equal(t, money.Amount(8750), total)

	_, err = money.Sum(money.Amount(math.MaxInt64), 1)
	require.ErrorIs(t, err, money.ErrAmountOverflow)
}

func TestCode_IsValid(t *testing.T) {
	for _, c := range money.Codes() {
		assert.True(t, c.IsValid(), c)
	}
	assert.False(t, money.Code("USD").IsValid())
	assert.False(t, money.Code("").IsValid())
}
