package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	cases := []struct {
		name     string
		amount   string
		currency string
		want     int64
	}{
		{"ron two decimals", "200.00", "ron", 20000},
		{"upper case currency", "19.99", " RON ", 1999},
		{"no fraction", "15", "eur", 1500},
		{"zero decimal currency", "1500", "jpy", 1500},
		{"zero", "0", "ron", 0},
		{"float drift value", "0.29", "usd", 29},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToMinorUnits(decimal.RequireFromString(tc.amount), tc.currency)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestToMinorUnits_Rejects(t *testing.T) {
	_, err := ToMinorUnits(decimal.RequireFromString("-1.00"), "ron")
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = ToMinorUnits(decimal.RequireFromString("10.005"), "ron")
	assert.ErrorIs(t, err, ErrSubMinorPrecision)

	_, err = ToMinorUnits(decimal.RequireFromString("10.5"), "jpy")
	assert.ErrorIs(t, err, ErrSubMinorPrecision)

	_, err = ToMinorUnits(decimal.RequireFromString("999999999999999999999"), "ron")
	assert.ErrorIs(t, err, ErrAmountOverflow)
}

func TestFromMinorUnits_RoundTrip(t *testing.T) {
	d := FromMinorUnits(20000, "ron")
	assert.True(t, d.Equal(decimal.RequireFromString("200.00")), d.String())

	minor, err := ToMinorUnits(d, "ron")
	require.NoError(t, err)
	assert.Equal(t, int64(20000), minor)

	assert.True(t, FromMinorUnits(1500, "JPY").Equal(decimal.NewFromInt(1500)))
}
