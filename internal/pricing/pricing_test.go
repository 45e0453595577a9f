package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func rate(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestEffectivePrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		price    int64
		currency string
		rate     string
		want     int64
	}{
		{"krw passthrough", 10000, "KRW", "1350", 10000},
		{"empty currency passthrough", 10000, "", "1350", 10000},
		{"usd converted", 100, "USD", "1350", 135000},
		{"usd floors fractional", 3, "USD", "1350.7", 4052},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, EffectivePrice(tt.price, tt.currency, rate(tt.rate)))
		})
	}
}

func TestFeeFloors(t *testing.T) {
	t.Parallel()

	feeRate := rate("0.0005")
	assert.Equal(t, int64(500), Fee(1_000_000, feeRate))
	// 1999 * 0.0005 = 0.9995, floors to 0
	assert.Equal(t, int64(0), Fee(1999, feeRate))
	assert.Equal(t, int64(1), Fee(2000, feeRate))
}

func TestNetProceeds(t *testing.T) {
	t.Parallel()
	assert.Equal(t, int64(999_500), NetProceeds(1_000_000, 500))
}

func TestSharesForExcess(t *testing.T) {
	t.Parallel()

	feeRate := rate("0.0005")

	// net price 9995; 100,000,000 / 9995 = 10005.00..., ceil to 10006
	assert.Equal(t, int64(10006), SharesForExcess(100_000_000, 10_000, feeRate))
	// exact division still covers the excess
	assert.Equal(t, int64(2), SharesForExcess(19_990, 10_000, feeRate))
	assert.Equal(t, int64(0), SharesForExcess(0, 10_000, feeRate))
	assert.Equal(t, int64(0), SharesForExcess(1000, 0, feeRate))
}

func TestSharesForExcessCoversExcess(t *testing.T) {
	t.Parallel()

	feeRate := rate("0.0005")
	for _, excess := range []int64{1, 9_994, 9_995, 9_996, 100_000_000, 123_456_789} {
		shares := SharesForExcess(excess, 10_000, feeRate)
		amount := GrossAmount(10_000, shares)
		net := NetProceeds(amount, Fee(amount, feeRate))
		assert.GreaterOrEqual(t, net, excess, "excess %d", excess)
	}
}

func TestInterest(t *testing.T) {
	t.Parallel()

	daily := rate("0.001")
	assert.Equal(t, int64(1_000_000), Interest(1_000_000_000, daily, 1))
	assert.Equal(t, int64(3_000_000), Interest(1_000_000_000, daily, 3))
	// 1234 * 0.001 = 1.234, floors to 1
	assert.Equal(t, int64(1), Interest(1234, daily, 1))
	assert.Equal(t, int64(0), Interest(999, daily, 1))
	assert.Equal(t, int64(0), Interest(0, daily, 5))
	assert.Equal(t, int64(0), Interest(1_000_000, daily, 0))
}
