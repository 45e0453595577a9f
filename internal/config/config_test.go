package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":8080")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Empty(t, c.DBDSN)
	assert.Equal(t, "*", c.WebSocketOrigin)
	assert.Equal(t, "0.0005", c.FeeRate.String())
	assert.Equal(t, "0.001", c.DailyInterestRate.String())
	assert.Equal(t, int64(500_000_000), c.StartingBalance)
	assert.Equal(t, int64(500_000_000), c.CreditLimit)
	assert.Equal(t, "Asia/Seoul", c.MarketTZ.String())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("FEE_RATE", "0.001")
	t.Setenv("STARTING_BALANCE", "1000000")
	t.Setenv("MARKET_TZ", "UTC")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.001", c.FeeRate.String())
	assert.Equal(t, int64(1_000_000), c.StartingBalance)
	assert.Equal(t, "UTC", c.MarketTZ.String())
}

func TestLoadMissingAddr(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("FEE_RATE", "lots")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("FEE_RATE", "-0.1")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("FEE_RATE", "0.0005")
	t.Setenv("CREDIT_LIMIT", "-5")
	_, err = Load()
	assert.Error(t, err)
}
