package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPAddr          string
	DBDSN             string
	WebSocketOrigin   string
	FeeRate           decimal.Decimal
	DailyInterestRate decimal.Decimal
	StartingBalance   int64
	CreditLimit       int64
	USDKRWRate        decimal.Decimal
	MarketTZ          *time.Location
}

func Load() (Config, error) {
	var c Config
	var missing []string

	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}

	// Empty DSN selects the in-memory store.
	c.DBDSN = os.Getenv("DB_DSN")

	c.WebSocketOrigin = os.Getenv("WS_ORIGIN")
	if c.WebSocketOrigin == "" {
		c.WebSocketOrigin = "*"
	}

	var err error
	if c.FeeRate, err = decimalEnv("FEE_RATE", "0.0005"); err != nil {
		return c, err
	}
	if c.DailyInterestRate, err = decimalEnv("DAILY_INTEREST_RATE", "0.001"); err != nil {
		return c, err
	}
	if c.StartingBalance, err = int64Env("STARTING_BALANCE", 500_000_000); err != nil {
		return c, err
	}
	if c.CreditLimit, err = int64Env("CREDIT_LIMIT", 500_000_000); err != nil {
		return c, err
	}
	if c.USDKRWRate, err = decimalEnv("USD_KRW_RATE", "1350"); err != nil {
		return c, err
	}

	tz := strings.TrimSpace(os.Getenv("MARKET_TZ"))
	if tz == "" {
		tz = "Asia/Seoul"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return c, fmt.Errorf("invalid MARKET_TZ: %w", err)
	}
	c.MarketTZ = loc

	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ", "))
	}
	return c, nil
}

func decimalEnv(key, def string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func int64Env(key string, def int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return v, nil
}
