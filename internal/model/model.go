package model

import (
	"time"

	"lv-paperbroker/internal/types"
)

// All monetary values are integer minor-currency units (KRW). Prices are
// minor units per share; quantities are whole shares.

type Account struct {
	ID               string    `json:"id"`
	CashBalance      int64     `json:"cash_balance"`
	CreditLimit      int64     `json:"credit_limit"`
	UsedCredit       int64     `json:"used_credit"`
	StartingBalance  int64     `json:"starting_balance"`
	LastInterestDate string    `json:"last_interest_date"` // YYYY-MM-DD in the exchange timezone, empty until first accrual
	CreatedAt        time.Time `json:"created_at"`
}

// Position is one instrument holding. Quantity is signed: positive long,
// negative short. A record exists iff Quantity != 0; AveragePrice is the
// cost basis of the open side and is always positive.
type Position struct {
	AccountID    string    `json:"account_id"`
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name"`
	Quantity     int64     `json:"quantity"`
	AveragePrice int64     `json:"average_price"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LedgerEntry is one immutable trade leg. IDs are ULIDs, so sorting by ID
// descending yields newest-first.
type LedgerEntry struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"account_id"`
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	Type           types.EntryType `json:"type"`
	Price          int64           `json:"price"`
	Quantity       int64           `json:"quantity"`
	Amount         int64           `json:"amount"`
	Fee            int64           `json:"fee"`
	Profit         *int64          `json:"profit,omitempty"` // nil on non-trade entries; 0 on opening legs
	CreditUsed     int64           `json:"credit_used"`
	CreditReleased int64           `json:"credit_released"`
	CreditRepaid   int64           `json:"credit_repaid"`
	Timestamp      time.Time       `json:"timestamp"`
}

type LimitOrder struct {
	AccountID   string            `json:"account_id"`
	ID          string            `json:"id"`
	Symbol      string            `json:"symbol"`
	Side        types.Side        `json:"side"`
	TargetPrice int64             `json:"target_price"`
	Quantity    int64             `json:"quantity"`
	Status      types.OrderStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type Quote struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Currency  string    `json:"currency"` // "KRW" or "USD"
	UpdatedAt time.Time `json:"updated_at"`
}
