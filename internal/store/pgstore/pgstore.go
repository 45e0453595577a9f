// Package pgstore is the Postgres store implementation. Every Update runs
// as one serializable pgx transaction; a serialization failure surfaces as
// store.ErrConflict so the caller retries from a fresh snapshot.
package pgstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lv-paperbroker/internal/model"
	"lv-paperbroker/internal/store"
	"lv-paperbroker/internal/types"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	return fn(&pgTx{tx: tx})
}

func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(&pgTx{tx: tx}); err != nil {
		return mapConflict(err)
	}
	return mapConflict(tx.Commit(ctx))
}

// mapConflict translates a Postgres serialization failure (SQLSTATE 40001)
// into the store-level conflict sentinel.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "40001" {
		return store.ErrConflict
	}
	return err
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Account(ctx context.Context, id string) (model.Account, error) {
	var a model.Account
	err := t.tx.QueryRow(ctx,
		"select id, cash_balance, credit_limit, used_credit, starting_balance, coalesce(last_interest_date, ''), created_at from accounts where id = $1",
		id,
	).Scan(&a.ID, &a.CashBalance, &a.CreditLimit, &a.UsedCredit, &a.StartingBalance, &a.LastInterestDate, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, store.ErrNotFound
	}
	return a, err
}

func (t *pgTx) PutAccount(ctx context.Context, a model.Account) error {
	_, err := t.tx.Exec(ctx,
		`insert into accounts (id, cash_balance, credit_limit, used_credit, starting_balance, last_interest_date, created_at)
		 values ($1,$2,$3,$4,$5,nullif($6,''),$7)
		 on conflict (id) do update set cash_balance = $2, credit_limit = $3, used_credit = $4, starting_balance = $5, last_interest_date = nullif($6,'')`,
		a.ID, a.CashBalance, a.CreditLimit, a.UsedCredit, a.StartingBalance, a.LastInterestDate, a.CreatedAt.UTC())
	return err
}

func (t *pgTx) Position(ctx context.Context, accountID, symbol string) (model.Position, error) {
	var p model.Position
	err := t.tx.QueryRow(ctx,
		"select account_id, symbol, name, quantity, average_price, updated_at from positions where account_id = $1 and symbol = $2",
		accountID, symbol,
	).Scan(&p.AccountID, &p.Symbol, &p.Name, &p.Quantity, &p.AveragePrice, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Position{}, store.ErrNotFound
	}
	return p, err
}

func (t *pgTx) PutPosition(ctx context.Context, p model.Position) error {
	_, err := t.tx.Exec(ctx,
		`insert into positions (account_id, symbol, name, quantity, average_price, updated_at)
		 values ($1,$2,$3,$4,$5,$6)
		 on conflict (account_id, symbol) do update set name = $3, quantity = $4, average_price = $5, updated_at = $6`,
		p.AccountID, p.Symbol, p.Name, p.Quantity, p.AveragePrice, p.UpdatedAt.UTC())
	return err
}

func (t *pgTx) DeletePosition(ctx context.Context, accountID, symbol string) error {
	_, err := t.tx.Exec(ctx, "delete from positions where account_id = $1 and symbol = $2", accountID, symbol)
	return err
}

func (t *pgTx) Positions(ctx context.Context, accountID string) ([]model.Position, error) {
	rows, err := t.tx.Query(ctx,
		"select account_id, symbol, name, quantity, average_price, updated_at from positions where account_id = $1 order by symbol",
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Position
	for rows.Next() {
		var p model.Position
		if err := rows.Scan(&p.AccountID, &p.Symbol, &p.Name, &p.Quantity, &p.AveragePrice, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) AppendEntry(ctx context.Context, e model.LedgerEntry) error {
	_, err := t.tx.Exec(ctx,
		`insert into ledger_entries (id, account_id, symbol, name, entry_type, price, quantity, amount, fee, profit, credit_used, credit_released, credit_repaid, created_at)
		 values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		e.ID, e.AccountID, e.Symbol, e.Name, string(e.Type), e.Price, e.Quantity, e.Amount, e.Fee, e.Profit, e.CreditUsed, e.CreditReleased, e.CreditRepaid, e.Timestamp.UTC())
	return err
}

func (t *pgTx) RecentEntries(ctx context.Context, accountID string, typ types.EntryType, limit int) ([]model.LedgerEntry, error) {
	// Empty type means all types.
	rows, err := t.tx.Query(ctx,
		`select id, account_id, symbol, name, entry_type, price, quantity, amount, fee, profit, credit_used, credit_released, credit_repaid, created_at
		 from ledger_entries where account_id = $1 and ($2 = '' or entry_type = $2) order by id desc limit $3`,
		accountID, string(typ), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var typ string
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Symbol, &e.Name, &typ, &e.Price, &e.Quantity, &e.Amount, &e.Fee, &e.Profit, &e.CreditUsed, &e.CreditReleased, &e.CreditRepaid, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Type = types.EntryType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *pgTx) LimitOrder(ctx context.Context, accountID, orderID string) (model.LimitOrder, error) {
	var o model.LimitOrder
	var side, status string
	err := t.tx.QueryRow(ctx,
		"select account_id, id, symbol, side, target_price, quantity, status, created_at, updated_at from limit_orders where account_id = $1 and id = $2",
		accountID, orderID,
	).Scan(&o.AccountID, &o.ID, &o.Symbol, &side, &o.TargetPrice, &o.Quantity, &status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.LimitOrder{}, store.ErrNotFound
	}
	o.Side = types.Side(side)
	o.Status = types.OrderStatus(status)
	return o, err
}

func (t *pgTx) PutLimitOrder(ctx context.Context, o model.LimitOrder) error {
	_, err := t.tx.Exec(ctx,
		`insert into limit_orders (account_id, id, symbol, side, target_price, quantity, status, created_at, updated_at)
		 values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 on conflict (account_id, id) do update set status = $7, updated_at = $9`,
		o.AccountID, o.ID, o.Symbol, string(o.Side), o.TargetPrice, o.Quantity, string(o.Status), o.CreatedAt.UTC(), o.UpdatedAt.UTC())
	return err
}

func (t *pgTx) LimitOrders(ctx context.Context, accountID string) ([]model.LimitOrder, error) {
	rows, err := t.tx.Query(ctx,
		"select account_id, id, symbol, side, target_price, quantity, status, created_at, updated_at from limit_orders where account_id = $1 order by created_at desc",
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.LimitOrder
	for rows.Next() {
		var o model.LimitOrder
		var side, status string
		if err := rows.Scan(&o.AccountID, &o.ID, &o.Symbol, &side, &o.TargetPrice, &o.Quantity, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.Side = types.Side(side)
		o.Status = types.OrderStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}
