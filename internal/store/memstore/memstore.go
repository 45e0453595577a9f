// Package memstore is the in-memory store implementation: versioned records
// with optimistic commit. It backs tests and DSN-less runs.
package memstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"lv-paperbroker/internal/model"
	"lv-paperbroker/internal/store"
	"lv-paperbroker/internal/types"
)

type Store struct {
	mu        sync.Mutex
	accounts  map[string]model.Account
	positions map[string]model.Position
	orders    map[string]model.LimitOrder
	entries   []model.LedgerEntry
	versions  map[string]uint64 // absent key reads as version 0
}

func New() *Store {
	return &Store{
		accounts:  make(map[string]model.Account),
		positions: make(map[string]model.Position),
		orders:    make(map[string]model.LimitOrder),
		versions:  make(map[string]uint64),
	}
}

func accountKey(id string) string                 { return "acct/" + id }
func positionKey(accountID, symbol string) string { return "pos/" + accountID + "/" + symbol }
func orderKey(accountID, orderID string) string   { return "ord/" + accountID + "/" + orderID }

func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	tx := s.begin(true)
	return fn(tx)
}

func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	tx := s.begin(false)
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *Store) begin(readOnly bool) *memTx {
	return &memTx{
		s:            s,
		readOnly:     readOnly,
		reads:        make(map[string]uint64),
		putAccounts:  make(map[string]model.Account),
		putPositions: make(map[string]model.Position),
		delPositions: make(map[string]bool),
		putOrders:    make(map[string]model.LimitOrder),
	}
}

func (s *Store) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, seen := range tx.reads {
		if s.versions[key] != seen {
			return store.ErrConflict
		}
	}
	for id, a := range tx.putAccounts {
		s.accounts[id] = a
		s.versions[accountKey(id)]++
	}
	for key, p := range tx.putPositions {
		s.positions[key] = p
		s.versions[key]++
	}
	for key := range tx.delPositions {
		delete(s.positions, key)
		s.versions[key]++
	}
	for key, o := range tx.putOrders {
		s.orders[key] = o
		s.versions[key]++
	}
	s.entries = append(s.entries, tx.appended...)
	return nil
}

var errReadOnly = errors.New("memstore: write inside View")

type memTx struct {
	s            *Store
	readOnly     bool
	reads        map[string]uint64
	putAccounts  map[string]model.Account
	putPositions map[string]model.Position
	delPositions map[string]bool
	putOrders    map[string]model.LimitOrder
	appended     []model.LedgerEntry
}

// trackRead records the version of a key at first read; later reads of the
// same key keep the original observation so commit detects any change since
// the snapshot was taken.
func (tx *memTx) trackRead(key string) {
	if _, ok := tx.reads[key]; !ok {
		tx.reads[key] = tx.s.versions[key]
	}
}

func (tx *memTx) Account(ctx context.Context, id string) (model.Account, error) {
	if a, ok := tx.putAccounts[id]; ok {
		return a, nil
	}
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	tx.trackRead(accountKey(id))
	a, ok := tx.s.accounts[id]
	if !ok {
		return model.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (tx *memTx) PutAccount(ctx context.Context, a model.Account) error {
	if tx.readOnly {
		return errReadOnly
	}
	tx.putAccounts[a.ID] = a
	return nil
}

func (tx *memTx) Position(ctx context.Context, accountID, symbol string) (model.Position, error) {
	key := positionKey(accountID, symbol)
	if tx.delPositions[key] {
		return model.Position{}, store.ErrNotFound
	}
	if p, ok := tx.putPositions[key]; ok {
		return p, nil
	}
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	tx.trackRead(key)
	p, ok := tx.s.positions[key]
	if !ok {
		return model.Position{}, store.ErrNotFound
	}
	return p, nil
}

func (tx *memTx) PutPosition(ctx context.Context, p model.Position) error {
	if tx.readOnly {
		return errReadOnly
	}
	key := positionKey(p.AccountID, p.Symbol)
	delete(tx.delPositions, key)
	tx.putPositions[key] = p
	return nil
}

func (tx *memTx) DeletePosition(ctx context.Context, accountID, symbol string) error {
	if tx.readOnly {
		return errReadOnly
	}
	key := positionKey(accountID, symbol)
	delete(tx.putPositions, key)
	tx.delPositions[key] = true
	return nil
}

func (tx *memTx) Positions(ctx context.Context, accountID string) ([]model.Position, error) {
	prefix := "pos/" + accountID + "/"
	tx.s.mu.Lock()
	var out []model.Position
	for key, p := range tx.s.positions {
		if strings.HasPrefix(key, prefix) && !tx.delPositions[key] {
			tx.trackRead(key)
			if over, ok := tx.putPositions[key]; ok {
				p = over
			}
			out = append(out, p)
		}
	}
	tx.s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (tx *memTx) AppendEntry(ctx context.Context, e model.LedgerEntry) error {
	if tx.readOnly {
		return errReadOnly
	}
	tx.appended = append(tx.appended, e)
	return nil
}

func (tx *memTx) RecentEntries(ctx context.Context, accountID string, typ types.EntryType, limit int) ([]model.LedgerEntry, error) {
	tx.s.mu.Lock()
	var out []model.LedgerEntry
	for _, e := range tx.s.entries {
		if e.AccountID == accountID && (typ == "" || e.Type == typ) {
			out = append(out, e)
		}
	}
	tx.s.mu.Unlock()
	// ULIDs sort lexically by creation time, so descending ID is newest
	// first.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (tx *memTx) LimitOrder(ctx context.Context, accountID, orderID string) (model.LimitOrder, error) {
	key := orderKey(accountID, orderID)
	if o, ok := tx.putOrders[key]; ok {
		return o, nil
	}
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	tx.trackRead(key)
	o, ok := tx.s.orders[key]
	if !ok {
		return model.LimitOrder{}, store.ErrNotFound
	}
	return o, nil
}

func (tx *memTx) PutLimitOrder(ctx context.Context, o model.LimitOrder) error {
	if tx.readOnly {
		return errReadOnly
	}
	tx.putOrders[orderKey(o.AccountID, o.ID)] = o
	return nil
}

func (tx *memTx) LimitOrders(ctx context.Context, accountID string) ([]model.LimitOrder, error) {
	prefix := "ord/" + accountID + "/"
	tx.s.mu.Lock()
	var out []model.LimitOrder
	for key, o := range tx.s.orders {
		if strings.HasPrefix(key, prefix) {
			tx.trackRead(key)
			if over, ok := tx.putOrders[key]; ok {
				o = over
			}
			out = append(out, o)
		}
	}
	tx.s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
