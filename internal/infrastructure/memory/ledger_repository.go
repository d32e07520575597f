package memory

import (
	"context"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/transaction"
)

// LedgerRepository は座席台帳リポジトリのインメモリ実装
// 同一バスの排他はバスロックが担うため、ここでは複製の受け渡しのみ行う
type LedgerRepository struct {
	store *Store
}

// NewLedgerRepository は LedgerRepository を作成する
func NewLedgerRepository(store *Store) *LedgerRepository {
	return &LedgerRepository{store: store}
}

// Create は新しい台帳を作成する
func (r *LedgerRepository) Create(ctx context.Context, tx transaction.Tx, ledger *seat.Ledger) error {
	t, err := unwrapTx(r.store, tx)
	if err != nil {
		return err
	}
	c := ledger.Clone()
	c.ClearDirty()
	return t.stage(func(s *Store) { s.ledgers[c.BusID] = c })
}

// Get は台帳のスナップショットを取得する
func (r *LedgerRepository) Get(ctx context.Context, busID string) (*seat.Ledger, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	l, ok := r.store.ledgers[busID]
	if !ok {
		return nil, seat.ErrLedgerNotFound
	}
	return l.Clone(), nil
}

// GetForUpdate はトランザクション内で台帳を取得する
func (r *LedgerRepository) GetForUpdate(ctx context.Context, tx transaction.Tx, busID string) (*seat.Ledger, error) {
	if _, err := unwrapTx(r.store, tx); err != nil {
		return nil, err
	}
	return r.Get(ctx, busID)
}

// Save は台帳を書き込む
func (r *LedgerRepository) Save(ctx context.Context, tx transaction.Tx, ledger *seat.Ledger) error {
	t, err := unwrapTx(r.store, tx)
	if err != nil {
		return err
	}
	if len(ledger.Dirty()) == 0 {
		return nil
	}
	c := ledger.Clone()
	c.ClearDirty()
	if err := t.stage(func(s *Store) { s.ledgers[c.BusID] = c }); err != nil {
		return err
	}
	ledger.ClearDirty()
	return nil
}

var _ seat.Repository = (*LedgerRepository)(nil)
