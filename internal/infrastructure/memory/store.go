package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/bus"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/transaction"
)

var (
	ErrTxDone    = errors.New("トランザクションは既に終了しています")
	ErrForeignTx = errors.New("メモリストア以外のトランザクションです")
)

// Store は単一プロセス用のインメモリストア
// 書き込みはトランザクションに積まれ、Commit 時にまとめて反映される
type Store struct {
	mu       sync.RWMutex
	buses    map[string]*bus.Bus
	ledgers  map[string]*seat.Ledger
	bookings map[string]*booking.Booking
}

// NewStore は空のストアを作成する
func NewStore() *Store {
	return &Store{
		buses:    map[string]*bus.Bus{},
		ledgers:  map[string]*seat.Ledger{},
		bookings: map[string]*booking.Booking{},
	}
}

// Tx はインメモリストアのトランザクション
// 予約はトランザクション内で書き込んだ値を読み返せる
type Tx struct {
	store    *Store
	mu       sync.Mutex
	ops      []func(s *Store)
	bookings map[string]*booking.Booking
	done     bool
}

func (t *Tx) stageBooking(b *booking.Booking) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	c := cloneBooking(b)
	if t.bookings == nil {
		t.bookings = map[string]*booking.Booking{}
	}
	t.bookings[c.ID] = c
	t.ops = append(t.ops, func(s *Store) { s.bookings[c.ID] = c })
	return nil
}

func (t *Tx) pendingBooking(id string) (*booking.Booking, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.bookings[id]
	if !ok {
		return nil, false
	}
	return cloneBooking(b), true
}

func (t *Tx) pendingBookings() []*booking.Booking {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*booking.Booking, 0, len(t.bookings))
	for _, b := range t.bookings {
		out = append(out, cloneBooking(b))
	}
	return out
}

func (t *Tx) stage(op func(s *Store)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	t.ops = append(t.ops, op)
	return nil
}

// Commit は積まれた書き込みをすべて反映する
func (t *Tx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, op := range t.ops {
		op(t.store)
	}
	t.ops = nil
	t.bookings = nil
	return nil
}

// Rollback は積まれた書き込みを破棄する
func (t *Tx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.ops = nil
	t.bookings = nil
	return nil
}

// TxManager はインメモリストアのトランザクションマネージャー
type TxManager struct {
	store *Store
}

// NewTxManager は新しい TxManager を作成する
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin は新しいトランザクションを開始する
func (m *TxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{store: m.store}, nil
}

func unwrapTx(store *Store, tx transaction.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t.store != store {
		return nil, ErrForeignTx
	}
	return t, nil
}

var _ transaction.Manager = (*TxManager)(nil)

// Repositories はストアを共有するリポジトリ一式
type Repositories struct {
	Store    *Store
	Tx       *TxManager
	Buses    *BusRepository
	Ledgers  *LedgerRepository
	Bookings *BookingRepository
}

// NewRepositories は空のストアでリポジトリ一式を作成する
func NewRepositories() *Repositories {
	store := NewStore()
	return &Repositories{
		Store:    store,
		Tx:       NewTxManager(store),
		Buses:    NewBusRepository(store),
		Ledgers:  NewLedgerRepository(store),
		Bookings: NewBookingRepository(store),
	}
}
