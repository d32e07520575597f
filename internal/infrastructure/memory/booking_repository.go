package memory

import (
	"context"
	"sort"
	"time"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/transaction"
)

// BookingRepository は予約リポジトリのインメモリ実装
type BookingRepository struct {
	store *Store
}

// NewBookingRepository は BookingRepository を作成する
func NewBookingRepository(store *Store) *BookingRepository {
	return &BookingRepository{store: store}
}

// Create は新しい予約を作成する
func (r *BookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	t, err := unwrapTx(r.store, tx)
	if err != nil {
		return err
	}
	r.store.mu.RLock()
	_, exists := r.store.bookings[b.ID]
	r.store.mu.RUnlock()
	if _, pending := t.pendingBooking(b.ID); exists || pending {
		return booking.ErrBookingIDDuplicate
	}
	return t.stageBooking(b)
}

// Update は予約を更新する
func (r *BookingRepository) Update(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	t, err := unwrapTx(r.store, tx)
	if err != nil {
		return err
	}
	r.store.mu.RLock()
	_, exists := r.store.bookings[b.ID]
	r.store.mu.RUnlock()
	if _, pending := t.pendingBooking(b.ID); !exists && !pending {
		return booking.ErrBookingNotFound
	}
	return t.stageBooking(b)
}

// GetByID はIDから予約を取得する
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	b, ok := r.store.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return cloneBooking(b), nil
}

// GetByIDTx はトランザクション内でIDから予約を取得する。未コミットの書き込みも見える
func (r *BookingRepository) GetByIDTx(ctx context.Context, tx transaction.Tx, id string) (*booking.Booking, error) {
	t, err := unwrapTx(r.store, tx)
	if err != nil {
		return nil, err
	}
	if b, ok := t.pendingBooking(id); ok {
		return b, nil
	}
	return r.GetByID(ctx, id)
}

// ListByUser はユーザーの予約一覧を新しい順に取得する
func (r *BookingRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	all := r.filter(func(b *booking.Booking) bool { return b.UserID == userID })
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return []*booking.Booking{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// ListActiveByBus はバスの仮押さえ中・確定済み予約を取得する
func (r *BookingRepository) ListActiveByBus(ctx context.Context, tx transaction.Tx, busID string) ([]*booking.Booking, error) {
	t, err := unwrapTx(r.store, tx)
	if err != nil {
		return nil, err
	}
	merged := map[string]*booking.Booking{}
	for _, b := range r.filter(func(b *booking.Booking) bool { return b.BusID == busID }) {
		merged[b.ID] = b
	}
	for _, b := range t.pendingBookings() {
		if b.BusID == busID {
			merged[b.ID] = b
		}
	}
	out := []*booking.Booking{}
	for _, b := range merged {
		if b.IsActive() {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListExpiredTemporary は期限切れの仮押さえ予約を取得する
func (r *BookingRepository) ListExpiredTemporary(ctx context.Context, now time.Time) ([]*booking.Booking, error) {
	out := r.filter(func(b *booking.Booking) bool { return b.IsExpired(now) })
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (r *BookingRepository) filter(keep func(*booking.Booking) bool) []*booking.Booking {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := []*booking.Booking{}
	for _, b := range r.store.bookings {
		if keep(b) {
			out = append(out, cloneBooking(b))
		}
	}
	return out
}

func cloneBooking(b *booking.Booking) *booking.Booking {
	c := *b
	c.Seats = append([]booking.SeatItem{}, b.Seats...)
	if b.ConfirmedAt != nil {
		v := *b.ConfirmedAt
		c.ConfirmedAt = &v
	}
	if b.CancelledAt != nil {
		v := *b.CancelledAt
		c.CancelledAt = &v
	}
	return &c
}

var _ booking.Repository = (*BookingRepository)(nil)
