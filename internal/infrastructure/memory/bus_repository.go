package memory

import (
	"context"
	"sort"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/bus"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/transaction"
)

// BusRepository はバスリポジトリのインメモリ実装
type BusRepository struct {
	store *Store
}

// NewBusRepository は BusRepository を作成する
func NewBusRepository(store *Store) *BusRepository {
	return &BusRepository{store: store}
}

// Create は新しいバスを作成する
func (r *BusRepository) Create(ctx context.Context, tx transaction.Tx, b *bus.Bus) error {
	t, err := unwrapTx(r.store, tx)
	if err != nil {
		return err
	}
	r.store.mu.RLock()
	for _, existing := range r.store.buses {
		if existing.Number == b.Number {
			r.store.mu.RUnlock()
			return bus.ErrBusNumberDuplicate
		}
	}
	r.store.mu.RUnlock()

	c := cloneBus(b)
	return t.stage(func(s *Store) { s.buses[c.ID] = c })
}

// GetByID はIDからバスを取得する
func (r *BusRepository) GetByID(ctx context.Context, id string) (*bus.Bus, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	b, ok := r.store.buses[id]
	if !ok {
		return nil, bus.ErrBusNotFound
	}
	return cloneBus(b), nil
}

// GetByNumber はバス番号からバスを取得する
func (r *BusRepository) GetByNumber(ctx context.Context, number string) (*bus.Bus, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, b := range r.store.buses {
		if b.Number == number {
			return cloneBus(b), nil
		}
	}
	return nil, bus.ErrBusNotFound
}

// List はバス一覧を運行日順に取得する
func (r *BusRepository) List(ctx context.Context, limit, offset int) ([]*bus.Bus, error) {
	all := r.sorted(func(*bus.Bus) bool { return true })
	if offset >= len(all) {
		return []*bus.Bus{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// Search は条件に一致するバスを取得する
func (r *BusRepository) Search(ctx context.Context, criteria bus.SearchCriteria) ([]*bus.Bus, error) {
	return r.sorted(criteria.Matches), nil
}

func (r *BusRepository) sorted(keep func(*bus.Bus) bool) []*bus.Bus {
	r.store.mu.RLock()
	out := make([]*bus.Bus, 0, len(r.store.buses))
	for _, b := range r.store.buses {
		if keep(b) {
			out = append(out, cloneBus(b))
		}
	}
	r.store.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduleDate != out[j].ScheduleDate {
			return out[i].ScheduleDate < out[j].ScheduleDate
		}
		if out[i].ScheduleTime != out[j].ScheduleTime {
			return out[i].ScheduleTime < out[j].ScheduleTime
		}
		return out[i].Number < out[j].Number
	})
	return out
}

func cloneBus(b *bus.Bus) *bus.Bus {
	c := *b
	c.Amenities = append([]string{}, b.Amenities...)
	return &c
}

var _ bus.Repository = (*BusRepository)(nil)
