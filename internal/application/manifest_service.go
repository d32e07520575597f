package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/bus"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/seat"
)

var ErrRendererNotConfigured = errors.New("乗客名簿の出力形式が設定されていません")

// ManifestRenderer は乗客名簿を帳票に変換する
type ManifestRenderer interface {
	Render(m *booking.Manifest) ([]byte, error)
}

// ManifestService は確定済みの座席から乗客名簿を作る（読み取り専用）
type ManifestService struct {
	buses    bus.Repository
	ledgers  seat.Repository
	bookings booking.Repository
	renderer ManifestRenderer
	now      func() time.Time
}

func NewManifestService(buses bus.Repository, ledgers seat.Repository, bookings booking.Repository, renderer ManifestRenderer) *ManifestService {
	return &ManifestService{buses: buses, ledgers: ledgers, bookings: bookings, renderer: renderer, now: time.Now}
}

// Manifest は確定済みの座席を座席番号順に並べた乗客名簿を返す
func (s *ManifestService) Manifest(ctx context.Context, busID string) (*booking.Manifest, error) {
	b, err := s.buses.GetByID(ctx, busID)
	if err != nil {
		return nil, err
	}
	ledger, err := s.ledgers.Get(ctx, busID)
	if err != nil {
		if errors.Is(err, seat.ErrLedgerNotFound) {
			return nil, bus.ErrBusNotFound
		}
		return nil, fmt.Errorf("座席台帳の取得に失敗: %w", err)
	}

	m := &booking.Manifest{
		BusID:        b.ID,
		BusNumber:    b.Number,
		BusName:      b.Name,
		FromCity:     b.FromCity,
		ToCity:       b.ToCity,
		ScheduleDate: b.ScheduleDate,
		ScheduleTime: b.ScheduleTime,
		TotalSeats:   b.TotalSeats,
		Entries:      []booking.ManifestEntry{},
		GeneratedAt:  s.now(),
	}

	owners := map[string]*booking.Booking{}
	for _, st := range ledger.Seats() {
		if st.Status != seat.StatusConfirmed {
			continue
		}
		entry := booking.ManifestEntry{SeatNumber: st.Number, BookingID: st.BookingID}
		if st.Passenger != nil {
			entry.Passenger = *st.Passenger
		}

		owner, ok := owners[st.BookingID]
		if !ok {
			owner, err = s.bookings.GetByID(ctx, st.BookingID)
			if err != nil && !errors.Is(err, booking.ErrBookingNotFound) {
				return nil, fmt.Errorf("予約の取得に失敗: %w", err)
			}
			owners[st.BookingID] = owner
		}
		if owner != nil {
			entry.UserID = owner.UserID
			entry.ConfirmedAt = owner.ConfirmedAt
		}
		m.Entries = append(m.Entries, entry)
	}
	return m, nil
}

// ManifestPDF は乗客名簿を PDF で返す
func (s *ManifestService) ManifestPDF(ctx context.Context, busID string) ([]byte, error) {
	if s.renderer == nil {
		return nil, ErrRendererNotConfigured
	}
	m, err := s.Manifest(ctx, busID)
	if err != nil {
		return nil, err
	}
	out, err := s.renderer.Render(m)
	if err != nil {
		return nil, fmt.Errorf("乗客名簿の出力に失敗: %w", err)
	}
	return out, nil
}
