package booking

import (
	"time"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/seat"
)

// ManifestEntry は乗客名簿の1行（確定済みの座席1つ）
type ManifestEntry struct {
	SeatNumber  int
	BookingID   string
	UserID      string
	Passenger   seat.Passenger
	ConfirmedAt *time.Time
}

// Manifest はバス1台分の確定済み乗客名簿
type Manifest struct {
	BusID        string
	BusNumber    string
	BusName      string
	FromCity     string
	ToCity       string
	ScheduleDate string
	ScheduleTime string
	TotalSeats   int
	Entries      []ManifestEntry
	GeneratedAt  time.Time
}

// Confirmed は確定済みの座席数を返す
func (m *Manifest) Confirmed() int {
	return len(m.Entries)
}
