package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/seat"
)

func TestManifestRenderer_Render(t *testing.T) {
	r := NewManifestRenderer()
	base := booking.Manifest{
		BusID:        "bus-1",
		BusNumber:    "KA-01-1234",
		BusName:      "Night Rider",
		FromCity:     "Bangalore",
		ToCity:       "Chennai",
		ScheduleDate: "2026-01-10",
		ScheduleTime: "21:30",
		TotalSeats:   40,
		GeneratedAt:  time.Date(2026, 1, 9, 10, 0, 0, 0, time.UTC),
	}

	t.Run("確定済みの乗客を出力する", func(t *testing.T) {
		m := base
		m.Entries = []booking.ManifestEntry{
			{SeatNumber: 3, BookingID: "bk-1", Passenger: seat.Passenger{Name: "José", Age: 31, Gender: seat.GenderMale}},
			{SeatNumber: 4, BookingID: "bk-1", Passenger: seat.Passenger{Name: "Asha", Age: 29, Gender: seat.GenderFemale}},
		}
		out, err := r.Render(&m)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
		assert.Greater(t, len(out), 500)
	})

	t.Run("確定済みの座席がなくても出力できる", func(t *testing.T) {
		m := base
		out, err := r.Render(&m)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	})

	t.Run("改ページをまたぐ名簿", func(t *testing.T) {
		m := base
		for i := 1; i <= 80; i++ {
			m.Entries = append(m.Entries, booking.ManifestEntry{
				SeatNumber: i,
				BookingID:  "bk-x",
				Passenger:  seat.Passenger{Name: "P", Age: 20, Gender: seat.GenderOther},
			})
		}
		m.TotalSeats = 80
		out, err := r.Render(&m)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	})
}
