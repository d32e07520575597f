package seat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassenger_Validate(t *testing.T) {
	tests := []struct {
		name        string
		passenger   Passenger
		expectedErr error
	}{
		{"有効な乗客", Passenger{Name: "山田太郎", Age: 30, Gender: GenderMale}, nil},
		{"年齢0は有効", Passenger{Name: "山田花子", Age: 0, Gender: GenderFemale}, nil},
		{"名前が空", Passenger{Name: "", Age: 30, Gender: GenderMale}, ErrPassengerNameEmpty},
		{"年齢が負", Passenger{Name: "山田", Age: -1, Gender: GenderOther}, ErrInvalidPassengerAge},
		{"年齢が上限超過", Passenger{Name: "山田", Age: 151, Gender: GenderOther}, ErrInvalidPassengerAge},
		{"性別が不正", Passenger{Name: "山田", Age: 30, Gender: "unknown"}, ErrInvalidGender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.passenger.Validate()
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSeat_IsStale(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	heldAt := now.Add(-11 * time.Minute)
	recent := now.Add(-1 * time.Minute)

	tests := []struct {
		name     string
		seat     Seat
		expected bool
	}{
		{"空席は期限切れにならない", Seat{Status: StatusFree}, false},
		{"確定済みは期限切れにならない", Seat{Status: StatusConfirmed, HeldAt: &heldAt}, false},
		{"TTL経過した仮押さえ", Seat{Status: StatusHeld, HeldAt: &heldAt}, true},
		{"TTL内の仮押さえ", Seat{Status: StatusHeld, HeldAt: &recent}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.seat.IsStale(now, 10*time.Minute))
		})
	}
}

func TestSeatUnavailableError(t *testing.T) {
	err := &SeatUnavailableError{Seats: []int{1, 5}}

	assert.ErrorIs(t, err, ErrSeatUnavailable)
	assert.Contains(t, err.Error(), "[1, 5]")

	seats, ok := UnavailableSeats(err)
	require.True(t, ok)
	assert.Equal(t, []int{1, 5}, seats)

	_, ok = UnavailableSeats(ErrCapacityExceeded)
	assert.False(t, ok)
}
