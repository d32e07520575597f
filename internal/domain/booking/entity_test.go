package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/seat"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func createTestBooking(t *testing.T) *Booking {
	t.Helper()
	b := NewBooking("bk-1", "user-1", "bus-1", []SeatItem{
		{Number: 4, Passenger: seat.Passenger{Name: "B", Age: 20, Gender: seat.GenderFemale}},
		{Number: 3, Passenger: seat.Passenger{Name: "A", Age: 30, Gender: seat.GenderMale}},
	}, 1500, testNow, 10*time.Minute)
	require.NoError(t, b.Validate())
	return b
}

func TestNewBooking(t *testing.T) {
	b := createTestBooking(t)

	assert.Equal(t, StatusTemporary, b.Status)
	assert.Equal(t, []int{3, 4}, b.SeatNumbers())
	assert.Equal(t, 3000, b.TotalAmount)
	assert.Equal(t, testNow.Add(10*time.Minute), b.ExpiresAt)
	assert.Equal(t, "A", b.Seats[0].Passenger.Name)
	assert.True(t, b.IsActive())

	reqs := b.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, 3, reqs[0].Number)
}

func TestBooking_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(b *Booking)
		wantErr error
	}{
		{"ID未指定", func(b *Booking) { b.ID = "" }, ErrBookingIDRequired},
		{"ユーザーID未指定", func(b *Booking) { b.UserID = "" }, ErrUserIDRequired},
		{"バスID未指定", func(b *Booking) { b.BusID = "" }, ErrBusIDRequired},
		{"座席未指定", func(b *Booking) { b.Seats = nil }, ErrSeatsRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := createTestBooking(t)
			tt.mutate(b)
			assert.ErrorIs(t, b.Validate(), tt.wantErr)
		})
	}
}

func TestBooking_Confirm(t *testing.T) {
	t.Run("仮押さえ中なら確定できる", func(t *testing.T) {
		b := createTestBooking(t)
		require.NoError(t, b.Confirm(testNow.Add(time.Minute)))
		assert.Equal(t, StatusConfirmed, b.Status)
		assert.NotNil(t, b.ConfirmedAt)
	})

	t.Run("二重確定", func(t *testing.T) {
		b := createTestBooking(t)
		require.NoError(t, b.Confirm(testNow))
		assert.ErrorIs(t, b.Confirm(testNow), ErrAlreadyConfirmed)
	})

	t.Run("期限切れ", func(t *testing.T) {
		b := createTestBooking(t)
		assert.ErrorIs(t, b.Confirm(testNow.Add(11*time.Minute)), ErrHoldExpired)
		assert.Equal(t, StatusTemporary, b.Status)
	})

	t.Run("期限切れでキャンセル済み", func(t *testing.T) {
		b := createTestBooking(t)
		require.NoError(t, b.Cancel(ReasonExpired, testNow))
		assert.ErrorIs(t, b.Confirm(testNow), ErrHoldExpired)
	})

	t.Run("ユーザーがキャンセル済み", func(t *testing.T) {
		b := createTestBooking(t)
		require.NoError(t, b.Cancel(ReasonUser, testNow))
		assert.ErrorIs(t, b.Confirm(testNow), ErrAlreadyCancelled)
	})
}

func TestBooking_Cancel(t *testing.T) {
	tests := []struct {
		name    string
		status  Status
		wantErr error
	}{
		{"仮押さえ中からキャンセル", StatusTemporary, nil},
		{"確定済みからキャンセル", StatusConfirmed, nil},
		{"キャンセル済みからキャンセル", StatusCancelled, ErrAlreadyCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := createTestBooking(t)
			b.Status = tt.status
			err := b.Cancel(ReasonUser, testNow)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusCancelled, b.Status)
			assert.Equal(t, ReasonUser, b.CancelReason)
			assert.NotNil(t, b.CancelledAt)
			assert.False(t, b.IsActive())
		})
	}
}

func TestBooking_IsExpired(t *testing.T) {
	b := createTestBooking(t)
	assert.False(t, b.IsExpired(testNow.Add(10*time.Minute)))
	assert.True(t, b.IsExpired(testNow.Add(10*time.Minute+time.Second)))

	b.Status = StatusConfirmed
	assert.False(t, b.IsExpired(testNow.Add(time.Hour)))
}

func TestBooking_RetainSeats(t *testing.T) {
	b := createTestBooking(t)

	b.RetainSeats([]int{4}, testNow)

	assert.Equal(t, []int{4}, b.SeatNumbers())
	assert.Equal(t, 1500, b.TotalAmount)
}
