package seat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func passenger(name string) Passenger {
	return Passenger{Name: name, Age: 28, Gender: GenderOther}
}

func newTestLedger(t *testing.T, total int) *Ledger {
	t.Helper()
	l, err := NewLedger("bus-1", total, testNow)
	require.NoError(t, err)
	return l
}

func requireConsistent(t *testing.T, l *Ledger) {
	t.Helper()
	occupied := 0
	for _, s := range l.Seats() {
		if !s.IsFree() {
			occupied++
		}
	}
	assert.Equal(t, l.TotalSeats-occupied, l.Available())
}

func TestNewLedger(t *testing.T) {
	l := newTestLedger(t, 4)

	assert.Equal(t, 4, l.Available())
	assert.Len(t, l.Seats(), 4)
	for i, s := range l.Seats() {
		assert.Equal(t, i+1, s.Number)
		assert.Equal(t, StatusFree, s.Status)
	}

	_, err := NewLedger("bus-1", 0, testNow)
	assert.ErrorIs(t, err, ErrInvalidTotalSeats)
}

func TestLedger_Reserve(t *testing.T) {
	t.Run("空席をまとめて仮押さえできる", func(t *testing.T) {
		l := newTestLedger(t, 4)

		err := l.Reserve("bk-1", []Request{{Number: 3, Passenger: passenger("A")}, {Number: 4, Passenger: passenger("B")}}, testNow)

		require.NoError(t, err)
		assert.Equal(t, 2, l.Available())
		s, _ := l.Seat(3)
		assert.Equal(t, StatusHeld, s.Status)
		assert.Equal(t, "bk-1", s.BookingID)
		require.NotNil(t, s.HeldAt)
		assert.Equal(t, testNow, *s.HeldAt)
		assert.Equal(t, "A", s.Passenger.Name)
		assert.Len(t, l.Dirty(), 2)
		requireConsistent(t, l)
	})

	t.Run("一部でも埋まっていれば全体を拒否し部分確保しない", func(t *testing.T) {
		l := newTestLedger(t, 2)
		require.NoError(t, l.Reserve("bk-1", []Request{{Number: 1, Passenger: passenger("A")}}, testNow))
		l.ClearDirty()

		err := l.Reserve("bk-2", []Request{{Number: 1, Passenger: passenger("B")}, {Number: 2, Passenger: passenger("C")}}, testNow)

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSeatUnavailable)
		seats, ok := UnavailableSeats(err)
		require.True(t, ok)
		assert.Equal(t, []int{1}, seats)
		s2, _ := l.Seat(2)
		assert.Equal(t, StatusFree, s2.Status)
		assert.Empty(t, l.Dirty())
		requireConsistent(t, l)
	})

	t.Run("空席数を超える要求は埋まっている座席として報告する", func(t *testing.T) {
		l := newTestLedger(t, 3)
		require.NoError(t, l.Reserve("bk-1", []Request{{Number: 1, Passenger: passenger("A")}, {Number: 2, Passenger: passenger("B")}}, testNow))
		l.ClearDirty()

		// 空席1に対して3席を要求する
		err := l.Reserve("bk-2", []Request{
			{Number: 1, Passenger: passenger("C")},
			{Number: 2, Passenger: passenger("D")},
			{Number: 3, Passenger: passenger("E")},
		}, testNow)

		assert.ErrorIs(t, err, ErrSeatUnavailable)
		assert.NotErrorIs(t, err, ErrCapacityExceeded)
		seats, ok := UnavailableSeats(err)
		require.True(t, ok)
		assert.Equal(t, []int{1, 2}, seats)
		assert.Equal(t, 1, l.Available())
		assert.Empty(t, l.Dirty())
		requireConsistent(t, l)
	})

	t.Run("範囲外の座席番号", func(t *testing.T) {
		l := newTestLedger(t, 2)
		for _, n := range []int{0, 3, -1} {
			err := l.Reserve("bk-1", []Request{{Number: n, Passenger: passenger("A")}}, testNow)
			assert.ErrorIs(t, err, ErrInvalidSeatNumber)
		}
		assert.Equal(t, 2, l.Available())
	})

	t.Run("重複した座席番号", func(t *testing.T) {
		l := newTestLedger(t, 2)
		err := l.Reserve("bk-1", []Request{{Number: 1, Passenger: passenger("A")}, {Number: 1, Passenger: passenger("B")}}, testNow)
		assert.ErrorIs(t, err, ErrDuplicateSeatNumber)
		assert.Equal(t, 2, l.Available())
	})

	t.Run("座席未指定", func(t *testing.T) {
		l := newTestLedger(t, 2)
		assert.ErrorIs(t, l.Reserve("bk-1", nil, testNow), ErrNoSeatsRequested)
	})

	t.Run("乗客情報が不正", func(t *testing.T) {
		l := newTestLedger(t, 2)
		err := l.Reserve("bk-1", []Request{{Number: 1, Passenger: Passenger{Name: "", Age: 3, Gender: GenderMale}}}, testNow)
		assert.ErrorIs(t, err, ErrPassengerNameEmpty)
		assert.Equal(t, 2, l.Available())
	})
}

func TestLedger_Confirm(t *testing.T) {
	t.Run("仮押さえを確定できる", func(t *testing.T) {
		l := newTestLedger(t, 3)
		require.NoError(t, l.Reserve("bk-1", []Request{{Number: 1, Passenger: passenger("A")}, {Number: 2, Passenger: passenger("B")}}, testNow))

		require.NoError(t, l.Confirm("bk-1", []int{1, 2}, testNow.Add(time.Minute)))

		for _, n := range []int{1, 2} {
			s, _ := l.Seat(n)
			assert.Equal(t, StatusConfirmed, s.Status)
			assert.Nil(t, s.HeldAt)
			assert.Equal(t, "bk-1", s.BookingID)
		}
		assert.Equal(t, 1, l.Available())
	})

	t.Run("台帳と予約の座席が一致しなければ拒否", func(t *testing.T) {
		l := newTestLedger(t, 3)
		require.NoError(t, l.Reserve("bk-1", []Request{{Number: 1, Passenger: passenger("A")}}, testNow))

		assert.ErrorIs(t, l.Confirm("bk-1", []int{1, 2}, testNow), ErrHoldMismatch)
		assert.ErrorIs(t, l.Confirm("bk-2", []int{1}, testNow), ErrHoldMismatch)

		s, _ := l.Seat(1)
		assert.Equal(t, StatusHeld, s.Status)
	})

	t.Run("期限切れで回収された後は確定できない", func(t *testing.T) {
		l := newTestLedger(t, 1)
		require.NoError(t, l.Reserve("bk-1", []Request{{Number: 1, Passenger: passenger("A")}}, testNow))
		l.ReclaimExpired(testNow.Add(11*time.Minute), 10*time.Minute)
		require.NoError(t, l.Reserve("bk-2", []Request{{Number: 1, Passenger: passenger("B")}}, testNow.Add(11*time.Minute)))

		assert.ErrorIs(t, l.Confirm("bk-1", []int{1}, testNow.Add(12*time.Minute)), ErrHoldMismatch)
	})
}

func TestLedger_Release(t *testing.T) {
	l := newTestLedger(t, 4)
	require.NoError(t, l.Reserve("bk-1", []Request{{Number: 3, Passenger: passenger("A")}, {Number: 4, Passenger: passenger("B")}}, testNow))
	require.NoError(t, l.Confirm("bk-1", []int{3, 4}, testNow))

	released, err := l.Release([]int{1, 3, 4}, testNow)

	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, released)
	assert.Equal(t, 4, l.Available())
	s, _ := l.Seat(3)
	assert.Empty(t, s.BookingID)
	assert.Nil(t, s.Passenger)

	_, err = l.Release([]int{5}, testNow)
	assert.ErrorIs(t, err, ErrInvalidSeatNumber)
}

func TestLedger_ReleaseBooking(t *testing.T) {
	l := newTestLedger(t, 3)
	require.NoError(t, l.Reserve("bk-1", []Request{{Number: 1, Passenger: passenger("A")}}, testNow))
	require.NoError(t, l.Reserve("bk-2", []Request{{Number: 2, Passenger: passenger("B")}}, testNow))

	released := l.ReleaseBooking("bk-1", testNow)

	assert.Equal(t, []int{1}, released)
	s2, _ := l.Seat(2)
	assert.Equal(t, StatusHeld, s2.Status)
	assert.Equal(t, 2, l.Available())
}

func TestLedger_ReclaimExpired(t *testing.T) {
	l := newTestLedger(t, 4)
	require.NoError(t, l.Reserve("old", []Request{{Number: 1, Passenger: passenger("A")}, {Number: 2, Passenger: passenger("B")}}, testNow))
	require.NoError(t, l.Reserve("new", []Request{{Number: 3, Passenger: passenger("C")}}, testNow.Add(8*time.Minute)))
	require.NoError(t, l.Reserve("paid", []Request{{Number: 4, Passenger: passenger("D")}}, testNow))
	require.NoError(t, l.Confirm("paid", []int{4}, testNow))

	now := testNow.Add(11 * time.Minute)
	assert.Equal(t, 2, l.AvailableAt(now, 10*time.Minute))
	assert.Equal(t, []int{1, 2}, l.AvailableNumbersAt(now, 10*time.Minute))
	assert.Equal(t, 0, l.Available())

	reclaimed := l.ReclaimExpired(now, 10*time.Minute)

	assert.Equal(t, map[string][]int{"old": {1, 2}}, reclaimed)
	assert.Equal(t, 2, l.Available())
	requireConsistent(t, l)
}

func TestRestoreLedger(t *testing.T) {
	t.Run("欠番は空席で補う", func(t *testing.T) {
		l, err := RestoreLedger("bus-1", 3, []Seat{{Number: 2, Status: StatusConfirmed, BookingID: "bk-1"}})
		require.NoError(t, err)

		assert.Equal(t, 2, l.Available())
		assert.Len(t, l.Dirty(), 2)
		s, _ := l.Seat(2)
		assert.Equal(t, "bus-1", s.BusID)
	})

	t.Run("範囲外の座席は拒否", func(t *testing.T) {
		_, err := RestoreLedger("bus-1", 2, []Seat{{Number: 3}})
		assert.ErrorIs(t, err, ErrInvalidSeatNumber)
	})

	t.Run("重複した座席は拒否", func(t *testing.T) {
		_, err := RestoreLedger("bus-1", 2, []Seat{{Number: 1}, {Number: 1}})
		assert.ErrorIs(t, err, ErrDuplicateSeatNumber)
	})
}

func TestLedger_Clone(t *testing.T) {
	l := newTestLedger(t, 2)
	require.NoError(t, l.Reserve("bk-1", []Request{{Number: 1, Passenger: passenger("A")}}, testNow))

	c := l.Clone()
	c.ReleaseAll(testNow)

	assert.Equal(t, 1, l.Available())
	assert.Equal(t, 2, c.Available())
	s, _ := l.Seat(1)
	assert.Equal(t, "A", s.Passenger.Name)
}
