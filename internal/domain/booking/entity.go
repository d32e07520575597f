package booking

import (
	"sort"
	"time"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/seat"
)

// Status は予約の状態を表す
type Status string

const (
	StatusTemporary Status = "temporary"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// CancelReason はキャンセル理由
type CancelReason string

const (
	ReasonUser          CancelReason = "user"
	ReasonExpired       CancelReason = "expired"
	ReasonReset         CancelReason = "reset"
	ReasonReconciled    CancelReason = "reconciled"
	ReasonPaymentFailed CancelReason = "payment_failed"
)

// SeatItem は予約に含まれる座席と乗客
type SeatItem struct {
	Number    int
	Passenger seat.Passenger
}

// Booking は同時に要求された座席をひとまとめにした予約集約
type Booking struct {
	ID           string
	UserID       string
	BusID        string
	Seats        []SeatItem
	Status       Status
	CancelReason CancelReason
	TotalAmount  int
	HeldAt       time.Time
	ExpiresAt    time.Time
	ConfirmedAt  *time.Time
	CancelledAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewBooking は仮押さえ状態の予約を作成する
func NewBooking(id, userID, busID string, items []SeatItem, pricePerSeat int, now time.Time, ttl time.Duration) *Booking {
	sorted := make([]SeatItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })
	return &Booking{
		ID:          id,
		UserID:      userID,
		BusID:       busID,
		Seats:       sorted,
		Status:      StatusTemporary,
		TotalAmount: pricePerSeat * len(sorted),
		HeldAt:      now,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SeatNumbers は座席番号を昇順で返す
func (b *Booking) SeatNumbers() []int {
	out := make([]int, len(b.Seats))
	for i, s := range b.Seats {
		out[i] = s.Number
	}
	sort.Ints(out)
	return out
}

// Requests は台帳に渡す仮押さえ要求に変換する
func (b *Booking) Requests() []seat.Request {
	out := make([]seat.Request, len(b.Seats))
	for i, s := range b.Seats {
		out[i] = seat.Request{Number: s.Number, Passenger: s.Passenger}
	}
	return out
}

// IsActive は座席を保持している状態かを返す
func (b *Booking) IsActive() bool {
	return b.Status == StatusTemporary || b.Status == StatusConfirmed
}

// IsExpired は仮押さえが期限切れかを返す
func (b *Booking) IsExpired(now time.Time) bool {
	return b.Status == StatusTemporary && now.After(b.ExpiresAt)
}

// Confirm は仮押さえを確定する
func (b *Booking) Confirm(now time.Time) error {
	switch b.Status {
	case StatusConfirmed:
		return ErrAlreadyConfirmed
	case StatusCancelled:
		if b.CancelReason == ReasonExpired {
			return ErrHoldExpired
		}
		return ErrAlreadyCancelled
	}
	if b.IsExpired(now) {
		return ErrHoldExpired
	}
	confirmedAt := now
	b.Status = StatusConfirmed
	b.ConfirmedAt = &confirmedAt
	b.UpdatedAt = now
	return nil
}

// Cancel は予約をキャンセルする。キャンセル済みの予約は再利用できない
func (b *Booking) Cancel(reason CancelReason, now time.Time) error {
	if b.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	cancelledAt := now
	b.Status = StatusCancelled
	b.CancelReason = reason
	b.CancelledAt = &cancelledAt
	b.UpdatedAt = now
	return nil
}

// RetainSeats は台帳が保持している座席だけを残す
func (b *Booking) RetainSeats(numbers []int, now time.Time) {
	keep := make(map[int]struct{}, len(numbers))
	for _, n := range numbers {
		keep[n] = struct{}{}
	}
	filtered := b.Seats[:0:0]
	for _, s := range b.Seats {
		if _, ok := keep[s.Number]; ok {
			filtered = append(filtered, s)
		}
	}
	if len(b.Seats) > 0 {
		b.TotalAmount = b.TotalAmount / len(b.Seats) * len(filtered)
	}
	b.Seats = filtered
	b.UpdatedAt = now
}

// Validate は予約の検証を行う
func (b *Booking) Validate() error {
	if b.ID == "" {
		return ErrBookingIDRequired
	}
	if b.UserID == "" {
		return ErrUserIDRequired
	}
	if b.BusID == "" {
		return ErrBusIDRequired
	}
	if len(b.Seats) == 0 {
		return ErrSeatsRequired
	}
	return nil
}
