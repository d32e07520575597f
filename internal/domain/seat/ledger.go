package seat

import (
	"fmt"
	"sort"
	"time"
)

// Request は座席1つ分の仮押さえ要求
type Request struct {
	Number    int
	Passenger Passenger
}

// Ledger はバス1台分の座席台帳。空席の唯一の情報源となる
// 空席数はカウンタを持たず、常に座席集合から算出する
type Ledger struct {
	BusID      string
	TotalSeats int
	seats      []Seat
	dirty      map[int]struct{}
}

// NewLedger は全席空席の台帳を作成する
func NewLedger(busID string, totalSeats int, now time.Time) (*Ledger, error) {
	if totalSeats <= 0 {
		return nil, ErrInvalidTotalSeats
	}
	l := &Ledger{BusID: busID, TotalSeats: totalSeats, seats: make([]Seat, totalSeats), dirty: map[int]struct{}{}}
	for i := range l.seats {
		l.seats[i] = Seat{BusID: busID, Number: i + 1, Status: StatusFree, UpdatedAt: now}
	}
	return l, nil
}

// RestoreLedger は永続化された座席から台帳を復元する
// 欠番は空席として補い、保存対象にする
func RestoreLedger(busID string, totalSeats int, seats []Seat) (*Ledger, error) {
	if totalSeats <= 0 {
		return nil, ErrInvalidTotalSeats
	}
	l := &Ledger{BusID: busID, TotalSeats: totalSeats, seats: make([]Seat, totalSeats), dirty: map[int]struct{}{}}
	seen := make([]bool, totalSeats)
	for _, s := range seats {
		if s.Number < 1 || s.Number > totalSeats {
			return nil, fmt.Errorf("%w: %d", ErrInvalidSeatNumber, s.Number)
		}
		if seen[s.Number-1] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateSeatNumber, s.Number)
		}
		seen[s.Number-1] = true
		s.BusID = busID
		l.seats[s.Number-1] = s
	}
	for i, ok := range seen {
		if !ok {
			l.seats[i] = Seat{BusID: busID, Number: i + 1, Status: StatusFree}
			l.dirty[i+1] = struct{}{}
		}
	}
	return l, nil
}

// Seat は指定番号の座席のコピーを返す
func (l *Ledger) Seat(number int) (Seat, error) {
	if err := l.checkNumber(number); err != nil {
		return Seat{}, err
	}
	return l.seats[number-1], nil
}

// Seats は全座席のコピーを番号順に返す
func (l *Ledger) Seats() []Seat {
	out := make([]Seat, len(l.seats))
	copy(out, l.seats)
	return out
}

// Available は空席数を返す
func (l *Ledger) Available() int {
	n := 0
	for i := range l.seats {
		if l.seats[i].IsFree() {
			n++
		}
	}
	return n
}

// AvailableAt は TTL 切れの仮押さえを空席とみなした空席数を返す（読み取り専用）
func (l *Ledger) AvailableAt(now time.Time, ttl time.Duration) int {
	return len(l.AvailableNumbersAt(now, ttl))
}

// AvailableNumbersAt は TTL 切れの仮押さえを空席とみなした空席番号を返す（読み取り専用）
func (l *Ledger) AvailableNumbersAt(now time.Time, ttl time.Duration) []int {
	out := make([]int, 0, len(l.seats))
	for i := range l.seats {
		if l.seats[i].IsFree() || l.seats[i].IsStale(now, ttl) {
			out = append(out, l.seats[i].Number)
		}
	}
	return out
}

// SeatsOf は予約IDに紐づく座席を番号順に返す
func (l *Ledger) SeatsOf(bookingID string) []Seat {
	var out []Seat
	for i := range l.seats {
		if !l.seats[i].IsFree() && l.seats[i].BookingID == bookingID {
			out = append(out, l.seats[i])
		}
	}
	return out
}

// Reserve は指定座席をまとめて仮押さえする
// どれか1席でも空いていなければ何も変更しない
func (l *Ledger) Reserve(bookingID string, requests []Request, now time.Time) error {
	if len(requests) == 0 {
		return ErrNoSeatsRequested
	}
	seen := make(map[int]struct{}, len(requests))
	for _, r := range requests {
		if err := l.checkNumber(r.Number); err != nil {
			return err
		}
		if _, dup := seen[r.Number]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateSeatNumber, r.Number)
		}
		seen[r.Number] = struct{}{}
		if err := r.Passenger.Validate(); err != nil {
			return fmt.Errorf("座席 %d: %w", r.Number, err)
		}
	}

	var unavailable []int
	for _, r := range requests {
		if !l.seats[r.Number-1].IsFree() {
			unavailable = append(unavailable, r.Number)
		}
	}
	if len(unavailable) > 0 {
		sort.Ints(unavailable)
		return &SeatUnavailableError{Seats: unavailable}
	}
	// 空席数は座席の状態から求めるので、ここに来るのは台帳が壊れている場合だけ
	if len(requests) > l.Available() {
		return ErrCapacityExceeded
	}

	for _, r := range requests {
		l.seats[r.Number-1].hold(bookingID, r.Passenger, now)
		l.markDirty(r.Number)
	}
	return nil
}

// Confirm は予約の仮押さえ座席を確定にする
// 台帳上で予約IDが仮押さえしている座席が numbers と完全一致しない場合は ErrHoldMismatch
func (l *Ledger) Confirm(bookingID string, numbers []int, now time.Time) error {
	held := l.SeatsOf(bookingID)
	if len(held) != len(numbers) {
		return ErrHoldMismatch
	}
	for _, n := range numbers {
		if err := l.checkNumber(n); err != nil {
			return err
		}
		s := &l.seats[n-1]
		if s.Status != StatusHeld || s.BookingID != bookingID {
			return ErrHoldMismatch
		}
	}
	for _, n := range numbers {
		l.seats[n-1].confirm(now)
		l.markDirty(n)
	}
	return nil
}

// Release は指定座席を空席に戻し、実際に解放した座席番号を返す
func (l *Ledger) Release(numbers []int, now time.Time) ([]int, error) {
	for _, n := range numbers {
		if err := l.checkNumber(n); err != nil {
			return nil, err
		}
	}
	var released []int
	for _, n := range numbers {
		s := &l.seats[n-1]
		if s.IsFree() {
			continue
		}
		s.release(now)
		l.markDirty(n)
		released = append(released, n)
	}
	sort.Ints(released)
	return released, nil
}

// ReleaseBooking は予約IDに紐づく座席だけを解放する
func (l *Ledger) ReleaseBooking(bookingID string, now time.Time) []int {
	var released []int
	for i := range l.seats {
		s := &l.seats[i]
		if s.IsFree() || s.BookingID != bookingID {
			continue
		}
		s.release(now)
		l.markDirty(s.Number)
		released = append(released, s.Number)
	}
	return released
}

// ReleaseAll は全座席を解放する
func (l *Ledger) ReleaseAll(now time.Time) []int {
	var released []int
	for i := range l.seats {
		if l.seats[i].IsFree() {
			continue
		}
		l.seats[i].release(now)
		l.markDirty(l.seats[i].Number)
		released = append(released, l.seats[i].Number)
	}
	return released
}

// ReclaimExpired は TTL を過ぎた仮押さえを解放し、予約ID ごとの解放座席を返す
func (l *Ledger) ReclaimExpired(now time.Time, ttl time.Duration) map[string][]int {
	reclaimed := map[string][]int{}
	for i := range l.seats {
		s := &l.seats[i]
		if !s.IsStale(now, ttl) {
			continue
		}
		reclaimed[s.BookingID] = append(reclaimed[s.BookingID], s.Number)
		s.release(now)
		l.markDirty(s.Number)
	}
	return reclaimed
}

// Dirty は前回の ClearDirty 以降に変更された座席を番号順に返す
func (l *Ledger) Dirty() []Seat {
	nums := make([]int, 0, len(l.dirty))
	for n := range l.dirty {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	out := make([]Seat, len(nums))
	for i, n := range nums {
		out[i] = l.seats[n-1]
	}
	return out
}

// ClearDirty は変更追跡をリセットする
func (l *Ledger) ClearDirty() {
	l.dirty = map[int]struct{}{}
}

// Clone は台帳の独立したコピーを返す
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{BusID: l.BusID, TotalSeats: l.TotalSeats, seats: make([]Seat, len(l.seats)), dirty: map[int]struct{}{}}
	for i, s := range l.seats {
		if s.Passenger != nil {
			p := *s.Passenger
			s.Passenger = &p
		}
		if s.HeldAt != nil {
			h := *s.HeldAt
			s.HeldAt = &h
		}
		c.seats[i] = s
	}
	for n := range l.dirty {
		c.dirty[n] = struct{}{}
	}
	return c
}

func (l *Ledger) checkNumber(n int) error {
	if n < 1 || n > l.TotalSeats {
		return fmt.Errorf("%w: %d", ErrInvalidSeatNumber, n)
	}
	return nil
}

func (l *Ledger) markDirty(n int) {
	if l.dirty == nil {
		l.dirty = map[int]struct{}{}
	}
	l.dirty[n] = struct{}{}
}
