package seat

import "time"

// Status は座席の状態を表す
type Status string

const (
	StatusFree      Status = "free"
	StatusHeld      Status = "held"
	StatusConfirmed Status = "confirmed"
)

// Gender は乗客の性別
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// Passenger は座席に紐づく乗客情報
type Passenger struct {
	Name   string
	Age    int
	Gender Gender
}

// Validate は乗客情報の検証を行う
func (p Passenger) Validate() error {
	if p.Name == "" {
		return ErrPassengerNameEmpty
	}
	if p.Age < 0 || p.Age > 150 {
		return ErrInvalidPassengerAge
	}
	switch p.Gender {
	case GenderMale, GenderFemale, GenderOther:
		return nil
	default:
		return ErrInvalidGender
	}
}

// Seat は座席台帳の1レコードを表す
type Seat struct {
	BusID     string
	Number    int
	Status    Status
	BookingID string
	Passenger *Passenger
	HeldAt    *time.Time
	UpdatedAt time.Time
}

// IsFree は座席が空席かを返す
func (s *Seat) IsFree() bool {
	return s.Status == StatusFree
}

// IsStale は仮押さえが TTL を過ぎているかを返す
func (s *Seat) IsStale(now time.Time, ttl time.Duration) bool {
	if s.Status != StatusHeld || s.HeldAt == nil {
		return false
	}
	return now.After(s.HeldAt.Add(ttl))
}

func (s *Seat) hold(bookingID string, p Passenger, now time.Time) {
	held := now
	s.Status = StatusHeld
	s.BookingID = bookingID
	s.Passenger = &p
	s.HeldAt = &held
	s.UpdatedAt = now
}

func (s *Seat) confirm(now time.Time) {
	s.Status = StatusConfirmed
	s.HeldAt = nil
	s.UpdatedAt = now
}

func (s *Seat) release(now time.Time) {
	s.Status = StatusFree
	s.BookingID = ""
	s.Passenger = nil
	s.HeldAt = nil
	s.UpdatedAt = now
}
