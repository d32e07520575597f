package bus

import (
	"regexp"
	"time"
)

var (
	dateLayout = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeLayout = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// Bus はバス（座席の所有者）エンティティを表す
// TotalSeats は作成後に変更しない
type Bus struct {
	ID           string
	Number       string
	Name         string
	Route        string
	FromCity     string
	ToCity       string
	ScheduleDate string
	ScheduleTime string
	TotalSeats   int
	Price        int
	BusType      string
	Amenities    []string
	Rating       float64
	Duration     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewBus は新しいバスを作成する
func NewBus(id, number, name string, totalSeats, price int, now time.Time) *Bus {
	return &Bus{
		ID:         id,
		Number:     number,
		Name:       name,
		TotalSeats: totalSeats,
		Price:      price,
		Amenities:  []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate はバスの検証を行う
func (b *Bus) Validate() error {
	if b.Number == "" {
		return ErrBusNumberRequired
	}
	if b.Name == "" {
		return ErrBusNameRequired
	}
	if b.FromCity == "" || b.ToCity == "" {
		return ErrRouteRequired
	}
	if !dateLayout.MatchString(b.ScheduleDate) {
		return ErrInvalidScheduleDate
	}
	if b.ScheduleTime != "" && !timeLayout.MatchString(b.ScheduleTime) {
		return ErrInvalidScheduleTime
	}
	if b.TotalSeats <= 0 {
		return ErrInvalidTotalSeats
	}
	if b.Price < 0 {
		return ErrInvalidPrice
	}
	if b.Rating < 0 || b.Rating > 5 {
		return ErrInvalidRating
	}
	return nil
}

// SearchCriteria はバス検索条件
type SearchCriteria struct {
	FromCity string
	ToCity   string
	Date     string
}

// Matches は検索条件に一致するかを返す。空の条件は無視する
func (c SearchCriteria) Matches(b *Bus) bool {
	if c.FromCity != "" && c.FromCity != b.FromCity {
		return false
	}
	if c.ToCity != "" && c.ToCity != b.ToCity {
		return false
	}
	if c.Date != "" && c.Date != b.ScheduleDate {
		return false
	}
	return true
}
