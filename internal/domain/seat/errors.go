package seat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Seat ドメインのエラー定義
var (
	ErrLedgerNotFound      = errors.New("座席台帳が見つかりません")
	ErrSeatUnavailable     = errors.New("座席は予約できません")
	ErrCapacityExceeded    = errors.New("空席数を超える座席が指定されました")
	ErrInvalidSeatNumber   = errors.New("座席番号が範囲外です")
	ErrDuplicateSeatNumber = errors.New("座席番号が重複しています")
	ErrNoSeatsRequested    = errors.New("座席は1つ以上指定する必要があります")
	ErrHoldMismatch        = errors.New("座席の仮押さえが予約と一致しません")
	ErrInvalidTotalSeats   = errors.New("座席数は1以上である必要があります")
	ErrPassengerNameEmpty  = errors.New("乗客名は必須です")
	ErrInvalidPassengerAge = errors.New("乗客の年齢が不正です")
	ErrInvalidGender       = errors.New("乗客の性別が不正です")
	ErrConcurrencyConflict = errors.New("同じバスへの操作が競合しています。再試行してください")
)

// SeatUnavailableError は予約できなかった座席番号を保持する
type SeatUnavailableError struct {
	Seats []int
}

func (e *SeatUnavailableError) Error() string {
	nums := make([]string, len(e.Seats))
	for i, n := range e.Seats {
		nums[i] = strconv.Itoa(n)
	}
	return fmt.Sprintf("%s: [%s]", ErrSeatUnavailable.Error(), strings.Join(nums, ", "))
}

// Is は errors.Is(err, ErrSeatUnavailable) を成立させる
func (e *SeatUnavailableError) Is(target error) bool {
	return target == ErrSeatUnavailable
}

// UnavailableSeats はエラーチェーンから予約できなかった座席番号を取り出す
func UnavailableSeats(err error) ([]int, bool) {
	var target *SeatUnavailableError
	if errors.As(err, &target) {
		return target.Seats, true
	}
	return nil, false
}
