package application

import (
	"errors"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/bus"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/infrastructure/payment"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/pkg/metrics"
)

var validationErrors = []error{
	seat.ErrInvalidSeatNumber,
	seat.ErrDuplicateSeatNumber,
	seat.ErrNoSeatsRequested,
	seat.ErrPassengerNameEmpty,
	seat.ErrInvalidPassengerAge,
	seat.ErrInvalidGender,
	seat.ErrInvalidTotalSeats,
	booking.ErrUserIDRequired,
	booking.ErrBusIDRequired,
	booking.ErrSeatsRequired,
	booking.ErrBookingIDRequired,
	bus.ErrBusNumberRequired,
	bus.ErrBusNameRequired,
	bus.ErrRouteRequired,
	bus.ErrInvalidScheduleDate,
	bus.ErrInvalidScheduleTime,
	bus.ErrInvalidTotalSeats,
	bus.ErrInvalidPrice,
	bus.ErrInvalidRating,
	payment.ErrUnknownStatus,
	payment.ErrInvalidAmount,
}

// IsValidationError は入力値の誤りによるエラーかを判定する
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// resultOf はエラーをメトリクスの結果ラベルに変換する
func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, seat.ErrSeatUnavailable),
		errors.Is(err, seat.ErrCapacityExceeded),
		errors.Is(err, booking.ErrAlreadyConfirmed),
		errors.Is(err, booking.ErrAlreadyCancelled),
		errors.Is(err, booking.ErrNotTemporary),
		errors.Is(err, bus.ErrBusNumberDuplicate):
		return metrics.ResultConflict
	case errors.Is(err, booking.ErrHoldExpired):
		return metrics.ResultExpired
	case errors.Is(err, seat.ErrConcurrencyConflict):
		return metrics.ResultLockFailed
	case errors.Is(err, bus.ErrBusNotFound), errors.Is(err, booking.ErrBookingNotFound):
		return metrics.ResultNotFound
	case IsValidationError(err):
		return metrics.ResultInvalid
	default:
		return metrics.ResultError
	}
}
