package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/api"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/application"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/bus"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/seat"
)

var errUserIDRequired = echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")

// toHTTPError はドメインエラーをステータスと種別に変換する
// 予約が分かっている場合は対象の座席番号を添える
func toHTTPError(err error, b *booking.Booking) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return err
	}

	var seats []int
	if b != nil {
		seats = b.SeatNumbers()
	}

	switch {
	case errors.Is(err, bus.ErrBusNotFound), errors.Is(err, booking.ErrBookingNotFound):
		return api.NewError(http.StatusNotFound, api.KindNotFound, err)
	case errors.Is(err, seat.ErrSeatUnavailable):
		if taken, ok := seat.UnavailableSeats(err); ok {
			seats = taken
		}
		return api.NewError(http.StatusConflict, api.KindSeatUnavailable, err, seats...)
	case errors.Is(err, seat.ErrCapacityExceeded):
		return api.NewError(http.StatusConflict, api.KindCapacityExceeded, err)
	case errors.Is(err, booking.ErrAlreadyConfirmed):
		return api.NewError(http.StatusConflict, api.KindAlreadyConfirmed, err, seats...)
	case errors.Is(err, booking.ErrAlreadyCancelled):
		return api.NewError(http.StatusConflict, api.KindAlreadyCancelled, err, seats...)
	case errors.Is(err, booking.ErrNotTemporary):
		return api.NewError(http.StatusConflict, api.KindNotTemporary, err, seats...)
	case errors.Is(err, bus.ErrBusNumberDuplicate):
		return api.NewError(http.StatusConflict, api.KindDuplicate, err)
	case errors.Is(err, booking.ErrHoldExpired):
		return api.NewError(http.StatusGone, api.KindHoldExpired, err, seats...)
	case errors.Is(err, seat.ErrConcurrencyConflict):
		return api.NewError(http.StatusServiceUnavailable, api.KindConcurrencyConflict, err)
	case errors.Is(err, application.ErrRendererNotConfigured):
		return api.NewError(http.StatusNotImplemented, api.KindNotImplemented, err)
	case application.IsValidationError(err):
		return api.NewError(http.StatusBadRequest, api.KindValidation, err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "内部サーバーエラー").SetInternal(err)
}

// userID は X-User-ID ヘッダーから利用者を取り出す。認証は行わない
func userID(c echo.Context) (string, error) {
	id := c.Request().Header.Get("X-User-ID")
	if id == "" {
		return "", errUserIDRequired
	}
	return id, nil
}
