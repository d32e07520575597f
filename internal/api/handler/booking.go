package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/application"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/seat"
)

type BookingHandler struct {
	service ReservationServiceInterface
}

func NewBookingHandler(s ReservationServiceInterface) *BookingHandler {
	return &BookingHandler{service: s}
}

type PassengerRequest struct {
	Name   string `json:"name" validate:"required" example:"Asha"`
	Age    int    `json:"age" validate:"gte=0,lte=150" example:"29"`
	Gender string `json:"gender" validate:"required,oneof=Male Female Other" example:"Female"`
}

type SeatRequest struct {
	SeatNumber int              `json:"seat_number" validate:"required,gte=1" example:"12"`
	Passenger  PassengerRequest `json:"passenger"`
}

type CreateBookingRequest struct {
	BusID string        `json:"bus_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	Seats []SeatRequest `json:"seats" validate:"required,min=1,dive"`
}

type PassengerResponse struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

type BookingSeatResponse struct {
	SeatNumber int               `json:"seat_number"`
	Passenger  PassengerResponse `json:"passenger"`
}

type BookingResponse struct {
	ID           string                `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	UserID       string                `json:"user_id" example:"user-123"`
	BusID        string                `json:"bus_id"`
	Seats        []BookingSeatResponse `json:"seats"`
	Status       string                `json:"status" example:"temporary"`
	CancelReason string                `json:"cancel_reason,omitempty" example:"expired"`
	TotalAmount  int                   `json:"total_amount" example:"1500"`
	HeldAt       time.Time             `json:"held_at"`
	ExpiresAt    time.Time             `json:"expires_at"`
	ConfirmedAt  *time.Time            `json:"confirmed_at,omitempty"`
	CancelledAt  *time.Time            `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

func toPassengerResponse(p seat.Passenger) PassengerResponse {
	return PassengerResponse{Name: p.Name, Age: p.Age, Gender: string(p.Gender)}
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	seats := make([]BookingSeatResponse, len(b.Seats))
	for i, s := range b.Seats {
		seats[i] = BookingSeatResponse{SeatNumber: s.Number, Passenger: toPassengerResponse(s.Passenger)}
	}
	return BookingResponse{
		ID: b.ID, UserID: b.UserID, BusID: b.BusID, Seats: seats,
		Status: string(b.Status), CancelReason: string(b.CancelReason),
		TotalAmount: b.TotalAmount, HeldAt: b.HeldAt, ExpiresAt: b.ExpiresAt,
		ConfirmedAt: b.ConfirmedAt, CancelledAt: b.CancelledAt, CreatedAt: b.CreatedAt,
	}
}

// Create godoc
// @Summary 座席を仮押さえ
// @Description 指定した座席をまとめて仮押さえします。1席でも取れない場合は何も押さえません
// @Tags bookings
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body CreateBookingRequest true "予約情報"
// @Success 201 {object} BookingResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "座席が既に押さえられている"
// @Failure 503 {object} api.ErrorResponse "同じバスへの操作が混雑している"
// @Router /bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	seats := make([]application.SeatInput, len(req.Seats))
	for i, s := range req.Seats {
		seats[i] = application.SeatInput{
			Number: s.SeatNumber,
			Passenger: seat.Passenger{
				Name:   s.Passenger.Name,
				Age:    s.Passenger.Age,
				Gender: seat.Gender(s.Passenger.Gender),
			},
		}
	}
	b, err := h.service.Reserve(c.Request().Context(), application.ReserveInput{
		BusID: req.BusID, UserID: uid, Seats: seats,
	})
	if err != nil {
		return toHTTPError(err, nil)
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}

// GetByID godoc
// @Summary 予約を取得
// @Description 座席台帳と食い違っている場合は台帳に合わせて補正した予約を返します
// @Tags bookings
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /bookings/{id} [get]
func (h *BookingHandler) GetByID(c echo.Context) error {
	b, err := h.service.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err, nil)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// List godoc
// @Summary ユーザーの予約一覧を取得
// @Tags bookings
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} BookingResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /bookings [get]
func (h *BookingHandler) List(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	bookings, err := h.service.ListUserBookings(c.Request().Context(), uid, limit, offset)
	if err != nil {
		return toHTTPError(err, nil)
	}
	resp := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		resp[i] = toBookingResponse(b)
	}
	return c.JSON(http.StatusOK, resp)
}

// Confirm godoc
// @Summary 予約を確定
// @Description 仮押さえ中の予約を確定します。期限切れの場合は座席を解放して 410 を返します
// @Tags bookings
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Failure 410 {object} api.ErrorResponse
// @Router /bookings/{id}/confirm [post]
func (h *BookingHandler) Confirm(c echo.Context) error {
	b, err := h.service.Confirm(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err, b)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description 仮押さえ中・確定済みの予約をキャンセルし、座席を解放します
// @Tags bookings
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c echo.Context) error {
	b, err := h.service.Cancel(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err, b)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}
