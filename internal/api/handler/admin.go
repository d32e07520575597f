package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/application"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/booking"
)

// AdminHandler は運行会社向けの管理操作を扱う
type AdminHandler struct {
	buses        BusServiceInterface
	reservations ReservationServiceInterface
	manifests    ManifestServiceInterface
}

func NewAdminHandler(buses BusServiceInterface, reservations ReservationServiceInterface, manifests ManifestServiceInterface) *AdminHandler {
	return &AdminHandler{buses: buses, reservations: reservations, manifests: manifests}
}

type CreateBusRequest struct {
	Number       string   `json:"bus_number" validate:"required" example:"TN-07-1234"`
	Name         string   `json:"name" validate:"required" example:"Night Rider"`
	Route        string   `json:"route" example:"Chennai - Madurai"`
	FromCity     string   `json:"from_city" validate:"required" example:"Chennai"`
	ToCity       string   `json:"to_city" validate:"required" example:"Madurai"`
	ScheduleDate string   `json:"schedule_date" validate:"required" example:"2026-02-01"`
	ScheduleTime string   `json:"schedule_time" validate:"required" example:"22:00"`
	TotalSeats   int      `json:"total_seats" validate:"required,gte=1" example:"40"`
	Price        int      `json:"price" validate:"gte=0" example:"750"`
	BusType      string   `json:"bus_type" example:"AC Sleeper"`
	Amenities    []string `json:"amenities" example:"WiFi,Water"`
	Rating       float64  `json:"rating" validate:"gte=0,lte=5" example:"4.2"`
	Duration     string   `json:"duration" example:"8h"`
}

type ReleaseSeatsRequest struct {
	Seats []int `json:"seats" validate:"required,min=1" example:"3,4"`
}

type ReleaseSeatsResponse struct {
	BusID         string `json:"bus_id"`
	ReleasedSeats []int  `json:"released_seats"`
}

type ResetResponse struct {
	BusID             string   `json:"bus_id"`
	CancelledBookings []string `json:"cancelled_bookings"`
	ReleasedSeats     []int    `json:"released_seats"`
}

type ManifestEntryResponse struct {
	SeatNumber  int               `json:"seat_number"`
	BookingID   string            `json:"booking_id"`
	UserID      string            `json:"user_id"`
	Passenger   PassengerResponse `json:"passenger"`
	ConfirmedAt *time.Time        `json:"confirmed_at,omitempty"`
}

type ManifestResponse struct {
	BusID        string                  `json:"bus_id"`
	BusNumber    string                  `json:"bus_number"`
	BusName      string                  `json:"bus_name"`
	FromCity     string                  `json:"from_city"`
	ToCity       string                  `json:"to_city"`
	ScheduleDate string                  `json:"schedule_date"`
	ScheduleTime string                  `json:"schedule_time"`
	TotalSeats   int                     `json:"total_seats"`
	Confirmed    int                     `json:"confirmed"`
	Entries      []ManifestEntryResponse `json:"entries"`
	GeneratedAt  time.Time               `json:"generated_at"`
}

func toManifestResponse(m *booking.Manifest) ManifestResponse {
	entries := make([]ManifestEntryResponse, len(m.Entries))
	for i, e := range m.Entries {
		entries[i] = ManifestEntryResponse{
			SeatNumber: e.SeatNumber, BookingID: e.BookingID, UserID: e.UserID,
			Passenger: toPassengerResponse(e.Passenger), ConfirmedAt: e.ConfirmedAt,
		}
	}
	return ManifestResponse{
		BusID: m.BusID, BusNumber: m.BusNumber, BusName: m.BusName,
		FromCity: m.FromCity, ToCity: m.ToCity,
		ScheduleDate: m.ScheduleDate, ScheduleTime: m.ScheduleTime,
		TotalSeats: m.TotalSeats, Confirmed: m.Confirmed(),
		Entries: entries, GeneratedAt: m.GeneratedAt,
	}
}

// CreateBus godoc
// @Summary バスを登録
// @Description バスと全席空席の座席台帳を作成します
// @Tags admin
// @Accept json
// @Produce json
// @Param X-Admin-Token header string false "管理トークン"
// @Param request body CreateBusRequest true "バス情報"
// @Success 201 {object} BusResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "バス番号の重複"
// @Router /admin/buses [post]
func (h *AdminHandler) CreateBus(c echo.Context) error {
	var req CreateBusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	b, err := h.buses.CreateBus(c.Request().Context(), application.CreateBusInput{
		Number: req.Number, Name: req.Name, Route: req.Route,
		FromCity: req.FromCity, ToCity: req.ToCity,
		ScheduleDate: req.ScheduleDate, ScheduleTime: req.ScheduleTime,
		TotalSeats: req.TotalSeats, Price: req.Price, BusType: req.BusType,
		Amenities: req.Amenities, Rating: req.Rating, Duration: req.Duration,
	})
	if err != nil {
		return toHTTPError(err, nil)
	}
	return c.JSON(http.StatusCreated, toBusResponse(b))
}

// ReleaseSeats godoc
// @Summary 座席を強制的に空席へ戻す
// @Description 座席を失った予約は縮小され、1席も残らなければキャンセルされます
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "バスID"
// @Param request body ReleaseSeatsRequest true "座席番号"
// @Success 200 {object} ReleaseSeatsResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /admin/buses/{id}/release [post]
func (h *AdminHandler) ReleaseSeats(c echo.Context) error {
	busID := c.Param("id")
	var req ReleaseSeatsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	released, err := h.reservations.Release(c.Request().Context(), busID, req.Seats)
	if err != nil {
		return toHTTPError(err, nil)
	}
	if released == nil {
		released = []int{}
	}
	return c.JSON(http.StatusOK, ReleaseSeatsResponse{BusID: busID, ReleasedSeats: released})
}

// Reset godoc
// @Summary バスの予約をリセット
// @Description 有効な予約をすべてキャンセルし、全座席を空席に戻します
// @Tags admin
// @Produce json
// @Param id path string true "バスID"
// @Success 200 {object} ResetResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /admin/buses/{id}/reset [post]
func (h *AdminHandler) Reset(c echo.Context) error {
	res, err := h.reservations.ResetBus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err, nil)
	}
	return c.JSON(http.StatusOK, ResetResponse{
		BusID:             res.BusID,
		CancelledBookings: res.CancelledBookings,
		ReleasedSeats:     res.ReleasedSeats,
	})
}

// Manifest godoc
// @Summary 乗客名簿を取得
// @Description 確定済みの座席を座席番号順に返します。format=pdf の場合はPDFを返します
// @Tags admin
// @Produce json
// @Produce application/pdf
// @Param id path string true "バスID"
// @Param format query string false "json または pdf" default(json)
// @Success 200 {object} ManifestResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 501 {object} api.ErrorResponse "PDF出力が未設定"
// @Router /admin/buses/{id}/manifest [get]
func (h *AdminHandler) Manifest(c echo.Context) error {
	busID := c.Param("id")
	switch c.QueryParam("format") {
	case "", "json":
		m, err := h.manifests.Manifest(c.Request().Context(), busID)
		if err != nil {
			return toHTTPError(err, nil)
		}
		return c.JSON(http.StatusOK, toManifestResponse(m))
	case "pdf":
		out, err := h.manifests.ManifestPDF(c.Request().Context(), busID)
		if err != nil {
			return toHTTPError(err, nil)
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="manifest-%s.pdf"`, busID))
		return c.Blob(http.StatusOK, "application/pdf", out)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "format は json または pdf を指定してください")
	}
}
