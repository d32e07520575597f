package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/bus"
)

type BusHandler struct {
	service BusServiceInterface
}

func NewBusHandler(s BusServiceInterface) *BusHandler {
	return &BusHandler{service: s}
}

type BusResponse struct {
	ID           string    `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Number       string    `json:"bus_number" example:"TN-07-1234"`
	Name         string    `json:"name" example:"Night Rider"`
	Route        string    `json:"route" example:"Chennai - Madurai"`
	FromCity     string    `json:"from_city" example:"Chennai"`
	ToCity       string    `json:"to_city" example:"Madurai"`
	ScheduleDate string    `json:"schedule_date" example:"2026-02-01"`
	ScheduleTime string    `json:"schedule_time" example:"22:00"`
	TotalSeats   int       `json:"total_seats" example:"40"`
	Price        int       `json:"price" example:"750"`
	BusType      string    `json:"bus_type,omitempty" example:"AC Sleeper"`
	Amenities    []string  `json:"amenities"`
	Rating       float64   `json:"rating" example:"4.2"`
	Duration     string    `json:"duration,omitempty" example:"8h"`
	CreatedAt    time.Time `json:"created_at"`
}

type AvailableSeatsResponse struct {
	BusID string `json:"bus_id"`
	Seats []int  `json:"seats"`
	Count int    `json:"count"`
}

type AvailableCountResponse struct {
	BusID     string `json:"bus_id"`
	Available int    `json:"available"`
}

func toBusResponse(b *bus.Bus) BusResponse {
	amenities := b.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	return BusResponse{
		ID: b.ID, Number: b.Number, Name: b.Name, Route: b.Route,
		FromCity: b.FromCity, ToCity: b.ToCity,
		ScheduleDate: b.ScheduleDate, ScheduleTime: b.ScheduleTime,
		TotalSeats: b.TotalSeats, Price: b.Price, BusType: b.BusType,
		Amenities: amenities, Rating: b.Rating, Duration: b.Duration,
		CreatedAt: b.CreatedAt,
	}
}

func toBusResponses(buses []*bus.Bus) []BusResponse {
	resp := make([]BusResponse, len(buses))
	for i, b := range buses {
		resp[i] = toBusResponse(b)
	}
	return resp
}

// List godoc
// @Summary バス一覧を取得
// @Tags buses
// @Produce json
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} BusResponse
// @Router /buses [get]
func (h *BusHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	buses, err := h.service.ListBuses(c.Request().Context(), limit, offset)
	if err != nil {
		return toHTTPError(err, nil)
	}
	return c.JSON(http.StatusOK, toBusResponses(buses))
}

// Search godoc
// @Summary バスを検索
// @Description 出発地・到着地・運行日で絞り込みます。空の条件は無視されます
// @Tags buses
// @Produce json
// @Param from query string false "出発地"
// @Param to query string false "到着地"
// @Param date query string false "運行日 (YYYY-MM-DD)"
// @Success 200 {array} BusResponse
// @Router /buses/search [get]
func (h *BusHandler) Search(c echo.Context) error {
	buses, err := h.service.SearchBuses(c.Request().Context(), bus.SearchCriteria{
		FromCity: c.QueryParam("from"),
		ToCity:   c.QueryParam("to"),
		Date:     c.QueryParam("date"),
	})
	if err != nil {
		return toHTTPError(err, nil)
	}
	return c.JSON(http.StatusOK, toBusResponses(buses))
}

// GetByID godoc
// @Summary バスを取得
// @Tags buses
// @Produce json
// @Param id path string true "バスID"
// @Success 200 {object} BusResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /buses/{id} [get]
func (h *BusHandler) GetByID(c echo.Context) error {
	b, err := h.service.GetBus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err, nil)
	}
	return c.JSON(http.StatusOK, toBusResponse(b))
}

// AvailableSeats godoc
// @Summary 空席番号の一覧を取得
// @Description 期限切れの仮押さえは空席として扱います
// @Tags buses
// @Produce json
// @Param id path string true "バスID"
// @Success 200 {object} AvailableSeatsResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /buses/{id}/seats/available [get]
func (h *BusHandler) AvailableSeats(c echo.Context) error {
	busID := c.Param("id")
	seats, err := h.service.AvailableSeatNumbers(c.Request().Context(), busID)
	if err != nil {
		return toHTTPError(err, nil)
	}
	if seats == nil {
		seats = []int{}
	}
	return c.JSON(http.StatusOK, AvailableSeatsResponse{BusID: busID, Seats: seats, Count: len(seats)})
}

// CountAvailable godoc
// @Summary 空席数を取得
// @Tags buses
// @Produce json
// @Param id path string true "バスID"
// @Success 200 {object} AvailableCountResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /buses/{id}/seats/available/count [get]
func (h *BusHandler) CountAvailable(c echo.Context) error {
	busID := c.Param("id")
	n, err := h.service.CountAvailableSeats(c.Request().Context(), busID)
	if err != nil {
		return toHTTPError(err, nil)
	}
	return c.JSON(http.StatusOK, AvailableCountResponse{BusID: busID, Available: n})
}
