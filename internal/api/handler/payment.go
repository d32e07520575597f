package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	service PaymentServiceInterface
}

func NewPaymentHandler(s PaymentServiceInterface) *PaymentHandler {
	return &PaymentHandler{service: s}
}

type CheckoutResponse struct {
	BookingID   string    `json:"booking_id"`
	SessionID   string    `json:"session_id" example:"cs_3f2a9c"`
	RedirectURL string    `json:"redirect_url" example:"https://checkout.example.com/pay?session_id=cs_3f2a9c"`
	Amount      int       `json:"amount" example:"1500"`
	Currency    string    `json:"currency" example:"INR"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type PaymentCallbackRequest struct {
	BookingID string `json:"booking_id" validate:"required"`
	Status    string `json:"status" validate:"required" example:"succeeded"`
}

// Checkout godoc
// @Summary 決済セッションを開始
// @Description 仮押さえ中の予約の決済ページへのリダイレクトURLを発行します
// @Tags payments
// @Produce json
// @Param id path string true "予約ID"
// @Success 201 {object} CheckoutResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Failure 410 {object} api.ErrorResponse
// @Router /bookings/{id}/checkout [post]
func (h *PaymentHandler) Checkout(c echo.Context) error {
	co, err := h.service.StartCheckout(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err, nil)
	}
	return c.JSON(http.StatusCreated, CheckoutResponse{
		BookingID:   co.BookingID,
		SessionID:   co.SessionID,
		RedirectURL: co.RedirectURL,
		Amount:      co.Amount,
		Currency:    co.Currency,
		ExpiresAt:   co.ExpiresAt,
	})
}

// Callback godoc
// @Summary 決済結果の通知を受け取る
// @Description succeeded なら予約を確定し、それ以外は予約をキャンセルして座席を解放します
// @Tags payments
// @Accept json
// @Produce json
// @Param request body PaymentCallbackRequest true "決済結果"
// @Success 200 {object} BookingResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "確定済みの予約への失敗通知"
// @Failure 410 {object} api.ErrorResponse
// @Router /payments/callback [post]
func (h *PaymentHandler) Callback(c echo.Context) error {
	var req PaymentCallbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	b, err := h.service.HandleCallback(c.Request().Context(), req.BookingID, req.Status)
	if err != nil {
		return toHTTPError(err, b)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}
