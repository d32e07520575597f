package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handleError(t *testing.T, method string, err error) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, "/api/v1/bookings", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	CustomHTTPErrorHandler(err, c)

	var resp ErrorResponse
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestCustomHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantKind  string
		wantError string
		wantSeats []int
	}{
		{
			name:      "ErrorResponse を持つ HTTPError",
			err:       NewError(http.StatusConflict, KindSeatUnavailable, errors.New("座席は予約できません"), 3, 4),
			wantCode:  http.StatusConflict,
			wantKind:  KindSeatUnavailable,
			wantError: "座席は予約できません",
			wantSeats: []int{3, 4},
		},
		{
			name:      "文字列メッセージの HTTPError",
			err:       echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です"),
			wantCode:  http.StatusUnauthorized,
			wantKind:  KindUnauthorized,
			wantError: "ユーザーIDが必要です",
		},
		{
			name:      "ルーティングの 404",
			err:       echo.ErrNotFound,
			wantCode:  http.StatusNotFound,
			wantKind:  KindNotFound,
			wantError: "Not Found",
		},
		{
			name:      "405 は種別をステータスから作る",
			err:       echo.ErrMethodNotAllowed,
			wantCode:  http.StatusMethodNotAllowed,
			wantKind:  "method_not_allowed",
			wantError: "Method Not Allowed",
		},
		{
			name:      "HTTPError 以外は 500 で詳細を隠す",
			err:       errors.New("connection refused"),
			wantCode:  http.StatusInternalServerError,
			wantKind:  KindInternal,
			wantError: "内部サーバーエラー",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := handleError(t, http.MethodGet, tt.err)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantKind, resp.Kind)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, tt.wantSeats, resp.Seats)
		})
	}
}

func TestCustomHTTPErrorHandler_RetryAfter(t *testing.T) {
	err := NewError(http.StatusServiceUnavailable, KindConcurrencyConflict, errors.New("競合"))
	rec, resp := handleError(t, http.MethodPost, err)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, KindConcurrencyConflict, resp.Kind)
}

func TestCustomHTTPErrorHandler_Head(t *testing.T) {
	rec, _ := handleError(t, http.MethodHead, echo.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestCustomHTTPErrorHandler_Committed(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, c.String(http.StatusOK, "done"))

	CustomHTTPErrorHandler(errors.New("late"), c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "done", rec.Body.String())
}

func TestNewError_KeepsInternal(t *testing.T) {
	cause := errors.New("原因")
	he := NewError(http.StatusGone, KindHoldExpired, cause)
	assert.ErrorIs(t, he, cause)
	assert.Equal(t, http.StatusGone, he.Code)
}

func TestValidator(t *testing.T) {
	type request struct {
		BusID string `validate:"required"`
		Seats []int  `validate:"required,min=1"`
	}
	v := NewValidator()

	assert.NoError(t, v.Validate(&request{BusID: "bus-1", Seats: []int{1}}))

	err := v.Validate(&request{})
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
	resp, ok := he.Message.(ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, KindValidation, resp.Kind)
	assert.Contains(t, resp.Details, "request.BusID:required")
	assert.Contains(t, resp.Details, "request.Seats:required")
}
