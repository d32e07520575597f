package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/pkg/logger"
)

// エラー種別。クライアントはこの値で分岐する
const (
	KindValidation          = "validation"
	KindUnauthorized        = "unauthorized"
	KindForbidden           = "forbidden"
	KindNotFound            = "not_found"
	KindSeatUnavailable     = "seat_unavailable"
	KindCapacityExceeded    = "capacity_exceeded"
	KindAlreadyConfirmed    = "already_confirmed"
	KindAlreadyCancelled    = "already_cancelled"
	KindNotTemporary        = "not_temporary"
	KindDuplicate           = "duplicate"
	KindHoldExpired         = "hold_expired"
	KindConcurrencyConflict = "concurrency_conflict"
	KindNotImplemented      = "not_implemented"
	KindInternal            = "internal"
)

// RetryAfterSeconds は 503 応答で返す再試行までの秒数
const RetryAfterSeconds = 1

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Seats   []int  `json:"seats,omitempty"`
	Details string `json:"details,omitempty"`
}

// NewError は ErrorResponse をメッセージに持つ HTTPError を作成する
func NewError(code int, kind string, err error, seats ...int) *echo.HTTPError {
	he := echo.NewHTTPError(code, ErrorResponse{
		Error: err.Error(),
		Code:  code,
		Kind:  kind,
		Seats: seats,
	})
	return he.SetInternal(err)
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	resp := ErrorResponse{
		Error: "内部サーバーエラー",
		Code:  http.StatusInternalServerError,
		Kind:  KindInternal,
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch m := he.Message.(type) {
		case ErrorResponse:
			resp = m
		case string:
			resp.Error = m
		default:
			resp.Error = http.StatusText(he.Code)
		}
		resp.Code = he.Code
		if resp.Kind == "" || resp.Kind == KindInternal {
			resp.Kind = kindOf(he.Code)
		}
	}

	// エラーログを出力（5xx エラーの場合）
	if resp.Code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", resp.Code),
			zap.String("kind", resp.Kind),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}
	if resp.Code == http.StatusServiceUnavailable {
		c.Response().Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(resp.Code)
	} else {
		err = c.JSON(resp.Code, resp)
	}
	if err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}

func kindOf(code int) string {
	switch code {
	case http.StatusBadRequest:
		return KindValidation
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusServiceUnavailable:
		return KindConcurrencyConflict
	}
	if code >= 500 {
		return KindInternal
	}
	return strings.ReplaceAll(strings.ToLower(http.StatusText(code)), " ", "_")
}
