package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrBaseURLRequired   = errors.New("決済ページのURLが設定されていません")
	ErrInvalidAmount     = errors.New("決済金額は1以上である必要があります")
	ErrBookingIDRequired = errors.New("予約IDは必須です")
	ErrUnknownStatus     = errors.New("不明な決済ステータスです")
)

// Status は決済事業者から通知される決済結果
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus はコールバックの決済ステータスを解釈する
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
}

type CheckoutRequest struct {
	BookingID  string
	Amount     int
	Currency   string
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID          string
	RedirectURL string
}

// Gateway は決済セッションを作成する外部決済事業者
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// RedirectGateway は設定された決済ページへのリダイレクトURLを組み立てる
// 外部への通信は行わない
type RedirectGateway struct {
	baseURL *url.URL
	newID   func() string
}

func NewRedirectGateway(baseURL string) (*RedirectGateway, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("決済ページのURLが不正です: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("決済ページのURLが不正です: %s", baseURL)
	}
	return &RedirectGateway{baseURL: u, newID: uuid.NewString}, nil
}

func (g *RedirectGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.BookingID == "" {
		return nil, ErrBookingIDRequired
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	id := "cs_" + strings.ReplaceAll(g.newID(), "-", "")
	u := *g.baseURL
	q := u.Query()
	q.Set("session_id", id)
	q.Set("booking_id", req.BookingID)
	q.Set("amount", strconv.Itoa(req.Amount))
	if req.Currency != "" {
		q.Set("currency", strings.ToLower(req.Currency))
	}
	if req.SuccessURL != "" {
		q.Set("success_url", req.SuccessURL)
	}
	if req.CancelURL != "" {
		q.Set("cancel_url", req.CancelURL)
	}
	u.RawQuery = q.Encode()

	return &CheckoutSession{ID: id, RedirectURL: u.String()}, nil
}
