package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/bus"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/infrastructure/payment"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/pkg/logger"
)

type PaymentConfig struct {
	Currency   string
	SuccessURL string
	CancelURL  string
}

// Checkout は作成した決済セッション
type Checkout struct {
	BookingID   string
	SessionID   string
	RedirectURL string
	Amount      int
	Currency    string
	ExpiresAt   time.Time
}

// PaymentService は決済事業者とのやり取りを予約の確定・キャンセルにつなぐ
// 決済事業者の呼び出しはバスのロックの外で行う
type PaymentService struct {
	reservations *ReservationService
	buses        bus.Repository
	gateway      payment.Gateway
	cfg          PaymentConfig
}

func NewPaymentService(reservations *ReservationService, buses bus.Repository, gateway payment.Gateway, cfg PaymentConfig) *PaymentService {
	return &PaymentService{reservations: reservations, buses: buses, gateway: gateway, cfg: cfg}
}

// StartCheckout は仮押さえ中の予約に対して決済セッションを作成する
// 予約は決済完了の通知があるまで仮押さえのまま残る
func (s *PaymentService) StartCheckout(ctx context.Context, bookingID string) (*Checkout, error) {
	b, err := s.reservations.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := payable(b, s.reservations.now()); err != nil {
		return nil, err
	}

	bs, err := s.buses.GetByID(ctx, b.BusID)
	if err != nil {
		return nil, err
	}
	amount := bs.Price * len(b.Seats)

	session, err := s.gateway.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		BookingID:  b.ID,
		Amount:     amount,
		Currency:   s.cfg.Currency,
		SuccessURL: s.cfg.SuccessURL,
		CancelURL:  s.cfg.CancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("決済セッションの作成に失敗: %w", err)
	}

	logger.ForBooking(b.ID, b.BusID).Info("決済セッションを作成しました",
		zap.String("session_id", session.ID), zap.Int("amount", amount))
	return &Checkout{
		BookingID:   b.ID,
		SessionID:   session.ID,
		RedirectURL: session.RedirectURL,
		Amount:      amount,
		Currency:    s.cfg.Currency,
		ExpiresAt:   b.ExpiresAt,
	}, nil
}

// HandleCallback は決済結果の通知を受けて予約を確定またはキャンセルする
func (s *PaymentService) HandleCallback(ctx context.Context, bookingID, rawStatus string) (*booking.Booking, error) {
	if bookingID == "" {
		return nil, booking.ErrBookingIDRequired
	}
	status, err := payment.ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	log := logger.ForPayment(bookingID, string(status))
	if status == payment.StatusSucceeded {
		b, err := s.reservations.Confirm(ctx, bookingID)
		if err != nil {
			log.Warn("決済済みの予約を確定できませんでした", zap.Error(err))
			return b, err
		}
		log.Info("決済完了により予約を確定しました")
		return b, nil
	}

	b, err := s.reservations.cancel(ctx, bookingID, booking.ReasonPaymentFailed, true)
	s.reservations.metrics.ObserveOperation(opCancel, resultOf(err))
	if errors.Is(err, booking.ErrNotTemporary) {
		log.Warn("確定済みの予約に対する決済失敗の通知は反映しません")
		return b, err
	}
	if err != nil {
		return b, err
	}
	log.Info("決済失敗により予約をキャンセルしました")
	return b, nil
}

func payable(b *booking.Booking, now time.Time) error {
	switch b.Status {
	case booking.StatusConfirmed:
		return booking.ErrAlreadyConfirmed
	case booking.StatusCancelled:
		if b.CancelReason == booking.ReasonExpired {
			return booking.ErrHoldExpired
		}
		return booking.ErrAlreadyCancelled
	}
	if b.IsExpired(now) {
		return booking.ErrHoldExpired
	}
	return nil
}
