package handler

import (
	"context"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/application"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/bus"
)

// BusServiceInterface はバスサービスのインターフェース
type BusServiceInterface interface {
	CreateBus(ctx context.Context, input application.CreateBusInput) (*bus.Bus, error)
	GetBus(ctx context.Context, id string) (*bus.Bus, error)
	ListBuses(ctx context.Context, limit, offset int) ([]*bus.Bus, error)
	SearchBuses(ctx context.Context, criteria bus.SearchCriteria) ([]*bus.Bus, error)
	AvailableSeatNumbers(ctx context.Context, busID string) ([]int, error)
	CountAvailableSeats(ctx context.Context, busID string) (int, error)
}

// ReservationServiceInterface は座席予約サービスのインターフェース
type ReservationServiceInterface interface {
	Reserve(ctx context.Context, input application.ReserveInput) (*booking.Booking, error)
	Confirm(ctx context.Context, bookingID string) (*booking.Booking, error)
	Cancel(ctx context.Context, bookingID string) (*booking.Booking, error)
	Release(ctx context.Context, busID string, numbers []int) ([]int, error)
	GetBooking(ctx context.Context, bookingID string) (*booking.Booking, error)
	ListUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error)
	ResetBus(ctx context.Context, busID string) (*application.ResetResult, error)
}

// PaymentServiceInterface は決済サービスのインターフェース
type PaymentServiceInterface interface {
	StartCheckout(ctx context.Context, bookingID string) (*application.Checkout, error)
	HandleCallback(ctx context.Context, bookingID, rawStatus string) (*booking.Booking, error)
}

// ManifestServiceInterface は乗客名簿サービスのインターフェース
type ManifestServiceInterface interface {
	Manifest(ctx context.Context, busID string) (*booking.Manifest, error)
	ManifestPDF(ctx context.Context, busID string) ([]byte, error)
}
