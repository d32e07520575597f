package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/api"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/application"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/bus"
)

// MockBusService はBusServiceInterfaceのモック
type MockBusService struct {
	mock.Mock
}

func (m *MockBusService) CreateBus(ctx context.Context, input application.CreateBusInput) (*bus.Bus, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bus.Bus), args.Error(1)
}

func (m *MockBusService) GetBus(ctx context.Context, id string) (*bus.Bus, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bus.Bus), args.Error(1)
}

func (m *MockBusService) ListBuses(ctx context.Context, limit, offset int) ([]*bus.Bus, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*bus.Bus), args.Error(1)
}

func (m *MockBusService) SearchBuses(ctx context.Context, criteria bus.SearchCriteria) ([]*bus.Bus, error) {
	args := m.Called(ctx, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*bus.Bus), args.Error(1)
}

func (m *MockBusService) AvailableSeatNumbers(ctx context.Context, busID string) ([]int, error) {
	args := m.Called(ctx, busID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockBusService) CountAvailableSeats(ctx context.Context, busID string) (int, error) {
	args := m.Called(ctx, busID)
	return args.Int(0), args.Error(1)
}

// MockReservationService はReservationServiceInterfaceのモック
type MockReservationService struct {
	mock.Mock
}

func (m *MockReservationService) Reserve(ctx context.Context, input application.ReserveInput) (*booking.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockReservationService) Confirm(ctx context.Context, bookingID string) (*booking.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockReservationService) Cancel(ctx context.Context, bookingID string) (*booking.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockReservationService) Release(ctx context.Context, busID string, numbers []int) ([]int, error) {
	args := m.Called(ctx, busID, numbers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockReservationService) GetBooking(ctx context.Context, bookingID string) (*booking.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockReservationService) ListUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Booking), args.Error(1)
}

func (m *MockReservationService) ResetBus(ctx context.Context, busID string) (*application.ResetResult, error) {
	args := m.Called(ctx, busID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.ResetResult), args.Error(1)
}

// MockPaymentService はPaymentServiceInterfaceのモック
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) StartCheckout(ctx context.Context, bookingID string) (*application.Checkout, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.Checkout), args.Error(1)
}

func (m *MockPaymentService) HandleCallback(ctx context.Context, bookingID, rawStatus string) (*booking.Booking, error) {
	args := m.Called(ctx, bookingID, rawStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

// MockManifestService はManifestServiceInterfaceのモック
type MockManifestService struct {
	mock.Mock
}

func (m *MockManifestService) Manifest(ctx context.Context, busID string) (*booking.Manifest, error) {
	args := m.Called(ctx, busID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Manifest), args.Error(1)
}

func (m *MockManifestService) ManifestPDF(ctx context.Context, busID string) ([]byte, error) {
	args := m.Called(ctx, busID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type request struct {
	method  string
	target  string
	body    string
	userID  string
	params  map[string]string
	headers map[string]string
}

// perform はハンドラーを実行し、返ったエラーを本番と同じエラーハンドラーで書き出す
func perform(e *echo.Echo, h echo.HandlerFunc, r request) *httptest.ResponseRecorder {
	c, rec := NewTestContext(e, TestRequest{
		Method:  r.method,
		Target:  r.target,
		Body:    r.body,
		UserID:  r.userID,
		Params:  r.params,
		Headers: r.headers,
	})
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}
