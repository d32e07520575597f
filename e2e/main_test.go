package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/api/router"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/application"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/infrastructure/memory"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/infrastructure/payment"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/infrastructure/pdf"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/pkg/metrics"
)

const adminToken = "e2e-admin"

// TestServer はインメモリストアで組み立てたE2Eテスト用のサーバー
type TestServer struct {
	Echo         *echo.Echo
	Reservations *application.ReservationService
	Metrics      *metrics.Metrics
	Registry     *prometheus.Registry
}

var busSeq atomic.Int64

// NewTestServer は本番と同じルーターをインメモリストアで組み立てる
func NewTestServer(t *testing.T, holdTTL time.Duration) *TestServer {
	t.Helper()

	repos := memory.NewRepositories()
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	reservations := application.NewReservationService(application.ReservationDeps{
		Tx:       repos.Tx,
		Buses:    repos.Buses,
		Ledgers:  repos.Ledgers,
		Bookings: repos.Bookings,
		Locker:   memory.NewKeyedLocker(),
		Metrics:  m,
	}, application.ReservationConfig{HoldTTL: holdTTL, LockTimeout: 5 * time.Second})
	buses := application.NewBusService(repos.Tx, repos.Buses, repos.Ledgers, nil, holdTTL, 0)

	gateway, err := payment.NewRedirectGateway("https://checkout.example.com/pay")
	require.NoError(t, err)
	payments := application.NewPaymentService(reservations, repos.Buses, gateway, application.PaymentConfig{
		Currency:   "INR",
		SuccessURL: "https://app.example.com/ok",
		CancelURL:  "https://app.example.com/ng",
	})
	manifests := application.NewManifestService(repos.Buses, repos.Ledgers, repos.Bookings, pdf.NewManifestRenderer())

	e := router.New(router.Config{
		Buses:           buses,
		Reservations:    reservations,
		Payments:        payments,
		Manifests:       manifests,
		Metrics:         m,
		MetricsGatherer: reg,
		AdminToken:      adminToken,
	})
	return &TestServer{Echo: e, Reservations: reservations, Metrics: m, Registry: reg}
}

// Request はJSONリクエストを送り、レスポンスを返す
func (s *TestServer) Request(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

// AsUser は利用者としてリクエストを送る
func (s *TestServer) AsUser(t *testing.T, userID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return s.Request(t, method, path, body, map[string]string{"X-User-ID": userID})
}

// AsAdmin は管理者としてリクエストを送る
func (s *TestServer) AsAdmin(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return s.Request(t, method, path, body, map[string]string{"X-Admin-Token": adminToken})
}

// CreateBus は管理APIでバスを登録し、IDを返す
func (s *TestServer) CreateBus(t *testing.T, seats int) string {
	t.Helper()
	rec := s.AsAdmin(t, http.MethodPost, "/admin/buses", map[string]any{
		"bus_number":    fmt.Sprintf("TN-07-%04d", busSeq.Add(1)),
		"name":          "Night Rider",
		"from_city":     "Chennai",
		"to_city":       "Madurai",
		"schedule_date": "2026-02-01",
		"schedule_time": "22:00",
		"total_seats":   seats,
		"price":         500,
		"amenities":     []string{"WiFi"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		ID string `json:"id"`
	}
	decode(t, rec, &resp)
	return resp.ID
}

// Hold は座席を仮押さえするリクエストを送る
func (s *TestServer) Hold(t *testing.T, userID, busID string, seats ...int) *httptest.ResponseRecorder {
	t.Helper()
	items := make([]map[string]any, len(seats))
	for i, n := range seats {
		items[i] = map[string]any{
			"seat_number": n,
			"passenger":   map[string]any{"name": fmt.Sprintf("乗客%d", n), "age": 30, "gender": "Female"},
		}
	}
	return s.AsUser(t, userID, http.MethodPost, "/bookings", map[string]any{"bus_id": busID, "seats": items})
}

// Available は空席数を返す
func (s *TestServer) Available(t *testing.T, busID string) int {
	t.Helper()
	rec := s.Request(t, http.MethodGet, "/buses/"+busID+"/seats/available/count", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Available int `json:"available"`
	}
	decode(t, rec, &resp)
	return resp.Available
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}
