package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/bus"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/infrastructure/memory"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/pkg/metrics"
)

const testHoldTTL = 10 * time.Minute

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	repos        *memory.Repositories
	clock        *testClock
	metrics      *metrics.Metrics
	reservations *ReservationService
	buses        *BusService
	busCount     int
}

type envOption func(*ReservationDeps, *ReservationConfig)

func withLocker(l BusLocker) envOption {
	return func(d *ReservationDeps, _ *ReservationConfig) { d.Locker = l }
}

func withCache(c SeatCountCache) envOption {
	return func(d *ReservationDeps, _ *ReservationConfig) { d.Cache = c }
}

func withLockTimeout(timeout time.Duration) envOption {
	return func(_ *ReservationDeps, c *ReservationConfig) { c.LockTimeout = timeout }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	repos := memory.NewRepositories()
	clock := newTestClock()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	deps := ReservationDeps{
		Tx:       repos.Tx,
		Buses:    repos.Buses,
		Ledgers:  repos.Ledgers,
		Bookings: repos.Bookings,
		Locker:   memory.NewKeyedLocker(),
		Metrics:  m,
	}
	cfg := ReservationConfig{HoldTTL: testHoldTTL, LockTimeout: time.Second}
	for _, opt := range opts {
		opt(&deps, &cfg)
	}

	bs := NewBusService(repos.Tx, repos.Buses, repos.Ledgers, nil, testHoldTTL, time.Second)
	bs.now = clock.Now
	return &testEnv{
		repos:        repos,
		clock:        clock,
		metrics:      m,
		reservations: NewReservationService(deps, cfg, WithClock(clock.Now)),
		buses:        bs,
	}
}

func (e *testEnv) createBus(t *testing.T, totalSeats int) *bus.Bus {
	t.Helper()
	e.busCount++
	b, err := e.buses.CreateBus(context.Background(), CreateBusInput{
		Number:       fmt.Sprintf("KA-01-%04d", e.busCount),
		Name:         "Express",
		FromCity:     "Bangalore",
		ToCity:       "Chennai",
		ScheduleDate: "2026-01-10",
		ScheduleTime: "21:30",
		TotalSeats:   totalSeats,
		Price:        500,
	})
	require.NoError(t, err)
	return b
}

func (e *testEnv) available(t *testing.T, busID string) int {
	t.Helper()
	ledger, err := e.repos.Ledgers.Get(context.Background(), busID)
	require.NoError(t, err)
	return ledger.Available()
}

func (e *testEnv) seatOf(t *testing.T, busID string, n int) seat.Seat {
	t.Helper()
	ledger, err := e.repos.Ledgers.Get(context.Background(), busID)
	require.NoError(t, err)
	st, err := ledger.Seat(n)
	require.NoError(t, err)
	return st
}

// requireLedgerInvariant は空席数が座席の状態と一致していることを確認する
func (e *testEnv) requireLedgerInvariant(t *testing.T, busID string) {
	t.Helper()
	ledger, err := e.repos.Ledgers.Get(context.Background(), busID)
	require.NoError(t, err)
	occupied := 0
	for _, st := range ledger.Seats() {
		if !st.IsFree() {
			occupied++
		}
	}
	require.Equal(t, ledger.TotalSeats-occupied, ledger.Available())
}

func passenger(name string) seat.Passenger {
	return seat.Passenger{Name: name, Age: 30, Gender: seat.GenderOther}
}

func seatsFor(nums ...int) []SeatInput {
	out := make([]SeatInput, len(nums))
	for i, n := range nums {
		out[i] = SeatInput{Number: n, Passenger: passenger(fmt.Sprintf("乗客%d", n))}
	}
	return out
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Lock(ctx context.Context, busID string) (func(), error) {
	args := m.Called(ctx, busID)
	if fn, ok := args.Get(0).(func()); ok {
		return fn, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSeatCountCache struct {
	mock.Mock
}

func (m *mockSeatCountCache) Get(ctx context.Context, busID string) (int, error) {
	args := m.Called(ctx, busID)
	return args.Int(0), args.Error(1)
}

func (m *mockSeatCountCache) Set(ctx context.Context, busID string, count int, ttl time.Duration) error {
	return m.Called(ctx, busID, count, ttl).Error(0)
}

func (m *mockSeatCountCache) Invalidate(ctx context.Context, busID string) error {
	return m.Called(ctx, busID).Error(0)
}
