package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 予約操作の結果ラベル
const (
	ResultSuccess     = "success"
	ResultConflict    = "conflict"
	ResultExpired     = "expired"
	ResultLockFailed  = "lock_failed"
	ResultNotFound    = "not_found"
	ResultInvalid     = "invalid"
	ResultError       = "error"
	TriggerLazy       = "lazy"
	TriggerSweeper    = "sweeper"
	TriggerConfirm    = "confirm"
	LockStatusOK      = "acquired"
	LockStatusTimeout = "timeout"
)

// Metrics はアプリケーションのメトリクスを管理する
// nil の *Metrics に対する記録メソッドは何もしない
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約操作の総数（operation: reserve/confirm/cancel/release/reset, result）
	ReservationsTotal *prometheus.CounterVec

	// バスロック取得までの待ち時間（status: acquired/timeout）
	BusLockDuration *prometheus.HistogramVec

	// 期限切れで解放された仮押さえ座席数（trigger: lazy/sweeper/confirm）
	HoldsExpiredTotal *prometheus.CounterVec

	// バスごとの空席数
	SeatsAvailable *prometheus.GaugeVec
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ReservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservations_total",
				Help: "Total number of seat reservation operations",
			},
			[]string{"operation", "result"},
		),
		BusLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bus_lock_duration_seconds",
				Help:    "Time spent waiting for the per-bus lock",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"status"},
		),
		HoldsExpiredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "holds_expired_total",
				Help: "Total number of held seats released after their hold expired",
			},
			[]string{"trigger"},
		),
		SeatsAvailable: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "seats_available",
				Help: "Current number of available seats per bus",
			},
			[]string{"bus_id"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReservationsTotal,
		m.BusLockDuration,
		m.HoldsExpiredTotal,
		m.SeatsAvailable,
	)

	return m
}

// ObserveOperation は予約操作の結果を記録する
func (m *Metrics) ObserveOperation(operation, result string) {
	if m == nil {
		return
	}
	m.ReservationsTotal.WithLabelValues(operation, result).Inc()
}

// ObserveLockWait はバスロックの待ち時間を記録する
func (m *Metrics) ObserveLockWait(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.BusLockDuration.WithLabelValues(status).Observe(d.Seconds())
}

// AddExpiredHolds は期限切れで解放された座席数を加算する
func (m *Metrics) AddExpiredHolds(trigger string, seats int) {
	if m == nil || seats <= 0 {
		return
	}
	m.HoldsExpiredTotal.WithLabelValues(trigger).Add(float64(seats))
}

// SetSeatsAvailable はバスの空席数を更新する
func (m *Metrics) SetSeatsAvailable(busID string, n int) {
	if m == nil {
		return
	}
	m.SeatsAvailable.WithLabelValues(busID).Set(float64(n))
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
