package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/api/handler"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/api/router"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/application"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/config"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/bus"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/infrastructure/memory"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/infrastructure/payment"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/infrastructure/pdf"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-bus-seat-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/worker"
)

// storage は選択したドライバーのリポジトリ一式
type storage struct {
	tx       transaction.Manager
	buses    bus.Repository
	ledgers  seat.Repository
	bookings booking.Repository
	checks   []handler.HealthCheck
	close    func()
}

func main() {
	configPath := pflag.String("config", "", "設定ファイルのパス (YAML)。未指定なら CONFIG_FILE を参照")
	store := pflag.String("store", "", "ストレージドライバー (memory | postgres)")
	migrate := pflag.Bool("migrate", false, "起動時にマイグレーションを実行する (postgres のみ)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}
	if *store != "" {
		cfg.Storage.Driver = *store
	}
	if *migrate {
		cfg.Storage.AutoMigrate = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("設定が不正です: %v", err)
	}

	logger.Setup(cfg.Log.Env)
	defer func() { _ = logger.Get().Sync() }()

	if err := run(cfg); err != nil {
		logger.Fatal("サーバーが異常終了しました", zap.Error(err))
	}
	logger.Info("サーバーが正常にシャットダウンしました")
}

func run(cfg *config.Config) error {
	m := metrics.Init()

	st, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer st.close()

	var (
		locker application.BusLocker = memory.NewKeyedLocker()
		cache  application.SeatCountCache
	)
	if cfg.Redis.Enabled {
		client, err := redisinfra.NewClient(&cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()

		locker = redisinfra.NewBusLocker(client, cfg.Reservation.LockTTL, cfg.Reservation.LockRetries, cfg.Reservation.LockRetryDelay)
		cache = redisinfra.NewSeatCountCache(client)
		st.checks = append(st.checks, handler.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisinfra.Ping(ctx, client) },
		})
		logger.Info("Redis のバスロックと空席数キャッシュを使用します", zap.String("addr", cfg.Redis.Addr()))
	}

	reservations := application.NewReservationService(application.ReservationDeps{
		Tx:       st.tx,
		Buses:    st.buses,
		Ledgers:  st.ledgers,
		Bookings: st.bookings,
		Locker:   locker,
		Cache:    cache,
		Metrics:  m,
	}, application.ReservationConfig{
		HoldTTL:     cfg.Reservation.HoldTTL,
		LockTimeout: cfg.Reservation.LockTTL,
	})
	buses := application.NewBusService(st.tx, st.buses, st.ledgers, cache, cfg.Reservation.HoldTTL, cfg.Reservation.CountCacheTTL)

	gateway, err := payment.NewRedirectGateway(cfg.Payment.CheckoutBaseURL)
	if err != nil {
		return err
	}
	payments := application.NewPaymentService(reservations, st.buses, gateway, application.PaymentConfig{
		Currency:   cfg.Payment.Currency,
		SuccessURL: cfg.Payment.SuccessURL,
		CancelURL:  cfg.Payment.CancelURL,
	})
	manifests := application.NewManifestService(st.buses, st.ledgers, st.bookings, pdf.NewManifestRenderer())

	e := router.New(router.Config{
		Buses:           buses,
		Reservations:    reservations,
		Payments:        payments,
		Manifests:       manifests,
		HealthChecks:    st.checks,
		Metrics:         m,
		MetricsGatherer: prometheus.DefaultGatherer,
		MetricsUser:     cfg.Metrics.User,
		MetricsPassword: cfg.Metrics.Password,
		AdminToken:      cfg.Admin.Token,
	})
	if cfg.Admin.Token == "" {
		logger.Warn("ADMIN_TOKEN が未設定のため管理APIは保護されていません")
	}
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := worker.NewHoldExpirySweeper(reservations, cfg.Reservation.SweepInterval)
	go sweeper.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("サーバーを起動します",
			zap.String("port", cfg.Server.Port),
			zap.String("storage", cfg.Storage.Driver),
			zap.Duration("hold_ttl", cfg.Reservation.HoldTTL))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("サーバー起動エラー: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("サーバーをシャットダウンしています...")
	case err := <-errCh:
		sweeper.Stop()
		return err
	}

	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("サーバーシャットダウンエラー: %w", err)
	}
	return nil
}

func openStorage(cfg *config.Config) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := postgres.NewConnection(&cfg.Database)
		if err != nil {
			return nil, err
		}
		if cfg.Storage.AutoMigrate {
			if err := postgres.RunMigrations(db.DB, cfg.Storage.MigrationsPath); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		repos := postgres.NewRepositories(db)
		logger.Info("PostgreSQL に接続しました", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))
		return &storage{
			tx:       repos.Tx,
			buses:    repos.Buses,
			ledgers:  repos.Ledgers,
			bookings: repos.Bookings,
			checks: []handler.HealthCheck{{
				Name:  "postgres",
				Check: func(ctx context.Context) error { return postgres.Ping(ctx, db) },
			}},
			close: func() { _ = db.Close() },
		}, nil
	default:
		repos := memory.NewRepositories()
		logger.Warn("インメモリストアを使用します。再起動でデータは失われます")
		return &storage{
			tx:       repos.Tx,
			buses:    repos.Buses,
			ledgers:  repos.Ledgers,
			bookings: repos.Bookings,
			close:    func() {},
		}, nil
	}
}
