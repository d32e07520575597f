package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/bus"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-bus-seat-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/pkg/logger"
)

const defaultCountCacheTTL = 5 * time.Second

// BusService はバスの登録と空席の参照を提供する
// 参照系は台帳を変更しない
type BusService struct {
	tx       transaction.Manager
	buses    bus.Repository
	ledgers  seat.Repository
	cache    SeatCountCache
	holdTTL  time.Duration
	cacheTTL time.Duration
	now      func() time.Time
	newID    func() string
}

func NewBusService(tm transaction.Manager, buses bus.Repository, ledgers seat.Repository, cache SeatCountCache, holdTTL, cacheTTL time.Duration) *BusService {
	if holdTTL <= 0 {
		holdTTL = 10 * time.Minute
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultCountCacheTTL
	}
	return &BusService{
		tx:       tm,
		buses:    buses,
		ledgers:  ledgers,
		cache:    cache,
		holdTTL:  holdTTL,
		cacheTTL: cacheTTL,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

type CreateBusInput struct {
	Number       string
	Name         string
	Route        string
	FromCity     string
	ToCity       string
	ScheduleDate string
	ScheduleTime string
	TotalSeats   int
	Price        int
	BusType      string
	Amenities    []string
	Rating       float64
	Duration     string
}

// CreateBus はバスと全席空席の座席台帳を同じトランザクションで作成する
func (s *BusService) CreateBus(ctx context.Context, input CreateBusInput) (*bus.Bus, error) {
	now := s.now()
	b := bus.NewBus(s.newID(), input.Number, input.Name, input.TotalSeats, input.Price, now)
	b.Route = input.Route
	b.FromCity = input.FromCity
	b.ToCity = input.ToCity
	b.ScheduleDate = input.ScheduleDate
	b.ScheduleTime = input.ScheduleTime
	b.BusType = input.BusType
	b.Rating = input.Rating
	b.Duration = input.Duration
	if input.Amenities != nil {
		b.Amenities = input.Amenities
	}
	if b.Route == "" && b.FromCity != "" && b.ToCity != "" {
		b.Route = b.FromCity + " - " + b.ToCity
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	ledger, err := seat.NewLedger(b.ID, b.TotalSeats, now)
	if err != nil {
		return nil, err
	}
	err = transaction.Run(ctx, s.tx, func(tx transaction.Tx) error {
		if err := s.buses.Create(ctx, tx, b); err != nil {
			return err
		}
		if err := s.ledgers.Create(ctx, tx, ledger); err != nil {
			return fmt.Errorf("座席台帳の作成に失敗: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.ForBus(b.ID).Info("バスを登録しました", zap.String("number", b.Number), zap.Int("total_seats", b.TotalSeats))
	return b, nil
}

func (s *BusService) GetBus(ctx context.Context, id string) (*bus.Bus, error) {
	return s.buses.GetByID(ctx, id)
}

func (s *BusService) GetBusByNumber(ctx context.Context, number string) (*bus.Bus, error) {
	return s.buses.GetByNumber(ctx, number)
}

func (s *BusService) ListBuses(ctx context.Context, limit, offset int) ([]*bus.Bus, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.buses.List(ctx, limit, offset)
}

func (s *BusService) SearchBuses(ctx context.Context, criteria bus.SearchCriteria) ([]*bus.Bus, error) {
	return s.buses.Search(ctx, criteria)
}

// AvailableSeatNumbers は空席の座席番号を昇順で返す
// 期限切れの仮押さえは空席として扱う
func (s *BusService) AvailableSeatNumbers(ctx context.Context, busID string) ([]int, error) {
	ledger, err := s.ledger(ctx, busID)
	if err != nil {
		return nil, err
	}
	return ledger.AvailableNumbersAt(s.now(), s.holdTTL), nil
}

// CountAvailableSeats は空席数を返す。キャッシュがあれば短時間キャッシュする
func (s *BusService) CountAvailableSeats(ctx context.Context, busID string) (int, error) {
	if s.cache != nil {
		count, err := s.cache.Get(ctx, busID)
		if err == nil {
			logger.Debug("キャッシュヒット", zap.String("bus_id", busID), zap.Int("count", count))
			return count, nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			logger.Warn("キャッシュ取得エラー", zap.Error(err))
		}
	}

	ledger, err := s.ledger(ctx, busID)
	if err != nil {
		return 0, err
	}
	count := ledger.AvailableAt(s.now(), s.holdTTL)

	if s.cache != nil {
		if err := s.cache.Set(ctx, busID, count, s.cacheTTL); err != nil {
			logger.Warn("キャッシュ保存エラー", zap.Error(err))
		}
	}
	return count, nil
}

func (s *BusService) ledger(ctx context.Context, busID string) (*seat.Ledger, error) {
	ledger, err := s.ledgers.Get(ctx, busID)
	if errors.Is(err, seat.ErrLedgerNotFound) {
		return nil, bus.ErrBusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("座席台帳の取得に失敗: %w", err)
	}
	return ledger, nil
}
