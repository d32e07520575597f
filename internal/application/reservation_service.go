package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/bus"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/pkg/metrics"
)

const (
	opReserve = "reserve"
	opConfirm = "confirm"
	opCancel  = "cancel"
	opRelease = "release"
	opReset   = "reset"
	opExpire  = "expire"

	defaultListLimit = 20
	maxListLimit     = 100
)

// ReservationDeps は ReservationService の依存
// Cache と Metrics は省略できる
type ReservationDeps struct {
	Tx       transaction.Manager
	Buses    bus.Repository
	Ledgers  seat.Repository
	Bookings booking.Repository
	Locker   BusLocker
	Cache    SeatCountCache
	Metrics  *metrics.Metrics
}

type ReservationConfig struct {
	HoldTTL     time.Duration
	LockTimeout time.Duration
}

type Option func(*ReservationService)

// WithClock は現在時刻の取得元を差し替える
func WithClock(now func() time.Time) Option {
	return func(s *ReservationService) { s.now = now }
}

// WithIDGenerator は予約IDの採番を差し替える
func WithIDGenerator(newID func() string) Option {
	return func(s *ReservationService) { s.newID = newID }
}

// ReservationService は座席台帳に対する仮押さえ・確定・解放を担う
// 台帳を変更する操作はすべてバス単位のロックとトランザクションの内側で行う
type ReservationService struct {
	tx          transaction.Manager
	buses       bus.Repository
	ledgers     seat.Repository
	bookings    booking.Repository
	locker      BusLocker
	cache       SeatCountCache
	metrics     *metrics.Metrics
	holdTTL     time.Duration
	lockTimeout time.Duration
	now         func() time.Time
	newID       func() string
}

func NewReservationService(deps ReservationDeps, cfg ReservationConfig, opts ...Option) *ReservationService {
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = 10 * time.Minute
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 5 * time.Second
	}
	s := &ReservationService{
		tx:          deps.Tx,
		buses:       deps.Buses,
		ledgers:     deps.Ledgers,
		bookings:    deps.Bookings,
		locker:      deps.Locker,
		cache:       deps.Cache,
		metrics:     deps.Metrics,
		holdTTL:     cfg.HoldTTL,
		lockTimeout: cfg.LockTimeout,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HoldTTL は仮押さえの有効期間を返す
func (s *ReservationService) HoldTTL() time.Duration {
	return s.holdTTL
}

type SeatInput struct {
	Number    int
	Passenger seat.Passenger
}

type ReserveInput struct {
	BusID  string
	UserID string
	Seats  []SeatInput
}

// Reserve は指定座席をまとめて仮押さえし、仮押さえ中の予約を返す
func (s *ReservationService) Reserve(ctx context.Context, input ReserveInput) (*booking.Booking, error) {
	b, err := s.reserve(ctx, input)
	s.metrics.ObserveOperation(opReserve, resultOf(err))
	return b, err
}

func (s *ReservationService) reserve(ctx context.Context, input ReserveInput) (*booking.Booking, error) {
	switch {
	case input.BusID == "":
		return nil, booking.ErrBusIDRequired
	case input.UserID == "":
		return nil, booking.ErrUserIDRequired
	case len(input.Seats) == 0:
		return nil, seat.ErrNoSeatsRequested
	}

	// 運賃は作成後に変わらないのでロック外で読む
	bs, err := s.buses.GetByID(ctx, input.BusID)
	if err != nil {
		return nil, err
	}

	items := make([]booking.SeatItem, len(input.Seats))
	for i, in := range input.Seats {
		items[i] = booking.SeatItem{Number: in.Number, Passenger: in.Passenger}
	}

	var created *booking.Booking
	err = s.withBus(ctx, input.BusID, metrics.TriggerLazy, func(bt *busTx) error {
		b := booking.NewBooking(s.newID(), input.UserID, input.BusID, items, bs.Price, bt.now, s.holdTTL)
		if err := bt.ledger.Reserve(b.ID, b.Requests(), bt.now); err != nil {
			return afterCommit(err)
		}
		if err := s.bookings.Create(ctx, bt.tx, b); err != nil {
			return fmt.Errorf("予約の作成に失敗: %w", err)
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.ForBooking(created.ID, created.BusID).Debug("座席を仮押さえしました", logger.Seats(created.SeatNumbers()))
	return created, nil
}

// Confirm は仮押さえ中の予約を確定する
// 仮押さえの期限が切れている場合は座席を解放したうえで ErrHoldExpired を返す
func (s *ReservationService) Confirm(ctx context.Context, bookingID string) (*booking.Booking, error) {
	b, err := s.confirm(ctx, bookingID)
	s.metrics.ObserveOperation(opConfirm, resultOf(err))
	return b, err
}

func (s *ReservationService) confirm(ctx context.Context, bookingID string) (*booking.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status == booking.StatusConfirmed {
		return b, booking.ErrAlreadyConfirmed
	}

	var confirmed *booking.Booking
	err = s.withBus(ctx, b.BusID, metrics.TriggerLazy, func(bt *busTx) error {
		cur, err := s.bookings.GetByIDTx(ctx, bt.tx, bookingID)
		if err != nil {
			return err
		}
		if cur.Status != booking.StatusTemporary {
			return afterCommit(cur.Confirm(bt.now))
		}
		if cur.IsExpired(bt.now) || !holdsExactly(bt.ledger, cur) {
			return s.expireInline(ctx, bt, cur)
		}
		if err := bt.ledger.Confirm(cur.ID, cur.SeatNumbers(), bt.now); err != nil {
			return err
		}
		if err := cur.Confirm(bt.now); err != nil {
			return err
		}
		if err := s.bookings.Update(ctx, bt.tx, cur); err != nil {
			return fmt.Errorf("予約の更新に失敗: %w", err)
		}
		confirmed = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

// expireInline は確定時に見つかった期限切れの仮押さえを解放し、予約を期限切れとして閉じる
func (s *ReservationService) expireInline(ctx context.Context, bt *busTx, b *booking.Booking) error {
	released := bt.ledger.ReleaseBooking(b.ID, bt.now)
	if err := b.Cancel(booking.ReasonExpired, bt.now); err != nil {
		return err
	}
	if err := s.bookings.Update(ctx, bt.tx, b); err != nil {
		return fmt.Errorf("予約の更新に失敗: %w", err)
	}
	bt.noteExpired(metrics.TriggerConfirm, len(released))
	return afterCommit(booking.ErrHoldExpired)
}

// Cancel は利用者の操作で予約をキャンセルし、座席を解放する
func (s *ReservationService) Cancel(ctx context.Context, bookingID string) (*booking.Booking, error) {
	b, err := s.cancel(ctx, bookingID, booking.ReasonUser, false)
	s.metrics.ObserveOperation(opCancel, resultOf(err))
	return b, err
}

// cancel は予約をキャンセルして座席を解放する
// holdOnly の場合は仮押さえ中の予約だけを対象にし、確定済みなら ErrNotTemporary を返す
func (s *ReservationService) cancel(ctx context.Context, bookingID string, reason booking.CancelReason, holdOnly bool) (*booking.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	switch {
	case b.Status == booking.StatusCancelled:
		return b, booking.ErrAlreadyCancelled
	case holdOnly && b.Status != booking.StatusTemporary:
		return b, booking.ErrNotTemporary
	}

	var cur *booking.Booking
	err = s.withBus(ctx, b.BusID, metrics.TriggerLazy, func(bt *busTx) error {
		var err error
		cur, err = s.bookings.GetByIDTx(ctx, bt.tx, bookingID)
		if err != nil {
			return err
		}
		if holdOnly && cur.Status == booking.StatusConfirmed {
			return afterCommit(booking.ErrNotTemporary)
		}
		if err := cur.Cancel(reason, bt.now); err != nil {
			return afterCommit(err)
		}
		bt.ledger.ReleaseBooking(cur.ID, bt.now)
		if err := s.bookings.Update(ctx, bt.tx, cur); err != nil {
			return fmt.Errorf("予約の更新に失敗: %w", err)
		}
		return nil
	})
	switch {
	case err == nil:
		return cur, nil
	case errors.Is(err, booking.ErrNotTemporary), errors.Is(err, booking.ErrAlreadyCancelled):
		return cur, err
	default:
		return nil, err
	}
}

// Release は台帳上の指定座席を空席に戻す
// 座席を失った予約は台帳に合わせて縮小し、1席も残らなければキャンセルする
func (s *ReservationService) Release(ctx context.Context, busID string, numbers []int) ([]int, error) {
	released, err := s.release(ctx, busID, numbers)
	s.metrics.ObserveOperation(opRelease, resultOf(err))
	return released, err
}

func (s *ReservationService) release(ctx context.Context, busID string, numbers []int) ([]int, error) {
	if len(numbers) == 0 {
		return nil, seat.ErrNoSeatsRequested
	}

	var released []int
	err := s.withBus(ctx, busID, metrics.TriggerLazy, func(bt *busTx) error {
		owners := map[string]struct{}{}
		for _, n := range numbers {
			st, err := bt.ledger.Seat(n)
			if err != nil {
				return err
			}
			if !st.IsFree() {
				owners[st.BookingID] = struct{}{}
			}
		}

		var err error
		released, err = bt.ledger.Release(numbers, bt.now)
		if err != nil {
			return err
		}

		for _, id := range sortedKeys(owners) {
			b, err := s.bookings.GetByIDTx(ctx, bt.tx, id)
			if errors.Is(err, booking.ErrBookingNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("予約の取得に失敗: %w", err)
			}
			if !b.IsActive() {
				continue
			}
			if err := s.reconcileBooking(ctx, bt, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

// GetBooking は予約を取得する
// 台帳と食い違う場合は台帳を正として予約を修復してから返す
func (s *ReservationService) GetBooking(ctx context.Context, bookingID string) (*booking.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.IsActive() {
		return b, nil
	}

	ledger, err := s.ledgers.Get(ctx, b.BusID)
	if err != nil {
		return nil, fmt.Errorf("座席台帳の取得に失敗: %w", err)
	}
	if !b.IsExpired(s.now()) && holdsExactly(ledger, b) {
		return b, nil
	}

	var repaired *booking.Booking
	err = s.withBus(ctx, b.BusID, metrics.TriggerLazy, func(bt *busTx) error {
		cur, err := s.bookings.GetByIDTx(ctx, bt.tx, bookingID)
		if err != nil {
			return err
		}
		repaired = cur
		if !cur.IsActive() || holdsExactly(bt.ledger, cur) {
			return nil
		}
		return s.reconcileBooking(ctx, bt, cur)
	})
	if err != nil {
		return nil, err
	}
	return repaired, nil
}

// reconcileBooking は予約の座席を台帳が保持している座席に合わせる
func (s *ReservationService) reconcileBooking(ctx context.Context, bt *busTx, b *booking.Booking) error {
	held := seatNumbers(bt.ledger.SeatsOf(b.ID))
	if len(held) == 0 {
		if err := b.Cancel(booking.ReasonReconciled, bt.now); err != nil {
			return err
		}
	} else {
		b.RetainSeats(held, bt.now)
	}
	if err := s.bookings.Update(ctx, bt.tx, b); err != nil {
		return fmt.Errorf("予約の更新に失敗: %w", err)
	}
	logger.ForBooking(b.ID, b.BusID).Info("台帳に合わせて予約を修復しました",
		logger.Seats(held), zap.String("status", string(b.Status)))
	return nil
}

func (s *ReservationService) ListUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	if userID == "" {
		return nil, booking.ErrUserIDRequired
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.bookings.ListByUser(ctx, userID, limit, offset)
}

type ResetResult struct {
	BusID             string
	CancelledBookings []string
	ReleasedSeats     []int
}

// ResetBus は有効な予約をすべてキャンセルし、全座席を空席に戻す
func (s *ReservationService) ResetBus(ctx context.Context, busID string) (*ResetResult, error) {
	res, err := s.resetBus(ctx, busID)
	s.metrics.ObserveOperation(opReset, resultOf(err))
	return res, err
}

func (s *ReservationService) resetBus(ctx context.Context, busID string) (*ResetResult, error) {
	res := &ResetResult{BusID: busID, CancelledBookings: []string{}, ReleasedSeats: []int{}}
	err := s.withBus(ctx, busID, metrics.TriggerLazy, func(bt *busTx) error {
		active, err := s.bookings.ListActiveByBus(ctx, bt.tx, busID)
		if err != nil {
			return fmt.Errorf("予約一覧の取得に失敗: %w", err)
		}
		for _, b := range active {
			if err := b.Cancel(booking.ReasonReset, bt.now); err != nil {
				return err
			}
			if err := s.bookings.Update(ctx, bt.tx, b); err != nil {
				return fmt.Errorf("予約の更新に失敗: %w", err)
			}
			res.CancelledBookings = append(res.CancelledBookings, b.ID)
		}
		if released := bt.ledger.ReleaseAll(bt.now); released != nil {
			res.ReleasedSeats = released
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.ForBus(busID).Info("バスの予約をリセットしました",
		zap.Int("cancelled", len(res.CancelledBookings)), zap.Int("released", len(res.ReleasedSeats)))
	return res, nil
}

// ExpireHolds は期限切れの仮押さえ予約をバスごとにキャンセルし、キャンセルした件数を返す
// 1台の失敗で他のバスの処理は止めない
func (s *ReservationService) ExpireHolds(ctx context.Context) (int, error) {
	n, err := s.expireHolds(ctx)
	s.metrics.ObserveOperation(opExpire, resultOf(err))
	return n, err
}

func (s *ReservationService) expireHolds(ctx context.Context) (int, error) {
	expired, err := s.bookings.ListExpiredTemporary(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("期限切れ予約の取得に失敗: %w", err)
	}

	byBus := map[string][]string{}
	for _, b := range expired {
		byBus[b.BusID] = append(byBus[b.BusID], b.ID)
	}

	total := 0
	var errs []error
	for _, busID := range sortedKeys(byBus) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		n := 0
		err := s.withBus(ctx, busID, metrics.TriggerSweeper, func(bt *busTx) error {
			n = bt.expiredBookings
			for _, id := range byBus[busID] {
				b, err := s.bookings.GetByIDTx(ctx, bt.tx, id)
				if errors.Is(err, booking.ErrBookingNotFound) {
					continue
				}
				if err != nil {
					return fmt.Errorf("予約の取得に失敗: %w", err)
				}
				if !b.IsExpired(bt.now) {
					continue
				}
				released := bt.ledger.ReleaseBooking(b.ID, bt.now)
				if err := b.Cancel(booking.ReasonExpired, bt.now); err != nil {
					return err
				}
				if err := s.bookings.Update(ctx, bt.tx, b); err != nil {
					return fmt.Errorf("予約の更新に失敗: %w", err)
				}
				bt.noteExpired(metrics.TriggerSweeper, len(released))
				n++
			}
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("bus_id=%s: %w", busID, err))
			continue
		}
		total += n
	}
	return total, errors.Join(errs...)
}

// busTx はバスのロックとトランザクションを保持した状態で台帳を操作するための文脈
type busTx struct {
	tx     transaction.Tx
	ledger *seat.Ledger
	now    time.Time

	expiredSeats    map[string]int
	expiredBookings int
}

func (bt *busTx) noteExpired(trigger string, seats int) {
	if bt.expiredSeats == nil {
		bt.expiredSeats = map[string]int{}
	}
	bt.expiredSeats[trigger] += seats
}

// committedError はトランザクションをコミットしたうえで呼び出し元へ返すエラー
// 期限切れの回収など、失敗した操作の前に行った変更を残したい場合に使う
type committedError struct {
	err error
}

func (e *committedError) Error() string { return e.err.Error() }
func (e *committedError) Unwrap() error { return e.err }

func afterCommit(err error) error {
	if err == nil {
		return nil
	}
	return &committedError{err: err}
}

// withBus はバスのロックを取得し、トランザクション内で台帳を読み込んで fn を実行する
// 台帳を読み込んだ直後に期限切れの仮押さえを回収する
func (s *ReservationService) withBus(ctx context.Context, busID, trigger string, fn func(bt *busTx) error) error {
	unlock, err := s.lockBus(ctx, busID)
	if err != nil {
		return err
	}

	var (
		outcome   error
		available int
		done      *busTx
	)
	err = func() error {
		defer unlock()
		return transaction.Run(ctx, s.tx, func(tx transaction.Tx) error {
			ledger, err := s.ledgers.GetForUpdate(ctx, tx, busID)
			if err != nil {
				if errors.Is(err, seat.ErrLedgerNotFound) {
					return bus.ErrBusNotFound
				}
				return fmt.Errorf("座席台帳の取得に失敗: %w", err)
			}
			bt := &busTx{tx: tx, ledger: ledger, now: s.now()}
			if err := s.reclaim(ctx, bt, trigger); err != nil {
				return err
			}
			if err := fn(bt); err != nil {
				var ce *committedError
				if !errors.As(err, &ce) {
					return err
				}
				outcome = ce.err
			}
			if err := s.ledgers.Save(ctx, tx, ledger); err != nil {
				return fmt.Errorf("座席台帳の保存に失敗: %w", err)
			}
			available = ledger.Available()
			done = bt
			return nil
		})
	}()
	if err != nil {
		return err
	}

	s.published(ctx, busID, available, done)
	return outcome
}

func (s *ReservationService) lockBus(ctx context.Context, busID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	start := time.Now()
	unlock, err := s.locker.Lock(lockCtx, busID)
	if err == nil {
		s.metrics.ObserveLockWait(metrics.LockStatusOK, time.Since(start))
		return unlock, nil
	}

	s.metrics.ObserveLockWait(metrics.LockStatusTimeout, time.Since(start))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	logger.ForBus(busID).Warn("バスのロック取得に失敗しました", zap.Error(err))
	if errors.Is(err, seat.ErrConcurrencyConflict) {
		return nil, err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: bus_id=%s", seat.ErrConcurrencyConflict, busID)
	}
	return nil, fmt.Errorf("ロック取得に失敗: %w", err)
}

// reclaim は期限切れの仮押さえを台帳から解放し、対応する予約を期限切れとしてキャンセルする
func (s *ReservationService) reclaim(ctx context.Context, bt *busTx, trigger string) error {
	reclaimed := bt.ledger.ReclaimExpired(bt.now, s.holdTTL)
	for _, id := range sortedKeys(reclaimed) {
		bt.noteExpired(trigger, len(reclaimed[id]))
		b, err := s.bookings.GetByIDTx(ctx, bt.tx, id)
		if errors.Is(err, booking.ErrBookingNotFound) {
			logger.ForBus(bt.ledger.BusID).Warn("予約のない仮押さえを解放しました", zap.String("booking_id", id))
			continue
		}
		if err != nil {
			return fmt.Errorf("予約の取得に失敗: %w", err)
		}
		if b.Status != booking.StatusTemporary {
			continue
		}
		if err := b.Cancel(booking.ReasonExpired, bt.now); err != nil {
			return err
		}
		if err := s.bookings.Update(ctx, bt.tx, b); err != nil {
			return fmt.Errorf("予約の更新に失敗: %w", err)
		}
		bt.expiredBookings++
	}
	return nil
}

// published はコミット後の後処理。キャッシュ無効化やメトリクスの失敗は操作の結果に影響させない
func (s *ReservationService) published(ctx context.Context, busID string, available int, bt *busTx) {
	for trigger, n := range bt.expiredSeats {
		s.metrics.AddExpiredHolds(trigger, n)
		logger.ForBus(busID).Info("期限切れの仮押さえを回収しました", logger.Trigger(trigger), logger.SeatCount(n))
	}
	s.metrics.SetSeatsAvailable(busID, available)
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, busID); err != nil {
		logger.ForBus(busID).Warn("空席数キャッシュの無効化に失敗しました", zap.Error(err))
	}
}

// holdsExactly は台帳上で予約が保持している座席が予約の座席と一致するかを返す
func holdsExactly(ledger *seat.Ledger, b *booking.Booking) bool {
	want := seat.StatusHeld
	if b.Status == booking.StatusConfirmed {
		want = seat.StatusConfirmed
	}
	held := ledger.SeatsOf(b.ID)
	for _, st := range held {
		if st.Status != want {
			return false
		}
	}
	return slices.Equal(seatNumbers(held), b.SeatNumbers())
}

func seatNumbers(seats []seat.Seat) []int {
	out := make([]int, len(seats))
	for i, st := range seats {
		out[i] = st.Number
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
