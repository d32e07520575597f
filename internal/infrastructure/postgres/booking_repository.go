package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/transaction"
)

const bookingColumns = `id, user_id, bus_id, status, cancel_reason, total_amount, held_at, expires_at, confirmed_at, cancelled_at, created_at, updated_at`

type bookingRow struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	BusID        string     `db:"bus_id"`
	Status       string     `db:"status"`
	CancelReason string     `db:"cancel_reason"`
	TotalAmount  int        `db:"total_amount"`
	HeldAt       time.Time  `db:"held_at"`
	ExpiresAt    time.Time  `db:"expires_at"`
	ConfirmedAt  *time.Time `db:"confirmed_at"`
	CancelledAt  *time.Time `db:"cancelled_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

type bookingSeatRow struct {
	BookingID       string `db:"booking_id"`
	SeatNumber      int    `db:"seat_number"`
	PassengerName   string `db:"passenger_name"`
	PassengerAge    int    `db:"passenger_age"`
	PassengerGender string `db:"passenger_gender"`
}

func (r *bookingRow) toEntity(seats []bookingSeatRow) *booking.Booking {
	items := make([]booking.SeatItem, len(seats))
	for i, s := range seats {
		items[i] = booking.SeatItem{
			Number:    s.SeatNumber,
			Passenger: seat.Passenger{Name: s.PassengerName, Age: s.PassengerAge, Gender: seat.Gender(s.PassengerGender)},
		}
	}
	return &booking.Booking{
		ID:           r.ID,
		UserID:       r.UserID,
		BusID:        r.BusID,
		Seats:        items,
		Status:       booking.Status(r.Status),
		CancelReason: booking.CancelReason(r.CancelReason),
		TotalAmount:  r.TotalAmount,
		HeldAt:       r.HeldAt,
		ExpiresAt:    r.ExpiresAt,
		ConfirmedAt:  r.ConfirmedAt,
		CancelledAt:  r.CancelledAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// BookingRepository は予約リポジトリのPostgreSQL実装
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository は BookingRepository を作成する
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create は予約と座席明細を作成する
func (r *BookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}
	query := `INSERT INTO bookings (` + bookingColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := sqlTx.ExecContext(ctx, query,
		b.ID, b.UserID, b.BusID, string(b.Status), string(b.CancelReason), b.TotalAmount,
		b.HeldAt, b.ExpiresAt, b.ConfirmedAt, b.CancelledAt, b.CreatedAt, b.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return booking.ErrBookingIDDuplicate
		}
		return fmt.Errorf("予約作成に失敗: %w", err)
	}
	for _, s := range b.Seats {
		if _, err := sqlTx.ExecContext(ctx,
			`INSERT INTO booking_seats (booking_id, seat_number, passenger_name, passenger_age, passenger_gender) VALUES ($1, $2, $3, $4, $5)`,
			b.ID, s.Number, s.Passenger.Name, s.Passenger.Age, string(s.Passenger.Gender),
		); err != nil {
			return fmt.Errorf("予約座席関連付けに失敗: %w", err)
		}
	}
	return nil
}

// Update は予約の状態を更新し、保持していない座席明細を削除する
func (r *BookingRepository) Update(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}
	query := `UPDATE bookings SET status = $1, cancel_reason = $2, total_amount = $3, confirmed_at = $4, cancelled_at = $5, updated_at = $6 WHERE id = $7`
	result, err := sqlTx.ExecContext(ctx, query,
		string(b.Status), string(b.CancelReason), b.TotalAmount, b.ConfirmedAt, b.CancelledAt, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return fmt.Errorf("予約更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return booking.ErrBookingNotFound
	}

	numbers := make([]int64, len(b.Seats))
	for i, s := range b.Seats {
		numbers[i] = int64(s.Number)
	}
	if _, err := sqlTx.ExecContext(ctx,
		`DELETE FROM booking_seats WHERE booking_id = $1 AND seat_number <> ALL($2)`,
		b.ID, pq.Array(numbers),
	); err != nil {
		return fmt.Errorf("予約座席の更新に失敗: %w", err)
	}
	return nil
}

// GetByID はIDから予約を取得する
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	return r.getOne(ctx, r.db, id)
}

// GetByIDTx はトランザクション内でIDから予約を取得する
func (r *BookingRepository) GetByIDTx(ctx context.Context, tx transaction.Tx, id string) (*booking.Booking, error) {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return nil, err
	}
	return r.getOne(ctx, sqlTx, id)
}

func (r *BookingRepository) getOne(ctx context.Context, q sqlx.QueryerContext, id string) (*booking.Booking, error) {
	var row bookingRow
	if err := sqlx.GetContext(ctx, q, &row, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	seats, err := r.getSeats(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return row.toEntity(seats), nil
}

// ListByUser はユーザーの予約一覧を新しい順に取得する
func (r *BookingRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return r.list(ctx, r.db, "予約一覧取得に失敗", query, userID, limit, offset)
}

// ListActiveByBus はバスの仮押さえ中・確定済み予約を取得する
func (r *BookingRepository) ListActiveByBus(ctx context.Context, tx transaction.Tx, busID string) ([]*booking.Booking, error) {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE bus_id = $1 AND status <> 'cancelled' ORDER BY created_at`
	return r.list(ctx, sqlTx, "有効な予約の取得に失敗", query, busID)
}

// ListExpiredTemporary は期限切れの仮押さえ予約を取得する
func (r *BookingRepository) ListExpiredTemporary(ctx context.Context, now time.Time) ([]*booking.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = 'temporary' AND expires_at < $1 ORDER BY expires_at`
	return r.list(ctx, r.db, "期限切れ予約取得に失敗", query, now)
}

func (r *BookingRepository) list(ctx context.Context, q sqlx.QueryerContext, errMsg, query string, args ...any) ([]*booking.Booking, error) {
	var rows []bookingRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	result := make([]*booking.Booking, len(rows))
	for i := range rows {
		seats, err := r.getSeats(ctx, q, rows[i].ID)
		if err != nil {
			return nil, err
		}
		result[i] = rows[i].toEntity(seats)
	}
	return result, nil
}

func (r *BookingRepository) getSeats(ctx context.Context, q sqlx.QueryerContext, bookingID string) ([]bookingSeatRow, error) {
	var rows []bookingSeatRow
	query := `SELECT booking_id, seat_number, passenger_name, passenger_age, passenger_gender FROM booking_seats WHERE booking_id = $1 ORDER BY seat_number`
	if err := sqlx.SelectContext(ctx, q, &rows, query, bookingID); err != nil {
		return nil, fmt.Errorf("予約座席取得に失敗: %w", err)
	}
	return rows, nil
}

var _ booking.Repository = (*BookingRepository)(nil)
