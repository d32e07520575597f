package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/transaction"
)

const seatColumns = `bus_id, number, status, booking_id, passenger_name, passenger_age, passenger_gender, held_at, updated_at`

type seatRow struct {
	BusID           string     `db:"bus_id"`
	Number          int        `db:"number"`
	Status          string     `db:"status"`
	BookingID       *string    `db:"booking_id"`
	PassengerName   *string    `db:"passenger_name"`
	PassengerAge    *int       `db:"passenger_age"`
	PassengerGender *string    `db:"passenger_gender"`
	HeldAt          *time.Time `db:"held_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

func (r *seatRow) toEntity() seat.Seat {
	s := seat.Seat{
		BusID:     r.BusID,
		Number:    r.Number,
		Status:    seat.Status(r.Status),
		HeldAt:    r.HeldAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.BookingID != nil {
		s.BookingID = *r.BookingID
	}
	if r.PassengerName != nil {
		p := seat.Passenger{Name: *r.PassengerName}
		if r.PassengerAge != nil {
			p.Age = *r.PassengerAge
		}
		if r.PassengerGender != nil {
			p.Gender = seat.Gender(*r.PassengerGender)
		}
		s.Passenger = &p
	}
	return s
}

func seatArgs(s seat.Seat) []any {
	var (
		bookingID, name, gender *string
		age                     *int
	)
	if s.BookingID != "" {
		bookingID = &s.BookingID
	}
	if s.Passenger != nil {
		n, g, a := s.Passenger.Name, string(s.Passenger.Gender), s.Passenger.Age
		name, gender, age = &n, &g, &a
	}
	return []any{s.BusID, s.Number, string(s.Status), bookingID, name, age, gender, s.HeldAt, s.UpdatedAt}
}

// LedgerRepository は座席台帳リポジトリのPostgreSQL実装
// バス行の SELECT ... FOR UPDATE で同一バスへの更新を直列化する
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository は LedgerRepository を作成する
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Create は台帳の全座席を一括作成する
func (r *LedgerRepository) Create(ctx context.Context, tx transaction.Tx, ledger *seat.Ledger) error {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}

	// バッチサイズごとに分割してマルチバリューINSERTを実行
	const batchSize = 500
	seats := ledger.Seats()
	for i := 0; i < len(seats); i += batchSize {
		end := i + batchSize
		if end > len(seats) {
			end = len(seats)
		}
		if err := r.insertBatch(ctx, sqlTx, seats[i:end]); err != nil {
			return err
		}
	}
	ledger.ClearDirty()
	return nil
}

func (r *LedgerRepository) insertBatch(ctx context.Context, tx *sqlx.Tx, seats []seat.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	const cols = 9
	args := make([]any, 0, len(seats)*cols)
	placeholders := make([]string, 0, len(seats))
	for i, s := range seats {
		base := i * cols
		ph := make([]string, cols)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ", ")+")")
		args = append(args, seatArgs(s)...)
	}
	query := `INSERT INTO seats (` + seatColumns + `) VALUES ` + strings.Join(placeholders, ", ")
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("座席一括作成に失敗: %w", err)
	}
	return nil
}

// Get は台帳のスナップショットを取得する
func (r *LedgerRepository) Get(ctx context.Context, busID string) (*seat.Ledger, error) {
	return r.load(ctx, r.db, `SELECT total_seats FROM buses WHERE id = $1`, busID)
}

// GetForUpdate はバス行をロックしてから台帳を取得する
func (r *LedgerRepository) GetForUpdate(ctx context.Context, tx transaction.Tx, busID string) (*seat.Ledger, error) {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return nil, err
	}
	return r.load(ctx, sqlTx, `SELECT total_seats FROM buses WHERE id = $1 FOR UPDATE`, busID)
}

func (r *LedgerRepository) load(ctx context.Context, q sqlx.QueryerContext, totalQuery, busID string) (*seat.Ledger, error) {
	var total int
	if err := sqlx.GetContext(ctx, q, &total, totalQuery, busID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, seat.ErrLedgerNotFound
		}
		return nil, fmt.Errorf("座席台帳取得に失敗: %w", err)
	}

	var rows []seatRow
	if err := sqlx.SelectContext(ctx, q, &rows, `SELECT `+seatColumns+` FROM seats WHERE bus_id = $1 ORDER BY number`, busID); err != nil {
		return nil, fmt.Errorf("座席取得に失敗: %w", err)
	}
	seats := make([]seat.Seat, len(rows))
	for i := range rows {
		seats[i] = rows[i].toEntity()
	}
	return seat.RestoreLedger(busID, total, seats)
}

// Save は変更された座席だけを書き込む
func (r *LedgerRepository) Save(ctx context.Context, tx transaction.Tx, ledger *seat.Ledger) error {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}
	query := `INSERT INTO seats (` + seatColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (bus_id, number) DO UPDATE SET
			status = EXCLUDED.status,
			booking_id = EXCLUDED.booking_id,
			passenger_name = EXCLUDED.passenger_name,
			passenger_age = EXCLUDED.passenger_age,
			passenger_gender = EXCLUDED.passenger_gender,
			held_at = EXCLUDED.held_at,
			updated_at = EXCLUDED.updated_at`
	for _, s := range ledger.Dirty() {
		if _, err := sqlTx.ExecContext(ctx, query, seatArgs(s)...); err != nil {
			return fmt.Errorf("座席 %d の保存に失敗: %w", s.Number, err)
		}
	}
	ledger.ClearDirty()
	return nil
}

var _ seat.Repository = (*LedgerRepository)(nil)
