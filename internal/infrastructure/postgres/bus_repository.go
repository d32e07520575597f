package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/bus"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/transaction"
)

const busColumns = `id, number, name, route, from_city, to_city, schedule_date, schedule_time, total_seats, price, bus_type, amenities, rating, duration, created_at, updated_at`

// busRow はDBの行を表す構造体
type busRow struct {
	ID           string         `db:"id"`
	Number       string         `db:"number"`
	Name         string         `db:"name"`
	Route        string         `db:"route"`
	FromCity     string         `db:"from_city"`
	ToCity       string         `db:"to_city"`
	ScheduleDate string         `db:"schedule_date"`
	ScheduleTime string         `db:"schedule_time"`
	TotalSeats   int            `db:"total_seats"`
	Price        int            `db:"price"`
	BusType      string         `db:"bus_type"`
	Amenities    pq.StringArray `db:"amenities"`
	Rating       float64        `db:"rating"`
	Duration     string         `db:"duration"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r *busRow) toEntity() *bus.Bus {
	amenities := []string(r.Amenities)
	if amenities == nil {
		amenities = []string{}
	}
	return &bus.Bus{
		ID:           r.ID,
		Number:       r.Number,
		Name:         r.Name,
		Route:        r.Route,
		FromCity:     r.FromCity,
		ToCity:       r.ToCity,
		ScheduleDate: r.ScheduleDate,
		ScheduleTime: r.ScheduleTime,
		TotalSeats:   r.TotalSeats,
		Price:        r.Price,
		BusType:      r.BusType,
		Amenities:    amenities,
		Rating:       r.Rating,
		Duration:     r.Duration,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// BusRepository はバスリポジトリのPostgreSQL実装
type BusRepository struct {
	db *sqlx.DB
}

// NewBusRepository は BusRepository を作成する
func NewBusRepository(db *sqlx.DB) *BusRepository {
	return &BusRepository{db: db}
}

// Create は新しいバスを作成する
func (r *BusRepository) Create(ctx context.Context, tx transaction.Tx, b *bus.Bus) error {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}
	query := `INSERT INTO buses (` + busColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err = sqlTx.ExecContext(ctx, query,
		b.ID, b.Number, b.Name, b.Route, b.FromCity, b.ToCity, b.ScheduleDate, b.ScheduleTime,
		b.TotalSeats, b.Price, b.BusType, pq.Array(b.Amenities), b.Rating, b.Duration, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return bus.ErrBusNumberDuplicate
		}
		return fmt.Errorf("バス作成に失敗: %w", err)
	}
	return nil
}

// GetByID はIDからバスを取得する
func (r *BusRepository) GetByID(ctx context.Context, id string) (*bus.Bus, error) {
	return r.getOne(ctx, `SELECT `+busColumns+` FROM buses WHERE id = $1`, id)
}

// GetByNumber はバス番号からバスを取得する
func (r *BusRepository) GetByNumber(ctx context.Context, number string) (*bus.Bus, error) {
	return r.getOne(ctx, `SELECT `+busColumns+` FROM buses WHERE number = $1`, number)
}

func (r *BusRepository) getOne(ctx context.Context, query string, arg any) (*bus.Bus, error) {
	var row busRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bus.ErrBusNotFound
		}
		return nil, fmt.Errorf("バス取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// List はバス一覧を運行日順に取得する
func (r *BusRepository) List(ctx context.Context, limit, offset int) ([]*bus.Bus, error) {
	query := `SELECT ` + busColumns + ` FROM buses ORDER BY schedule_date, schedule_time, number LIMIT $1 OFFSET $2`
	var rows []busRow
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("バス一覧取得に失敗: %w", err)
	}
	return toBuses(rows), nil
}

// Search は条件に一致するバスを取得する。空の条件は無視される
func (r *BusRepository) Search(ctx context.Context, criteria bus.SearchCriteria) ([]*bus.Bus, error) {
	var (
		conds []string
		args  []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("from_city", criteria.FromCity)
	add("to_city", criteria.ToCity)
	add("schedule_date", criteria.Date)

	query := `SELECT ` + busColumns + ` FROM buses`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY schedule_date, schedule_time, number`

	var rows []busRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("バス検索に失敗: %w", err)
	}
	return toBuses(rows), nil
}

func toBuses(rows []busRow) []*bus.Bus {
	out := make([]*bus.Bus, len(rows))
	for i := range rows {
		out[i] = rows[i].toEntity()
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ bus.Repository = (*BusRepository)(nil)
