package booking

import (
	"context"
	"time"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/transaction"
)

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は新しい予約を作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, b *Booking) error

	// Update は予約の状態と座席を更新する（トランザクション必須）
	Update(ctx context.Context, tx transaction.Tx, b *Booking) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Booking, error)

	// GetByIDTx はトランザクション内でIDから予約を取得する
	GetByIDTx(ctx context.Context, tx transaction.Tx, id string) (*Booking, error)

	// ListByUser はユーザーの予約一覧を新しい順に取得する
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Booking, error)

	// ListActiveByBus はバスの仮押さえ中・確定済み予約を取得する（トランザクション必須）
	ListActiveByBus(ctx context.Context, tx transaction.Tx, busID string) ([]*Booking, error)

	// ListExpiredTemporary は期限切れの仮押さえ予約を取得する
	ListExpiredTemporary(ctx context.Context, now time.Time) ([]*Booking, error)
}
