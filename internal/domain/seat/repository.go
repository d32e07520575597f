package seat

import (
	"context"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/transaction"
)

// Repository は座席台帳リポジトリのインターフェース
type Repository interface {
	// Create は新しい台帳を作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, ledger *Ledger) error

	// Get は台帳のスナップショットを取得する（読み取り専用）
	Get(ctx context.Context, busID string) (*Ledger, error)

	// GetForUpdate はトランザクション内で台帳を排他取得する
	GetForUpdate(ctx context.Context, tx transaction.Tx, busID string) (*Ledger, error)

	// Save は台帳の変更された座席を書き込む（トランザクション必須）
	Save(ctx context.Context, tx transaction.Tx, ledger *Ledger) error
}
