package bus

import (
	"context"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/transaction"
)

// Repository はバスリポジトリのインターフェース
type Repository interface {
	// Create は新しいバスを作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, b *Bus) error

	// GetByID はIDからバスを取得する
	GetByID(ctx context.Context, id string) (*Bus, error)

	// GetByNumber はバス番号からバスを取得する
	GetByNumber(ctx context.Context, number string) (*Bus, error)

	// List はバス一覧を運行日順に取得する
	List(ctx context.Context, limit, offset int) ([]*Bus, error)

	// Search は条件に一致するバスを取得する
	Search(ctx context.Context, criteria SearchCriteria) ([]*Bus, error)
}
