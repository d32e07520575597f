package application

import (
	"context"
	"time"
)

// BusLocker はバス単位の排他ロック
// 返された解放関数は必ず1回呼ぶこと
type BusLocker interface {
	Lock(ctx context.Context, busID string) (unlock func(), err error)
}

// SeatCountCache は空席数のキャッシュ
// Get はキャッシュに値がない場合もエラーを返す
type SeatCountCache interface {
	Get(ctx context.Context, busID string) (int, error)
	Set(ctx context.Context, busID string, count int, ttl time.Duration) error
	Invalidate(ctx context.Context, busID string) error
}
