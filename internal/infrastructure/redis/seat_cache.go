package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// SeatCountCache はバスの空席数キャッシュ
// 値は台帳から算出した結果の写しであり、座席の変更後は必ず無効化される
type SeatCountCache struct {
	client *redis.Client
}

// NewSeatCountCache は新しい SeatCountCache を作成する
func NewSeatCountCache(client *redis.Client) *SeatCountCache {
	return &SeatCountCache{client: client}
}

// Get はバスの空席数をキャッシュから取得する
func (c *SeatCountCache) Get(ctx context.Context, busID string) (int, error) {
	val, err := c.client.Get(ctx, availableCountKey(busID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, nil
}

// Set はバスの空席数をキャッシュに保存する
func (c *SeatCountCache) Set(ctx context.Context, busID string, count int, ttl time.Duration) error {
	if err := c.client.Set(ctx, availableCountKey(busID), count, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate はバスのキャッシュを無効化する
func (c *SeatCountCache) Invalidate(ctx context.Context, busID string) error {
	if err := c.client.Del(ctx, availableCountKey(busID)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func availableCountKey(busID string) string {
	return fmt.Sprintf("bus:seats:available:%s", busID)
}
