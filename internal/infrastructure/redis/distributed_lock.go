package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/pkg/logger"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

// 所有者確認と削除をアトミックに実行する
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end
`)

// DistributedLock は Redis を使用した分散ロック
type DistributedLock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

// LockManager は分散ロックを管理する
type LockManager struct {
	client *redis.Client
}

func NewLockManager(client *redis.Client) *LockManager {
	return &LockManager{client: client}
}

// AcquireLock はロックを取得する
func (m *LockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*DistributedLock, error) {
	lockKey := fmt.Sprintf("lock:%s", key)
	lockValue := uuid.New().String()

	ok, err := m.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	return &DistributedLock{
		client: m.client,
		key:    lockKey,
		value:  lockValue,
		ttl:    ttl,
	}, nil
}

// AcquireLockWithRetry はリトライ付きでロックを取得する
// attempts 回試行しても取得できなければ ErrLockNotAcquired を返す
func (m *LockManager) AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, attempts int, retryDelay time.Duration) (*DistributedLock, error) {
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		lock, err := m.AcquireLock(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, ErrLockNotAcquired
}

// Release はロックを解放する
func (l *DistributedLock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Int()
	if err != nil {
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	return nil
}

// Extend はロックの有効期限を延長する
func (l *DistributedLock) Extend(ctx context.Context, ttl time.Duration) error {
	result, err := extendScript.Run(ctx, l.client, []string{l.key}, l.value, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("ロック延長に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	l.ttl = ttl
	return nil
}

// Key はロックのキーを返す
func (l *DistributedLock) Key() string {
	return l.key
}

// BusLocker はバス単位の分散ロック
// 複数プロセスで同じ Redis を共有すると、同一バスへの操作が直列化される
type BusLocker struct {
	manager    *LockManager
	ttl        time.Duration
	retries    int
	retryDelay time.Duration
}

// NewBusLocker は BusLocker を作成する
func NewBusLocker(client *redis.Client, ttl time.Duration, retries int, retryDelay time.Duration) *BusLocker {
	return &BusLocker{
		manager:    NewLockManager(client),
		ttl:        ttl,
		retries:    retries,
		retryDelay: retryDelay,
	}
}

// Lock はバスのロックを取得し、解放関数を返す
// 解放されるまでは TTL の 1/3 ごとにロックを延長する
// 再試行しても取得できない場合は seat.ErrConcurrencyConflict を返す
func (l *BusLocker) Lock(ctx context.Context, busID string) (func(), error) {
	lock, err := l.manager.AcquireLockWithRetry(ctx, "bus:"+busID, l.ttl, l.retries+1, l.retryDelay)
	if err != nil {
		if errors.Is(err, ErrLockNotAcquired) {
			return nil, fmt.Errorf("%w: bus_id=%s", seat.ErrConcurrencyConflict, busID)
		}
		return nil, err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(lock, busID, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			if err := lock.Release(context.Background()); err != nil {
				// 延長に失敗して他プロセスに渡った場合
				logger.Warn("バスロックの解放に失敗", zap.String("bus_id", busID), zap.Error(err))
			}
		})
	}, nil
}

func (l *BusLocker) keepAlive(lock *DistributedLock, busID string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := l.ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := lock.Extend(context.Background(), l.ttl); err != nil {
				logger.Warn("バスロックの延長に失敗", zap.String("bus_id", busID), zap.Error(err))
				return
			}
		}
	}
}
