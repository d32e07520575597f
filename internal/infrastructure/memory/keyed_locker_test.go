package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLocker_Lock(t *testing.T) {
	t.Run("同じキーは直列化される", func(t *testing.T) {
		locker := NewKeyedLocker()
		var inside int32
		var maxInside int32
		var wg sync.WaitGroup

		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := locker.Lock(context.Background(), "bus-1")
				require.NoError(t, err)
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				unlock()
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), maxInside)
		assert.Equal(t, 0, locker.Len())
	})

	t.Run("異なるキーはブロックしない", func(t *testing.T) {
		locker := NewKeyedLocker()
		unlockA, err := locker.Lock(context.Background(), "bus-a")
		require.NoError(t, err)
		defer unlockA()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		unlockB, err := locker.Lock(ctx, "bus-b")
		require.NoError(t, err)
		unlockB()
	})

	t.Run("コンテキストがキャンセルされるとエラー", func(t *testing.T) {
		locker := NewKeyedLocker()
		unlock, err := locker.Lock(context.Background(), "bus-1")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(ctx, "bus-1")
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		unlock()
		assert.Equal(t, 0, locker.Len())
	})

	t.Run("解放関数は複数回呼んでも安全", func(t *testing.T) {
		locker := NewKeyedLocker()
		unlock, err := locker.Lock(context.Background(), "bus-1")
		require.NoError(t, err)
		unlock()
		unlock()

		unlock, err = locker.Lock(context.Background(), "bus-1")
		require.NoError(t, err)
		unlock()
	})
}
