package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/pkg/metrics"
)

// HoldExpirer は期限切れの仮押さえをキャンセルするインターフェース
type HoldExpirer interface {
	ExpireHolds(ctx context.Context) (int, error)
}

// HoldExpirySweeper は一定間隔で期限切れの仮押さえを回収するワーカー
// 読み取りや操作時の回収とは独立に動き、誰も触れないバスの座席も空席に戻す
type HoldExpirySweeper struct {
	expirer  HoldExpirer
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewHoldExpirySweeper は新しいスイーパーを作成
func NewHoldExpirySweeper(expirer HoldExpirer, interval time.Duration) *HoldExpirySweeper {
	return &HoldExpirySweeper{
		expirer:  expirer,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start はスイーパーを開始する。停止するまで戻らない
func (s *HoldExpirySweeper) Start(ctx context.Context) {
	logger.Info("仮押さえスイーパー開始", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("仮押さえスイーパー停止（コンテキストキャンセル）")
			return
		case <-s.stopCh:
			logger.Info("仮押さえスイーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop はスイーパーを停止し、実行中の回収が終わるまで待つ
func (s *HoldExpirySweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

func (s *HoldExpirySweeper) sweep(ctx context.Context) {
	log := logger.With(logger.Trigger(metrics.TriggerSweeper))
	log.Debug("期限切れ仮押さえの回収開始")

	count, err := s.expirer.ExpireHolds(ctx)
	if err != nil {
		// 一部のバスで失敗しても回収できた分は反映されている
		log.Error("期限切れ仮押さえの回収に失敗", zap.Int("count", count), zap.Error(err))
		return
	}

	if count > 0 {
		log.Info("期限切れ仮押さえをキャンセル", zap.Int("count", count))
	} else {
		log.Debug("期限切れ仮押さえなし")
	}
}
