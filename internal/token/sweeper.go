package token

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval は期限切れトークン掃除の既定実行間隔。
const DefaultSweepInterval = 5 * time.Minute

// SweepObserver は掃除結果の通知先。メトリクス収集に使用する。
type SweepObserver interface {
	RecordTokensSwept(count int)
}

// Sweeper は期限切れトークンを定期削除するバックグラウンドジョブ。
type Sweeper struct {
	store    *Store
	logger   *slog.Logger
	observer SweepObserver
	Interval time.Duration
}

// NewSweeper は新しいSweeperを生成する。observerはnilでもよい。
func NewSweeper(store *Store, logger *slog.Logger, observer SweepObserver) *Sweeper {
	return &Sweeper{
		store:    store,
		logger:   logger,
		observer: observer,
		Interval: DefaultSweepInterval,
	}
}

// Start は掃除ループを開始する。コンテキストのキャンセルで停止する。
// 呼び出し元のgoroutineをブロックする。
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

// runOnce は1回分の掃除を実行する。
func (s *Sweeper) runOnce() {
	removed := s.store.Sweep()
	if s.observer != nil {
		s.observer.RecordTokensSwept(removed)
	}
	if removed > 0 {
		s.logger.Info("expired verification tokens swept",
			slog.Int("removed", removed),
			slog.Int("remaining", s.store.Len()),
		)
	}
}
