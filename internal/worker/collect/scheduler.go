// Package collect は収集サイクルの定期実行を提供する。
package collect

import (
	"context"
	"log/slog"
	"time"
)

// CycleRunner は1回の収集サイクルを実行するインターフェース。
type CycleRunner interface {
	Run(ctx context.Context) error
}

// Scheduler は収集サイクルを一定間隔で実行する。
// サイクル自体の排他制御はアドバイザリロックが担うため、
// 複数プロセスでスケジューラが動いていても二重取り込みは起きない。
type Scheduler struct {
	runner CycleRunner
	logger *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(runner CycleRunner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{runner: runner, logger: logger}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// 起動直後に1回実行し、以降はコンテキストがキャンセルされるまで継続する。
// サイクルの失敗はログに記録し、次の周期で再試行する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("収集スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("収集スケジューラを停止しました")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	start := time.Now()

	if err := s.runner.Run(ctx); err != nil {
		s.logger.Error("収集サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("収集サイクルが完了しました",
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}
