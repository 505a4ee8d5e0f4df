// Package pipeline は認証・取得・保全・取り込みを1サイクルに束ねる。
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/switchtrack/internal/auth"
	"github.com/hitoshi/switchtrack/internal/ingest"
	"github.com/hitoshi/switchtrack/internal/metrics"
	"github.com/hitoshi/switchtrack/internal/model"
	"github.com/hitoshi/switchtrack/internal/repository"
)

// TokenManager はトークンライフサイクル管理のインターフェース。
type TokenManager interface {
	EnsureValid(ctx context.Context) (*auth.CredentialBundle, error)
	InvalidateAccessToken(sessionRevoked bool) error
}

// HistoryFetcher はプレイ履歴取得のインターフェース。
type HistoryFetcher interface {
	Fetch(ctx context.Context, bundle *auth.CredentialBundle) (*model.RawSnapshot, []byte, error)
}

// SnapshotArchiver は生スナップショット保全のインターフェース。
type SnapshotArchiver interface {
	Archive(raw []byte) (string, error)
}

// Ingestor はスナップショット取り込みのインターフェース。
type Ingestor interface {
	Ingest(ctx context.Context, snapshot *model.RawSnapshot) (*ingest.Result, error)
}

// Pipeline は1回の収集サイクルを実行する。
//
// サイクルの流れ: 排他ロック → トークン確保 → フェッチ → アーカイブ → 取り込み。
// アドバイザリロックが取得できない場合（別サイクルが実行中）は何もせず正常終了する。
type Pipeline struct {
	tokens   TokenManager
	fetcher  HistoryFetcher
	archiver SnapshotArchiver
	ingestor Ingestor
	locker   repository.AdvisoryLocker
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// New はPipelineを生成する。
func New(
	tokens TokenManager,
	fetcher HistoryFetcher,
	archiver SnapshotArchiver,
	ingestor Ingestor,
	locker repository.AdvisoryLocker,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		tokens:   tokens,
		fetcher:  fetcher,
		archiver: archiver,
		ingestor: ingestor,
		locker:   locker,
		metrics:  collector,
		logger:   logger,
	}
}

// Run は1回の収集サイクルを実行する。
//
// 履歴APIが401を返した場合はアクセストークンを無効化して終了する。
// 同一サイクル内でのリトライは行わない（次回サイクルがリフレッシュ後に再試行する）。
func (p *Pipeline) Run(ctx context.Context) error {
	acquired, err := p.locker.TryLock(ctx)
	if err != nil {
		p.recordFailure(err)
		return err
	}
	if !acquired {
		p.logger.Info("別の収集サイクルが実行中のためスキップします")
		return nil
	}
	defer func() {
		if err := p.locker.Unlock(context.WithoutCancel(ctx)); err != nil {
			p.logger.Error("排他ロックの解放に失敗しました", slog.String("error", err.Error()))
		}
	}()

	if err := p.runLocked(ctx); err != nil {
		p.recordFailure(err)
		return err
	}

	p.metrics.RecordCollectSuccess()
	return nil
}

func (p *Pipeline) runLocked(ctx context.Context) error {
	bundle, err := p.tokens.EnsureValid(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	snapshot, raw, err := p.fetcher.Fetch(ctx, bundle)
	p.metrics.RecordFetchLatency(time.Since(start))
	if err != nil {
		if model.HasCode(err, model.ErrCodeUnauthorized) {
			// 拒否されたアクセストークンを破棄する。セッショントークンは維持し、
			// 次回サイクルがリフレッシュで回復を試みる。
			p.metrics.RecordFetchHTTPStatus(401)
			if invErr := p.tokens.InvalidateAccessToken(false); invErr != nil {
				p.logger.Error("アクセストークンの無効化に失敗しました", slog.String("error", invErr.Error()))
			}
		}
		return err
	}
	p.metrics.RecordFetchHTTPStatus(200)

	// 履歴APIは過去データを再提供しないため、取り込み前に生データを残す。
	// アーカイブ失敗はデータベース取り込みを止めない。
	if _, err := p.archiver.Archive(raw); err != nil {
		p.logger.Error("スナップショットのアーカイブに失敗しました", slog.String("error", err.Error()))
	}

	result, err := p.ingestor.Ingest(ctx, snapshot)
	if err != nil {
		return err
	}

	p.metrics.RecordGamesUpserted(result.GamesUpserted)
	p.metrics.RecordDailyRowsWritten(result.DailyWritten + result.DailyUpdated)

	if result.Untranslated > 0 {
		p.logger.Info("未翻訳のゲームがあります",
			slog.Int("untranslated", result.Untranslated),
		)
	}
	return nil
}

// recordFailure は失敗メトリクスをエラーコード別に記録する。
func (p *Pipeline) recordFailure(err error) {
	var perr *model.PipelineError
	if errors.As(err, &perr) {
		p.metrics.RecordCollectFailure(perr.Code)
		return
	}
	p.metrics.RecordCollectFailure("UNKNOWN")
}
