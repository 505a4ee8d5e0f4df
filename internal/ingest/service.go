// Package ingest はプレイ履歴スナップショットのデータベース取り込みを提供する。
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/switchtrack/internal/model"
	"github.com/hitoshi/switchtrack/internal/repository"
	"github.com/hitoshi/switchtrack/internal/security"
)

// playedDateLayout はdaily_playに格納する日付の形式。
const playedDateLayout = "2006-01-02"

// Result は1回の取り込みサイクルの書き込み件数。
type Result struct {
	GamesUpserted     int // UPSERTしたゲーム数（挿入・更新の合計）
	SnapshotsAppended int // 追記した累計カウンタ行数
	DailyWritten      int // 新規挿入した日別行数
	DailyUpdated      int // 上書き更新した日別行数
	Untranslated      int // 取り込み後の未翻訳ゲーム数
}

// Service はスナップショットをリレーショナルストレージに取り込む。
//
// 1回の取り込みの全書き込みは単一トランザクションで行う。
// 同一スナップショットの再取り込みは冪等で、重複行を生まない。
type Service struct {
	store     repository.IngestStore
	sanitizer security.NameSanitizerService
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewService はServiceを生成する。
func NewService(store repository.IngestStore, sanitizer security.NameSanitizerService, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		sanitizer: sanitizer,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Ingest はスナップショットを取り込み、書き込み件数を返す。
//
//   - playHistories: ゲームメタデータをUPSERTし、累計カウンタを追記する。
//     既存ゲームのlocalized_nameには触れない。
//   - recentPlayHistories: (title_id, played_date) ごとにUPSERTする。
//     プロバイダは直近数日を毎回再報告するため、最後に報告された値が正となる。
//     日別履歴にのみ現れるタイトルは最小限のゲーム行を確保してから書き込む。
//
// いずれかの書き込みが失敗した場合は全体をロールバックしINGESTION_FAILEDを返す。
func (s *Service) Ingest(ctx context.Context, snapshot *model.RawSnapshot) (*Result, error) {
	collectedAt := s.now()
	result := &Result{}

	err := s.store.WithinTx(ctx, func(tx repository.IngestTx) error {
		if err := s.ingestPlayHistories(ctx, tx, snapshot.PlayHistories, collectedAt, result); err != nil {
			return err
		}
		if err := s.ingestRecentPlayHistories(ctx, tx, snapshot.RecentPlayHistories, collectedAt, result); err != nil {
			return err
		}

		untranslated, err := tx.CountUntranslated(ctx)
		if err != nil {
			return err
		}
		result.Untranslated = untranslated
		return nil
	})
	if err != nil {
		return nil, model.NewIngestionFailedError(err)
	}

	s.logger.Info("スナップショットを取り込みました",
		slog.Int("games_upserted", result.GamesUpserted),
		slog.Int("snapshots_appended", result.SnapshotsAppended),
		slog.Int("daily_written", result.DailyWritten),
		slog.Int("daily_updated", result.DailyUpdated),
		slog.Int("untranslated", result.Untranslated),
	)
	return result, nil
}

// ingestPlayHistories はタイトル別の累計履歴を取り込む。
func (s *Service) ingestPlayHistories(
	ctx context.Context,
	tx repository.IngestTx,
	histories []model.PlayHistory,
	collectedAt time.Time,
	result *Result,
) error {
	for _, ph := range histories {
		game := &model.Game{
			TitleID:    ph.TitleID,
			TitleName:  s.sanitizer.SanitizeName(ph.TitleName),
			ImageURL:   ph.ImageURL,
			DeviceType: ph.DeviceType,
		}
		if _, err := tx.UpsertGame(ctx, game); err != nil {
			return err
		}
		result.GamesUpserted++

		record := &model.PlayHistoryRecord{
			ID:                 s.newID(),
			TitleID:            ph.TitleID,
			FirstPlayedAt:      s.parseTimestamp(ph.TitleID, "firstPlayedAt", ph.FirstPlayedAt),
			LastPlayedAt:       s.parseTimestamp(ph.TitleID, "lastPlayedAt", ph.LastPlayedAt),
			TotalPlayedDays:    ph.TotalPlayedDays,
			TotalPlayedMinutes: ph.TotalPlayedMinutes,
			CollectedAt:        collectedAt,
		}
		if err := tx.AppendPlayHistory(ctx, record); err != nil {
			return err
		}
		result.SnapshotsAppended++
	}
	return nil
}

// ingestRecentPlayHistories は日別履歴を取り込む。
// 不正な日付の日はスキップし、残りの取り込みは継続する。
func (s *Service) ingestRecentPlayHistories(
	ctx context.Context,
	tx repository.IngestTx,
	recents []model.RecentPlayHistory,
	collectedAt time.Time,
	result *Result,
) error {
	for _, recent := range recents {
		playedDate, ok := parsePlayedDate(recent.PlayedDate)
		if !ok {
			s.logger.Warn("不正なplayedDateをスキップします",
				slog.String("played_date", recent.PlayedDate),
			)
			continue
		}

		for _, daily := range recent.DailyPlayHistories {
			// プレイ分数0の行はノイズなので書き込まない
			if daily.TotalPlayedMinutes <= 0 {
				continue
			}

			// 日別履歴にのみ現れるタイトルの外部キー整合を確保する。
			// 累計側でUPSERT済みの行には何もしない。
			name := s.sanitizer.SanitizeName(daily.TitleName)
			if err := tx.EnsureGame(ctx, daily.TitleID, name, daily.ImageURL); err != nil {
				return err
			}

			record := &model.DailyPlayRecord{
				ID:            s.newID(),
				TitleID:       daily.TitleID,
				PlayedDate:    playedDate,
				PlayedMinutes: daily.TotalPlayedMinutes,
				CollectedAt:   collectedAt,
			}
			inserted, err := tx.UpsertDailyPlay(ctx, record)
			if err != nil {
				return err
			}
			if inserted {
				result.DailyWritten++
			} else {
				result.DailyUpdated++
			}
		}
	}
	return nil
}

// parseTimestamp はRFC3339タイムスタンプをパースする。
// パースできない場合はゼロ値を返しNULLとして格納する（取り込みは止めない）。
func (s *Service) parseTimestamp(titleID, field, value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		s.logger.Warn("タイムスタンプのパースに失敗しました",
			slog.String("title_id", titleID),
			slog.String("field", field),
			slog.String("value", value),
		)
		return time.Time{}
	}
	return t
}

// parsePlayedDate はplayedDateをYYYY-MM-DD形式に正規化する。
// プロバイダは日付のみとタイムスタンプ付きの両形式を返したことがある。
func parsePlayedDate(value string) (string, bool) {
	if t, err := time.Parse(playedDateLayout, value); err == nil {
		return t.Format(playedDateLayout), true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.Format(playedDateLayout), true
	}
	return "", false
}
