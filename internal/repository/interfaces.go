// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/switchtrack/internal/model"
)

// IngestStore は取り込みトランザクションの開始インターフェース。
// 1回の収集サイクルの全書き込みは単一トランザクションで行い、
// 部分的な取り込み結果を決して残さない。
type IngestStore interface {
	// WithinTx はトランザクションを開始してfnを実行する。
	// fnがエラーを返した場合はロールバックし、そのエラーを返す。
	WithinTx(ctx context.Context, fn func(tx IngestTx) error) error
}

// IngestTx は取り込みトランザクション内の書き込み操作を提供する。
type IngestTx interface {
	// UpsertGame はゲームメタデータをUPSERTする。
	// 既存行のlocalized_nameには決して触れない。
	// 新規挿入の場合はtrueを返す。
	UpsertGame(ctx context.Context, game *model.Game) (bool, error)

	// EnsureGame はタイトルIDの行が存在することだけを保証する。
	// 既存行は一切変更しない。日別履歴にのみ現れるタイトルの外部キー整合用。
	EnsureGame(ctx context.Context, titleID, titleName, imageURL string) error

	// AppendPlayHistory は累計カウンタのスナップショット行を追記する。
	// 既存行の更新は行わない（追記専用台帳）。
	AppendPlayHistory(ctx context.Context, record *model.PlayHistoryRecord) error

	// UpsertDailyPlay は日別プレイ行をUPSERTする。
	// (title_id, played_date) が既存の場合は最後に報告された値で上書きする。
	// 新規挿入の場合はtrueを返す。
	UpsertDailyPlay(ctx context.Context, record *model.DailyPlayRecord) (bool, error)

	// CountUntranslated はlocalized_nameが未設定のゲーム数を返す。
	CountUntranslated(ctx context.Context) (int, error)
}

// GameSummary はゲーム一覧表示用の集約行。
// 最新の累計カウンタを結合して返す。
type GameSummary struct {
	model.Game
	TotalPlayedDays    int
	TotalPlayedMinutes int
	FirstPlayedAt      string
	LastPlayedAt       string
}

// MonthlyPlaytime は月別の合計プレイ分数。
type MonthlyPlaytime struct {
	Month        string // YYYY-MM
	TotalMinutes int
}

// DailyPlaytime は特定日・特定タイトルのプレイ分数。
type DailyPlaytime struct {
	PlayedDate  string // YYYY-MM-DD
	TitleID     string
	DisplayName string
	Minutes     int
}

// StatsRepository はダッシュボード向け読み取りクエリのインターフェース。
type StatsRepository interface {
	// ListGames は全ゲームを最新の累計カウンタ付きで返す。
	// 合計プレイ分数の降順。
	ListGames(ctx context.Context) ([]GameSummary, error)

	// MonthlyPlaytime は月別の合計プレイ分数を月の昇順で返す。
	MonthlyPlaytime(ctx context.Context) ([]MonthlyPlaytime, error)

	// DailyPlaytimeByMonth は指定月（YYYY-MM）の日別・タイトル別プレイ分数を返す。
	DailyPlaytimeByMonth(ctx context.Context, month string) ([]DailyPlaytime, error)

	// ListDailyByTitle は指定タイトルの日別プレイ履歴を日付の昇順で返す。
	ListDailyByTitle(ctx context.Context, titleID string) ([]DailyPlaytime, error)
}

// TranslationRepository は翻訳ワークフローの永続化インターフェース。
type TranslationRepository interface {
	// ListUntranslatedGames はlocalized_name未設定のゲームを返す。
	ListUntranslatedGames(ctx context.Context) ([]*model.Game, error)

	// UpsertTranslation は翻訳エントリをUPSERTする。
	UpsertTranslation(ctx context.Context, tr *model.GameTranslation) error

	// ApplyTranslations は翻訳テーブルの内容をgamesのlocalized_nameに反映し、
	// 更新された行数を返す。
	ApplyTranslations(ctx context.Context) (int, error)

	// ListTranslations は全翻訳エントリを返す。
	ListTranslations(ctx context.Context) ([]*model.GameTranslation, error)
}

// AdvisoryLocker は収集サイクルの多重実行を防ぐ排他ロックのインターフェース。
type AdvisoryLocker interface {
	// TryLock はロック取得を試みる。取得できなかった場合はfalseを返す（待機しない）。
	TryLock(ctx context.Context) (bool, error)

	// Unlock はロックを解放する。
	Unlock(ctx context.Context) error
}
