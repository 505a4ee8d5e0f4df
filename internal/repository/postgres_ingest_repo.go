package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/switchtrack/internal/model"
)

// PostgresIngestStore はPostgreSQLを使用した取り込みストア。
type PostgresIngestStore struct {
	db *sql.DB
}

// NewPostgresIngestStore はPostgresIngestStoreを生成する。
func NewPostgresIngestStore(db *sql.DB) *PostgresIngestStore {
	return &PostgresIngestStore{db: db}
}

// WithinTx はトランザクションを開始してfnを実行する。
// fnがエラーを返した場合はロールバックする。
func (s *PostgresIngestStore) WithinTx(ctx context.Context, fn func(tx IngestTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}

	if err := fn(&postgresIngestTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("ロールバックに失敗しました: %v (原因: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗しました: %w", err)
	}
	return nil
}

// postgresIngestTx は単一トランザクション内の書き込み操作。
type postgresIngestTx struct {
	tx *sql.Tx
}

// UpsertGame はゲームメタデータをUPSERTする。
// 既存行のlocalized_nameには触れない（翻訳ワークフローの成果を保護する）。
// xmax = 0 は挿入された行でのみ真となるため、挿入と更新を区別できる。
func (t *postgresIngestTx) UpsertGame(ctx context.Context, game *model.Game) (bool, error) {
	var inserted bool
	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO games (title_id, title_name, image_url, device_type, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, now(), now())
		 ON CONFLICT (title_id) DO UPDATE SET
		    title_name = EXCLUDED.title_name,
		    image_url = EXCLUDED.image_url,
		    device_type = EXCLUDED.device_type,
		    updated_at = now()
		 RETURNING (xmax = 0)`,
		game.TitleID, game.TitleName, nullString(game.ImageURL), nullString(game.DeviceType),
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("ゲームのUPSERTに失敗しました: %w", err)
	}
	return inserted, nil
}

// EnsureGame はタイトルIDの行が存在することだけを保証する。
// 日別履歴にのみ現れるタイトルはdevice_typeが不明なため、既存行を上書きしない。
func (t *postgresIngestTx) EnsureGame(ctx context.Context, titleID, titleName, imageURL string) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO games (title_id, title_name, image_url, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 ON CONFLICT (title_id) DO NOTHING`,
		titleID, titleName, nullString(imageURL),
	)
	if err != nil {
		return fmt.Errorf("ゲーム行の確保に失敗しました: %w", err)
	}
	return nil
}

// AppendPlayHistory は累計カウンタのスナップショット行を追記する。
func (t *postgresIngestTx) AppendPlayHistory(ctx context.Context, record *model.PlayHistoryRecord) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO play_history (id, title_id, first_played_at, last_played_at,
		                           total_played_days, total_played_minutes, collected_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.TitleID, nullTime(record.FirstPlayedAt), nullTime(record.LastPlayedAt),
		record.TotalPlayedDays, record.TotalPlayedMinutes, record.CollectedAt,
	)
	if err != nil {
		return fmt.Errorf("プレイ履歴の追記に失敗しました: %w", err)
	}
	return nil
}

// UpsertDailyPlay は日別プレイ行をUPSERTする。
// プロバイダは同じ日付を複数回の収集で再報告するため、最後に報告された値を正とする。
func (t *postgresIngestTx) UpsertDailyPlay(ctx context.Context, record *model.DailyPlayRecord) (bool, error) {
	var inserted bool
	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO daily_play (id, title_id, played_date, played_minutes, collected_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (title_id, played_date) DO UPDATE SET
		    played_minutes = EXCLUDED.played_minutes,
		    collected_at = EXCLUDED.collected_at
		 RETURNING (xmax = 0)`,
		record.ID, record.TitleID, record.PlayedDate, record.PlayedMinutes, record.CollectedAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("日別プレイのUPSERTに失敗しました: %w", err)
	}
	return inserted, nil
}

// CountUntranslated はlocalized_nameが未設定のゲーム数を返す。
func (t *postgresIngestTx) CountUntranslated(ctx context.Context) (int, error) {
	var count int
	err := t.tx.QueryRowContext(ctx,
		`SELECT count(*) FROM games
		 WHERE localized_name IS NULL OR localized_name = ''`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("未翻訳ゲーム数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ IngestStore = (*PostgresIngestStore)(nil)
var _ IngestTx = (*postgresIngestTx)(nil)
