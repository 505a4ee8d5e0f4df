package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/switchtrack/internal/model"
)

// PostgresTranslationRepo はPostgreSQLを使用した翻訳リポジトリ。
type PostgresTranslationRepo struct {
	db *sql.DB
}

// NewPostgresTranslationRepo はPostgresTranslationRepoを生成する。
func NewPostgresTranslationRepo(db *sql.DB) *PostgresTranslationRepo {
	return &PostgresTranslationRepo{db: db}
}

// ListUntranslatedGames はlocalized_name未設定のゲームをタイトル名の昇順で返す。
func (r *PostgresTranslationRepo) ListUntranslatedGames(ctx context.Context) ([]*model.Game, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT title_id, title_name, image_url, device_type, localized_name, created_at, updated_at
		 FROM games
		 WHERE localized_name IS NULL OR localized_name = ''
		 ORDER BY title_name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("未翻訳ゲーム一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var games []*model.Game
	for rows.Next() {
		game := &model.Game{}
		var imageURL, deviceType, localizedName sql.NullString

		if err := rows.Scan(
			&game.TitleID, &game.TitleName, &imageURL, &deviceType, &localizedName,
			&game.CreatedAt, &game.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("未翻訳ゲーム行の読み取りに失敗しました: %w", err)
		}

		game.ImageURL = nullStringValue(imageURL)
		game.DeviceType = nullStringValue(deviceType)
		game.LocalizedName = nullStringValue(localizedName)
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("未翻訳ゲーム一覧の走査に失敗しました: %w", err)
	}

	return games, nil
}

// UpsertTranslation は翻訳エントリをUPSERTする。
func (r *PostgresTranslationRepo) UpsertTranslation(ctx context.Context, tr *model.GameTranslation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO game_translations (title_id, source_name, localized_name, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (title_id) DO UPDATE SET
		    source_name = EXCLUDED.source_name,
		    localized_name = EXCLUDED.localized_name,
		    updated_at = now()`,
		tr.TitleID, tr.SourceName, tr.LocalizedName,
	)
	if err != nil {
		return fmt.Errorf("翻訳エントリのUPSERTに失敗しました: %w", err)
	}
	return nil
}

// ApplyTranslations は翻訳テーブルの内容をgamesのlocalized_nameに反映する。
// 既に同じ値が設定されている行は更新しない。
func (r *PostgresTranslationRepo) ApplyTranslations(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE games g
		 SET localized_name = t.localized_name, updated_at = now()
		 FROM game_translations t
		 WHERE g.title_id = t.title_id
		   AND (g.localized_name IS NULL OR g.localized_name <> t.localized_name)`,
	)
	if err != nil {
		return 0, fmt.Errorf("翻訳の反映に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("翻訳反映行数の取得に失敗しました: %w", err)
	}
	return int(affected), nil
}

// ListTranslations は全翻訳エントリをタイトルIDの昇順で返す。
func (r *PostgresTranslationRepo) ListTranslations(ctx context.Context) ([]*model.GameTranslation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT title_id, source_name, localized_name, updated_at
		 FROM game_translations
		 ORDER BY title_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("翻訳一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var translations []*model.GameTranslation
	for rows.Next() {
		tr := &model.GameTranslation{}
		if err := rows.Scan(&tr.TitleID, &tr.SourceName, &tr.LocalizedName, &tr.UpdatedAt); err != nil {
			return nil, fmt.Errorf("翻訳行の読み取りに失敗しました: %w", err)
		}
		translations = append(translations, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("翻訳一覧の走査に失敗しました: %w", err)
	}

	return translations, nil
}

// compile-time interface check
var _ TranslationRepository = (*PostgresTranslationRepo)(nil)
