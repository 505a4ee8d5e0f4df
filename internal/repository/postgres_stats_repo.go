package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStatsRepo はPostgreSQLを使用したダッシュボード向け読み取りリポジトリ。
type PostgresStatsRepo struct {
	db *sql.DB
}

// NewPostgresStatsRepo はPostgresStatsRepoを生成する。
func NewPostgresStatsRepo(db *sql.DB) *PostgresStatsRepo {
	return &PostgresStatsRepo{db: db}
}

// ListGames は全ゲームを最新の累計カウンタ付きで合計プレイ分数の降順で返す。
// 累計カウンタはタイトルごとに最新のcollected_atを持つ行を採用する。
func (r *PostgresStatsRepo) ListGames(ctx context.Context) ([]GameSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT g.title_id, g.title_name, g.image_url, g.device_type, g.localized_name,
		        g.created_at, g.updated_at,
		        COALESCE(h.total_played_days, 0),
		        COALESCE(h.total_played_minutes, 0),
		        COALESCE(to_char(h.first_played_at, 'YYYY-MM-DD'), ''),
		        COALESCE(to_char(h.last_played_at, 'YYYY-MM-DD'), '')
		 FROM games g
		 LEFT JOIN LATERAL (
		    SELECT total_played_days, total_played_minutes, first_played_at, last_played_at
		    FROM play_history
		    WHERE title_id = g.title_id
		    ORDER BY collected_at DESC
		    LIMIT 1
		 ) h ON true
		 ORDER BY COALESCE(h.total_played_minutes, 0) DESC, g.title_name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("ゲーム一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var games []GameSummary
	for rows.Next() {
		var g GameSummary
		var imageURL, deviceType, localizedName sql.NullString

		if err := rows.Scan(
			&g.TitleID, &g.TitleName, &imageURL, &deviceType, &localizedName,
			&g.CreatedAt, &g.UpdatedAt,
			&g.TotalPlayedDays, &g.TotalPlayedMinutes,
			&g.FirstPlayedAt, &g.LastPlayedAt,
		); err != nil {
			return nil, fmt.Errorf("ゲーム行の読み取りに失敗しました: %w", err)
		}

		g.ImageURL = nullStringValue(imageURL)
		g.DeviceType = nullStringValue(deviceType)
		g.LocalizedName = nullStringValue(localizedName)
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ゲーム一覧の走査に失敗しました: %w", err)
	}

	return games, nil
}

// MonthlyPlaytime は月別の合計プレイ分数を月の昇順で返す。
func (r *PostgresStatsRepo) MonthlyPlaytime(ctx context.Context) ([]MonthlyPlaytime, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT to_char(played_date, 'YYYY-MM') AS month, SUM(played_minutes)
		 FROM daily_play
		 GROUP BY month
		 ORDER BY month ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("月別プレイ時間の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var months []MonthlyPlaytime
	for rows.Next() {
		var m MonthlyPlaytime
		if err := rows.Scan(&m.Month, &m.TotalMinutes); err != nil {
			return nil, fmt.Errorf("月別行の読み取りに失敗しました: %w", err)
		}
		months = append(months, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("月別プレイ時間の走査に失敗しました: %w", err)
	}

	return months, nil
}

// DailyPlaytimeByMonth は指定月（YYYY-MM）の日別・タイトル別プレイ分数を返す。
// 表示名は翻訳済みの場合に翻訳名を優先する。
func (r *PostgresStatsRepo) DailyPlaytimeByMonth(ctx context.Context, month string) ([]DailyPlaytime, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT to_char(d.played_date, 'YYYY-MM-DD'), d.title_id,
		        COALESCE(NULLIF(g.localized_name, ''), g.title_name),
		        d.played_minutes
		 FROM daily_play d
		 JOIN games g ON g.title_id = d.title_id
		 WHERE to_char(d.played_date, 'YYYY-MM') = $1
		 ORDER BY d.played_date ASC, d.played_minutes DESC`,
		month,
	)
	if err != nil {
		return nil, fmt.Errorf("日別プレイ時間の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanDailyPlaytime(rows)
}

// ListDailyByTitle は指定タイトルの日別プレイ履歴を日付の昇順で返す。
func (r *PostgresStatsRepo) ListDailyByTitle(ctx context.Context, titleID string) ([]DailyPlaytime, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT to_char(d.played_date, 'YYYY-MM-DD'), d.title_id,
		        COALESCE(NULLIF(g.localized_name, ''), g.title_name),
		        d.played_minutes
		 FROM daily_play d
		 JOIN games g ON g.title_id = d.title_id
		 WHERE d.title_id = $1
		 ORDER BY d.played_date ASC`,
		titleID,
	)
	if err != nil {
		return nil, fmt.Errorf("タイトル別日別履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanDailyPlaytime(rows)
}

func scanDailyPlaytime(rows *sql.Rows) ([]DailyPlaytime, error) {
	var entries []DailyPlaytime
	for rows.Next() {
		var d DailyPlaytime
		if err := rows.Scan(&d.PlayedDate, &d.TitleID, &d.DisplayName, &d.Minutes); err != nil {
			return nil, fmt.Errorf("日別行の読み取りに失敗しました: %w", err)
		}
		entries = append(entries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("日別プレイ時間の走査に失敗しました: %w", err)
	}
	return entries, nil
}

// compile-time interface check
var _ StatsRepository = (*PostgresStatsRepo)(nil)
