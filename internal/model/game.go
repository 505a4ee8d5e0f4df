// Package model はドメインモデルを定義する。
package model

import "time"

// Game はNintendo Switchのゲームタイトルを表す。
// title_idは任天堂が発行する一意なタイトルIDで、全テーブルの結合キーとなる。
type Game struct {
	TitleID       string
	TitleName     string
	ImageURL      string
	DeviceType    string
	LocalizedName string // 翻訳ワークフローが設定する表示名。空の場合は未翻訳。
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DisplayName は表示用の名称を返す。翻訳済みの場合は翻訳名を優先する。
func (g *Game) DisplayName() string {
	if g.LocalizedName != "" {
		return g.LocalizedName
	}
	return g.TitleName
}

// PlayHistoryRecord は収集時点でのタイトル別累計カウンタを表す。
// 追記専用の台帳であり、一度書き込まれた行は更新されない。
type PlayHistoryRecord struct {
	ID                 string
	TitleID            string
	FirstPlayedAt      time.Time
	LastPlayedAt       time.Time
	TotalPlayedDays    int
	TotalPlayedMinutes int
	CollectedAt        time.Time
}

// DailyPlayRecord は特定の日付におけるタイトル別プレイ分数を表す。
// プロバイダは直近数日分を毎回再報告するため、
// (title_id, played_date) の組に対しては最後に報告された値が正となる。
type DailyPlayRecord struct {
	ID            string
	TitleID       string
	PlayedDate    string // YYYY-MM-DD
	PlayedMinutes int
	CollectedAt   time.Time
}

// GameTranslation はタイトルIDに紐づく翻訳名を表す。
// 翻訳CSVのインポートによって更新される。
type GameTranslation struct {
	TitleID       string
	SourceName    string
	LocalizedName string
	UpdatedAt     time.Time
}
