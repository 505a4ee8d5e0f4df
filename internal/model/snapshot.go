// Package model はドメインモデルを定義する。
package model

// RawSnapshot は履歴APIが返す生のペイロードを表す。
// playHistoriesはタイトル別の累計値、recentPlayHistoriesは直近日別の値を持つ。
type RawSnapshot struct {
	PlayHistories       []PlayHistory       `json:"playHistories"`
	RecentPlayHistories []RecentPlayHistory `json:"recentPlayHistories"`
}

// PlayHistory はタイトル別の累計プレイ履歴を表す。
// firstPlayedAt/lastPlayedAtはRFC3339形式のタイムスタンプ。
type PlayHistory struct {
	TitleID            string `json:"titleId"`
	TitleName          string `json:"titleName"`
	ImageURL           string `json:"imageUrl"`
	DeviceType         string `json:"deviceType"`
	FirstPlayedAt      string `json:"firstPlayedAt"`
	LastPlayedAt       string `json:"lastPlayedAt"`
	TotalPlayedDays    int    `json:"totalPlayedDays"`
	TotalPlayedMinutes int    `json:"totalPlayedMinutes"`
}

// RecentPlayHistory は特定日付の日別プレイ履歴の集合を表す。
type RecentPlayHistory struct {
	PlayedDate         string             `json:"playedDate"`
	DailyPlayHistories []DailyPlayHistory `json:"dailyPlayHistories"`
}

// DailyPlayHistory は特定日付・特定タイトルのプレイ分数を表す。
type DailyPlayHistory struct {
	TitleID            string `json:"titleId"`
	TitleName          string `json:"titleName"`
	ImageURL           string `json:"imageUrl"`
	TotalPlayedMinutes int    `json:"totalPlayedMinutes"`
}
