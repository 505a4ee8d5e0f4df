// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NameSanitizerService は外部APIから取得したタイトル名や
// 翻訳CSVからインポートした表示名をサニタイズし、
// ダッシュボードへの格納型XSSを防ぐ。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizerService はゲーム名のサニタイズ機能のインターフェースを定義する。
// 取り込み時の保存前および翻訳CSVインポート時に使用される。
type NameSanitizerService interface {
	// SanitizeName はタイトル名からHTMLタグを全て除去したプレーンテキストを返す。
	// 前後の空白も除去する。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeName(raw string) string
}

// nameSanitizer はNameSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは全てのHTMLタグを除去し、テキストのみを残す。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeName はタイトル名からHTMLタグを全て除去したプレーンテキストを返す。
// bluemondayはテキストをHTMLエスケープして返すため、
// プレーンテキストとして保存できるようアンエスケープする。
func (s *nameSanitizer) SanitizeName(raw string) string {
	cleaned := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

// compile-time interface check
var _ NameSanitizerService = (*nameSanitizer)(nil)
