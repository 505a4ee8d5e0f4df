// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// PipelineError は収集パイプライン全体の統一エラーフォーマットを表す。
// 原因カテゴリと運用者向けの対処方法を含む。
type PipelineError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, fetch, ingest, config
	Action   string // 運用者向け対処方法
	Cause    error  // 元となったエラー（存在する場合）
}

// Error はerrorインターフェースを実装する。
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap はerrors.Is/As連携のため元エラーを返す。
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// 定義済みエラーコード
const (
	ErrCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	ErrCodeTokenExpired         = "TOKEN_EXPIRED"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeFetchFailed          = "FETCH_FAILED"
	ErrCodeIngestionFailed      = "INGESTION_FAILED"
	ErrCodeConfigurationError   = "CONFIGURATION_ERROR"
)

// HasCode はエラーチェーンに指定コードのPipelineErrorが含まれるかを判定する。
func HasCode(err error, code string) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// NewAuthenticationFailedError は対話認証フローの失敗エラーを生成する。
// ユーザー中断、コード期限切れ、リトライ上限超過のいずれかで発生する。
func NewAuthenticationFailedError(reason string, cause error) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeAuthenticationFailed,
		Message:  fmt.Sprintf("認証フローに失敗しました: %s", reason),
		Category: "auth",
		Action:   "認証リンクの有効期限は数分です。再度実行し、速やかにURLを貼り付けてください。",
		Cause:    cause,
	}
}

// NewTokenExpiredError はアクセストークン期限切れエラーを生成する。
// セッショントークンによるサイレントリフレッシュで回復可能。
func NewTokenExpiredError() *PipelineError {
	return &PipelineError{
		Code:     ErrCodeTokenExpired,
		Message:  "アクセストークンの有効期限が切れています。",
		Category: "auth",
		Action:   "セッショントークンによる自動リフレッシュが行われます。",
	}
}

// NewUnauthorizedError はプロバイダによるトークン拒否エラーを生成する。
// 再認証が必要であり、同一トークンでのリトライは行わない。
func NewUnauthorizedError(endpoint string) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeUnauthorized,
		Message:  fmt.Sprintf("プロバイダがトークンを拒否しました (endpoint: %s)", endpoint),
		Category: "auth",
		Action:   "保存済みトークンは破棄されます。次回実行時に再認証してください。",
	}
}

// NewFetchFailedError は履歴取得の失敗エラーを生成する。
// 呼び出し側（スケジューラ）が次回実行までリトライを保留する。
func NewFetchFailedError(statusCode int, cause error) *PipelineError {
	msg := "履歴の取得に失敗しました"
	if statusCode > 0 {
		msg = fmt.Sprintf("履歴の取得に失敗しました (status: %d)", statusCode)
	}
	return &PipelineError{
		Code:     ErrCodeFetchFailed,
		Message:  msg,
		Category: "fetch",
		Action:   "一時的な障害の可能性があります。次回の定期実行で再試行されます。",
		Cause:    cause,
	}
}

// NewIngestionFailedError は永続化の失敗エラーを生成する。
// トランザクション全体がロールバックされ、部分的なコミットは発生しない。
func NewIngestionFailedError(cause error) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeIngestionFailed,
		Message:  "スナップショットの保存に失敗しました。",
		Category: "ingest",
		Action:   "データベースの状態を確認してください。書き込みは全てロールバック済みです。",
		Cause:    cause,
	}
}

// NewConfigurationError はローカル状態の読み取り失敗エラーを生成する。
// トークンファイルの破損等は致命的エラーとせず、未認証として扱う。
func NewConfigurationError(reason string, cause error) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeConfigurationError,
		Message:  fmt.Sprintf("ローカル設定の読み取りに失敗しました: %s", reason),
		Category: "config",
		Action:   "破損したファイルは未認証として扱われ、再認証で回復します。",
		Cause:    cause,
	}
}
