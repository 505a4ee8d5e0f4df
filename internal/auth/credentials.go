// Package auth は任天堂アカウントに対するPKCE認可フローと
// トークンのライフサイクル管理を提供する。
package auth

import "time"

// AccessToken は短命なアクセストークンを表す。
// 履歴APIへのAuthorizationヘッダ構築に使用される。
type AccessToken struct {
	TokenType string `json:"token_type"`
	Token     string `json:"access_token"`
}

// CredentialBundle は保存対象のトークン一式を表す。
// セッショントークンは失効されるまで長期有効、アクセストークンは
// ExpiresAtまでの短期有効で、期限前マージンを考慮してリフレッシュされる。
// イミュータブルな値として扱い、更新時は新しいバンドルを生成して保存する。
type CredentialBundle struct {
	SessionToken string       `json:"session_token"`
	AccessToken  *AccessToken `json:"access_token,omitempty"`
	ExpiresAt    time.Time    `json:"expires_at,omitzero"`
}

// HasSession はセッショントークンを保持しているかを返す。
func (b *CredentialBundle) HasSession() bool {
	return b != nil && b.SessionToken != ""
}

// AccessValid はアクセストークンがマージンを考慮して有効かを判定する。
// now >= ExpiresAt - margin の時点で無効（要リフレッシュ）とみなす。
func (b *CredentialBundle) AccessValid(now time.Time, margin time.Duration) bool {
	if b == nil || b.AccessToken == nil || b.AccessToken.Token == "" {
		return false
	}
	if b.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(b.ExpiresAt.Add(-margin))
}

// AuthorizationValue はAuthorizationヘッダに設定する値を返す。
// 例: "Bearer eyJhb..."
func (b *CredentialBundle) AuthorizationValue() string {
	if b == nil || b.AccessToken == nil {
		return ""
	}
	return b.AccessToken.TokenType + " " + b.AccessToken.Token
}

// WithAccessToken はアクセストークンを差し替えた新しいバンドルを返す。
// 元のバンドルは変更しない。
func (b *CredentialBundle) WithAccessToken(token *AccessToken, expiresAt time.Time) *CredentialBundle {
	return &CredentialBundle{
		SessionToken: b.SessionToken,
		AccessToken:  token,
		ExpiresAt:    expiresAt,
	}
}

// WithoutAccessToken はアクセストークンを破棄した新しいバンドルを返す。
// セッショントークンは維持されるため、次回はサイレントリフレッシュのみで済む。
func (b *CredentialBundle) WithoutAccessToken() *CredentialBundle {
	return &CredentialBundle{SessionToken: b.SessionToken}
}

// CredentialStore はトークン一式の永続化インターフェース。
type CredentialStore interface {
	// Load は保存済みバンドルを読み込む。未保存の場合は(nil, nil)を返す。
	// ファイル破損時はConfigurationErrorを返すが、呼び出し側は未認証として扱う。
	Load() (*CredentialBundle, error)

	// Save はバンドルを永続化する。一時ファイル経由のリネームにより、
	// 書き込み途中のクラッシュで不整合なバンドルが残らないようにする。
	Save(bundle *CredentialBundle) error

	// Clear は保存済みバンドルを削除する。未保存の場合もエラーにしない。
	Clear() error
}
