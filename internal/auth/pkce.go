package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// PKCE はPKCE方式の検証コードとチャレンジの組を表す。
// verifierは256ビットの乱数をbase64url（パディングなし）でエンコードした文字列、
// challengeはverifierのSHA-256ダイジェストを同様にエンコードした文字列。
type PKCE struct {
	Verifier  string
	Challenge string
}

// GeneratePKCE は暗号論的乱数源から新しいPKCEペアを生成する。
func GeneratePKCE() (*PKCE, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("検証コードの乱数生成に失敗しました: %w", err)
	}

	verifier := base64.RawURLEncoding.EncodeToString(raw)
	return &PKCE{
		Verifier:  verifier,
		Challenge: DeriveChallenge(verifier),
	}, nil
}

// DeriveChallenge はverifier文字列からS256チャレンジを導出する。
// challenge = BASE64URL-ENCODE(SHA256(ASCII(verifier)))、パディングなし。
// 同一verifierに対して常に同一のchallengeを返す。
func DeriveChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
