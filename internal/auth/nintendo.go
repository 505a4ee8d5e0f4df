package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/switchtrack/internal/model"
)

const (
	defaultAuthorizeURL    = "https://accounts.nintendo.com/connect/1.0.0/authorize"
	defaultSessionTokenURL = "https://accounts.nintendo.com/connect/1.0.0/api/session_token"
	defaultTokenURL        = "https://accounts.nintendo.com/connect/1.0.0/api/token"

	// grantTypeSessionToken はセッショントークンをアクセストークンに交換する際のグラント種別。
	grantTypeSessionToken = "urn:ietf:params:oauth:grant-type:jwt-bearer-session-token"

	// userAgent は任天堂アカウントAPIが要求するクライアント識別子。
	userAgent = "com.nintendo.znej/1.13.0 (Android/7.1.2)"

	// authScope は認可リクエストで要求するスコープ。
	authScope = "openid user user.mii user.email user.links[].id"
)

// ClientConfig は任天堂アカウントAPIクライアントの設定。
type ClientConfig struct {
	ClientID string

	// テスト用にオーバーライド可能なURL
	AuthorizeURL    string
	SessionTokenURL string
	TokenURL        string

	HTTPClient *http.Client
	Limiter    *rate.Limiter
}

// Client は任天堂アカウントの認可エンドポイント群へのアクセスを提供する。
// 全リクエストはレートリミッタを通過してから送信される。
type Client struct {
	config  ClientConfig
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient はClientを生成する。
func NewClient(config ClientConfig) *Client {
	if config.AuthorizeURL == "" {
		config.AuthorizeURL = defaultAuthorizeURL
	}
	if config.SessionTokenURL == "" {
		config.SessionTokenURL = defaultSessionTokenURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultTokenURL
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	limiter := config.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(1), 1)
	}
	return &Client{config: config, http: httpClient, limiter: limiter}
}

// RedirectURI は認可リクエストのリダイレクト先カスタムスキームを返す。
// 例: npf5c38e31cd085304b://auth
func (c *Client) RedirectURI() string {
	return fmt.Sprintf("npf%s://auth", c.config.ClientID)
}

// BuildAuthorizeURL はPKCEチャレンジを含む認可URLを構築する。
// このURLを運用者がブラウザで開き、ログイン後のリンクを貼り付ける。
func (c *Client) BuildAuthorizeURL(challenge string) string {
	params := url.Values{
		"state":                               {""},
		"redirect_uri":                        {c.RedirectURI()},
		"client_id":                           {c.config.ClientID},
		"scope":                               {authScope},
		"response_type":                       {"session_token_code"},
		"session_token_code_challenge":        {challenge},
		"session_token_code_challenge_method": {"S256"},
		"theme":                               {"login_form"},
	}
	return c.config.AuthorizeURL + "?" + params.Encode()
}

// sessionTokenResponse はセッショントークンエンドポイントのレスポンス。
type sessionTokenResponse struct {
	SessionToken string `json:"session_token"`
}

// ExchangeSessionTokenCode は認可コードと元のverifierをセッショントークンに交換する。
// 認可コードはサーバー側で数分しか有効でないため、非200応答は
// 「コード期限切れまたは無効」としてAuthenticationFailedを返す。
func (c *Client) ExchangeSessionTokenCode(ctx context.Context, code, verifier string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("レートリミッタの待機に失敗しました: %w", err)
	}

	form := url.Values{
		"client_id":                   {c.config.ClientID},
		"session_token_code":          {code},
		"session_token_code_verifier": {verifier},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.SessionTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("セッショントークンリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", model.NewAuthenticationFailedError("セッショントークンエンドポイントへの接続に失敗", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("セッショントークンレスポンスの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", model.NewAuthenticationFailedError(
			fmt.Sprintf("認可コードが期限切れまたは無効です (status: %d)", resp.StatusCode), nil)
	}

	var tokenResp sessionTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("セッショントークンレスポンスのパースに失敗しました: %w", err)
	}
	if tokenResp.SessionToken == "" {
		return "", model.NewAuthenticationFailedError("レスポンスにsession_tokenが含まれていません", nil)
	}

	return tokenResp.SessionToken, nil
}

// accessTokenResponse はトークンエンドポイントのレスポンス。
type accessTokenResponse struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// ExchangeAccessToken はセッショントークンをアクセストークンに交換する。
// 401応答はセッショントークン自体の失効を意味し、Unauthorizedを返す。
// expires_inは呼び出し時点からの相対秒で、有効期限の絶対時刻とともに返す。
func (c *Client) ExchangeAccessToken(ctx context.Context, sessionToken string) (*AccessToken, time.Time, error) {
	if sessionToken == "" {
		return nil, time.Time{}, model.NewAuthenticationFailedError("セッショントークンがありません", nil)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, time.Time{}, fmt.Errorf("レートリミッタの待機に失敗しました: %w", err)
	}

	payload, err := json.Marshal(map[string]string{
		"client_id":     c.config.ClientID,
		"session_token": sessionToken,
		"grant_type":    grantTypeSessionToken,
	})
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("トークンリクエストのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL, bytes.NewReader(payload))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("トークンリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	requestedAt := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, time.Time{}, model.NewAuthenticationFailedError("トークンエンドポイントへの接続に失敗", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("トークンレスポンスの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, time.Time{}, model.NewUnauthorizedError(c.config.TokenURL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, time.Time{}, model.NewAuthenticationFailedError(
			fmt.Sprintf("アクセストークンの取得に失敗 (status: %d)", resp.StatusCode), nil)
	}

	var tokenResp accessTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, time.Time{}, fmt.Errorf("トークンレスポンスのパースに失敗しました: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, time.Time{}, model.NewAuthenticationFailedError("レスポンスにaccess_tokenが含まれていません", nil)
	}

	token := &AccessToken{
		TokenType: tokenResp.TokenType,
		Token:     tokenResp.AccessToken,
	}
	expiresAt := requestedAt.Add(time.Duration(tokenResp.ExpiresIn) * time.Second)

	return token, expiresAt, nil
}
