// Package history はプレイ履歴APIからの取得とスナップショットの保全を提供する。
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/hitoshi/switchtrack/internal/auth"
	"github.com/hitoshi/switchtrack/internal/model"
)

const (
	// defaultHistoryURL はプレイ履歴APIのエンドポイント。
	defaultHistoryURL = "https://news-api.entry.nintendo.co.jp/api/v1.1/users/me/play_histories"
	// userAgent は公式アプリと同一のUser-Agent。これ以外は拒否される。
	userAgent = "com.nintendo.znej/1.13.0 (Android/7.1.2)"
)

// FetcherConfig はFetcherの設定。
type FetcherConfig struct {
	// HistoryURL はテスト用にエンドポイントを差し替え可能。
	HistoryURL string
	HTTPClient *http.Client
	// Limiter は履歴APIへのリクエストレートを制限する。nilなら1rps。
	Limiter *rate.Limiter
}

// Fetcher はプレイ履歴APIのクライアント。
// 1回のGETで全履歴スナップショット（累計＋直近日別）を取得する。
type Fetcher struct {
	historyURL string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewFetcher はFetcher の新しいインスタンスを生成する。
func NewFetcher(cfg FetcherConfig, logger *slog.Logger) *Fetcher {
	if cfg.HistoryURL == "" {
		cfg.HistoryURL = defaultHistoryURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Limiter == nil {
		cfg.Limiter = rate.NewLimiter(rate.Limit(1), 1)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		historyURL: cfg.HistoryURL,
		httpClient: cfg.HTTPClient,
		limiter:    cfg.Limiter,
		logger:     logger,
	}
}

// Fetch はプレイ履歴スナップショットを取得する。
// パース済みのスナップショットに加えて生のレスポンスボディも返す。
// 生ボディはアーカイブ用で、再取得不能な時系列データの保全に使う。
//
// アクセストークンを持たないバンドルはリクエストせずTOKEN_EXPIREDを返す。
// 401はトークン拒否としてUNAUTHORIZEDを返す（呼び出し元が無効化を判断する）。
// その他の非200ステータスとネットワークエラーはFETCH_FAILEDを返す。
func (f *Fetcher) Fetch(ctx context.Context, bundle *auth.CredentialBundle) (*model.RawSnapshot, []byte, error) {
	body, err := f.get(ctx, bundle)
	if err != nil {
		return nil, nil, err
	}

	var snapshot model.RawSnapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		f.logger.Error("履歴APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, nil, model.NewFetchFailedError(0, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err))
	}

	f.logger.Info("プレイ履歴を取得しました",
		slog.Int("titles", len(snapshot.PlayHistories)),
		slog.Int("recent_days", len(snapshot.RecentPlayHistories)),
	)
	return &snapshot, body, nil
}

// Probe はキャッシュ済みトークンで履歴APIに到達できるか軽量に検証する。
// auth サブコマンドでの認証直後の疎通確認に使う。
func (f *Fetcher) Probe(ctx context.Context, bundle *auth.CredentialBundle) error {
	_, err := f.get(ctx, bundle)
	return err
}

func (f *Fetcher) get(ctx context.Context, bundle *auth.CredentialBundle) ([]byte, error) {
	// アクセストークンを持たないバンドルはリクエスト前にTOKEN_EXPIREDで弾く。
	// 次回サイクルのサイレントリフレッシュで回復する。
	if bundle == nil || bundle.AccessToken == nil {
		return nil, model.NewTokenExpiredError()
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, model.NewFetchFailedError(0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.historyURL, nil)
	if err != nil {
		return nil, model.NewFetchFailedError(0, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", bundle.AuthorizationValue())

	resp, err := f.httpClient.Do(req)
	if err != nil {
		f.logger.Error("履歴APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewFetchFailedError(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		f.logger.Warn("履歴APIがトークンを拒否しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewUnauthorizedError(f.historyURL)
	}
	if resp.StatusCode != http.StatusOK {
		f.logger.Error("履歴APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewFetchFailedError(resp.StatusCode,
			fmt.Errorf("履歴APIがステータス %d を返しました", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewFetchFailedError(0, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err))
	}
	return body, nil
}
