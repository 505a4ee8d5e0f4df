package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/switchtrack/internal/model"
)

// TokenExchanger はセッショントークンからアクセストークンへの交換インターフェース。
type TokenExchanger interface {
	ExchangeAccessToken(ctx context.Context, sessionToken string) (*AccessToken, time.Time, error)
}

// InteractiveAuthenticator は対話認証フローのインターフェース。
type InteractiveAuthenticator interface {
	Run(ctx context.Context) (*CredentialBundle, error)
}

// Prober はキャッシュ済みアクセストークンの軽量な事前検証インターフェース。
// 履歴フェッチ自体が401を表面化させるため、定期実行パスでは省略できる。
type Prober interface {
	Probe(ctx context.Context, bundle *CredentialBundle) error
}

// AuthMetrics は認証イベントのメトリクス記録フック。
type AuthMetrics interface {
	RecordTokenRefresh()
	RecordInteractiveAuth()
}

// ServiceConfig はトークンライフサイクル管理の設定。
type ServiceConfig struct {
	// RefreshMargin は有効期限の何分前からリフレッシュ対象とみなすか。
	// プロバイダ推奨値は5分。
	RefreshMargin time.Duration
}

// Service はトークンのライフサイクルを管理する。
// 長期有効なセッショントークンで定期実行のたびの対話認証を避け、
// 短命なアクセストークンを透過的にリフレッシュする。
// 401による明示的な無効化で、失効済みセッションへの無限リトライを防ぐ。
type Service struct {
	store     CredentialStore
	exchanger TokenExchanger
	flow      InteractiveAuthenticator
	config    ServiceConfig
	logger    *slog.Logger
	metrics   AuthMetrics
	prober    Prober
	now       func() time.Time
}

// NewService はServiceを生成する。
// flowにnilを渡すと対話認証が無効になり、保存済みセッションがない場合は
// AuthenticationFailedを返す（非対話環境のワーカー向け）。
func NewService(store CredentialStore, exchanger TokenExchanger, flow InteractiveAuthenticator, config ServiceConfig, logger *slog.Logger) *Service {
	if config.RefreshMargin < 0 {
		config.RefreshMargin = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		exchanger: exchanger,
		flow:      flow,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// SetMetrics は認証イベントのメトリクス記録フックを設定する。nilなら記録しない。
func (s *Service) SetMetrics(m AuthMetrics) {
	s.metrics = m
}

// SetProber は対話認証直後の疎通確認フックを設定する。nilなら検証しない。
// 定期実行のサイレントリフレッシュ経路では呼ばれない
// （フェッチ自体が401を表面化させるため二重検証になる）。
func (s *Service) SetProber(p Prober) {
	s.prober = p
}

// EnsureValid は1回のフェッチ操作に十分な有効期間を持つバンドルを返す。
//
//  1. 保存済みバンドルを読み込む。破損は未認証として扱う。
//  2. セッショントークンがなければ対話認証フローを実行する。
//  3. アクセストークンが欠落またはマージン内で期限切れの場合、
//     セッショントークンを再利用してアクセストークンのみ交換する。
//  4. 交換が401で拒否された場合はセッション失効とみなし、
//     保存済みトークンを破棄して対話認証からやり直す。
//
// 有効なアクセストークンがキャッシュされている間は外部呼び出しを行わない。
func (s *Service) EnsureValid(ctx context.Context) (*CredentialBundle, error) {
	bundle, err := s.store.Load()
	if err != nil {
		// 破損したストアは致命的エラーではなく未認証として扱う
		s.logger.Warn("トークンストアの読み込みに失敗したため再認証します", slog.String("error", err.Error()))
		bundle = nil
	}

	if !bundle.HasSession() {
		return s.authenticate(ctx)
	}

	if bundle.AccessValid(s.now(), s.config.RefreshMargin) {
		return bundle, nil
	}

	refreshed, err := s.refresh(ctx, bundle)
	if err == nil {
		return refreshed, nil
	}

	if model.HasCode(err, model.ErrCodeUnauthorized) {
		// セッショントークン自体が失効している。破棄して対話認証からやり直す。
		s.logger.Warn("セッショントークンが失効しています。再認証が必要です。")
		if clearErr := s.store.Clear(); clearErr != nil {
			s.logger.Error("失効トークンの削除に失敗しました", slog.String("error", clearErr.Error()))
		}
		return s.authenticate(ctx)
	}

	return nil, err
}

// InvalidateAccessToken は履歴APIから401を受けた際にアクセストークンを破棄する。
// sessionRevokedがtrueの場合はセッショントークンごと破棄し、次回は対話認証となる。
// 破棄後の次回EnsureValid呼び出しは拒否されたトークンを決して再利用しない。
func (s *Service) InvalidateAccessToken(sessionRevoked bool) error {
	if sessionRevoked {
		s.logger.Warn("セッションが失効したため保存済みトークンを全て破棄します")
		return s.store.Clear()
	}

	bundle, err := s.store.Load()
	if err != nil || !bundle.HasSession() {
		return s.store.Clear()
	}

	s.logger.Info("拒否されたアクセストークンを破棄します（セッショントークンは維持）")
	return s.store.Save(bundle.WithoutAccessToken())
}

// refresh は既存のセッショントークンでアクセストークンのみを交換する。
func (s *Service) refresh(ctx context.Context, bundle *CredentialBundle) (*CredentialBundle, error) {
	s.logger.Info("アクセストークンをリフレッシュします")

	token, expiresAt, err := s.exchanger.ExchangeAccessToken(ctx, bundle.SessionToken)
	if err != nil {
		return nil, err
	}

	refreshed := bundle.WithAccessToken(token, expiresAt)
	if err := s.store.Save(refreshed); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordTokenRefresh()
	}
	s.logger.Info("アクセストークンをリフレッシュしました", slog.Time("expires_at", expiresAt))
	return refreshed, nil
}

// authenticate は対話認証フローを実行する。
func (s *Service) authenticate(ctx context.Context) (*CredentialBundle, error) {
	if s.flow == nil {
		return nil, model.NewAuthenticationFailedError(
			"保存済みセッションがなく、対話認証が無効です。auth サブコマンドで認証してください。", nil)
	}
	if s.metrics != nil {
		s.metrics.RecordInteractiveAuth()
	}

	bundle, err := s.flow.Run(ctx)
	if err != nil {
		return nil, err
	}

	if s.prober != nil {
		if err := s.prober.Probe(ctx, bundle); err != nil {
			return nil, err
		}
		s.logger.Info("取得したトークンで履歴APIへの疎通を確認しました")
	}
	return bundle, nil
}
