package web

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/switchtrack/internal/metrics"
	"github.com/hitoshi/switchtrack/internal/middleware"
	"github.com/hitoshi/switchtrack/internal/repository"
	"github.com/hitoshi/switchtrack/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Stats repository.StatsRepository

	// 画像プロキシ
	SSRFGuard   security.SSRFGuardService
	ImageClient *http.Client

	// Prometheusスクレイプ
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders
//
// 全エンドポイントは読み取り専用で認証を持たない（ローカル/内部ネットワーク前提）。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	statsHandler := NewStatsHandler(deps.Stats, deps.Logger)
	imageHandler := NewImageProxyHandler(deps.SSRFGuard, deps.ImageClient, deps.Logger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	r.Route("/api", func(r chi.Router) {
		r.Get("/games", statsHandler.ListGames)
		r.Get("/games/{titleID}/daily", statsHandler.DailyByTitle)
		r.Get("/monthly_playtime", statsHandler.MonthlyPlaytime)
		r.Get("/daily_playtime", statsHandler.DailyPlaytime)
		r.Get("/image", imageHandler.Proxy)
	})

	return r
}
