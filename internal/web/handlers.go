// Package web はダッシュボード向けの読み取り専用HTTP APIを提供する。
package web

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/switchtrack/internal/middleware"
	"github.com/hitoshi/switchtrack/internal/model"
	"github.com/hitoshi/switchtrack/internal/repository"
	"github.com/hitoshi/switchtrack/internal/security"
)

// monthPattern は月指定クエリパラメータの形式（YYYY-MM）。
var monthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// gameResponse はGET /api/gamesのレスポンス行。
type gameResponse struct {
	TitleID            string `json:"titleId"`
	TitleName          string `json:"titleName"`
	DisplayName        string `json:"displayName"`
	ImageURL           string `json:"imageUrl,omitempty"`
	DeviceType         string `json:"deviceType,omitempty"`
	TotalPlayedDays    int    `json:"totalPlayedDays"`
	TotalPlayedMinutes int    `json:"totalPlayedMinutes"`
	FirstPlayedAt      string `json:"firstPlayedAt,omitempty"`
	LastPlayedAt       string `json:"lastPlayedAt,omitempty"`
}

// monthlyResponse はGET /api/monthly_playtimeのレスポンス行。
type monthlyResponse struct {
	Month        string `json:"month"`
	TotalMinutes int    `json:"totalMinutes"`
}

// dailyResponse は日別プレイ時間APIのレスポンス行。
type dailyResponse struct {
	PlayedDate  string `json:"playedDate"`
	TitleID     string `json:"titleId"`
	DisplayName string `json:"displayName"`
	Minutes     int    `json:"minutes"`
}

// StatsHandler は統計APIのHTTPハンドラー。
type StatsHandler struct {
	stats  repository.StatsRepository
	logger *slog.Logger
}

// NewStatsHandler はStatsHandlerを生成する。
func NewStatsHandler(stats repository.StatsRepository, logger *slog.Logger) *StatsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsHandler{stats: stats, logger: logger}
}

// ListGames はGET /api/gamesを処理する。
// 全ゲームを最新の累計カウンタ付きで合計プレイ分数の降順で返す。
func (h *StatsHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.stats.ListGames(r.Context())
	if err != nil {
		h.logger.Error("ゲーム一覧の取得に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	resp := make([]gameResponse, 0, len(games))
	for _, g := range games {
		resp = append(resp, gameResponse{
			TitleID:            g.TitleID,
			TitleName:          g.TitleName,
			DisplayName:        g.DisplayName(),
			ImageURL:           g.ImageURL,
			DeviceType:         g.DeviceType,
			TotalPlayedDays:    g.TotalPlayedDays,
			TotalPlayedMinutes: g.TotalPlayedMinutes,
			FirstPlayedAt:      g.FirstPlayedAt,
			LastPlayedAt:       g.LastPlayedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// MonthlyPlaytime はGET /api/monthly_playtimeを処理する。
func (h *StatsHandler) MonthlyPlaytime(w http.ResponseWriter, r *http.Request) {
	months, err := h.stats.MonthlyPlaytime(r.Context())
	if err != nil {
		h.logger.Error("月別プレイ時間の取得に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	resp := make([]monthlyResponse, 0, len(months))
	for _, m := range months {
		resp = append(resp, monthlyResponse{Month: m.Month, TotalMinutes: m.TotalMinutes})
	}
	writeJSON(w, http.StatusOK, resp)
}

// DailyPlaytime はGET /api/daily_playtime?month=YYYY-MMを処理する。
func (h *StatsHandler) DailyPlaytime(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if !monthPattern.MatchString(month) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.PipelineError{
			Code:     "INVALID_MONTH",
			Message:  "monthパラメータはYYYY-MM形式で指定してください。",
			Category: "validation",
			Action:   "例: /api/daily_playtime?month=2024-04",
		})
		return
	}

	entries, err := h.stats.DailyPlaytimeByMonth(r.Context(), month)
	if err != nil {
		h.logger.Error("日別プレイ時間の取得に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, toDailyResponses(entries))
}

// DailyByTitle はGET /api/games/{titleID}/dailyを処理する。
func (h *StatsHandler) DailyByTitle(w http.ResponseWriter, r *http.Request) {
	titleID := chi.URLParam(r, "titleID")

	entries, err := h.stats.ListDailyByTitle(r.Context(), titleID)
	if err != nil {
		h.logger.Error("タイトル別日別履歴の取得に失敗しました",
			slog.String("title_id", titleID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, toDailyResponses(entries))
}

func toDailyResponses(entries []repository.DailyPlaytime) []dailyResponse {
	resp := make([]dailyResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, dailyResponse{
			PlayedDate:  e.PlayedDate,
			TitleID:     e.TitleID,
			DisplayName: e.DisplayName,
			Minutes:     e.Minutes,
		})
	}
	return resp
}

// maxImageSize は画像プロキシが転送する最大バイト数。
const maxImageSize = 5 * 1024 * 1024

// ImageProxyHandler はGET /api/image?url=を処理する。
// ゲームのパッケージ画像は外部CDN上にあるため、
// SSRF防止付きクライアントで取得してダッシュボードに中継する。
type ImageProxyHandler struct {
	guard  security.SSRFGuardService
	client *http.Client
	logger *slog.Logger
}

// NewImageProxyHandler はImageProxyHandlerを生成する。
func NewImageProxyHandler(guard security.SSRFGuardService, client *http.Client, logger *slog.Logger) *ImageProxyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageProxyHandler{guard: guard, client: client, logger: logger}
}

// Proxy は指定URLの画像を取得して中継する。
func (h *ImageProxyHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")

	if err := h.guard.ValidateURL(rawURL); err != nil {
		middleware.WriteErrorResponse(w, http.StatusForbidden, &model.PipelineError{
			Code:     "SSRF_BLOCKED",
			Message:  "指定されたURLは取得できません。",
			Category: "validation",
			Action:   "https://で始まる外部の画像URLを指定してください。",
		})
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, rawURL, nil)
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("画像の取得に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusBadGateway, &model.PipelineError{
			Code:     "IMAGE_FETCH_FAILED",
			Message:  "画像の取得に失敗しました。",
			Category: "fetch",
			Action:   "しばらく待ってから再度お試しください。",
		})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		middleware.WriteErrorResponse(w, http.StatusBadGateway, &model.PipelineError{
			Code:     "IMAGE_FETCH_FAILED",
			Message:  "画像の取得に失敗しました。",
			Category: "fetch",
			Action:   "しばらく待ってから再度お試しください。",
		})
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	io.Copy(w, io.LimitReader(resp.Body, maxImageSize))
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
