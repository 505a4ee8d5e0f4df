// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// パイプラインやワーカーから利用する。
type MetricsCollector interface {
	RecordCollectSuccess()
	RecordCollectFailure(reason string)
	RecordFetchHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordGamesUpserted(count int)
	RecordDailyRowsWritten(count int)
	RecordTokenRefresh()
	RecordInteractiveAuth()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	collectSuccess  prometheus.Counter
	collectFail     *prometheus.CounterVec
	fetchHTTPStatus *prometheus.CounterVec
	fetchLatency    prometheus.Histogram
	gamesUpserted   prometheus.Counter
	dailyRows       prometheus.Counter
	tokenRefresh    prometheus.Counter
	interactiveAuth prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		collectSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "switchtrack_collect_success_total",
			Help: "収集サイクル成功の合計数",
		}),
		collectFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switchtrack_collect_fail_total",
			Help: "収集サイクル失敗の合計数（失敗理由別）",
		}, []string{"reason"}),
		fetchHTTPStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switchtrack_fetch_http_status_total",
			Help: "履歴APIのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "switchtrack_fetch_latency_seconds",
			Help:    "履歴APIフェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		gamesUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "switchtrack_games_upserted_total",
			Help: "アップサートされたゲームの合計数",
		}),
		dailyRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "switchtrack_daily_rows_written_total",
			Help: "書き込まれた日別プレイ行の合計数（挿入・更新の合計）",
		}),
		tokenRefresh: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "switchtrack_token_refresh_total",
			Help: "アクセストークンリフレッシュの合計数",
		}),
		interactiveAuth: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "switchtrack_interactive_auth_total",
			Help: "対話認証フロー実行の合計数",
		}),
	}

	reg.MustRegister(
		c.collectSuccess,
		c.collectFail,
		c.fetchHTTPStatus,
		c.fetchLatency,
		c.gamesUpserted,
		c.dailyRows,
		c.tokenRefresh,
		c.interactiveAuth,
	)

	return c
}

// RecordCollectSuccess は収集サイクル成功を記録する。
func (c *Collector) RecordCollectSuccess() {
	c.collectSuccess.Inc()
}

// RecordCollectFailure は収集サイクル失敗を失敗理由付きで記録する。
func (c *Collector) RecordCollectFailure(reason string) {
	c.collectFail.WithLabelValues(reason).Inc()
}

// RecordFetchHTTPStatus は履歴APIのHTTPステータスコードを記録する。
func (c *Collector) RecordFetchHTTPStatus(statusCode int) {
	c.fetchHTTPStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency は履歴APIフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordGamesUpserted はアップサートされたゲーム数を記録する。
func (c *Collector) RecordGamesUpserted(count int) {
	c.gamesUpserted.Add(float64(count))
}

// RecordDailyRowsWritten は書き込まれた日別行数を記録する。
func (c *Collector) RecordDailyRowsWritten(count int) {
	c.dailyRows.Add(float64(count))
}

// RecordTokenRefresh はアクセストークンリフレッシュを記録する。
func (c *Collector) RecordTokenRefresh() {
	c.tokenRefresh.Inc()
}

// RecordInteractiveAuth は対話認証フローの実行を記録する。
func (c *Collector) RecordInteractiveAuth() {
	c.interactiveAuth.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
