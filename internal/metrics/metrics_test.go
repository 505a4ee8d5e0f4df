package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue はレジストリから指定名のカウンタ値を取得するヘルパー。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("%s metric not found", name)
	return 0
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordCollectSuccess_IncrementsCounter は収集成功カウンタが増加することを検証する。
func TestRecordCollectSuccess_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCollectSuccess()
	c.RecordCollectSuccess()

	if val := counterValue(t, reg, "switchtrack_collect_success_total"); val != 2 {
		t.Errorf("collect_success_total = %v, want 2", val)
	}
}

// TestRecordCollectFailure_LabelsByReason は収集失敗カウンタが理由別に増加することを検証する。
func TestRecordCollectFailure_LabelsByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCollectFailure("FETCH_FAILED")
	c.RecordCollectFailure("FETCH_FAILED")
	c.RecordCollectFailure("INGESTION_FAILED")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "switchtrack_collect_fail_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "FETCH_FAILED":
					if val != 2 {
						t.Errorf("collect_fail_total{reason=FETCH_FAILED} = %v, want 2", val)
					}
				case "INGESTION_FAILED":
					if val != 1 {
						t.Errorf("collect_fail_total{reason=INGESTION_FAILED} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("switchtrack_collect_fail_total metric not found")
	}
}

// TestRecordFetchHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordFetchHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchHTTPStatus(200)
	c.RecordFetchHTTPStatus(200)
	c.RecordFetchHTTPStatus(401)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "switchtrack_fetch_http_status_total" {
			found = true
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "200":
					if val != 2 {
						t.Errorf("fetch_http_status_total{status_code=200} = %v, want 2", val)
					}
				case "401":
					if val != 1 {
						t.Errorf("fetch_http_status_total{status_code=401} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("switchtrack_fetch_http_status_total metric not found")
	}
}

// TestRecordFetchLatency_ObservesHistogram はフェッチレイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordFetchLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchLatency(100 * time.Millisecond)
	c.RecordFetchLatency(2 * time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "switchtrack_fetch_latency_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("switchtrack_fetch_latency_seconds metric not found")
	}
}

// TestRecordGamesUpserted_IncrementsCounter はゲームアップサートカウンタが増加することを検証する。
func TestRecordGamesUpserted_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGamesUpserted(10)
	c.RecordGamesUpserted(5)

	if val := counterValue(t, reg, "switchtrack_games_upserted_total"); val != 15 {
		t.Errorf("games_upserted_total = %v, want 15", val)
	}
}

// TestRecordDailyRowsWritten_IncrementsCounter は日別行カウンタが増加することを検証する。
func TestRecordDailyRowsWritten_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordDailyRowsWritten(7)
	c.RecordDailyRowsWritten(3)

	if val := counterValue(t, reg, "switchtrack_daily_rows_written_total"); val != 10 {
		t.Errorf("daily_rows_written_total = %v, want 10", val)
	}
}

// TestRecordAuthCounters はトークンリフレッシュと対話認証のカウンタを検証する。
func TestRecordAuthCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTokenRefresh()
	c.RecordTokenRefresh()
	c.RecordInteractiveAuth()

	if val := counterValue(t, reg, "switchtrack_token_refresh_total"); val != 2 {
		t.Errorf("token_refresh_total = %v, want 2", val)
	}
	if val := counterValue(t, reg, "switchtrack_interactive_auth_total"); val != 1 {
		t.Errorf("interactive_auth_total = %v, want 1", val)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	// いくつかのメトリクスを記録
	c.RecordCollectSuccess()
	c.RecordCollectFailure("FETCH_FAILED")
	c.RecordFetchHTTPStatus(200)
	c.RecordFetchLatency(500 * time.Millisecond)
	c.RecordGamesUpserted(3)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	// Prometheus形式のメトリクスが含まれていることを確認
	expectedMetrics := []string{
		"switchtrack_collect_success_total",
		"switchtrack_collect_fail_total",
		"switchtrack_fetch_http_status_total",
		"switchtrack_fetch_latency_seconds",
		"switchtrack_games_upserted_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordCollectSuccess()
	c2.RecordCollectSuccess()
	c2.RecordCollectSuccess()

	if val := counterValue(t, reg1, "switchtrack_collect_success_total"); val != 1 {
		t.Errorf("reg1 collect_success = %v, want 1", val)
	}
	if val := counterValue(t, reg2, "switchtrack_collect_success_total"); val != 2 {
		t.Errorf("reg2 collect_success = %v, want 2", val)
	}
}
