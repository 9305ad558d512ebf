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

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordLLMRequest_IncrementsCounterWithLabels はLLM呼び出しカウンタがラベル付きで増加することを検証する。
func TestRecordLLMRequest_IncrementsCounterWithLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLLMRequest("conversation", true)
	c.RecordLLMRequest("conversation", true)
	c.RecordLLMRequest("parse-person", false)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "giftman_llm_request_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				labels := map[string]string{}
				for _, l := range m.GetLabel() {
					labels[l.GetName()] = l.GetValue()
				}
				val := m.GetCounter().GetValue()
				switch labels["intent"] {
				case "conversation":
					if labels["outcome"] != "success" || val != 2 {
						t.Errorf("llm_request_total{conversation} = %v (%v), want 2 success", val, labels)
					}
				case "parse-person":
					if labels["outcome"] != "failure" || val != 1 {
						t.Errorf("llm_request_total{parse-person} = %v (%v), want 1 failure", val, labels)
					}
				default:
					t.Errorf("unexpected intent label: %v", labels)
				}
			}
		}
	}
	if !found {
		t.Error("giftman_llm_request_total metric not found")
	}
}

// TestRecordParseFailure_IncrementsCounter はパース失敗カウンタが増加することを検証する。
func TestRecordParseFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordParseFailure("parse-person")
	c.RecordParseFailure("parse-person")
	c.RecordParseFailure("parse-person")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "giftman_llm_parse_fail_total" {
			found = true
			val := mf.GetMetric()[0].GetCounter().GetValue()
			if val != 3 {
				t.Errorf("parse_fail_total = %v, want 3", val)
			}
		}
	}
	if !found {
		t.Error("giftman_llm_parse_fail_total metric not found")
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "giftman_http_status_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "200":
					if val != 2 {
						t.Errorf("http_status_total{status_code=200} = %v, want 2", val)
					}
				case "404":
					if val != 1 {
						t.Errorf("http_status_total{status_code=404} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("giftman_http_status_total metric not found")
	}
}

// TestRecordLLMLatency_ObservesHistogram はLLMレイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordLLMLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLLMLatency(100 * time.Millisecond)
	c.RecordLLMLatency(2 * time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "giftman_llm_latency_seconds" {
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
		t.Error("giftman_llm_latency_seconds metric not found")
	}
}

// TestRecordReminderSent_IncrementsCounter はリマインド発火カウンタが増加することを検証する。
func TestRecordReminderSent_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordReminderSent()
	c.RecordReminderSent()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "giftman_reminders_sent_total" {
			found = true
			val := mf.GetMetric()[0].GetCounter().GetValue()
			if val != 2 {
				t.Errorf("reminders_sent_total = %v, want 2", val)
			}
		}
	}
	if !found {
		t.Error("giftman_reminders_sent_total metric not found")
	}
}

// TestRecordLinkCheck_Counters はリンク確認の成功・失敗カウンタが増加することを検証する。
func TestRecordLinkCheck_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLinkCheckSuccess()
	c.RecordLinkCheckFailure("timeout")
	c.RecordLinkCheckFailure("timeout")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	var successVal, failVal float64
	for _, mf := range metrics {
		switch mf.GetName() {
		case "giftman_link_check_success_total":
			successVal = mf.GetMetric()[0].GetCounter().GetValue()
		case "giftman_link_check_fail_total":
			failVal = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}

	if successVal != 1 {
		t.Errorf("link_check_success_total = %v, want 1", successVal)
	}
	if failVal != 2 {
		t.Errorf("link_check_fail_total = %v, want 2", failVal)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	// いくつかのメトリクスを記録
	c.RecordLLMRequest("conversation", true)
	c.RecordParseFailure("parse-event")
	c.RecordHTTPStatus(200)
	c.RecordLLMLatency(500 * time.Millisecond)
	c.RecordReminderSent()

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
		"giftman_llm_request_total",
		"giftman_llm_parse_fail_total",
		"giftman_http_status_total",
		"giftman_llm_latency_seconds",
		"giftman_reminders_sent_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorがMetricsCollectorインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordReminderSent()
	c2.RecordReminderSent()
	c2.RecordReminderSent()

	metrics1, _ := reg1.Gather()
	metrics2, _ := reg2.Gather()

	var val1, val2 float64
	for _, mf := range metrics1 {
		if mf.GetName() == "giftman_reminders_sent_total" {
			val1 = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	for _, mf := range metrics2 {
		if mf.GetName() == "giftman_reminders_sent_total" {
			val2 = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}

	if val1 != 1 {
		t.Errorf("reg1 reminders_sent = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 reminders_sent = %v, want 2", val2)
	}
}
