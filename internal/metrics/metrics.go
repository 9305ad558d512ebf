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
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordLLMRequest(intent string, success bool)
	RecordLLMLatency(duration time.Duration)
	RecordParseFailure(intent string)
	RecordHTTPStatus(statusCode int)
	RecordReminderSent()
	RecordLinkCheckSuccess()
	RecordLinkCheckFailure(reason string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	llmRequest       *prometheus.CounterVec
	llmLatency       prometheus.Histogram
	parseFail        *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	remindersSent    prometheus.Counter
	linkCheckSuccess prometheus.Counter
	linkCheckFail    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		llmRequest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "giftman_llm_request_total",
			Help: "LLM呼び出しのインテント・結果別の合計数",
		}, []string{"intent", "outcome"}),
		llmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "giftman_llm_latency_seconds",
			Help:    "LLM呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		parseFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "giftman_llm_parse_fail_total",
			Help: "LLM応答のパース失敗のインテント別合計数",
		}, []string{"intent"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "giftman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		remindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "giftman_reminders_sent_total",
			Help: "発火したリマインドの合計数",
		}),
		linkCheckSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "giftman_link_check_success_total",
			Help: "購入リンク確認成功の合計数",
		}),
		linkCheckFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "giftman_link_check_fail_total",
			Help: "購入リンク確認失敗の理由別合計数",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.llmRequest,
		c.llmLatency,
		c.parseFail,
		c.httpStatus,
		c.remindersSent,
		c.linkCheckSuccess,
		c.linkCheckFail,
	)

	return c
}

// RecordLLMRequest はLLM呼び出しを記録する。
func (c *Collector) RecordLLMRequest(intent string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.llmRequest.WithLabelValues(intent, outcome).Inc()
}

// RecordLLMLatency はLLM呼び出しのレイテンシを記録する。
func (c *Collector) RecordLLMLatency(duration time.Duration) {
	c.llmLatency.Observe(duration.Seconds())
}

// RecordParseFailure はLLM応答のパース失敗を記録する。
func (c *Collector) RecordParseFailure(intent string) {
	c.parseFail.WithLabelValues(intent).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordReminderSent はリマインド発火を記録する。
func (c *Collector) RecordReminderSent() {
	c.remindersSent.Inc()
}

// RecordLinkCheckSuccess は購入リンク確認成功を記録する。
func (c *Collector) RecordLinkCheckSuccess() {
	c.linkCheckSuccess.Inc()
}

// RecordLinkCheckFailure は購入リンク確認失敗を記録する。
func (c *Collector) RecordLinkCheckFailure(reason string) {
	c.linkCheckFail.WithLabelValues(reason).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
