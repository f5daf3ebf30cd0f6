// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// モデレーションゲートウェイと記事サービスから利用する。
type MetricsCollector interface {
	RecordSubmission(action string)
	RecordFlaggedSubmission()
	RecordValidationRejection()
	RecordInjectionDetection()
	RecordArticleGenerated()
	RecordLLMLatency(provider string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	submissions         *prometheus.CounterVec
	flaggedSubmissions  prometheus.Counter
	validationRejects   prometheus.Counter
	injectionDetections prometheus.Counter
	articlesGenerated   prometheus.Counter
	llmLatency          *prometheus.HistogramVec
}

// コンパイル時のインターフェース実装チェック
var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "encyclo_submissions_total",
			Help: "受理した投稿の合計数（種別ラベル付き）",
		}, []string{"action"}),
		flaggedSubmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "encyclo_flagged_submissions_total",
			Help: "不正利用フラグが付いた投稿の合計数",
		}),
		validationRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "encyclo_validation_rejections_total",
			Help: "バリデーションで拒否した投稿の合計数",
		}),
		injectionDetections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "encyclo_injection_detections_total",
			Help: "プロンプトインジェクション疑いで拒否した入力の合計数",
		}),
		articlesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "encyclo_articles_generated_total",
			Help: "LLMで生成・更新した記事の合計数",
		}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "encyclo_llm_latency_seconds",
			Help:    "LLM呼び出しのレイテンシ（秒）",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"provider"}),
	}

	reg.MustRegister(
		c.submissions,
		c.flaggedSubmissions,
		c.validationRejects,
		c.injectionDetections,
		c.articlesGenerated,
		c.llmLatency,
	)

	return c
}

// RecordSubmission は投稿の受理を種別付きで記録する。
func (c *Collector) RecordSubmission(action string) {
	c.submissions.WithLabelValues(action).Inc()
}

// RecordFlaggedSubmission は不正利用フラグ付き投稿を記録する。
func (c *Collector) RecordFlaggedSubmission() {
	c.flaggedSubmissions.Inc()
}

// RecordValidationRejection はバリデーション拒否を記録する。
func (c *Collector) RecordValidationRejection() {
	c.validationRejects.Inc()
}

// RecordInjectionDetection はインジェクション疑いによる拒否を記録する。
func (c *Collector) RecordInjectionDetection() {
	c.injectionDetections.Inc()
}

// RecordArticleGenerated は記事の生成・更新を記録する。
func (c *Collector) RecordArticleGenerated() {
	c.articlesGenerated.Inc()
}

// RecordLLMLatency はLLM呼び出しのレイテンシをプロバイダ別に記録する。
func (c *Collector) RecordLLMLatency(provider string, duration time.Duration) {
	c.llmLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
