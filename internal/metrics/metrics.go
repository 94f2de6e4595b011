// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とバックグラウンドジョブから利用する。
type MetricsCollector interface {
	RecordLogin(outcome string)
	RecordTokenValidation(outcome string)
	RecordSagaCompensation(step string)
	RecordTokensSwept(count int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins       *prometheus.CounterVec
	validations  *prometheus.CounterVec
	compensation *prometheus.CounterVec
	tokensSwept  prometheus.Counter
	httpStatus   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playerhub_logins_total",
			Help: "ログイン試行の結果別合計数",
		}, []string{"outcome"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playerhub_token_validations_total",
			Help: "ベアラートークン検証の結果別合計数",
		}, []string{"outcome"}),
		compensation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playerhub_saga_compensations_total",
			Help: "プロビジョニングサガ補償のステップ別合計数",
		}, []string{"failed_step"}),
		tokensSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playerhub_verification_tokens_swept_total",
			Help: "スイープで破棄された期限切れ検証トークンの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playerhub_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.logins,
		c.validations,
		c.compensation,
		c.tokensSwept,
		c.httpStatus,
	)

	return c
}

// RecordLogin はログイン試行の結果（success/failure）を記録する。
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordTokenValidation はトークン検証の結果（accepted/rejected）を記録する。
func (c *Collector) RecordTokenValidation(outcome string) {
	c.validations.WithLabelValues(outcome).Inc()
}

// RecordSagaCompensation はサガ補償を失敗ステップ別に記録する。
func (c *Collector) RecordSagaCompensation(step string) {
	c.compensation.WithLabelValues(step).Inc()
}

// RecordTokensSwept はスイープで破棄されたトークン数を記録する。
func (c *Collector) RecordTokensSwept(count int) {
	c.tokensSwept.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
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
