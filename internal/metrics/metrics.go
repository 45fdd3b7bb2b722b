// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービス層から利用する。
type MetricsCollector interface {
	RecordLoginRequested()
	RecordLoginLinkSent()
	RecordDeliveryFailure()
	RecordVerifySuccess()
	RecordVerifyFailure(reason string)
	RecordLogout()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginRequested  prometheus.Counter
	loginLinkSent   prometheus.Counter
	deliveryFailure prometheus.Counter
	verifySuccess   prometheus.Counter
	verifyFailure   *prometheus.CounterVec
	logout          prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "profuff_auth_login_requested_total",
			Help: "ログインリンクリクエストの合計数",
		}),
		loginLinkSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "profuff_auth_login_link_sent_total",
			Help: "送信に成功したログインリンクの合計数",
		}),
		deliveryFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "profuff_auth_delivery_failure_total",
			Help: "ログインリンク送信失敗の合計数",
		}),
		verifySuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "profuff_auth_verify_success_total",
			Help: "トークン検証成功の合計数",
		}),
		verifyFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profuff_auth_verify_failure_total",
			Help: "トークン検証失敗の理由別合計数",
		}, []string{"reason"}),
		logout: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "profuff_auth_logout_total",
			Help: "ログアウトの合計数",
		}),
	}

	reg.MustRegister(
		c.loginRequested,
		c.loginLinkSent,
		c.deliveryFailure,
		c.verifySuccess,
		c.verifyFailure,
		c.logout,
	)

	return c
}

// RecordLoginRequested はログインリンクリクエストを記録する。
func (c *Collector) RecordLoginRequested() {
	c.loginRequested.Inc()
}

// RecordLoginLinkSent はログインリンク送信成功を記録する。
func (c *Collector) RecordLoginLinkSent() {
	c.loginLinkSent.Inc()
}

// RecordDeliveryFailure はログインリンク送信失敗を記録する。
func (c *Collector) RecordDeliveryFailure() {
	c.deliveryFailure.Inc()
}

// RecordVerifySuccess はトークン検証成功を記録する。
func (c *Collector) RecordVerifySuccess() {
	c.verifySuccess.Inc()
}

// RecordVerifyFailure はトークン検証失敗を理由別に記録する。
// reasonにはエラーコード（TOKEN_NOT_FOUND等）を渡す。
func (c *Collector) RecordVerifyFailure(reason string) {
	c.verifyFailure.WithLabelValues(reason).Inc()
}

// RecordLogout はログアウトを記録する。
func (c *Collector) RecordLogout() {
	c.logout.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
