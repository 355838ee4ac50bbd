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
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordLoginSuccess(method string)
	RecordLoginFailure(method string, code string)
	RecordCodeExchange(success bool)
	RecordProfileUpsert(created bool)
	RecordProfileConflict()
	RecordProviderLatency(operation string, duration time.Duration)
	RecordGateDecision(route string, state string)
	RecordMembershipsExpired(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess       *prometheus.CounterVec
	loginFail          *prometheus.CounterVec
	codeExchange       *prometheus.CounterVec
	profileUpsert      *prometheus.CounterVec
	profileConflict    prometheus.Counter
	providerLatency    *prometheus.HistogramVec
	gateDecision       *prometheus.CounterVec
	membershipsExpired prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memberport_login_success_total",
			Help: "ログイン成功の合計数（認証方式別）",
		}, []string{"method"}),
		loginFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memberport_login_fail_total",
			Help: "ログイン失敗の合計数（認証方式・エラーコード別）",
		}, []string{"method", "code"}),
		codeExchange: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memberport_code_exchange_total",
			Help: "ワンタイムコード交換の合計数（結果別）",
		}, []string{"result"}),
		profileUpsert: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memberport_profile_upsert_total",
			Help: "プロフィールUPSERTの合計数（新規作成か既存更新か別）",
		}, []string{"created"}),
		profileConflict: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memberport_profile_conflict_total",
			Help: "プロフィール重複条件の検出数",
		}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memberport_provider_latency_seconds",
			Help:    "認証プロバイダー呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		gateDecision: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memberport_gate_decision_total",
			Help: "認可ゲートの評価結果の合計数（ルート種別・終端状態別）",
		}, []string{"route", "state"}),
		membershipsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memberport_memberships_expired_total",
			Help: "期限切れ遷移させたメンバーシップの合計数",
		}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.codeExchange,
		c.profileUpsert,
		c.profileConflict,
		c.providerLatency,
		c.gateDecision,
		c.membershipsExpired,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess(method string) {
	c.loginSuccess.WithLabelValues(method).Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure(method string, code string) {
	c.loginFail.WithLabelValues(method, code).Inc()
}

// RecordCodeExchange はワンタイムコード交換の結果を記録する。
func (c *Collector) RecordCodeExchange(success bool) {
	c.codeExchange.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// RecordProfileUpsert はプロフィールUPSERTを記録する。
func (c *Collector) RecordProfileUpsert(created bool) {
	c.profileUpsert.WithLabelValues(strconv.FormatBool(created)).Inc()
}

// RecordProfileConflict はプロフィール重複条件の検出を記録する。
func (c *Collector) RecordProfileConflict() {
	c.profileConflict.Inc()
}

// RecordProviderLatency は認証プロバイダー呼び出しのレイテンシを記録する。
func (c *Collector) RecordProviderLatency(operation string, duration time.Duration) {
	c.providerLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordGateDecision は認可ゲートの評価結果を記録する。
func (c *Collector) RecordGateDecision(route string, state string) {
	c.gateDecision.WithLabelValues(route, state).Inc()
}

// RecordMembershipsExpired は期限切れ遷移させた件数を記録する。
func (c *Collector) RecordMembershipsExpired(count int64) {
	c.membershipsExpired.Add(float64(count))
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
