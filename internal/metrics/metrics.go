// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordRegistration()
	RecordLogin(success bool)
	RecordOrderPlaced(mode string, total decimal.Decimal)
	RecordOrdersCleared(count int64)
	RecordLoginLogsPurged(count int64)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	registrations   prometheus.Counter
	logins          *prometheus.CounterVec
	ordersPlaced    *prometheus.CounterVec
	revenue         prometheus.Counter
	ordersCleared   prometheus.Counter
	loginLogsPurged prometheus.Counter
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ayurshop_registrations_total",
			Help: "ユーザー登録の合計数",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ayurshop_logins_total",
			Help: "ログイン試行の合計数（結果別）",
		}, []string{"result"}),
		ordersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ayurshop_orders_placed_total",
			Help: "確定した注文の合計数（購入モード別）",
		}, []string{"mode"}),
		revenue: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ayurshop_revenue_total",
			Help: "確定した注文の売上合計",
		}),
		ordersCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ayurshop_orders_cleared_total",
			Help: "管理者の一括削除で削除された注文の合計数",
		}),
		loginLogsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ayurshop_login_logs_purged_total",
			Help: "保持期間切れで削除されたログイン監査ログの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ayurshop_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.registrations,
		c.logins,
		c.ordersPlaced,
		c.revenue,
		c.ordersCleared,
		c.loginLogsPurged,
		c.httpStatus,
	)

	return c
}

// RecordRegistration はユーザー登録を記録する。
func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.logins.WithLabelValues(result).Inc()
}

// RecordOrderPlaced は注文確定と売上を記録する。
func (c *Collector) RecordOrderPlaced(mode string, total decimal.Decimal) {
	c.ordersPlaced.WithLabelValues(mode).Inc()
	c.revenue.Add(total.InexactFloat64())
}

// RecordOrdersCleared は一括削除された注文数を記録する。
func (c *Collector) RecordOrdersCleared(count int64) {
	c.ordersCleared.Add(float64(count))
}

// RecordLoginLogsPurged は削除されたログイン監査ログ数を記録する。
func (c *Collector) RecordLoginLogsPurged(count int64) {
	c.loginLogsPurged.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// NopCollector は何も記録しないMetricsCollector。
type NopCollector struct{}

func (NopCollector) RecordRegistration()                      {}
func (NopCollector) RecordLogin(bool)                         {}
func (NopCollector) RecordOrderPlaced(string, decimal.Decimal) {}
func (NopCollector) RecordOrdersCleared(int64)                {}
func (NopCollector) RecordLoginLogsPurged(int64)              {}
func (NopCollector) RecordHTTPStatus(int)                     {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
