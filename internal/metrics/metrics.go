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
// サービス層から利用する。
type MetricsCollector interface {
	RecordFollowingFetch(source string)
	RecordUpstreamStatus(statusCode int)
	RecordUpstreamLatency(duration time.Duration)
	RecordSnapshotWrite(success bool)
	RecordSignIn(result string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	followingFetch  *prometheus.CounterVec
	upstreamStatus  *prometheus.CounterVec
	upstreamLatency prometheus.Histogram
	snapshotWrites  *prometheus.CounterVec
	signIns         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		followingFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookshelf_following_fetch_total",
			Help: "フォロー一覧の応答元（live, snapshot, empty）別の件数",
		}, []string{"source"}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookshelf_upstream_http_status_total",
			Help: "ソーシャルグラフAPIのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bookshelf_upstream_latency_seconds",
			Help:    "ソーシャルグラフAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		snapshotWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookshelf_snapshot_writes_total",
			Help: "フォロー一覧スナップショット書き込みの結果別件数",
		}, []string{"result"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookshelf_sign_ins_total",
			Help: "サインインの結果別件数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.followingFetch,
		c.upstreamStatus,
		c.upstreamLatency,
		c.snapshotWrites,
		c.signIns,
	)

	return c
}

// RecordFollowingFetch はフォロー一覧の応答元を記録する。
func (c *Collector) RecordFollowingFetch(source string) {
	c.followingFetch.WithLabelValues(source).Inc()
}

// RecordUpstreamStatus は外部APIのHTTPステータスコードを記録する。
func (c *Collector) RecordUpstreamStatus(statusCode int) {
	c.upstreamStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamLatency は外部API呼び出しのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(duration time.Duration) {
	c.upstreamLatency.Observe(duration.Seconds())
}

// RecordSnapshotWrite はスナップショット書き込みの成否を記録する。
func (c *Collector) RecordSnapshotWrite(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.snapshotWrites.WithLabelValues(result).Inc()
}

// RecordSignIn はサインインの結果を記録する。
func (c *Collector) RecordSignIn(result string) {
	c.signIns.WithLabelValues(result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
