package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// 调度与投递相关的 Prometheus 指标。
//
// 指标在 InitMetrics 中注册一次，组件直接引用包级变量。
var (
	// SchedulerRunsTotal 调度运行总次数（按结果分类）。
	SchedulerRunsTotal *prometheus.CounterVec

	// AlertsProcessedTotal 处理过的告警总数。
	AlertsProcessedTotal prometheus.Counter

	// AlertFailuresTotal 处理失败（被隔离吞掉）的告警总数。
	AlertFailuresTotal prometheus.Counter

	// PostingsMatchedTotal 命中告警的职位总数。
	PostingsMatchedTotal prometheus.Counter

	// EmailsSentTotal 成功发出的告警邮件总数。
	EmailsSentTotal prometheus.Counter

	// SearchAPIErrorsTotal 上游搜索 API 错误数（按错误类型分类）。
	SearchAPIErrorsTotal *prometheus.CounterVec

	// RunDuration 单次调度运行耗时（秒）。
	RunDuration prometheus.Histogram
)

var initOnce sync.Once

// 包加载即注册，引用方不依赖初始化顺序。
func init() {
	InitMetrics()
}

// InitMetrics 初始化并注册所有指标。
//
// 多次调用是安全的，只有第一次生效（测试里各包可以随意调用）。
func InitMetrics() {
	initOnce.Do(func() {
		SchedulerRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobalerts_scheduler_runs_total",
			Help: "Total scheduler runs, partitioned by outcome.",
		}, []string{"outcome"})

		AlertsProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobalerts_alerts_processed_total",
			Help: "Total alerts processed across all runs.",
		})

		AlertFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobalerts_alert_failures_total",
			Help: "Total alerts whose processing failed and was isolated.",
		})

		PostingsMatchedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobalerts_postings_matched_total",
			Help: "Total postings that matched an alert.",
		})

		EmailsSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobalerts_emails_sent_total",
			Help: "Total alert emails sent successfully.",
		})

		SearchAPIErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobalerts_search_api_errors_total",
			Help: "Upstream search API errors, partitioned by kind.",
		}, []string{"kind"})

		RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobalerts_run_duration_seconds",
			Help:    "Duration of a full scheduler run.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		})

		prometheus.MustRegister(
			SchedulerRunsTotal,
			AlertsProcessedTotal,
			AlertFailuresTotal,
			PostingsMatchedTotal,
			EmailsSentTotal,
			SearchAPIErrorsTotal,
			RunDuration,
		)
	})
}
