package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// 指标在包加载时创建，引用方不依赖注册顺序；InitMetrics 只负责注册。
var (
	// HTTPRequestsTotal 按方法 / 路径 / 状态码累计请求数。
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sow_http_requests_total",
		Help: "Total HTTP requests by method, path and status.",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration 请求耗时分布。
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sow_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// AuthFlowTotal 按认证流程与结果累计（flow: login/register/...; outcome: ok/denied/error）。
	AuthFlowTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sow_auth_flow_total",
		Help: "Auth flow invocations by flow and outcome.",
	}, []string{"flow", "outcome"})

	// EmailSentTotal / EmailFailedTotal 邮件发送结果计数。
	EmailSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sow_email_sent_total",
		Help: "Emails sent successfully.",
	})
	EmailFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sow_email_failed_total",
		Help: "Email send failures.",
	})

	// RateLimitRejectedTotal 被限流拒绝的请求数。
	RateLimitRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sow_ratelimit_rejected_total",
		Help: "Requests rejected by the rate limiter.",
	})
)

var registerOnce sync.Once

// InitMetrics 将所有指标注册到默认 registry，可重复调用。
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AuthFlowTotal,
			EmailSentTotal,
			EmailFailedTotal,
			RateLimitRejectedTotal,
		)
	})
}
