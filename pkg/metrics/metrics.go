// Package metrics 权限引擎的Prometheus指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal HTTP请求总数
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbac_http_requests_total",
			Help: "HTTP请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration HTTP请求耗时
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rbac_http_request_duration_seconds",
			Help:    "HTTP请求耗时（秒）",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AccessDecisions 权限判定次数
	AccessDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbac_access_decisions_total",
			Help: "权限判定次数（按请求类型和结果）",
		},
		[]string{"kind", "effect"},
	)

	// BestEffortFailures 非关键副作用（审计、通知）失败次数
	BestEffortFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbac_best_effort_failures_total",
			Help: "审计日志、通知等非关键操作失败次数",
		},
		[]string{"operation"},
	)

	// PermissionRequestTransitions 权限变更申请状态流转次数
	PermissionRequestTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbac_permission_request_transitions_total",
			Help: "权限变更申请状态流转次数",
		},
		[]string{"status"},
	)
)
