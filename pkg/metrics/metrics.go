// Package metrics 提供 Prometheus 监控指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 会话指标
var (
	Sessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "frd_sessions_active",
		Help: "Number of active sessions per service",
	}, []string{"service"})

	SessionsRefused = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frd_sessions_refused_total",
		Help: "Connection attempts refused during handshake",
	}, []string{"reason"})

	SessionCloseReason = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frd_session_close_total",
		Help: "Session close count by reason",
	}, []string{"reason"})

	ClientWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frd_client_write_failures_total",
		Help: "Downstream frame failures by reason",
	}, []string{"reason"})

	OpenHandles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "frd_open_handles",
		Help: "Handles held across all session handle tables",
	})
)

// 命令指标
var (
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frd_commands_total",
		Help: "Dispatched commands by service, command and result",
	}, []string{"service", "command", "result"})

	DecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frd_decode_errors_total",
		Help: "Malformed command buffers by service",
	}, []string{"service"})

	DispatchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "frd_dispatch_latency_seconds",
		Help:    "Command dispatch latency",
		Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
	}, []string{"service"})
)

// 通知指标
var (
	NotificationsPushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frd_notifications_pushed_total",
		Help: "Notifications pushed by kind",
	}, []string{"kind"})

	NotificationsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frd_notifications_evicted_total",
		Help: "Notifications evicted from the full queue",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "frd_notification_queue_depth",
		Help: "Notifications retained in the queue",
	})

	ClientSignals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frd_client_signals_total",
		Help: "Event handles signaled to clients",
	})
)

// 接入指标
var (
	IntakeMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frd_intake_messages_total",
		Help: "Cross-service intake messages by source and type",
	}, []string{"source", "type"})

	IntakeRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frd_intake_rejected_total",
		Help: "Intake messages rejected by reason",
	}, []string{"reason"})

	PowerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frd_power_events_total",
		Help: "Power events applied by event",
	}, []string{"event"})
)
