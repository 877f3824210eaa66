package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/qiminjie89/frdsvc/internal/frd"
	"github.com/qiminjie89/frdsvc/pkg/logger"
)

// HealthStatus 健康状态
type HealthStatus struct {
	Status          string         `json:"status"`
	Reason          string         `json:"reason,omitempty"`
	Sessions        map[string]int `json:"sessions"`
	Services        []string       `json:"services"`
	QueueDepth      int            `json:"queue_depth"`
	QueueHead       uint64         `json:"queue_head"`
	KafkaConnected  bool           `json:"kafka_connected"`
	ProtocolVersion int            `json:"protocol_version"`
	UptimeSeconds   float64        `json:"uptime_seconds"`
}

// healthMux 健康检查、指标与日志级别接口
func (s *Server) healthMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.Handle("/log/level", logger.Level())
	if s.cfg.Metrics.Enabled {
		path := s.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, promhttp.Handler())
	}
	return mux
}

// runHealthServer 运行健康检查服务
func (s *Server) runHealthServer() {
	server := &http.Server{
		Addr:              s.cfg.Server.HealthAddr,
		Handler:           s.healthMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-s.ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	logger.Info("starting health server",
		zap.String("addr", s.cfg.Server.HealthAddr),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("health server error", zap.Error(err))
	}
}

// Health 返回当前健康状态
func (s *Server) Health() *HealthStatus {
	health := &HealthStatus{
		Sessions:        s.stats.snapshot(),
		Services:        s.registry.Services(),
		QueueDepth:      s.queue.Len(),
		QueueHead:       s.queue.Head(),
		KafkaConnected:  s.intake.KafkaConnected(),
		ProtocolVersion: frd.ProtocolVersion,
		UptimeSeconds:   time.Since(s.startTime).Seconds(),
	}

	switch {
	case s.ctx.Err() != nil:
		health.Status = "unhealthy"
		health.Reason = "shutting_down"
	case len(health.Services) == 0:
		health.Status = "unhealthy"
		health.Reason = "no_services"
	case s.intake.KafkaEnabled() && !health.KafkaConnected:
		health.Status = "degraded"
		health.Reason = "kafka_disconnected"
	default:
		health.Status = "healthy"
	}
	return health
}

// healthHandler 健康检查处理
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.Health()

	w.Header().Set("Content-Type", "application/json")
	if health.Status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(health)
}
