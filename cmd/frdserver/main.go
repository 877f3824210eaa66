package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/qiminjie89/frdsvc/internal/server"
	"github.com/qiminjie89/frdsvc/pkg/config"
	"github.com/qiminjie89/frdsvc/pkg/logger"
	"github.com/qiminjie89/frdsvc/pkg/transport"
)

func main() {
	// 解析命令行参数，非空的覆盖项优先于配置文件
	configPath := pflag.StringP("config", "c", "configs/frdserver.yaml", "config file path (empty for built-in defaults)")
	transportType := pflag.String("transport", "", "client transport: unix or websocket")
	addr := pflag.String("addr", "", "client listen address")
	healthAddr := pflag.String("health-addr", "", "health/metrics listen address")
	grpcAddr := pflag.String("grpc-addr", "", "notification intake gRPC address")
	friendList := pflag.String("friends", "", "friend list YAML file")
	logLevel := pflag.String("log-level", "", "log level: debug, info, warn, error")
	pflag.Parse()

	// 加载配置
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			panic("load config failed: " + err.Error())
		}
		cfg = loaded
	}
	applyOverrides(cfg, overrides{
		transport:  *transportType,
		addr:       *addr,
		healthAddr: *healthAddr,
		grpcAddr:   *grpcAddr,
		friendList: *friendList,
		logLevel:   *logLevel,
	})

	// 初始化日志
	if err := logger.Init(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}); err != nil {
		panic("init logger failed: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("starting frdserver",
		zap.String("config", *configPath),
	)

	tr, err := transport.New(cfg.Transport)
	if err != nil {
		logger.Error("create transport failed", zap.Error(err))
		os.Exit(1)
	}

	// 创建并启动服务
	srv, err := server.New(cfg, tr)
	if err != nil {
		logger.Error("create server failed", zap.Error(err))
		os.Exit(1)
	}
	if err := srv.Start(); err != nil {
		logger.Error("start server failed", zap.Error(err))
		os.Exit(1)
	}

	// 等待退出信号或关机电源事件
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-srv.Done():
		logger.Info("shutdown requested by power event")
	}
	srv.Stop()
}

type overrides struct {
	transport  string
	addr       string
	healthAddr string
	grpcAddr   string
	friendList string
	logLevel   string
}

func applyOverrides(cfg *config.ServerConfig, o overrides) {
	if o.transport != "" {
		cfg.Transport.Type = o.transport
	}
	if o.addr != "" {
		cfg.Transport.Addr = o.addr
	}
	if o.healthAddr != "" {
		cfg.Server.HealthAddr = o.healthAddr
	}
	if o.grpcAddr != "" {
		cfg.Intake.GRPCAddr = o.grpcAddr
	}
	if o.friendList != "" {
		cfg.State.FriendListPath = o.friendList
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
}
