// Package config 提供配置加载功能
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig frd 服务配置
type ServerConfig struct {
	Server    BaseConfig      `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	Services  []ServiceConfig `yaml:"services"`
	Queue     QueueConfig     `yaml:"queue"`
	State     StateConfig     `yaml:"state"`
	Intake    IntakeConfig    `yaml:"intake"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// BaseConfig 服务器基础配置
type BaseConfig struct {
	ID               string        `yaml:"id"`
	HealthAddr       string        `yaml:"health_addr"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	SendQueueSize    int           `yaml:"send_queue_size"` // 每连接下行帧队列长度，满时断开该连接
	HandleLimit      int           `yaml:"handle_limit"`
}

// TransportConfig 客户端传输层配置
type TransportConfig struct {
	Type      string          `yaml:"type"` // unix, websocket
	Addr      string          `yaml:"addr"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

// WebSocketConfig WebSocket 配置
type WebSocketConfig struct {
	ReadBufferSize   int           `yaml:"read_buffer_size"`
	WriteBufferSize  int           `yaml:"write_buffer_size"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// ServiceConfig 服务端点配置
type ServiceConfig struct {
	Name        string `yaml:"name"`
	MaxSessions int    `yaml:"max_sessions"`
}

// QueueConfig 通知队列配置
type QueueConfig struct {
	Capacity int `yaml:"capacity"`
}

// StateConfig 服务状态初始数据
type StateConfig struct {
	Account        AccountConfig   `yaml:"account"`
	MyData         MyDataConfig    `yaml:"my_data"`
	FriendListPath string          `yaml:"friend_list_path"`
	Flags          map[string]bool `yaml:"flags"`
}

// AccountConfig 本机账号
type AccountConfig struct {
	LocalAccountID  uint32 `yaml:"local_account_id"`
	PrincipalID     uint32 `yaml:"principal_id"`
	LocalFriendCode uint64 `yaml:"local_friend_code"`
	NexPassword     string `yaml:"nex_password"`
	PrincipalIDHMAC string `yaml:"principal_id_hmac"`
	NascEnvironment uint8  `yaml:"nasc_environment"`
	ServerType1     uint8  `yaml:"server_type_1"`
	ServerType2     uint8  `yaml:"server_type_2"`
}

// MyDataConfig 本机用户资料
type MyDataConfig struct {
	NcPrincipalID   uint32        `yaml:"nc_principal_id"`
	PublicMode      bool          `yaml:"public_mode"`
	ShowGameMode    bool          `yaml:"show_game_mode"`
	ShowPlayedGame  bool          `yaml:"show_played_game"`
	FavoriteTitleID uint64        `yaml:"favorite_title_id"`
	FavoriteVersion uint32        `yaml:"favorite_version"`
	Comment         string        `yaml:"comment"`
	ScreenName      string        `yaml:"screen_name"`
	Profile         ProfileConfig `yaml:"profile"`
	MiiHex          string        `yaml:"mii_hex"`
}

// ProfileConfig 地区资料
type ProfileConfig struct {
	Region   uint8 `yaml:"region"`
	Country  uint8 `yaml:"country"`
	Area     uint8 `yaml:"area"`
	Language uint8 `yaml:"language"`
	Platform uint8 `yaml:"platform"`
}

// IntakeConfig 跨服务通知接入配置
type IntakeConfig struct {
	GRPCAddr  string      `yaml:"grpc_addr"`
	JWTSecret string      `yaml:"jwt_secret"`
	Kafka     KafkaConfig `yaml:"kafka"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	GroupID      string        `yaml:"group_id"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig 监控配置，指标挂在健康检查服务的 Path 上
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default 返回默认配置
func Default() *ServerConfig {
	return &ServerConfig{
		Server: BaseConfig{
			ID:               "frd-1",
			HealthAddr:       ":8081",
			HandshakeTimeout: 5 * time.Second,
			WriteTimeout:     5 * time.Second,
			SendQueueSize:    64,
			HandleLimit:      32,
		},
		Transport: TransportConfig{
			Type: "unix",
			Addr: "/tmp/frd.sock",
			WebSocket: WebSocketConfig{
				ReadBufferSize:   4096,
				WriteBufferSize:  4096,
				HandshakeTimeout: 10 * time.Second,
			},
		},
		Services: []ServiceConfig{
			{Name: "frd:u", MaxSessions: 8},
			{Name: "frd:a", MaxSessions: 8},
			{Name: "frd:n", MaxSessions: 2},
		},
		Queue: QueueConfig{Capacity: 64},
		State: StateConfig{
			Flags: map[string]bool{},
		},
		Intake: IntakeConfig{
			Kafka: KafkaConfig{
				Topic:        "frd-notifications",
				GroupID:      "frdsvc",
				BatchSize:    100,
				BatchTimeout: 10 * time.Millisecond,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load 加载 frd 服务配置，文件中未出现的字段保留默认值
func Load(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}

	return cfg, nil
}

// Validate 检查配置
func (c *ServerConfig) Validate() error {
	if len(c.Services) == 0 {
		return fmt.Errorf("no services configured")
	}
	seen := make(map[string]bool, len(c.Services))
	for _, svc := range c.Services {
		if svc.Name == "" {
			return fmt.Errorf("service with empty name")
		}
		if seen[svc.Name] {
			return fmt.Errorf("service %s configured twice", svc.Name)
		}
		if svc.MaxSessions <= 0 {
			return fmt.Errorf("service %s: max_sessions must be positive", svc.Name)
		}
		seen[svc.Name] = true
	}
	if c.Server.SendQueueSize <= 0 {
		return fmt.Errorf("send queue size must be positive")
	}
	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("queue capacity must be positive")
	}
	switch c.Transport.Type {
	case "unix", "websocket":
	default:
		return fmt.Errorf("unknown transport type %q", c.Transport.Type)
	}
	return nil
}
