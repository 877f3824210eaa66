package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/qiminjie89/frdsvc/internal/frd"
	"github.com/qiminjie89/frdsvc/internal/protocol"
	"github.com/qiminjie89/frdsvc/pkg/auth"
	"github.com/qiminjie89/frdsvc/pkg/config"
	"github.com/qiminjie89/frdsvc/pkg/kafka"
	"github.com/qiminjie89/frdsvc/pkg/logger"
	"github.com/qiminjie89/frdsvc/pkg/metrics"
)

// 接入服务的 gRPC 名称
const (
	IntakeServiceName = "frd.NotificationIntake"
	IntakePushMethod  = "/" + IntakeServiceName + "/Push"
	IntakePowerMethod = "/" + IntakeServiceName + "/Power"
)

// 接入来源
const (
	sourceGRPC  = "grpc"
	sourceKafka = "kafka"
)

// ErrInvalidKind 通知类型无效
var ErrInvalidKind = errors.New("invalid notification kind")

// PowerController 电源事件的处理方（Server）
type PowerController interface {
	PowerEvent(ctx context.Context, ev protocol.PowerEvent) error
}

// IntakeServer 接入服务接口，供 gRPC 分发使用
type IntakeServer interface {
	Push(ctx context.Context, req *protocol.PushNotificationRequest) (*protocol.PushNotificationReply, error)
	Power(ctx context.Context, req *protocol.PowerEventRequest) (*protocol.PowerEventReply, error)
}

// Intake 跨服务通知接入层
// gRPC 与 Kafka 两个入口共用同一套处理逻辑：通知写入队列，电源事件交给主循环
type Intake struct {
	cfg       config.IntakeConfig
	queue     *frd.Queue
	power     PowerController
	validator *auth.JWTValidator

	grpcServer *grpc.Server
	listener   net.Listener
	consumer   *kafka.Consumer
}

// NewIntake 创建接入层，JWTSecret 为空时 gRPC 入口不做鉴权
func NewIntake(queue *frd.Queue, power PowerController, cfg config.IntakeConfig) *Intake {
	in := &Intake{
		cfg:   cfg,
		queue: queue,
		power: power,
	}
	if cfg.JWTSecret != "" {
		in.validator = auth.NewJWTValidator(cfg.JWTSecret)
	}
	return in
}

// Start 启动 gRPC 服务与 Kafka 消费，ctx 取消后二者都退出
func (in *Intake) Start(ctx context.Context, wg *sync.WaitGroup) error {
	if in.cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", in.cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen grpc %s: %w", in.cfg.GRPCAddr, err)
		}
		in.listener = lis
		in.grpcServer = grpc.NewServer(
			grpc.UnaryInterceptor(in.authInterceptor),
			grpc.KeepaliveParams(keepalive.ServerParameters{
				Time:    10 * time.Second,
				Timeout: 3 * time.Second,
			}),
			grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
				MinTime:             5 * time.Second,
				PermitWithoutStream: true,
			}),
		)
		in.grpcServer.RegisterService(&intakeServiceDesc, in)

		logger.Info("starting intake grpc server",
			zap.String("addr", lis.Addr().String()),
			zap.Bool("auth", in.validator != nil),
		)

		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := in.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				logger.Error("intake grpc server error", zap.Error(err))
			}
		}()
		go func() {
			defer wg.Done()
			<-ctx.Done()
			in.grpcServer.GracefulStop()
		}()
	}

	consumer, err := kafka.NewConsumer(in.cfg.Kafka)
	switch {
	case errors.Is(err, kafka.ErrNotConfigured):
		logger.Info("kafka intake disabled")
	case err != nil:
		return fmt.Errorf("create kafka consumer: %w", err)
	default:
		in.consumer = consumer
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Start(ctx, func(msg *kafka.Message) error {
				return in.handleKafkaMessage(ctx, msg)
			})
			if err := consumer.Close(); err != nil {
				logger.Warn("close kafka consumer failed", zap.Error(err))
			}
		}()
	}
	return nil
}

// Addr 返回 gRPC 实际监听地址，未启用时为空
func (in *Intake) Addr() string {
	if in.listener == nil {
		return ""
	}
	return in.listener.Addr().String()
}

// KafkaEnabled 是否启用了 Kafka 入口
func (in *Intake) KafkaEnabled() bool {
	return in.consumer != nil
}

// KafkaConnected Kafka 消费者是否连通
func (in *Intake) KafkaConnected() bool {
	return in.consumer != nil && in.consumer.IsConnected()
}

// Push 推送一条通知
func (in *Intake) Push(_ context.Context, req *protocol.PushNotificationRequest) (*protocol.PushNotificationReply, error) {
	n, err := in.push(req, sourceGRPC)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return &protocol.PushNotificationReply{Seq: n.Seq, Code: uint32(protocol.ResultSuccess)}, nil
}

// Power 投递电源事件，未知事件返回 Accepted=false
func (in *Intake) Power(ctx context.Context, req *protocol.PowerEventRequest) (*protocol.PowerEventReply, error) {
	err := in.applyPower(ctx, req, sourceGRPC)
	switch {
	case err == nil:
		return &protocol.PowerEventReply{Accepted: true}, nil
	case errors.Is(err, ErrStopped):
		return nil, status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, status.FromContextError(err).Err()
	default:
		return &protocol.PowerEventReply{Accepted: false}, nil
	}
}

func (in *Intake) push(req *protocol.PushNotificationRequest, source string) (frd.Notification, error) {
	kind := protocol.NotificationKind(req.Kind)
	if !kind.Valid() {
		metrics.IntakeRejected.WithLabelValues("invalid_kind").Inc()
		return frd.Notification{}, fmt.Errorf("%w: %d", ErrInvalidKind, req.Kind)
	}

	n := in.queue.Push(kind, frd.FriendKey{
		PrincipalID:     req.PrincipalID,
		LocalFriendCode: req.LocalFriendCode,
	})
	metrics.IntakeMessages.WithLabelValues(source, protocol.IntakeTypeNotification).Inc()

	logger.Debug("notification pushed",
		zap.String("source", source),
		zap.String("origin", req.Source),
		zap.String("kind", kind.String()),
		zap.Uint32("principal_id", req.PrincipalID),
		zap.Uint64("seq", n.Seq),
	)
	return n, nil
}

func (in *Intake) applyPower(ctx context.Context, req *protocol.PowerEventRequest, source string) error {
	ev := protocol.PowerEvent(req.Event)
	metrics.IntakeMessages.WithLabelValues(source, protocol.IntakeTypePower).Inc()
	if err := in.power.PowerEvent(ctx, ev); err != nil {
		logger.Warn("power event rejected",
			zap.String("source", source),
			zap.String("origin", req.Source),
			zap.Uint32("event", req.Event),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// handleKafkaMessage 处理 Kafka 接入消息
// 返回错误只用于记录，offset 照常提交
func (in *Intake) handleKafkaMessage(ctx context.Context, msg *kafka.Message) error {
	var m protocol.IntakeMessage
	if err := protocol.Decode(msg.Value, &m); err != nil {
		metrics.IntakeRejected.WithLabelValues("decode").Inc()
		return fmt.Errorf("decode intake message at offset %d: %w", msg.Offset, err)
	}

	switch m.Type {
	case protocol.IntakeTypeNotification:
		if m.Notification == nil {
			metrics.IntakeRejected.WithLabelValues("missing_body").Inc()
			return errors.New("notification message without body")
		}
		_, err := in.push(m.Notification, sourceKafka)
		return err

	case protocol.IntakeTypePower:
		if m.Power == nil {
			metrics.IntakeRejected.WithLabelValues("missing_body").Inc()
			return errors.New("power message without body")
		}
		return in.applyPower(ctx, m.Power, sourceKafka)

	default:
		metrics.IntakeRejected.WithLabelValues("unknown_type").Inc()
		return fmt.Errorf("unknown intake message type %q", m.Type)
	}
}

// authInterceptor 校验 authorization 元数据中的 JWT 及方法对应的 scope
func (in *Intake) authInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if in.validator == nil {
		return handler(ctx, req)
	}

	scope := auth.ScopePush
	if info.FullMethod == IntakePowerMethod {
		scope = auth.ScopePower
	}

	md, _ := metadata.FromIncomingContext(ctx)
	tokens := md.Get("authorization")
	if len(tokens) == 0 {
		metrics.IntakeRejected.WithLabelValues("unauthenticated").Inc()
		return nil, status.Error(codes.Unauthenticated, "missing authorization token")
	}

	claims, err := in.validator.Authorize(tokens[0], scope)
	if err != nil {
		if errors.Is(err, auth.ErrMissingScope) {
			metrics.IntakeRejected.WithLabelValues("permission_denied").Inc()
			return nil, status.Error(codes.PermissionDenied, err.Error())
		}
		metrics.IntakeRejected.WithLabelValues("unauthenticated").Inc()
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	logger.Debug("intake call authorized",
		zap.String("service", claims.Service),
		zap.String("method", info.FullMethod),
	)
	return handler(ctx, req)
}

func intakePushHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(protocol.PushNotificationRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IntakeServer).Push(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: IntakePushMethod}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(IntakeServer).Push(ctx, req.(*protocol.PushNotificationRequest))
	})
}

func intakePowerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(protocol.PowerEventRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IntakeServer).Power(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: IntakePowerMethod}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(IntakeServer).Power(ctx, req.(*protocol.PowerEventRequest))
	})
}

// intakeServiceDesc 接入服务描述，消息体走 msgpack 编解码
var intakeServiceDesc = grpc.ServiceDesc{
	ServiceName: IntakeServiceName,
	HandlerType: (*IntakeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Push", Handler: intakePushHandler},
		{MethodName: "Power", Handler: intakePowerHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "frd/intake",
}

var _ IntakeServer = (*Intake)(nil)
