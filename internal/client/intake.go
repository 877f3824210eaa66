package client

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/qiminjie89/frdsvc/internal/protocol"
)

// 与服务端 frd.NotificationIntake 对应的方法名
const (
	intakePushMethod  = "/frd.NotificationIntake/Push"
	intakePowerMethod = "/frd.NotificationIntake/Power"
)

// IntakeClient 通知接入服务的 gRPC 客户端
type IntakeClient struct {
	conn  *grpc.ClientConn
	token string
}

// NewIntakeClient 连接接入服务，token 非空时随每次调用放入 authorization 元数据
func NewIntakeClient(addr, token string) (*IntakeClient, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(protocol.CodecName)),
	)
	if err != nil {
		return nil, err
	}
	return &IntakeClient{conn: conn, token: token}, nil
}

func (c *IntakeClient) outgoing(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
}

// Push 推送一条通知
func (c *IntakeClient) Push(ctx context.Context, req *protocol.PushNotificationRequest) (*protocol.PushNotificationReply, error) {
	reply := new(protocol.PushNotificationReply)
	if err := c.conn.Invoke(c.outgoing(ctx), intakePushMethod, req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// Power 投递电源事件
func (c *IntakeClient) Power(ctx context.Context, req *protocol.PowerEventRequest) (*protocol.PowerEventReply, error) {
	reply := new(protocol.PowerEventReply)
	if err := c.conn.Invoke(c.outgoing(ctx), intakePowerMethod, req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// Close 关闭连接
func (c *IntakeClient) Close() error {
	return c.conn.Close()
}
