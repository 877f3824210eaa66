package protocol

// ========== 其他系统服务 → frd（通知接入） ==========

// 接入消息类型
const (
	IntakeTypeNotification = "notification"
	IntakeTypePower        = "power"
)

// IntakeMessage Kafka 接入消息（msgpack 编码）
type IntakeMessage struct {
	Type         string                   `msgpack:"type"`
	Notification *PushNotificationRequest `msgpack:"notification,omitempty"`
	Power        *PowerEventRequest       `msgpack:"power,omitempty"`
}

// PushNotificationRequest 推送通知请求
type PushNotificationRequest struct {
	Kind            uint8  `msgpack:"kind"`
	PrincipalID     uint32 `msgpack:"principal_id"`
	LocalFriendCode uint64 `msgpack:"local_friend_code"`
	Source          string `msgpack:"source,omitempty"`
}

// PushNotificationReply 推送通知应答
type PushNotificationReply struct {
	Seq  uint64 `msgpack:"seq"`
	Code uint32 `msgpack:"code"`
}

// PowerEventRequest 电源事件请求
type PowerEventRequest struct {
	Event  uint32 `msgpack:"event"`
	Source string `msgpack:"source,omitempty"`
}

// PowerEventReply 电源事件应答
type PowerEventReply struct {
	Accepted bool `msgpack:"accepted"`
}
