// Package protocol 定义 frd 服务的传输帧、命令号、通知类型和结果码
package protocol

// 客户端 ↔ 服务 传输帧类型
const (
	// 客户端 → 服务
	FrameConnect uint32 = 0x0001 // 连接服务（Payload 为服务名）
	FrameRequest uint32 = 0x0002 // IPC 命令请求
	FrameClose   uint32 = 0x0003 // 主动关闭会话

	// 服务 → 客户端
	FrameConnectAck uint32 = 0x1001 // 连接应答
	FrameReply      uint32 = 0x1002 // IPC 命令应答
	FrameSignal     uint32 = 0x1003 // 事件句柄被触发
)

// 服务名
const (
	ServiceFrdU = "frd:u"
	ServiceFrdA = "frd:a"
	ServiceFrdN = "frd:n"
)

// frd:u 命令号（frd:a 同样支持）
const (
	CmdHasLoggedIn               uint16 = 0x01
	CmdIsOnline                  uint16 = 0x02
	CmdLogin                     uint16 = 0x03
	CmdLogout                    uint16 = 0x04
	CmdGetMyFriendKey            uint16 = 0x05
	CmdGetMyPreference           uint16 = 0x06
	CmdGetMyProfile              uint16 = 0x07
	CmdGetMyPresence             uint16 = 0x08
	CmdGetMyScreenName           uint16 = 0x09
	CmdGetMyMii                  uint16 = 0x0A
	CmdGetMyLocalAccountID       uint16 = 0x0B
	CmdGetMyPlayingGame          uint16 = 0x0C
	CmdGetMyFavoriteGame         uint16 = 0x0D
	CmdGetMyNcPrincipalID        uint16 = 0x0E
	CmdGetMyComment              uint16 = 0x0F
	CmdGetMyPassword             uint16 = 0x10
	CmdGetFriendKeyList          uint16 = 0x11
	CmdGetFriendPresence         uint16 = 0x12
	CmdGetFriendScreenName       uint16 = 0x13
	CmdGetFriendMii              uint16 = 0x14
	CmdGetFriendProfile          uint16 = 0x15
	CmdGetFriendRelationship     uint16 = 0x16
	CmdGetFriendAttributeFlags   uint16 = 0x17
	CmdGetFriendPlayingGame      uint16 = 0x18
	CmdGetFriendFavoriteGame     uint16 = 0x19
	CmdGetFriendInfo             uint16 = 0x1A
	CmdIsIncludedInFriendList    uint16 = 0x1B
	CmdUnscrambleLocalFriendCode uint16 = 0x1C
	CmdUpdateGameModeDescription uint16 = 0x1D
	CmdUpdateGameMode            uint16 = 0x1E
	CmdSendInvitation            uint16 = 0x1F
	CmdAttachToEventNotification uint16 = 0x20
	CmdSetNotificationMask       uint16 = 0x21
	CmdGetEventNotification      uint16 = 0x22
	CmdGetLastResponseResult     uint16 = 0x23
	CmdPrincipalIDToFriendCode   uint16 = 0x24
	CmdFriendCodeToPrincipalID   uint16 = 0x25
	CmdIsValidFriendCode         uint16 = 0x26
	CmdResultToErrorCode         uint16 = 0x27
	CmdRequestGameAuthentication uint16 = 0x28
	CmdGetGameAuthenticationData uint16 = 0x29
	CmdRequestServiceLocator     uint16 = 0x2A
	CmdGetServiceLocatorData     uint16 = 0x2B
	CmdDetectNatProperties       uint16 = 0x2C
	CmdGetNatProperties          uint16 = 0x2D
	CmdGetServerTimeInterval     uint16 = 0x2E
	CmdAllowHalfAwake            uint16 = 0x2F
	CmdGetServerTypes            uint16 = 0x30
	CmdGetFriendComment          uint16 = 0x31
	CmdSetClientSdkVersion       uint16 = 0x32
	CmdGetMyApproachContext      uint16 = 0x33
	CmdAddFriendWithApproach     uint16 = 0x34
	CmdDecryptApproachContext    uint16 = 0x35
	CmdGetExtendedNatProperties  uint16 = 0x36
)

// frd:a 独有命令号
const (
	CmdCreateLocalAccount uint16 = 0x401
	CmdHasUserData        uint16 = 0x405
	CmdSetPresenceGameKey uint16 = 0x40A
	CmdSetMyData          uint16 = 0x40C
)

// frd:n 命令号
const (
	CmdGetWiFiEvent       uint16 = 0x01
	CmdConnectToWiFi      uint16 = 0x02
	CmdDisconnectFromWiFi uint16 = 0x03
	CmdGetWiFiState       uint16 = 0x04
)

// NotificationKind 通知类型
type NotificationKind uint8

const (
	NotifyUserWentOnline        NotificationKind = 1 // 本机用户上线
	NotifyUserWentOffline       NotificationKind = 2 // 本机用户下线
	NotifyFriendWentOnline      NotificationKind = 3 // 好友上线
	NotifyFriendUpdatedPresence NotificationKind = 4 // 好友在线状态更新
	NotifyFriendUpdatedMii      NotificationKind = 5 // 好友 Mii 更新
	NotifyFriendUpdatedProfile  NotificationKind = 6 // 好友资料更新
	NotifyFriendWentOffline     NotificationKind = 7 // 好友下线
	NotifyFriendRegisteredUser  NotificationKind = 8 // 好友添加了本机用户
	NotifyFriendSentInvitation  NotificationKind = 9 // 好友发送邀请
)

// MaxNotificationKind 最大通知类型
const MaxNotificationKind = NotifyFriendSentInvitation

// Valid 检查通知类型是否有效
func (k NotificationKind) Valid() bool {
	return k >= NotifyUserWentOnline && k <= MaxNotificationKind
}

// String 返回通知类型名称
func (k NotificationKind) String() string {
	switch k {
	case NotifyUserWentOnline:
		return "user_went_online"
	case NotifyUserWentOffline:
		return "user_went_offline"
	case NotifyFriendWentOnline:
		return "friend_went_online"
	case NotifyFriendUpdatedPresence:
		return "friend_updated_presence"
	case NotifyFriendUpdatedMii:
		return "friend_updated_mii"
	case NotifyFriendUpdatedProfile:
		return "friend_updated_profile"
	case NotifyFriendWentOffline:
		return "friend_went_offline"
	case NotifyFriendRegisteredUser:
		return "friend_registered_user"
	case NotifyFriendSentInvitation:
		return "friend_sent_invitation"
	default:
		return "unknown"
	}
}

// PowerEvent 电源管理通知
type PowerEvent uint32

const (
	PowerSleepRequested PowerEvent = 0x101 // 请求休眠
	PowerGoingToSleep   PowerEvent = 0x104 // 即将休眠
	PowerFullyWakingUp  PowerEvent = 0x107 // 完全唤醒
	PowerTermination    PowerEvent = 0x100 // 系统关机
)

// String 返回电源事件名称
func (e PowerEvent) String() string {
	switch e {
	case PowerSleepRequested:
		return "sleep_requested"
	case PowerGoingToSleep:
		return "going_to_sleep"
	case PowerFullyWakingUp:
		return "fully_waking_up"
	case PowerTermination:
		return "termination"
	default:
		return "unknown"
	}
}
