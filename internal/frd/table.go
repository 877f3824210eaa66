package frd

import (
	"github.com/qiminjie89/frdsvc/internal/ipc"
	"github.com/qiminjie89/frdsvc/internal/protocol"
)

// ProtocolVersion 命令表版本，命令或形状变化时递增
const ProtocolVersion = 3

// Table 命令表，按命令 ID 索引，构造后只读
type Table map[uint16]*Handler

// Get 查找命令
func (t Table) Get(id uint16) (*Handler, bool) {
	h, ok := t[id]
	return h, ok
}

type param struct {
	kind ipc.Kind
	id   uint8
}

var (
	pHandle = param{kind: ipc.KindHandle}
	pPID    = param{kind: ipc.KindProcessID}
	pS0     = param{kind: ipc.KindStaticBuffer, id: 0}
	pS1     = param{kind: ipc.KindStaticBuffer, id: 1}
	pMapped = param{kind: ipc.KindMappedBuffer}
)

func shape(normal int, params ...param) Shape {
	s := Shape{Normal: normal}
	for _, p := range params {
		s.Translate = append(s.Translate, p.kind)
		if p.kind == ipc.KindStaticBuffer {
			s.StaticIDs = append(s.StaticIDs, p.id)
		}
	}
	return s
}

func cmd(id uint16, name string, req, resp Shape, fn HandlerFunc) *Handler {
	return &Handler{ID: id, Name: name, Request: req, Response: resp, Fn: fn}
}

func uncertain(id uint16, name string, resp Shape, fn HandlerFunc) *Handler {
	return &Handler{ID: id, Name: name, Response: resp, Uncertain: true, Fn: fn}
}

// userCommands frd:u 命令
func userCommands() []*Handler {
	return []*Handler{
		cmd(protocol.CmdHasLoggedIn, "HasLoggedIn", shape(0), shape(2), hasLoggedIn),
		cmd(protocol.CmdIsOnline, "IsOnline", shape(0), shape(2), isOnline),
		cmd(protocol.CmdLogin, "Login", shape(0, pHandle), shape(1), login),
		cmd(protocol.CmdLogout, "Logout", shape(0), shape(1), logout),
		cmd(protocol.CmdGetMyFriendKey, "GetMyFriendKey", shape(0), shape(5), getMyFriendKey),
		cmd(protocol.CmdGetMyPreference, "GetMyPreference", shape(0), shape(4), getMyPreference),
		cmd(protocol.CmdGetMyProfile, "GetMyProfile", shape(0), shape(3), getMyProfile),
		cmd(protocol.CmdGetMyPresence, "GetMyPresence", shape(0), shape(1, pS0), getMyPresence),
		cmd(protocol.CmdGetMyScreenName, "GetMyScreenName", shape(0), shape(7), getMyScreenName),
		cmd(protocol.CmdGetMyMii, "GetMyMii", shape(0), shape(25), getMyMii),
		cmd(protocol.CmdGetMyLocalAccountID, "GetMyLocalAccountID", shape(0), shape(2), getMyLocalAccountID),
		cmd(protocol.CmdGetMyPlayingGame, "GetMyPlayingGame", shape(0), shape(5), getMyPlayingGame),
		cmd(protocol.CmdGetMyFavoriteGame, "GetMyFavoriteGame", shape(0), shape(5), getMyFavoriteGame),
		cmd(protocol.CmdGetMyNcPrincipalID, "GetMyNcPrincipalID", shape(0), shape(2), getMyNcPrincipalID),
		cmd(protocol.CmdGetMyComment, "GetMyComment", shape(0), shape(10), getMyComment),
		cmd(protocol.CmdGetMyPassword, "GetMyPassword", shape(1), shape(1, pS0), getMyPassword),
		cmd(protocol.CmdGetFriendKeyList, "GetFriendKeyList", shape(2), shape(2, pS0), getFriendKeyList),
		cmd(protocol.CmdGetFriendPresence, "GetFriendPresence", shape(1, pS0), shape(1, pS0), getFriendPresence),
		cmd(protocol.CmdGetFriendScreenName, "GetFriendScreenName", shape(5, pS0), shape(1, pS0, pS1), getFriendScreenName),
		cmd(protocol.CmdGetFriendMii, "GetFriendMii", shape(1, pS0, pMapped), shape(1, pMapped), getFriendMii),
		cmd(protocol.CmdGetFriendProfile, "GetFriendProfile", shape(1, pS0), shape(1, pS0), getFriendProfile),
		cmd(protocol.CmdGetFriendRelationship, "GetFriendRelationship", shape(1, pS0), shape(1, pS0), getFriendRelationship),
		cmd(protocol.CmdGetFriendAttributeFlags, "GetFriendAttributeFlags", shape(1, pS0), shape(1, pS0), getFriendAttributeFlags),
		cmd(protocol.CmdGetFriendPlayingGame, "GetFriendPlayingGame", shape(1, pS0, pMapped), shape(1, pMapped), getFriendPlayingGame),
		cmd(protocol.CmdGetFriendFavoriteGame, "GetFriendFavoriteGame", shape(1, pS0), shape(1, pS0), getFriendFavoriteGame),
		cmd(protocol.CmdGetFriendInfo, "GetFriendInfo", shape(3, pS0, pMapped), shape(1, pMapped), getFriendInfo),
		cmd(protocol.CmdIsIncludedInFriendList, "IsIncludedInFriendList", shape(2), shape(2), isIncludedInFriendList),
		cmd(protocol.CmdUnscrambleLocalFriendCode, "UnscrambleLocalFriendCode", shape(1, pS1), shape(1, pS0), unscrambleLocalFriendCode),
		cmd(protocol.CmdUpdateGameModeDescription, "UpdateGameModeDescription", shape(0, pS0), shape(1), updateGameModeDescription),
		uncertain(protocol.CmdUpdateGameMode, "UpdateGameMode", shape(1), updateGameMode),
		cmd(protocol.CmdSendInvitation, "SendInvitation", shape(1, pS0), shape(1), sendInvitation),
		cmd(protocol.CmdAttachToEventNotification, "AttachToEventNotification", shape(0, pHandle), shape(1), attachToEventNotification),
		cmd(protocol.CmdSetNotificationMask, "SetNotificationMask", shape(1), shape(1), setNotificationMask),
		cmd(protocol.CmdGetEventNotification, "GetEventNotification", shape(1, pMapped), shape(3, pMapped), getEventNotification),
		cmd(protocol.CmdGetLastResponseResult, "GetLastResponseResult", shape(0), shape(1), getLastResponseResult),
		cmd(protocol.CmdPrincipalIDToFriendCode, "PrincipalIDToFriendCode", shape(1), shape(3), principalIDToFriendCode),
		cmd(protocol.CmdFriendCodeToPrincipalID, "FriendCodeToPrincipalID", shape(2), shape(2), friendCodeToPrincipalID),
		cmd(protocol.CmdIsValidFriendCode, "IsValidFriendCode", shape(2), shape(2), isValidFriendCode),
		cmd(protocol.CmdResultToErrorCode, "ResultToErrorCode", shape(1), shape(2), resultToErrorCode),
		cmd(protocol.CmdRequestGameAuthentication, "RequestGameAuthentication", shape(9, pPID, pHandle), shape(1), requestGameAuthentication),
		cmd(protocol.CmdGetGameAuthenticationData, "GetGameAuthenticationData", shape(0), shape(1, pS0), getGameAuthenticationData),
		cmd(protocol.CmdRequestServiceLocator, "RequestServiceLocator", shape(8, pPID, pHandle), shape(1), requestServiceLocator),
		cmd(protocol.CmdGetServiceLocatorData, "GetServiceLocatorData", shape(0), shape(1, pS0), getServiceLocatorData),
		cmd(protocol.CmdDetectNatProperties, "DetectNatProperties", shape(0, pHandle), shape(1), detectNatProperties),
		cmd(protocol.CmdGetNatProperties, "GetNatProperties", shape(0), shape(3), getNatProperties),
		cmd(protocol.CmdGetServerTimeInterval, "GetServerTimeInterval", shape(0), shape(3), getServerTimeInterval),
		cmd(protocol.CmdAllowHalfAwake, "AllowHalfAwake", shape(1), shape(1), allowHalfAwake),
		cmd(protocol.CmdGetServerTypes, "GetServerTypes", shape(0), shape(4), getServerTypes),
		cmd(protocol.CmdGetFriendComment, "GetFriendComment", shape(2, pS0), shape(1, pS0), getFriendComment),
		cmd(protocol.CmdSetClientSdkVersion, "SetClientSdkVersion", shape(1, pPID), shape(1), setClientSdkVersion),
		cmd(protocol.CmdGetMyApproachContext, "GetMyApproachContext", shape(0), shape(1), getMyApproachContext),
		uncertain(protocol.CmdAddFriendWithApproach, "AddFriendWithApproach", shape(1), addFriendWithApproach),
		uncertain(protocol.CmdDecryptApproachContext, "DecryptApproachContext", shape(1), decryptApproachContext),
		cmd(protocol.CmdGetExtendedNatProperties, "GetExtendedNatProperties", shape(0), shape(4), getExtendedNatProperties),
	}
}

// adminCommands frd:a 独有命令
func adminCommands() []*Handler {
	return []*Handler{
		uncertain(protocol.CmdCreateLocalAccount, "CreateLocalAccount", shape(1), createLocalAccount),
		cmd(protocol.CmdHasUserData, "HasUserData", shape(0), shape(1), hasUserData),
		cmd(protocol.CmdSetPresenceGameKey, "SetPresenceGameKey", shape(4), shape(1), setPresenceGameKey),
		uncertain(protocol.CmdSetMyData, "SetMyData", shape(1), setMyData),
	}
}

// ndmCommands frd:n 命令
func ndmCommands() []*Handler {
	return []*Handler{
		cmd(protocol.CmdGetWiFiEvent, "GetWiFiEvent", shape(0), shape(1, pHandle), getWiFiEvent),
		cmd(protocol.CmdConnectToWiFi, "ConnectToWiFi", shape(0), shape(1), connectToWiFi),
		cmd(protocol.CmdDisconnectFromWiFi, "DisconnectFromWiFi", shape(1), shape(1), disconnectFromWiFi),
		cmd(protocol.CmdGetWiFiState, "GetWiFiState", shape(0), shape(2), getWiFiState),
	}
}

func newTable(groups ...[]*Handler) Table {
	t := make(Table)
	for _, g := range groups {
		for _, h := range g {
			t[h.ID] = h
		}
	}
	return t
}

var tables = map[string]Table{
	protocol.ServiceFrdU: newTable(userCommands()),
	protocol.ServiceFrdA: newTable(userCommands(), adminCommands()),
	protocol.ServiceFrdN: newTable(ndmCommands()),
}

// TableFor 返回服务的命令表
func TableFor(service string) (Table, bool) {
	t, ok := tables[service]
	return t, ok
}

// Services 返回全部服务名
func Services() []string {
	return []string{protocol.ServiceFrdU, protocol.ServiceFrdA, protocol.ServiceFrdN}
}
