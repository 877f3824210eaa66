// Package protocol 定义结果码
package protocol

import "fmt"

// ResultCode 平台结果码（0 为成功）
type ResultCode uint32

// 结果码定义
const (
	ResultSuccess ResultCode = 0

	// IPC 层错误
	ResultInvalidCommand   ResultCode = 0xD900182F // 未实现的命令
	ResultInvalidArguments ResultCode = 0xD9001830 // 参数/缓冲区格式错误
	ResultOutOfSessions    ResultCode = 0xD0401834 // 会话数已达上限
	ResultOutOfResource    ResultCode = 0xD8601837 // 句柄等资源耗尽
	ResultNotRegistered    ResultCode = 0xD88007FA // 服务未注册

	// frd 模块错误
	ResultInvalidPointer       ResultCode = 0xE0E0C7F6
	ResultInvalidPrincipalID   ResultCode = 0xE0E0C4EB
	ResultInvalidFriendCode    ResultCode = 0xE0E0C401
	ResultInvalidErrorCode     ResultCode = 0xE0E0C403
	ResultInvalidSaveFile      ResultCode = 0xD960C4F4
	ResultInvalidAccountFile   ResultCode = 0xC880C4ED
	ResultMissingData          ResultCode = 0xC8A0C7EF
	ResultGameModeNotAvailable ResultCode = 0x0000C4E1 // UpdateGameMode 固定返回值
)

// ResultName 结果码对应的名称
var ResultName = map[ResultCode]string{
	ResultSuccess:              "success",
	ResultInvalidCommand:       "invalid_command",
	ResultInvalidArguments:     "invalid_arguments",
	ResultOutOfSessions:        "out_of_sessions",
	ResultOutOfResource:        "out_of_resource",
	ResultNotRegistered:        "not_registered",
	ResultInvalidPointer:       "invalid_pointer",
	ResultInvalidPrincipalID:   "invalid_principal_id",
	ResultInvalidFriendCode:    "invalid_friend_code",
	ResultInvalidErrorCode:     "invalid_error_code",
	ResultInvalidSaveFile:      "invalid_save_file",
	ResultInvalidAccountFile:   "invalid_account_file",
	ResultMissingData:          "missing_data",
	ResultGameModeNotAvailable: "game_mode_not_available",
}

// Error 实现 error 接口，便于 handler 直接返回结果码
func (r ResultCode) Error() string {
	return fmt.Sprintf("result 0x%08X (%s)", uint32(r), r.Name())
}

// Name 返回结果码名称
func (r ResultCode) Name() string {
	if name, ok := ResultName[r]; ok {
		return name
	}
	return "unknown"
}

// IsSuccess 判断是否成功（最高位为 0）
func (r ResultCode) IsSuccess() bool {
	return int32(r) >= 0
}

// Module 返回结果码中的模块号（bit 10-17）
func (r ResultCode) Module() uint32 {
	return (uint32(r) >> 10) & 0xFF
}
