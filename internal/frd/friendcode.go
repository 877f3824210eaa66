package frd

import (
	"crypto/sha1"
	"encoding/binary"

	"github.com/qiminjie89/frdsvc/internal/protocol"
)

// PrincipalIDToFriendCode 由 principal id 计算好友码
// 好友码低 32 位为 principal id，bit 32-39 为 sha1(principal_id LE) 首字节右移一位
func PrincipalIDToFriendCode(principalID uint32) (uint64, error) {
	if principalID == 0 {
		return 0, protocol.ResultInvalidPrincipalID
	}

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], principalID)
	hash := sha1.Sum(buf[:])

	return uint64(hash[0]>>1)<<32 | uint64(principalID), nil
}

// IsValidFriendCode 校验好友码
func IsValidFriendCode(friendCode uint64) bool {
	if friendCode == 0 {
		return false
	}
	expected, err := PrincipalIDToFriendCode(uint32(friendCode))
	if err != nil {
		return false
	}
	return expected == friendCode
}

// FriendCodeToPrincipalID 由好友码取回 principal id
func FriendCodeToPrincipalID(friendCode uint64) (uint32, error) {
	if !IsValidFriendCode(friendCode) {
		return 0, protocol.ResultInvalidFriendCode
	}
	return uint32(friendCode), nil
}

// frd 模块号
const frdModule = 0x31

// ResultToErrorCode 将 frd 模块结果码转换为面向用户的错误码
// 非 frd 模块返回 InvalidErrorCode
func ResultToErrorCode(result uint32) (protocol.ResultCode, uint32) {
	code := int32(result)
	switch {
	case (code>>10)&0xFF != frdModule:
		return protocol.ResultInvalidErrorCode, 0
	case code >= 0:
		return protocol.ResultSuccess, 0
	case code&0x3FF == 0x101:
		return protocol.ResultSuccess, 0x59D8
	default:
		return protocol.ResultSuccess, 0x2710
	}
}
