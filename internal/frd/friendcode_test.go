package frd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiminjie89/frdsvc/internal/protocol"
)

func TestPrincipalIDToFriendCode(t *testing.T) {
	fc, err := PrincipalIDToFriendCode(0xaabbccdd)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x38aabbccdd), fc)

	_, err = PrincipalIDToFriendCode(0)
	assert.ErrorIs(t, err, protocol.ResultInvalidPrincipalID)
}

func TestFriendCodeValidation(t *testing.T) {
	assert.True(t, IsValidFriendCode(0x38aabbccdd))
	assert.False(t, IsValidFriendCode(0x40aabbccdd))
	assert.False(t, IsValidFriendCode(0))

	pid, err := FriendCodeToPrincipalID(0x38aabbccdd)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xaabbccdd), pid)

	_, err = FriendCodeToPrincipalID(0x40aabbccdd)
	assert.ErrorIs(t, err, protocol.ResultInvalidFriendCode)
}

func TestResultToErrorCode(t *testing.T) {
	tests := []struct {
		name   string
		in     uint32
		result protocol.ResultCode
		code   uint32
	}{
		{"other module", 0xD900182F, protocol.ResultInvalidErrorCode, 0},
		{"frd success", 0x0000C4E1, protocol.ResultSuccess, 0},
		{"frd 0x101", 0xC880C501, protocol.ResultSuccess, 0x59D8},
		{"frd other failure", uint32(protocol.ResultMissingData), protocol.ResultSuccess, 0x2710},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, code := ResultToErrorCode(tt.in)
			assert.Equal(t, tt.result, result)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestScrambledFriendCode(t *testing.T) {
	s := Scramble(0x38aabbccdd, 0x5A5A)
	parsed := ParseScrambledFriendCodes(s.AppendTo(nil))
	require.Len(t, parsed, 1)
	assert.Equal(t, uint64(0x38aabbccdd), parsed[0].Unscramble())
}
