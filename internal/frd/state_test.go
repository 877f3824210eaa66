package frd

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiminjie89/frdsvc/internal/ipc"
	"github.com/qiminjie89/frdsvc/internal/protocol"
	"github.com/qiminjie89/frdsvc/pkg/config"
)

func TestNewServiceStateDerivesFriendCode(t *testing.T) {
	state, err := NewServiceState(config.StateConfig{
		Account: config.AccountConfig{PrincipalID: 0xaabbccdd},
		MyData:  config.MyDataConfig{ScreenName: "Alice", Comment: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x38aabbccdd), state.Account.LocalFriendCode)
	assert.Equal(t, "Alice", state.MyData.ScreenName.String())
	assert.Equal(t, LoginOffline, state.Login)
}

func TestNewServiceStateRejectsBadMii(t *testing.T) {
	_, err := NewServiceState(config.StateConfig{
		MyData: config.MyDataConfig{MiiHex: "abcd"},
	})
	assert.Error(t, err)
}

func TestParseFriendList(t *testing.T) {
	data := []byte(`
friends:
  - principal_id: 0xaabbccdd
    relationship: 3
    screen_name: Bob
    character_set: 2
    profile:
      region: 1
      country: 49
    favorite_game:
      title_id: 0x0004000000055D00
      version: 1
  - principal_id: 42
    local_friend_code: 0x1234
`)
	friends, err := ParseFriendList(data)
	require.NoError(t, err)
	require.Len(t, friends, 2)

	assert.Equal(t, uint64(0x38aabbccdd), friends[0].Key.LocalFriendCode)
	assert.Equal(t, "Bob", friends[0].ScreenName.String())
	assert.Equal(t, uint8(49), friends[0].Profile.Country)
	assert.Equal(t, uint64(0x0004000000055D00), friends[0].FavoriteGame.TitleID)
	assert.Equal(t, uint64(0x1234), friends[1].Key.LocalFriendCode)
}

func TestParseFriendListErrors(t *testing.T) {
	_, err := ParseFriendList([]byte("friends:\n  - relationship: 1\n"))
	assert.True(t, errors.Is(err, protocol.ResultInvalidPrincipalID))

	var b strings.Builder
	b.WriteString("friends:\n")
	for i := range MaxFriendCount + 1 {
		fmt.Fprintf(&b, "  - principal_id: %d\n", i+1)
	}
	_, err = ParseFriendList([]byte(b.String()))
	assert.ErrorIs(t, err, ErrTooManyFriends)
}

func TestSleepWake(t *testing.T) {
	state, err := NewServiceState(config.StateConfig{})
	require.NoError(t, err)

	assert.False(t, state.Sleep(), "offline stays offline")
	assert.False(t, state.Wake())

	state.Login = LoginOnlineWithGame
	assert.True(t, state.Sleep())
	assert.Equal(t, LoginOffline, state.Login)
	assert.False(t, state.Sleep(), "second sleep ignored")

	assert.True(t, state.Wake())
	assert.Equal(t, LoginOnlineWithGame, state.Login)
}

func TestWiFiStateTable(t *testing.T) {
	cases := []struct {
		ndm    uint8
		status WiFiConnectionStatus
		want   uint32
	}{
		{0, WiFiIdle, 3},
		{0, WiFiConnecting, 2},
		{1, WiFiConnected, 2},
		{1, WiFiDisconnecting, 2},
		{2, WiFiIdle, 1},
		{2, WiFiConnected, 0},
		{3, WiFiConnected, 3},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, WiFiState(tc.ndm, tc.status), "ndm=%d status=%d", tc.ndm, tc.status)
	}
}

type failingAP struct{}

func (failingAP) QuickConnect() error { return errors.New("no access point") }
func (failingAP) Disconnect() error   { return nil }

func TestWiFiCommands(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdN, config.StateConfig{})

	resp := e.call(ipc.NewBuilder(0x01).Request())
	require.Equal(t, protocol.ResultSuccess, resp.Result)
	wifiHandle := resp.Translate[0].Handles[0]
	assert.NotZero(t, wifiHandle)

	// 同一事件重复获取得到同一句柄
	resp = e.call(ipc.NewBuilder(0x01).Request())
	assert.Equal(t, wifiHandle, resp.Translate[0].Handles[0])

	resp = e.call(ipc.NewBuilder(0x04).Request())
	assert.Equal(t, []uint32{3}, resp.Normal)

	resp = e.call(ipc.NewBuilder(0x02).Request())
	require.Equal(t, protocol.ResultSuccess, resp.Result)
	assert.Equal(t, WiFiConnected, e.state.WiFi.Status)
	assert.Contains(t, e.sig.handles, wifiHandle)

	resp = e.call(ipc.NewBuilder(0x04).Request())
	assert.Equal(t, []uint32{0}, resp.Normal)

	e.sig.handles = nil
	resp = e.call(ipc.NewBuilder(0x03).Push(1).Request())
	require.Equal(t, protocol.ResultSuccess, resp.Result)
	assert.Equal(t, WiFiIdle, e.state.WiFi.Status)
	assert.Equal(t, uint8(0), e.state.WiFi.NdmState)
	assert.NotEmpty(t, e.sig.handles)
}

func TestConnectWiFiFailureRestoresIdle(t *testing.T) {
	state, err := NewServiceState(config.StateConfig{})
	require.NoError(t, err)
	state.WiFi.AccessPoint = failingAP{}

	assert.Error(t, state.ConnectWiFi())
	assert.Equal(t, WiFiIdle, state.WiFi.Status)
	assert.Equal(t, uint32(1), state.WiFi.State())
}
