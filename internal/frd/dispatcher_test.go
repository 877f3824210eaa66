package frd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiminjie89/frdsvc/internal/ipc"
	"github.com/qiminjie89/frdsvc/internal/kernel"
	"github.com/qiminjie89/frdsvc/internal/protocol"
	"github.com/qiminjie89/frdsvc/pkg/config"
)

type signals struct {
	handles []uint32
}

func (s *signals) Notify(handle uint32) {
	s.handles = append(s.handles, handle)
}

type env struct {
	d     *Dispatcher
	sess  *Session
	state *ServiceState
	queue *Queue
	sig   *signals
}

func newEnv(t *testing.T, service string, cfg config.StateConfig) *env {
	t.Helper()
	state, err := NewServiceState(cfg)
	require.NoError(t, err)
	queue := NewQueue(8)
	d, err := NewDispatcher(service, queue)
	require.NoError(t, err)

	sig := &signals{}
	sess := NewSession(0, service, "test", kernel.NewHandleTable(0, sig), queue.Head())
	sess.ProcessID = 0x20
	return &env{d: d, sess: sess, state: state, queue: queue, sig: sig}
}

func (e *env) call(req *ipc.Request) *ipc.Response {
	return e.d.Dispatch(req, e.sess, e.state)
}

// requestFor 按形状构造零值请求
func requestFor(h *Handler, handle uint32) *ipc.Request {
	b := ipc.NewBuilder(h.ID)
	for range h.Request.Normal {
		b.Push(0)
	}
	static := 0
	for _, kind := range h.Request.Translate {
		switch kind {
		case ipc.KindHandle:
			b.PushHandles(false, handle)
		case ipc.KindProcessID:
			b.PushProcessID()
		case ipc.KindStaticBuffer:
			b.PushStatic(h.Request.StaticIDs[static], make([]byte, FriendKeySize))
			static++
		case ipc.KindMappedBuffer:
			b.PushMapped(ipc.PermWrite, make([]byte, FriendInfoSize*2))
		}
	}
	return b.Request()
}

func TestCommandTableShapes(t *testing.T) {
	for _, service := range Services() {
		table, ok := TableFor(service)
		require.True(t, ok, service)

		for id, h := range table {
			e := newEnv(t, service, config.StateConfig{})
			assert.Equal(t, id, h.ID, h.Name)
			require.GreaterOrEqual(t, h.Response.Normal, 1, h.Name)

			resp := e.call(requestFor(h, 0x10))
			assert.Equal(t, h.ID, resp.CommandID, h.Name)
			assert.Equal(t, h.Response.Normal, resp.Header().Normal, h.Name)
			assert.Equal(t, len(h.Response.Translate), len(resp.Kinds()), h.Name)
			for i, kind := range h.Response.Translate {
				assert.Equal(t, kind, resp.Translate[i].Kind, h.Name)
			}

			_, err := ipc.EncodeResponse(resp)
			assert.NoError(t, err, h.Name)
		}
	}
}

func TestAdminTableExtendsUser(t *testing.T) {
	user, _ := TableFor(protocol.ServiceFrdU)
	admin, _ := TableFor(protocol.ServiceFrdA)
	for id := range user {
		assert.Contains(t, admin, id)
	}
	for _, id := range []uint16{0x401, 0x405, 0x40A, 0x40C} {
		assert.Contains(t, admin, id)
		assert.NotContains(t, user, id)
	}
	_, ok := TableFor("frd:x")
	assert.False(t, ok)
}

func TestUnknownCommand(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdU, config.StateConfig{})
	resp := e.call(ipc.NewBuilder(0x99).Request())
	assert.Equal(t, protocol.ResultInvalidCommand, resp.Result)
	assert.Equal(t, uint16(0), resp.CommandID)
	assert.Equal(t, ipc.Header{Normal: 1}, resp.Header())
}

func TestShapeMismatch(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdU, config.StateConfig{})

	// HasLoggedIn 不带参数
	resp := e.call(ipc.NewBuilder(0x01).Push(1).Request())
	assert.Equal(t, protocol.ResultInvalidArguments, resp.Result)
	assert.Equal(t, ipc.Header{CommandID: 0x01, Normal: 1}, resp.Header())

	// UnscrambleLocalFriendCode 要求静态缓冲区 ID 1
	resp = e.call(ipc.NewBuilder(0x1C).Push(1).PushStatic(0, nil).Request())
	assert.Equal(t, protocol.ResultInvalidArguments, resp.Result)

	// 句柄描述符只能带一个句柄
	resp = e.call(ipc.NewBuilder(0x20).PushHandles(false, 1, 2).Request())
	assert.Equal(t, protocol.ResultInvalidArguments, resp.Result)
}

func TestDispatchRawDecodeError(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdU, config.StateConfig{})
	raw := le.AppendUint32(nil, ipc.MakeHeader(0x01, 4, 0))
	raw = le.AppendUint32(raw, 0)

	resp := e.d.DispatchRaw(raw, e.sess, e.state)
	assert.Equal(t, protocol.ResultInvalidArguments, resp.Result)
	assert.Equal(t, uint16(0x01), resp.CommandID)

	raw, err := ipc.EncodeRequest(ipc.NewBuilder(0x01).Request())
	require.NoError(t, err)
	resp = e.d.DispatchRaw(raw, e.sess, e.state)
	assert.Equal(t, protocol.ResultSuccess, resp.Result)
}

func TestLoginStatusDefaultsOffline(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdU, config.StateConfig{})
	resp := e.call(ipc.NewBuilder(0x01).Request())
	require.Equal(t, protocol.ResultSuccess, resp.Result)
	assert.Equal(t, []uint32{0}, resp.Normal)
}

func TestLoginLogout(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdU, config.StateConfig{
		Account: config.AccountConfig{PrincipalID: 0xaabbccdd},
	})

	resp := e.call(ipc.NewBuilder(0x03).PushHandles(false, 0x44).Request())
	require.Equal(t, protocol.ResultSuccess, resp.Result)
	assert.Equal(t, []uint32{0x44}, e.sig.handles, "completion event signaled")
	assert.Equal(t, 0, e.sess.Handles.Len(), "transient handle released")

	resp = e.call(ipc.NewBuilder(0x02).Request())
	assert.Equal(t, []uint32{1}, resp.Normal)

	records, _ := e.queue.PeekSince(0)
	var kinds []protocol.NotificationKind
	for n := range records {
		kinds = append(kinds, n.Kind)
		assert.Equal(t, uint32(0xaabbccdd), n.Friend.PrincipalID)
	}
	assert.Equal(t, []protocol.NotificationKind{protocol.NotifyUserWentOnline}, kinds)

	e.call(ipc.NewBuilder(0x04).Request())
	assert.Equal(t, LoginOffline, e.state.Login)
	assert.Equal(t, uint64(2), e.queue.Head())
}

func TestLoginInOfflineMode(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdU, config.StateConfig{
		Flags: map[string]bool{FlagOfflineMode: true},
	})

	resp := e.call(ipc.NewBuilder(0x03).PushHandles(false, 0x44).Request())
	require.Equal(t, protocol.ResultSuccess, resp.Result)
	assert.Equal(t, []uint32{0x44}, e.sig.handles)

	resp = e.call(ipc.NewBuilder(0x02).Request())
	assert.Equal(t, []uint32{0}, resp.Normal)
	assert.Equal(t, LoginOffline, e.state.Login)
	assert.Equal(t, uint64(0), e.queue.Head())
}

func TestFriendKeyListEmpty(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdU, config.StateConfig{})
	resp := e.call(ipc.NewBuilder(0x11).Push(0).Push(100).Request())
	require.Equal(t, protocol.ResultSuccess, resp.Result)
	assert.Equal(t, []uint32{0}, resp.Normal)
	require.Len(t, resp.Translate, 1)
	assert.Empty(t, resp.Translate[0].Data)
}

func testFriends(n int) []FriendEntry {
	friends := make([]FriendEntry, n)
	for i := range friends {
		pid := uint32(1000 + i)
		fc, _ := PrincipalIDToFriendCode(pid)
		friends[i] = FriendEntry{
			Key:          FriendKey{PrincipalID: pid, LocalFriendCode: fc},
			Relationship: uint8(i % 7),
			ScreenName:   NewScreenName("friend"),
			CharacterSet: 1,
		}
	}
	return friends
}

func keyBuffer(keys ...FriendKey) []byte {
	var b []byte
	for _, k := range keys {
		b = k.AppendTo(b)
	}
	return b
}

func TestFriendKeyListBounds(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdU, config.StateConfig{})
	e.state.Friends = testFriends(5)

	resp := e.call(ipc.NewBuilder(0x11).Push(3).Push(10).Request())
	assert.Equal(t, []uint32{2}, resp.Normal)
	keys := ParseFriendKeys(resp.Translate[0].Data)
	require.Len(t, keys, 2)
	assert.Equal(t, uint32(1003), keys[0].PrincipalID)

	resp = e.call(ipc.NewBuilder(0x11).Push(9).Push(10).Request())
	assert.Equal(t, []uint32{0}, resp.Normal)
}

func TestFriendScreenNameOutputs(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdU, config.StateConfig{})
	e.state.Friends = testFriends(3)
	keys := e.state.FriendKeys()

	req := ipc.NewBuilder(0x13).
		Push(2). // max screen names
		Push(3). // max character sets
		Push(3).
		Push(0).
		Push(0).
		PushStatic(0, keyBuffer(keys...)).
		Request()
	resp := e.call(req)
	require.Equal(t, protocol.ResultSuccess, resp.Result)
	require.Len(t, resp.Translate, 2)
	assert.Equal(t, uint8(0), resp.Translate[0].BufferID)
	assert.Equal(t, uint8(1), resp.Translate[1].BufferID)
	assert.Len(t, resp.Translate[0].Data, 2*ScreenNameSize)
	assert.Equal(t, []byte{1, 1}, resp.Translate[1].Data)
}

func TestFriendMiiLimitedByMappedCapacity(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdU, config.StateConfig{})
	e.state.Friends = testFriends(4)

	req := ipc.NewBuilder(0x14).
		Push(4).
		PushStatic(0, keyBuffer(e.state.FriendKeys()...)).
		PushMapped(ipc.PermWrite, make([]byte, MiiSize*3-1)).
		Request()
	resp := e.call(req)
	require.Equal(t, protocol.ResultSuccess, resp.Result)
	assert.Len(t, resp.Translate[0].Data, MiiSize*2)
}

func TestFriendAttributeFlags(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdU, config.StateConfig{})
	e.state.Friends = testFriends(7)

	req := ipc.NewBuilder(0x17).Push(7).PushStatic(0, keyBuffer(e.state.FriendKeys()...)).Request()
	resp := e.call(req)
	data := resp.Translate[0].Data
	require.Len(t, data, 7*4)

	want := []uint32{0, 3, 0, 1, 1, 0, 3}
	for i, w := range want {
		assert.Equal(t, w, le.Uint32(data[i*4:]), "relationship %d", i)
	}
}

func TestFriendInfoByPrincipalID(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdU, config.StateConfig{})
	e.state.Friends = testFriends(2)

	// local_friend_code 不参与匹配
	key := FriendKey{PrincipalID: 1001}
	req := ipc.NewBuilder(0x1A).
		Push(1).Push(0).Push(0).
		PushStatic(0, keyBuffer(key)).
		PushMapped(ipc.PermWrite, make([]byte, FriendInfoSize)).
		Request()
	resp := e.call(req)
	data := resp.Translate[0].Data
	require.Len(t, data, FriendInfoSize)
	assert.Equal(t, uint32(1001), le.Uint32(data))
	assert.Equal(t, byte(3), data[0x18], "relationship")
}

func TestUnscrambleLocalFriendCode(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdU, config.StateConfig{})
	e.state.Friends = testFriends(1)
	known := e.state.Friends[0].Key.LocalFriendCode

	var buf []byte
	buf = Scramble(known, 0x1234).AppendTo(buf)
	buf = Scramble(0x1111, 0x55).AppendTo(buf)

	resp := e.call(ipc.NewBuilder(0x1C).Push(2).PushStatic(1, buf).Request())
	require.Equal(t, protocol.ResultSuccess, resp.Result)
	data := resp.Translate[0].Data
	require.Len(t, data, 16)
	assert.Equal(t, known, le.Uint64(data))
	assert.Equal(t, uint64(0), le.Uint64(data[8:]))
}

func TestFriendCodeCommands(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdU, config.StateConfig{})

	resp := e.call(ipc.NewBuilder(0x24).Push(0xaabbccdd).Request())
	require.Equal(t, protocol.ResultSuccess, resp.Result)
	assert.Equal(t, []uint32{0xaabbccdd, 0x38}, resp.Normal)

	resp = e.call(ipc.NewBuilder(0x26).PushU64(0x38aabbccdd).Request())
	assert.Equal(t, []uint32{1}, resp.Normal)

	resp = e.call(ipc.NewBuilder(0x25).PushU64(0x38aabbccdd).Request())
	assert.Equal(t, []uint32{0xaabbccdd}, resp.Normal)

	resp = e.call(ipc.NewBuilder(0x27).Push(0xD9001830).Request())
	assert.Equal(t, protocol.ResultInvalidErrorCode, resp.Result)
	assert.Equal(t, []uint32{0}, resp.Normal)
}

func TestUpdateGameModeFixedResult(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdU, config.StateConfig{})
	resp := e.call(ipc.NewBuilder(0x1E).Push(1).Push(2).PushStatic(0, nil).Request())
	assert.Equal(t, protocol.ResultGameModeNotAvailable, resp.Result)
	assert.Equal(t, ipc.Header{CommandID: 0x1E, Normal: 1}, resp.Header())
}

func TestEventNotificationDelivery(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdU, config.StateConfig{})
	resp := e.call(ipc.NewBuilder(0x20).PushHandles(false, 0x30).Request())
	require.Equal(t, protocol.ResultSuccess, resp.Result)
	assert.Equal(t, uint32(0x30), e.sess.ClientEvent)

	// 屏蔽好友 Mii 更新
	e.call(ipc.NewBuilder(0x21).Push(1 << protocol.NotifyFriendUpdatedMii).Request())

	e.queue.Push(protocol.NotifyFriendWentOnline, FriendKey{PrincipalID: 1})
	e.queue.Push(protocol.NotifyFriendUpdatedMii, FriendKey{PrincipalID: 2})
	e.queue.Push(protocol.NotifyFriendWentOffline, FriendKey{PrincipalID: 3})

	assert.True(t, e.sess.SignalPending(e.queue))
	assert.Equal(t, []uint32{0x30}, e.sig.handles)
	assert.False(t, e.sess.SignalPending(e.queue), "each record signals once")

	get := func(max uint32) *ipc.Response {
		return e.call(ipc.NewBuilder(0x22).
			Push(max).
			PushMapped(ipc.PermWrite, make([]byte, NotificationEventSize*4)).
			Request())
	}

	resp = get(1)
	require.Equal(t, protocol.ResultSuccess, resp.Result)
	assert.Equal(t, []uint32{0, 1}, resp.Normal)
	data := resp.Translate[0].Data
	require.Len(t, data, NotificationEventSize)
	assert.Equal(t, byte(protocol.NotifyFriendWentOnline), data[0])

	resp = get(4)
	assert.Equal(t, []uint32{0, 1}, resp.Normal)
	data = resp.Translate[0].Data
	assert.Equal(t, byte(protocol.NotifyFriendWentOffline), data[0])
	assert.Equal(t, uint32(3), le.Uint32(data[8:]))

	resp = get(4)
	assert.Equal(t, []uint32{0, 0}, resp.Normal)
	assert.Equal(t, uint64(3), e.sess.Cursor)
}

func TestEventNotificationMissed(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdU, config.StateConfig{})
	for range 10 {
		e.queue.Push(protocol.NotifyFriendUpdatedProfile, FriendKey{})
	}

	resp := e.call(ipc.NewBuilder(0x22).
		Push(100).
		PushMapped(ipc.PermWrite, make([]byte, NotificationEventSize*100)).
		Request())
	require.Equal(t, protocol.ResultSuccess, resp.Result)
	assert.Equal(t, uint32(1), resp.Normal[0]&1, "missed flag")
	assert.Equal(t, uint32(8), resp.Normal[1])
	assert.Equal(t, uint64(10), e.sess.Cursor)
}

func TestGameAuthenticationFlow(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdU, config.StateConfig{})

	resp := e.call(ipc.NewBuilder(0x29).Request())
	assert.Equal(t, protocol.ResultMissingData, resp.Result)
	require.Len(t, resp.Translate, 1)
	assert.Len(t, resp.Translate[0].Data, GameAuthDataSize)

	b := ipc.NewBuilder(0x28)
	for range 9 {
		b.Push(0)
	}
	resp = e.call(b.PushProcessID().PushHandles(false, 0x51).Request())
	require.Equal(t, protocol.ResultSuccess, resp.Result)
	assert.Equal(t, []uint32{0x51}, e.sig.handles)

	resp = e.call(ipc.NewBuilder(0x29).Request())
	assert.Equal(t, protocol.ResultSuccess, resp.Result)
	assert.Len(t, resp.Translate[0].Data, GameAuthDataSize)
}

func TestSetClientSdkVersionUsesCallerProcess(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdU, config.StateConfig{})
	req := ipc.NewBuilder(0x32).Push(0x70000C8).PushProcessID().Request()
	req.Translate[0].ProcessID = 0x99
	resp := e.call(req)
	require.Equal(t, protocol.ResultSuccess, resp.Result)
	assert.Equal(t, uint32(0x70000C8), e.sess.ClientSDKVersion)
	assert.Equal(t, uint32(0x20), e.sess.ProcessID)
	// 请求本身不被改写
	assert.Equal(t, uint32(0x99), req.Translate[0].ProcessID)
}

func TestSetPresenceGameKey(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdA, config.StateConfig{})
	e.state.Login = LoginOnline

	game := GameKey{TitleID: 0x0004000000055D00, Version: 3}
	resp := e.call(ipc.NewBuilder(0x40A).PushBytes(game.AppendTo(nil)).Request())
	require.Equal(t, protocol.ResultSuccess, resp.Result)
	assert.Equal(t, LoginOnlineWithGame, e.state.Login)

	resp = e.call(ipc.NewBuilder(0x0C).Request())
	assert.Equal(t, []uint32{0x00055D00, 0x00040000, 3, 0}, resp.Normal)
}

func TestHandleTableFullMapsToOutOfResource(t *testing.T) {
	e := newEnv(t, protocol.ServiceFrdU, config.StateConfig{})
	e.sess.Handles = kernel.NewHandleTable(1, e.sig)

	resp := e.call(ipc.NewBuilder(0x20).PushHandles(false, 0x30).Request())
	require.Equal(t, protocol.ResultSuccess, resp.Result)

	resp = e.call(ipc.NewBuilder(0x2C).PushHandles(false, 0x31).Request())
	assert.Equal(t, protocol.ResultOutOfResource, resp.Result)
}
