package frd

import (
	"github.com/qiminjie89/frdsvc/internal/ipc"
	"github.com/qiminjie89/frdsvc/internal/protocol"
)

// outCount 变长输出的元素数：不超过客户端请求数、可用数与 MaxFriendCount
func outCount(requested uint32, available ...int) int {
	n := min(int(requested), MaxFriendCount)
	for _, a := range available {
		n = min(n, a)
	}
	return max(n, 0)
}

// signalTransient 触发客户端传入的事件句柄，随后释放本次导入的句柄
func signalTransient(sess *Session, handle uint32) error {
	_, held := sess.Handles.Get(handle)
	ev, err := sess.Handles.Import(handle)
	if err != nil {
		return err
	}
	ev.Signal()
	if !held {
		return sess.Handles.Close(handle)
	}
	return nil
}

// popHandle 读取单个句柄，缺失时返回 0（无效句柄）
func popHandle(p *ipc.Parser) uint32 {
	if hs := p.PopHandles(); len(hs) > 0 {
		return hs[0]
	}
	return 0
}

func success(b *ipc.Builder) (*ipc.Response, error) {
	return b.Response(protocol.ResultSuccess), nil
}

// ---------- 登录状态 ----------

func hasLoggedIn(c *Call) (*ipc.Response, error) {
	return success(c.Reply().PushBool(c.State.LoggedIn()))
}

func isOnline(c *Call) (*ipc.Response, error) {
	return success(c.Reply().PushBool(c.State.LoggedIn()))
}

func login(c *Call) (*ipc.Response, error) {
	handle := popHandle(c.Params)
	if err := signalTransient(c.Session, handle); err != nil {
		return nil, err
	}

	if c.State.Flag(FlagOfflineMode) {
		return success(c.Reply())
	}

	status := LoginOnline
	if c.State.Playing.TitleID != 0 {
		status = LoginOnlineWithGame
	}
	if c.State.Login == LoginOffline && c.State.SetLogin(status) {
		c.Queue.Push(protocol.NotifyUserWentOnline, c.State.Account.FriendKey())
	}
	return success(c.Reply())
}

func logout(c *Call) (*ipc.Response, error) {
	if c.State.SetLogin(LoginOffline) {
		c.Queue.Push(protocol.NotifyUserWentOffline, c.State.Account.FriendKey())
	}
	return success(c.Reply())
}

// ---------- 本机资料 ----------

func getMyFriendKey(c *Call) (*ipc.Response, error) {
	return success(c.Reply().PushBytes(c.State.Account.FriendKey().AppendTo(nil)))
}

func getMyPreference(c *Call) (*ipc.Response, error) {
	md := c.State.MyData
	return success(c.Reply().
		PushBool(md.PublicMode).
		PushBool(md.ShowGameMode).
		PushBool(md.ShowPlayedGame))
}

func getMyProfile(c *Call) (*ipc.Response, error) {
	return success(c.Reply().PushBytes(c.State.MyData.Profile.AppendTo(nil)))
}

func getMyPresence(c *Call) (*ipc.Response, error) {
	return success(c.Reply().PushStatic(0, make([]byte, PresenceSize)))
}

func getMyScreenName(c *Call) (*ipc.Response, error) {
	return success(c.Reply().PushBytes(c.State.MyData.ScreenName.AppendTo(nil)))
}

func getMyMii(c *Call) (*ipc.Response, error) {
	return success(c.Reply().PushBytes(c.State.MyData.Mii[:]))
}

func getMyLocalAccountID(c *Call) (*ipc.Response, error) {
	return success(c.Reply().Push(c.State.Account.LocalAccountID))
}

func getMyPlayingGame(c *Call) (*ipc.Response, error) {
	return success(c.Reply().PushBytes(c.State.Playing.AppendTo(nil)))
}

func getMyFavoriteGame(c *Call) (*ipc.Response, error) {
	game := c.State.MyData.FavoriteGame
	game.Unk = 0
	return success(c.Reply().PushBytes(game.AppendTo(nil)))
}

func getMyNcPrincipalID(c *Call) (*ipc.Response, error) {
	return success(c.Reply().Push(c.State.MyData.NcPrincipalID))
}

func getMyComment(c *Call) (*ipc.Response, error) {
	return success(c.Reply().PushBytes(c.State.MyData.Comment.AppendTo(nil)))
}

func getMyPassword(c *Call) (*ipc.Response, error) {
	size := int(c.Params.Pop())
	password := append([]byte(c.State.Account.NexPassword), 0)
	if size > 0 && size < len(password) {
		password = password[:size]
	}
	return success(c.Reply().PushStatic(0, password))
}

// ---------- 好友查询 ----------

func getFriendKeyList(c *Call) (*ipc.Response, error) {
	offset := int(c.Params.Pop())
	requested := c.Params.Pop()

	keys := c.State.FriendKeys()
	start := min(offset, len(keys))
	n := outCount(requested, len(keys)-start)

	var out []byte
	for _, k := range keys[start : start+n] {
		out = k.AppendTo(out)
	}
	return success(c.Reply().Push(uint32(n)).PushStatic(0, out))
}

// friendLookup 读取 (数量, 好友标识静态缓冲区) 形式的输入
func friendLookup(c *Call) []FriendKey {
	maxOut := c.Params.Pop()
	keys := ParseFriendKeys(c.Params.PopStatic())
	return keys[:outCount(maxOut, len(keys))]
}

func getFriendPresence(c *Call) (*ipc.Response, error) {
	keys := friendLookup(c)
	return success(c.Reply().PushStatic(0, make([]byte, len(keys)*PresenceSize)))
}

func getFriendScreenName(c *Call) (*ipc.Response, error) {
	maxNames := c.Params.Pop()
	maxCharsets := c.Params.Pop()
	keyCount := c.Params.Pop()
	c.Params.Pop()
	c.Params.Pop()
	keys := ParseFriendKeys(c.Params.PopStatic())

	n := outCount(keyCount, int(min(maxNames, maxCharsets)), len(keys))
	var names, charsets []byte
	for _, k := range keys[:n] {
		var name ScreenName
		var charset uint8
		if f := c.State.FriendByKey(k); f != nil {
			name, charset = f.ScreenName, f.CharacterSet
		}
		names = name.AppendTo(names)
		charsets = append(charsets, charset)
	}
	return success(c.Reply().PushStatic(0, names).PushStatic(1, charsets))
}

func getFriendMii(c *Call) (*ipc.Response, error) {
	maxOut := c.Params.Pop()
	keys := ParseFriendKeys(c.Params.PopStatic())
	capacity := len(c.Params.PopMapped()) / MiiSize

	n := outCount(maxOut, len(keys), capacity)
	out := make([]byte, 0, n*MiiSize)
	for _, k := range keys[:n] {
		var mii Mii
		if f := c.State.FriendByKey(k); f != nil {
			mii = f.Mii
		}
		out = append(out, mii[:]...)
	}
	return success(c.Reply().PushMapped(ipc.PermWrite, out))
}

func getFriendProfile(c *Call) (*ipc.Response, error) {
	var out []byte
	for _, k := range friendLookup(c) {
		var p FriendProfile
		if f := c.State.FriendByKey(k); f != nil {
			p = f.Profile
		}
		out = p.AppendTo(out)
	}
	return success(c.Reply().PushStatic(0, out))
}

func getFriendRelationship(c *Call) (*ipc.Response, error) {
	keys := friendLookup(c)
	out := make([]byte, 0, len(keys))
	for _, k := range keys {
		var rel uint8
		if f := c.State.FriendByKey(k); f != nil {
			rel = f.Relationship
		}
		out = append(out, rel)
	}
	return success(c.Reply().PushStatic(0, out))
}

func getFriendAttributeFlags(c *Call) (*ipc.Response, error) {
	var out []byte
	for _, k := range friendLookup(c) {
		var attr uint32
		if f := c.State.FriendByKey(k); f != nil {
			attr = f.Attribute()
		}
		out = le.AppendUint32(out, attr)
	}
	return success(c.Reply().PushStatic(0, out))
}

func getFriendPlayingGame(c *Call) (*ipc.Response, error) {
	maxOut := c.Params.Pop()
	keys := ParseFriendKeys(c.Params.PopStatic())
	capacity := len(c.Params.PopMapped()) / GameKeySize

	// 没有好友在线数据，输出空游戏标识
	n := outCount(maxOut, len(keys), capacity)
	return success(c.Reply().PushMapped(ipc.PermWrite, make([]byte, n*GameKeySize)))
}

func getFriendFavoriteGame(c *Call) (*ipc.Response, error) {
	var out []byte
	for _, k := range friendLookup(c) {
		var g GameKey
		if f := c.State.FriendByKey(k); f != nil {
			g = f.FavoriteGame
		}
		out = g.AppendTo(out)
	}
	return success(c.Reply().PushStatic(0, out))
}

func getFriendInfo(c *Call) (*ipc.Response, error) {
	maxOut := c.Params.Pop()
	c.Params.Pop()
	c.Params.Pop() // character set
	keys := ParseFriendKeys(c.Params.PopStatic())
	capacity := len(c.Params.PopMapped()) / FriendInfoSize

	n := outCount(maxOut, len(keys), capacity)
	out := make([]byte, 0, n*FriendInfoSize)
	for _, k := range keys[:n] {
		var info FriendInfo
		if f := c.State.FriendByPrincipalID(k.PrincipalID); f != nil {
			info = f.Info()
		}
		out = info.AppendTo(out)
	}
	return success(c.Reply().PushMapped(ipc.PermWrite, out))
}

func getFriendComment(c *Call) (*ipc.Response, error) {
	count := c.Params.Pop()
	c.Params.Pop()
	keys := ParseFriendKeys(c.Params.PopStatic())

	var out []byte
	for _, k := range keys[:outCount(count, len(keys))] {
		var comment Comment
		if f := c.State.FriendByKey(k); f != nil {
			comment = f.Comment
		}
		out = comment.AppendTo(out)
	}
	return success(c.Reply().PushStatic(0, out))
}

func isIncludedInFriendList(c *Call) (*ipc.Response, error) {
	code := c.Params.PopU64()
	return success(c.Reply().PushBool(c.State.HasFriendCode(code)))
}

func unscrambleLocalFriendCode(c *Call) (*ipc.Response, error) {
	maxOut := c.Params.Pop()
	codes := ParseScrambledFriendCodes(c.Params.PopStatic())

	var out []byte
	for _, s := range codes[:outCount(maxOut, len(codes))] {
		code := s.Unscramble()
		if !c.State.HasFriendCode(code) {
			code = 0
		}
		out = le.AppendUint64(out, code)
	}
	return success(c.Reply().PushStatic(0, out))
}

// ---------- 游戏模式与邀请 ----------

func updateGameModeDescription(c *Call) (*ipc.Response, error) {
	return success(c.Reply())
}

func updateGameMode(c *Call) (*ipc.Response, error) {
	return c.Reply().Response(protocol.ResultGameModeNotAvailable), nil
}

func sendInvitation(c *Call) (*ipc.Response, error) {
	return success(c.Reply())
}

// ---------- 通知 ----------

func attachToEventNotification(c *Call) (*ipc.Response, error) {
	handle := popHandle(c.Params)
	if _, err := c.Session.Handles.Import(handle); err != nil {
		return nil, err
	}

	sess := c.Session
	if sess.ClientEvent != 0 && sess.ClientEvent != handle {
		_ = sess.Handles.Close(sess.ClientEvent)
	}
	sess.ClientEvent = handle
	return success(c.Reply())
}

func setNotificationMask(c *Call) (*ipc.Response, error) {
	c.Session.NotificationMask = c.Params.Pop()
	return success(c.Reply())
}

func getEventNotification(c *Call) (*ipc.Response, error) {
	maxCount := int(c.Params.Pop())
	capacity := len(c.Params.PopMapped()) / NotificationEventSize
	limit := min(maxCount, capacity)

	sess := c.Session
	records, missed := c.Queue.PeekSince(sess.Cursor)

	cursor := sess.Cursor
	var out []byte
	delivered := 0
	for n := range records {
		if sess.Masked(n.Kind) {
			cursor = n.Seq
			continue
		}
		if delivered == limit {
			break
		}
		out = appendNotificationEvent(out, n)
		delivered++
		cursor = n.Seq
	}
	c.Queue.Advance(sess, cursor)

	var flags uint32
	if missed {
		flags |= 1
	}
	return success(c.Reply().
		Push(flags).
		Push(uint32(delivered)).
		PushMapped(ipc.PermWrite, out))
}

func getLastResponseResult(c *Call) (*ipc.Response, error) {
	return success(c.Reply())
}

// ---------- 好友码 ----------

func principalIDToFriendCode(c *Call) (*ipc.Response, error) {
	fc, err := PrincipalIDToFriendCode(c.Params.Pop())
	if err != nil {
		return nil, err
	}
	return success(c.Reply().PushU64(fc))
}

func friendCodeToPrincipalID(c *Call) (*ipc.Response, error) {
	pid, err := FriendCodeToPrincipalID(c.Params.PopU64())
	if err != nil {
		return nil, err
	}
	return success(c.Reply().Push(pid))
}

func isValidFriendCode(c *Call) (*ipc.Response, error) {
	return success(c.Reply().PushBool(IsValidFriendCode(c.Params.PopU64())))
}

func resultToErrorCode(c *Call) (*ipc.Response, error) {
	result, code := ResultToErrorCode(c.Params.Pop())
	return c.Reply().Push(code).Response(result), nil
}

// ---------- 在线服务（无网络，保存占位应答） ----------

func requestGameAuthentication(c *Call) (*ipc.Response, error) {
	c.Params.Pop()        // game id
	c.Params.PopBytes(24) // ingamesn
	c.Params.Pop()        // sdk version low
	c.Params.Pop()        // sdk version high
	c.Params.PopProcessID()
	handle := popHandle(c.Params)

	c.Session.LastGameAuth = &GameAuthenticationData{}
	if err := signalTransient(c.Session, handle); err != nil {
		return nil, err
	}
	return success(c.Reply())
}

func getGameAuthenticationData(c *Call) (*ipc.Response, error) {
	data := c.Session.LastGameAuth
	if data == nil {
		return c.Reply().
			PushStatic(0, GameAuthenticationData{}.Bytes()).
			Response(protocol.ResultMissingData), nil
	}
	return success(c.Reply().PushStatic(0, data.Bytes()))
}

func requestServiceLocator(c *Call) (*ipc.Response, error) {
	c.Params.Pop()        // game id
	c.Params.PopBytes(12) // key hash
	c.Params.PopBytes(8)  // svc
	c.Params.Pop()        // sdk version low
	c.Params.Pop()        // sdk version high
	c.Params.PopProcessID()
	handle := popHandle(c.Params)

	c.Session.LastServiceLocator = &ServiceLocateData{}
	c.Session.ServerTimeInterval = 0
	if err := signalTransient(c.Session, handle); err != nil {
		return nil, err
	}
	return success(c.Reply())
}

func getServiceLocatorData(c *Call) (*ipc.Response, error) {
	data := c.Session.LastServiceLocator
	if data == nil {
		return c.Reply().
			PushStatic(0, ServiceLocateData{}.Bytes()).
			Response(protocol.ResultMissingData), nil
	}
	return success(c.Reply().PushStatic(0, data.Bytes()))
}

func detectNatProperties(c *Call) (*ipc.Response, error) {
	handle := popHandle(c.Params)
	if err := signalTransient(c.Session, handle); err != nil {
		return nil, err
	}
	return success(c.Reply())
}

func getNatProperties(c *Call) (*ipc.Response, error) {
	nat := c.State.NAT
	return success(c.Reply().Push(nat.Unk1).Push(nat.Unk2))
}

func getExtendedNatProperties(c *Call) (*ipc.Response, error) {
	nat := c.State.NAT
	return success(c.Reply().Push(nat.Unk1).Push(nat.Unk2).Push(nat.Unk3))
}

func getServerTimeInterval(c *Call) (*ipc.Response, error) {
	return success(c.Reply().PushU64(c.Session.ServerTimeInterval))
}

func allowHalfAwake(c *Call) (*ipc.Response, error) {
	c.Session.HalfAwake = c.Params.PopBool()
	return success(c.Reply())
}

func getServerTypes(c *Call) (*ipc.Response, error) {
	acc := c.State.Account
	return success(c.Reply().
		Push(uint32(acc.NascEnvironment)).
		Push(uint32(acc.ServerType1)).
		Push(uint32(acc.ServerType2)))
}

func setClientSdkVersion(c *Call) (*ipc.Response, error) {
	c.Session.ClientSDKVersion = c.Params.Pop()
	c.Session.ProcessID = c.Params.PopProcessID()
	return success(c.Reply())
}

// ---------- 面对面添加好友（未实现，返回成功） ----------

func getMyApproachContext(c *Call) (*ipc.Response, error) {
	return success(c.Reply())
}

func addFriendWithApproach(c *Call) (*ipc.Response, error) {
	return success(c.Reply())
}

func decryptApproachContext(c *Call) (*ipc.Response, error) {
	return success(c.Reply())
}
