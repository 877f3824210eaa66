package frd

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/qiminjie89/frdsvc/internal/protocol"
)

// 线上结构体大小（字节）
const (
	FriendKeySize          = 0x10
	FriendProfileSize      = 0x08
	GameKeySize            = 0x10
	MiiSize                = 0x60
	ScreenNameSize         = 0x16
	CommentSize            = 0x22
	FriendInfoSize         = 0xE0
	NotificationEventSize  = 0x18
	ScrambledCodeSize      = 0x0C
	PresenceSize           = 0x12C
	GameAuthDataSize       = 0x138
	ServiceLocateDataSize  = 0x198
	screenNameMaxChars     = 10
	commentMaxChars        = 16
	gameAuthAddressSize    = 32
	gameAuthTokenSize      = 256
	serviceLocateHostSize  = 128
	serviceLocateTokenSize = 256
)

var le = binary.LittleEndian

// FriendKey 好友标识
type FriendKey struct {
	PrincipalID     uint32
	LocalFriendCode uint64
}

// AppendTo 追加 0x10 字节线上格式（principal_id, padding, local_friend_code）
func (k FriendKey) AppendTo(b []byte) []byte {
	b = le.AppendUint32(b, k.PrincipalID)
	b = le.AppendUint32(b, 0)
	return le.AppendUint64(b, k.LocalFriendCode)
}

// ParseFriendKeys 从静态缓冲区解析好友标识列表，末尾不足一项的字节被忽略
func ParseFriendKeys(data []byte) []FriendKey {
	keys := make([]FriendKey, 0, len(data)/FriendKeySize)
	for off := 0; off+FriendKeySize <= len(data); off += FriendKeySize {
		keys = append(keys, FriendKey{
			PrincipalID:     le.Uint32(data[off:]),
			LocalFriendCode: le.Uint64(data[off+8:]),
		})
	}
	return keys
}

// FriendProfile 好友地区资料
type FriendProfile struct {
	Region   uint8 `yaml:"region"`
	Country  uint8 `yaml:"country"`
	Area     uint8 `yaml:"area"`
	Language uint8 `yaml:"language"`
	Platform uint8 `yaml:"platform"`
}

// AppendTo 追加 8 字节线上格式
func (p FriendProfile) AppendTo(b []byte) []byte {
	return append(b, p.Region, p.Country, p.Area, p.Language, p.Platform, 0, 0, 0)
}

// GameKey 游戏标识
type GameKey struct {
	TitleID uint64 `yaml:"title_id"`
	Version uint32 `yaml:"version"`
	Unk     uint32 `yaml:"-"`
}

// AppendTo 追加 0x10 字节线上格式
func (g GameKey) AppendTo(b []byte) []byte {
	b = le.AppendUint64(b, g.TitleID)
	b = le.AppendUint32(b, g.Version)
	return le.AppendUint32(b, g.Unk)
}

// ParseGameKey 从 4 个字解析
func ParseGameKey(data []byte) GameKey {
	return GameKey{
		TitleID: le.Uint64(data),
		Version: le.Uint32(data[8:]),
		Unk:     le.Uint32(data[12:]),
	}
}

// Mii 角色数据（原样透传）
type Mii [MiiSize]byte

// ScreenName UTF-16 昵称，最多 10 个字符，以 0 结尾
type ScreenName [ScreenNameSize / 2]uint16

// NewScreenName 由字符串构造，超长截断
func NewScreenName(s string) ScreenName {
	var n ScreenName
	copy(n[:screenNameMaxChars], utf16.Encode([]rune(s)))
	return n
}

// AppendTo 追加 0x16 字节线上格式
func (n ScreenName) AppendTo(b []byte) []byte {
	for _, c := range n {
		b = le.AppendUint16(b, c)
	}
	return b
}

// String 返回字符串形式
func (n ScreenName) String() string {
	return utf16String(n[:])
}

// Comment UTF-16 个性签名，最多 16 个字符
type Comment [CommentSize / 2]uint16

// NewComment 由字符串构造，超长截断
func NewComment(s string) Comment {
	var c Comment
	copy(c[:commentMaxChars], utf16.Encode([]rune(s)))
	return c
}

// AppendTo 追加 0x22 字节线上格式
func (c Comment) AppendTo(b []byte) []byte {
	for _, w := range c {
		b = le.AppendUint16(b, w)
	}
	return b
}

// String 返回字符串形式
func (c Comment) String() string {
	return utf16String(c[:])
}

func utf16String(units []uint16) string {
	for i, u := range units {
		if u == 0 {
			units = units[:i]
			break
		}
	}
	return string(utf16.Decode(units))
}

// FriendInfo GetFriendInfo 的输出记录（0xE0 字节）
type FriendInfo struct {
	Key          FriendKey
	Relationship uint8
	Profile      FriendProfile
	FavoriteGame GameKey
	Comment      Comment
	LastOnline   uint64
	ScreenName   ScreenName
	CharacterSet uint8
	Mii          Mii
}

// AppendTo 追加线上格式
func (f FriendInfo) AppendTo(b []byte) []byte {
	b = f.Key.AppendTo(b)
	b = le.AppendUint64(b, 0) // some_timestamp
	b = append(b, f.Relationship, 0, 0, 0)
	b = le.AppendUint32(b, 0)
	b = f.Profile.AppendTo(b)
	b = f.FavoriteGame.AppendTo(b)
	b = le.AppendUint32(b, 0)
	b = f.Comment.AppendTo(b)
	b = le.AppendUint16(b, 0)
	b = le.AppendUint64(b, f.LastOnline)
	b = f.ScreenName.AppendTo(b)
	b = append(b, f.CharacterSet, 0)
	return append(b, f.Mii[:]...)
}

// ScrambledFriendCode 加扰的本地好友码：4 个 u16 与其后的异或键（12 字节）
type ScrambledFriendCode struct {
	Code   [4]uint16
	XorKey uint16
}

// ParseScrambledFriendCodes 从静态缓冲区解析
func ParseScrambledFriendCodes(data []byte) []ScrambledFriendCode {
	out := make([]ScrambledFriendCode, 0, len(data)/ScrambledCodeSize)
	for off := 0; off+ScrambledCodeSize <= len(data); off += ScrambledCodeSize {
		var s ScrambledFriendCode
		for i := range s.Code {
			s.Code[i] = le.Uint16(data[off+2*i:])
		}
		s.XorKey = le.Uint16(data[off+8:])
		out = append(out, s)
	}
	return out
}

// Unscramble 还原好友码
func (s ScrambledFriendCode) Unscramble() uint64 {
	var code uint64
	for i, part := range s.Code {
		code |= uint64(part^s.XorKey) << (16 * i)
	}
	return code
}

// Scramble 以给定异或键加扰好友码
func Scramble(code uint64, key uint16) ScrambledFriendCode {
	s := ScrambledFriendCode{XorKey: key}
	for i := range s.Code {
		s.Code[i] = uint16(code>>(16*i)) ^ key
	}
	return s
}

// AppendTo 追加线上格式
func (s ScrambledFriendCode) AppendTo(b []byte) []byte {
	for _, part := range s.Code {
		b = le.AppendUint16(b, part)
	}
	b = le.AppendUint16(b, s.XorKey)
	return le.AppendUint16(b, 0)
}

// appendNotificationEvent 追加通知记录线上格式（0x18 字节）
func appendNotificationEvent(b []byte, n Notification) []byte {
	b = append(b, byte(n.Kind), 0, 0, 0, 0, 0, 0, 0)
	return n.Friend.AppendTo(b)
}

// NotificationEvent 客户端收到的通知记录
type NotificationEvent struct {
	Kind   protocol.NotificationKind
	Friend FriendKey
}

// ParseNotificationEvents 解析 GetEventNotification 写入映射缓冲区的记录
func ParseNotificationEvents(data []byte, count int) []NotificationEvent {
	count = min(count, len(data)/NotificationEventSize)
	out := make([]NotificationEvent, 0, count)
	for i := range count {
		rec := data[i*NotificationEventSize:]
		out = append(out, NotificationEvent{
			Kind: protocol.NotificationKind(rec[0]),
			Friend: FriendKey{
				PrincipalID:     le.Uint32(rec[8:]),
				LocalFriendCode: le.Uint64(rec[16:]),
			},
		})
	}
	return out
}

// NatProperties NAT 探测结果
type NatProperties struct {
	Unk1 uint32 `yaml:"unk1"`
	Unk2 uint32 `yaml:"unk2"`
	Unk3 uint32 `yaml:"unk3"`
}

// GameAuthenticationData 游戏认证应答（0x138 字节）
type GameAuthenticationData struct {
	ReturnCode     uint32
	HTTPStatusCode uint32
	Address        string
	Port           uint32
	Retry          uint32
	Token          string
	Timestamp      uint64
}

// Bytes 返回线上格式
func (d GameAuthenticationData) Bytes() []byte {
	b := make([]byte, 0, GameAuthDataSize)
	b = le.AppendUint32(b, d.ReturnCode)
	b = le.AppendUint32(b, d.HTTPStatusCode)
	b = appendFixed(b, d.Address, gameAuthAddressSize)
	b = le.AppendUint32(b, d.Port)
	b = le.AppendUint32(b, d.Retry)
	b = appendFixed(b, d.Token, gameAuthTokenSize)
	return le.AppendUint64(b, d.Timestamp)
}

// ServiceLocateData 服务定位应答（0x198 字节）
type ServiceLocateData struct {
	ReturnCode     uint32
	HTTPStatusCode uint32
	ServiceHost    string
	Token          string
	StatusData     [8]byte
	Timestamp      uint64
}

// Bytes 返回线上格式
func (d ServiceLocateData) Bytes() []byte {
	b := make([]byte, 0, ServiceLocateDataSize)
	b = le.AppendUint32(b, d.ReturnCode)
	b = le.AppendUint32(b, d.HTTPStatusCode)
	b = appendFixed(b, d.ServiceHost, serviceLocateHostSize)
	b = appendFixed(b, d.Token, serviceLocateTokenSize)
	b = append(b, d.StatusData[:]...)
	return le.AppendUint64(b, d.Timestamp)
}

// appendFixed 追加定长、以 0 填充的字符串字段
func appendFixed(b []byte, s string, size int) []byte {
	field := make([]byte, size)
	copy(field, s)
	return append(b, field...)
}
