package frd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/qiminjie89/frdsvc/internal/kernel"
	"github.com/qiminjie89/frdsvc/internal/protocol"
	"github.com/qiminjie89/frdsvc/pkg/config"
)

// MaxFriendCount 好友列表上限，也是变长输出的元素上限
const MaxFriendCount = 100

// LoginStatus 本机用户登录状态
type LoginStatus uint8

const (
	LoginOffline        LoginStatus = iota // 离线
	LoginOnline                            // 在线
	LoginOnlineWithGame                    // 在线且正在游戏
)

// String 返回状态名称
func (s LoginStatus) String() string {
	switch s {
	case LoginOffline:
		return "offline"
	case LoginOnline:
		return "online"
	case LoginOnlineWithGame:
		return "online_with_game"
	default:
		return "unknown"
	}
}

// FriendEntry 好友列表项（只读）
type FriendEntry struct {
	Key          FriendKey
	Relationship uint8
	Profile      FriendProfile
	FavoriteGame GameKey
	Comment      Comment
	ScreenName   ScreenName
	CharacterSet uint8
	Mii          Mii
	LastOnline   uint64
}

var friendAttribute = [...]uint32{0, 3, 0, 1, 1, 0}

// Attribute 由关系值得到属性标志
func (f *FriendEntry) Attribute() uint32 {
	if int(f.Relationship) >= len(friendAttribute) {
		return 3
	}
	return friendAttribute[f.Relationship]
}

// Info 转为 GetFriendInfo 输出记录
func (f *FriendEntry) Info() FriendInfo {
	return FriendInfo{
		Key:          f.Key,
		Relationship: 3,
		Profile:      f.Profile,
		FavoriteGame: f.FavoriteGame,
		Comment:      f.Comment,
		LastOnline:   f.LastOnline,
		ScreenName:   f.ScreenName,
		CharacterSet: f.CharacterSet,
		Mii:          f.Mii,
	}
}

// Account 本机账号
type Account struct {
	LocalAccountID  uint32
	PrincipalID     uint32
	LocalFriendCode uint64
	NexPassword     string
	PrincipalIDHMAC string
	NascEnvironment uint8
	ServerType1     uint8
	ServerType2     uint8
}

// FriendKey 返回本机好友标识
func (a Account) FriendKey() FriendKey {
	return FriendKey{PrincipalID: a.PrincipalID, LocalFriendCode: a.LocalFriendCode}
}

// MyData 本机用户资料
type MyData struct {
	NcPrincipalID  uint32
	PublicMode     bool
	ShowGameMode   bool
	ShowPlayedGame bool
	FavoriteGame   GameKey
	Comment        Comment
	ScreenName     ScreenName
	Profile        FriendProfile
	Mii            Mii
}

// ServiceState 进程级共享状态
// 只由服务器主循环访问，不做加锁
type ServiceState struct {
	Friends []FriendEntry
	Login   LoginStatus
	Flags   map[string]bool
	Account Account
	MyData  MyData
	Playing GameKey
	NAT     NatProperties

	WiFi      WiFi
	WiFiEvent *kernel.Event

	// 休眠前的登录状态，唤醒时恢复
	preSleep *LoginStatus
}

// NewServiceState 由配置构造服务状态
func NewServiceState(cfg config.StateConfig) (*ServiceState, error) {
	s := &ServiceState{
		Flags:     make(map[string]bool, len(cfg.Flags)),
		WiFiEvent: kernel.NewEvent("ndm_wifi"),
		WiFi:      WiFi{AccessPoint: StubAccessPoint{}},
	}
	for k, v := range cfg.Flags {
		s.Flags[k] = v
	}

	acc := cfg.Account
	s.Account = Account{
		LocalAccountID:  acc.LocalAccountID,
		PrincipalID:     acc.PrincipalID,
		LocalFriendCode: acc.LocalFriendCode,
		NexPassword:     acc.NexPassword,
		PrincipalIDHMAC: acc.PrincipalIDHMAC,
		NascEnvironment: acc.NascEnvironment,
		ServerType1:     acc.ServerType1,
		ServerType2:     acc.ServerType2,
	}
	if s.Account.LocalFriendCode == 0 && s.Account.PrincipalID != 0 {
		fc, err := PrincipalIDToFriendCode(s.Account.PrincipalID)
		if err != nil {
			return nil, err
		}
		s.Account.LocalFriendCode = fc
	}

	md := cfg.MyData
	s.MyData = MyData{
		NcPrincipalID:  md.NcPrincipalID,
		PublicMode:     md.PublicMode,
		ShowGameMode:   md.ShowGameMode,
		ShowPlayedGame: md.ShowPlayedGame,
		FavoriteGame:   GameKey{TitleID: md.FavoriteTitleID, Version: md.FavoriteVersion},
		Comment:        NewComment(md.Comment),
		ScreenName:     NewScreenName(md.ScreenName),
		Profile: FriendProfile{
			Region:   md.Profile.Region,
			Country:  md.Profile.Country,
			Area:     md.Profile.Area,
			Language: md.Profile.Language,
			Platform: md.Profile.Platform,
		},
	}
	if md.MiiHex != "" {
		mii, err := decodeMii(md.MiiHex)
		if err != nil {
			return nil, fmt.Errorf("my_data mii: %w", err)
		}
		s.MyData.Mii = mii
	}

	if cfg.FriendListPath != "" {
		friends, err := LoadFriendList(cfg.FriendListPath)
		if err != nil {
			return nil, err
		}
		s.Friends = friends
	}

	return s, nil
}

// FriendKeys 返回全部好友标识
func (s *ServiceState) FriendKeys() []FriendKey {
	keys := make([]FriendKey, len(s.Friends))
	for i := range s.Friends {
		keys[i] = s.Friends[i].Key
	}
	return keys
}

// FriendByKey 按完整标识查找好友
func (s *ServiceState) FriendByKey(key FriendKey) *FriendEntry {
	for i := range s.Friends {
		if s.Friends[i].Key == key {
			return &s.Friends[i]
		}
	}
	return nil
}

// FriendByPrincipalID 按 principal id 查找好友
func (s *ServiceState) FriendByPrincipalID(pid uint32) *FriendEntry {
	for i := range s.Friends {
		if s.Friends[i].Key.PrincipalID == pid {
			return &s.Friends[i]
		}
	}
	return nil
}

// HasFriendCode 好友列表中是否存在该好友码
func (s *ServiceState) HasFriendCode(code uint64) bool {
	for i := range s.Friends {
		if s.Friends[i].Key.LocalFriendCode == code {
			return true
		}
	}
	return false
}

// 配置开关
const (
	// FlagOfflineMode 离线模式：Login 照常完成并触发事件，但登录状态保持离线
	FlagOfflineMode = "offline_mode"
)

// Flag 读取配置开关，未配置为 false
func (s *ServiceState) Flag(name string) bool {
	return s.Flags[name]
}

// LoggedIn 是否已登录
func (s *ServiceState) LoggedIn() bool {
	return s.Login != LoginOffline
}

// SetLogin 设置登录状态，返回状态是否变化
func (s *ServiceState) SetLogin(status LoginStatus) bool {
	if s.Login == status {
		return false
	}
	s.Login = status
	return true
}

// SetPlaying 设置正在进行的游戏，已登录时切换为 OnlineWithGame
func (s *ServiceState) SetPlaying(game GameKey) {
	s.Playing = game
	if s.Login == LoginOffline {
		return
	}
	if game.TitleID != 0 {
		s.Login = LoginOnlineWithGame
	} else {
		s.Login = LoginOnline
	}
}

// Sleep 进入休眠：记录当前状态并下线，返回是否从在线变为离线
func (s *ServiceState) Sleep() bool {
	if s.preSleep != nil {
		return false
	}
	prev := s.Login
	s.preSleep = &prev
	return s.SetLogin(LoginOffline)
}

// Wake 唤醒：恢复休眠前的状态，返回是否重新上线
func (s *ServiceState) Wake() bool {
	if s.preSleep == nil {
		return false
	}
	prev := *s.preSleep
	s.preSleep = nil
	return s.SetLogin(prev) && prev != LoginOffline
}

type friendListFile struct {
	Friends []friendRecord `yaml:"friends"`
}

type friendRecord struct {
	PrincipalID     uint32        `yaml:"principal_id"`
	LocalFriendCode uint64        `yaml:"local_friend_code"`
	Relationship    uint8         `yaml:"relationship"`
	Profile         FriendProfile `yaml:"profile"`
	FavoriteGame    GameKey       `yaml:"favorite_game"`
	Comment         string        `yaml:"comment"`
	ScreenName      string        `yaml:"screen_name"`
	CharacterSet    uint8         `yaml:"character_set"`
	MiiHex          string        `yaml:"mii_hex"`
	LastOnline      uint64        `yaml:"last_online"`
}

var ErrTooManyFriends = errors.New("friend list exceeds 100 entries")

// LoadFriendList 从 YAML 文件加载好友列表
func LoadFriendList(path string) ([]FriendEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read friend list: %w", err)
	}
	return ParseFriendList(data)
}

// ParseFriendList 解析好友列表 YAML
// 未填写 local_friend_code 时由 principal_id 计算
func ParseFriendList(data []byte) ([]FriendEntry, error) {
	var file friendListFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse friend list: %w", err)
	}
	if len(file.Friends) > MaxFriendCount {
		return nil, ErrTooManyFriends
	}

	friends := make([]FriendEntry, 0, len(file.Friends))
	for i, rec := range file.Friends {
		if rec.PrincipalID == 0 {
			return nil, fmt.Errorf("friend %d: %w", i, protocol.ResultInvalidPrincipalID)
		}
		code := rec.LocalFriendCode
		if code == 0 {
			code, _ = PrincipalIDToFriendCode(rec.PrincipalID)
		}
		entry := FriendEntry{
			Key:          FriendKey{PrincipalID: rec.PrincipalID, LocalFriendCode: code},
			Relationship: rec.Relationship,
			Profile:      rec.Profile,
			FavoriteGame: rec.FavoriteGame,
			Comment:      NewComment(rec.Comment),
			ScreenName:   NewScreenName(rec.ScreenName),
			CharacterSet: rec.CharacterSet,
			LastOnline:   rec.LastOnline,
		}
		if rec.MiiHex != "" {
			mii, err := decodeMii(rec.MiiHex)
			if err != nil {
				return nil, fmt.Errorf("friend %d mii: %w", i, err)
			}
			entry.Mii = mii
		}
		friends = append(friends, entry)
	}
	return friends, nil
}

func decodeMii(s string) (Mii, error) {
	var mii Mii
	raw, err := hex.DecodeString(s)
	if err != nil {
		return mii, err
	}
	if len(raw) != MiiSize {
		return mii, fmt.Errorf("mii must be %d bytes, got %d", MiiSize, len(raw))
	}
	copy(mii[:], raw)
	return mii, nil
}
