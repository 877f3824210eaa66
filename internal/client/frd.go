package client

import (
	"context"

	"github.com/qiminjie89/frdsvc/internal/frd"
	"github.com/qiminjie89/frdsvc/internal/ipc"
	"github.com/qiminjie89/frdsvc/internal/protocol"
)

// invoke 发送请求，结果码非零时以 protocol.ResultCode 作为错误返回
func (c *Client) invoke(ctx context.Context, b *ipc.Builder) (*ipc.Parser, error) {
	resp, err := c.Call(ctx, b.Request())
	if err != nil {
		return nil, err
	}
	if resp.Result != protocol.ResultSuccess {
		return nil, resp.Result
	}
	return ipc.NewResponseParser(resp), nil
}

// HasLoggedIn 查询本机用户是否在线
func (c *Client) HasLoggedIn(ctx context.Context) (bool, error) {
	p, err := c.invoke(ctx, ipc.NewBuilder(protocol.CmdHasLoggedIn))
	if err != nil {
		return false, err
	}
	return p.PopBool(), p.Err()
}

// Login 登录，完成后服务端触发 event
func (c *Client) Login(ctx context.Context, event uint32) error {
	_, err := c.invoke(ctx, ipc.NewBuilder(protocol.CmdLogin).PushHandles(false, event))
	return err
}

// Logout 登出
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.invoke(ctx, ipc.NewBuilder(protocol.CmdLogout))
	return err
}

// GetMyFriendKey 返回本机用户的好友标识
func (c *Client) GetMyFriendKey(ctx context.Context) (frd.FriendKey, error) {
	p, err := c.invoke(ctx, ipc.NewBuilder(protocol.CmdGetMyFriendKey))
	if err != nil {
		return frd.FriendKey{}, err
	}
	keys := frd.ParseFriendKeys(p.PopBytes(frd.FriendKeySize))
	if err := p.Err(); err != nil || len(keys) == 0 {
		return frd.FriendKey{}, err
	}
	return keys[0], nil
}

// GetFriendKeyList 从 offset 起读取至多 maxCount 个好友标识
func (c *Client) GetFriendKeyList(ctx context.Context, offset, maxCount uint32) ([]frd.FriendKey, error) {
	p, err := c.invoke(ctx, ipc.NewBuilder(protocol.CmdGetFriendKeyList).Push(offset).Push(maxCount))
	if err != nil {
		return nil, err
	}
	count := int(p.Pop())
	keys := frd.ParseFriendKeys(p.PopStatic())
	if err := p.Err(); err != nil {
		return nil, err
	}
	return keys[:min(count, len(keys))], nil
}

// AttachToEventNotification 绑定通知事件
func (c *Client) AttachToEventNotification(ctx context.Context, event uint32) error {
	_, err := c.invoke(ctx, ipc.NewBuilder(protocol.CmdAttachToEventNotification).PushHandles(false, event))
	return err
}

// SetNotificationMask 设置通知屏蔽位（bit k 屏蔽类型 k）
func (c *Client) SetNotificationMask(ctx context.Context, mask uint32) error {
	_, err := c.invoke(ctx, ipc.NewBuilder(protocol.CmdSetNotificationMask).Push(mask))
	return err
}

// GetEventNotification 读取至多 maxCount 条待取通知，missed 表示有记录已被淘汰
func (c *Client) GetEventNotification(ctx context.Context, maxCount int) ([]frd.NotificationEvent, bool, error) {
	p, err := c.invoke(ctx, ipc.NewBuilder(protocol.CmdGetEventNotification).
		Push(uint32(maxCount)).
		PushMapped(ipc.PermWrite, make([]byte, maxCount*frd.NotificationEventSize)))
	if err != nil {
		return nil, false, err
	}
	flags := p.Pop()
	count := int(p.Pop())
	data := p.PopMapped()
	if err := p.Err(); err != nil {
		return nil, false, err
	}
	return frd.ParseNotificationEvents(data, count), flags&1 != 0, nil
}

// PrincipalIDToFriendCode 计算好友码
func (c *Client) PrincipalIDToFriendCode(ctx context.Context, principalID uint32) (uint64, error) {
	p, err := c.invoke(ctx, ipc.NewBuilder(protocol.CmdPrincipalIDToFriendCode).Push(principalID))
	if err != nil {
		return 0, err
	}
	return p.PopU64(), p.Err()
}

// GetWiFiEvent 返回服务持有的 Wi-Fi 状态事件句柄
func (c *Client) GetWiFiEvent(ctx context.Context) (uint32, error) {
	p, err := c.invoke(ctx, ipc.NewBuilder(protocol.CmdGetWiFiEvent))
	if err != nil {
		return 0, err
	}
	handles := p.PopHandles()
	if err := p.Err(); err != nil || len(handles) == 0 {
		return 0, err
	}
	return handles[0], nil
}

// ConnectToWiFi 发起 Wi-Fi 连接
func (c *Client) ConnectToWiFi(ctx context.Context) error {
	_, err := c.invoke(ctx, ipc.NewBuilder(protocol.CmdConnectToWiFi))
	return err
}

// GetWiFiState 返回 Wi-Fi 状态（0..3）
func (c *Client) GetWiFiState(ctx context.Context) (uint32, error) {
	p, err := c.invoke(ctx, ipc.NewBuilder(protocol.CmdGetWiFiState))
	if err != nil {
		return 0, err
	}
	return p.Pop(), p.Err()
}
