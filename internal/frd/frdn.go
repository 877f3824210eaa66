package frd

import "github.com/qiminjie89/frdsvc/internal/ipc"

// getWiFiEvent 把共享的无线事件放入会话句柄表，重复调用返回同一句柄
func getWiFiEvent(c *Call) (*ipc.Response, error) {
	handles := c.Session.Handles
	h, ok := handles.Lookup(c.State.WiFiEvent)
	if !ok {
		var err error
		if h, err = handles.Insert(c.State.WiFiEvent); err != nil {
			return nil, err
		}
	}
	return success(c.Reply().PushHandles(false, h))
}

func connectToWiFi(c *Call) (*ipc.Response, error) {
	if err := c.State.ConnectWiFi(); err != nil {
		return nil, err
	}
	return success(c.Reply())
}

func disconnectFromWiFi(c *Call) (*ipc.Response, error) {
	if err := c.State.DisconnectWiFi(uint8(c.Params.Pop())); err != nil {
		return nil, err
	}
	return success(c.Reply())
}

func getWiFiState(c *Call) (*ipc.Response, error) {
	return success(c.Reply().Push(c.State.WiFi.State()))
}
