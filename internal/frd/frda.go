package frd

import "github.com/qiminjie89/frdsvc/internal/ipc"

// frd:a 在 frd:u 基础上增加的管理命令

func createLocalAccount(c *Call) (*ipc.Response, error) {
	return success(c.Reply())
}

func hasUserData(c *Call) (*ipc.Response, error) {
	return success(c.Reply())
}

func setPresenceGameKey(c *Call) (*ipc.Response, error) {
	game := ParseGameKey(c.Params.PopBytes(GameKeySize))
	c.State.SetPlaying(game)
	return success(c.Reply())
}

func setMyData(c *Call) (*ipc.Response, error) {
	return success(c.Reply())
}
