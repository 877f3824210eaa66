package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiminjie89/frdsvc/internal/ipc"
	"github.com/qiminjie89/frdsvc/internal/protocol"
)

// pipeConn 为 net.Conn 补上 transport.Conn 的 RemoteAddr 签名
type pipeConn struct {
	net.Conn
}

func (c pipeConn) RemoteAddr() string { return "pipe" }

// fakePeer 模拟服务端：读握手帧并按 ack 应答
func fakePeer(t *testing.T, ack protocol.ConnectAck) (net.Conn, *pipeConn) {
	t.Helper()
	server, cli := net.Pipe()
	t.Cleanup(func() { server.Close() })

	go func() {
		f, err := protocol.ReadFrame(server)
		if err != nil {
			return
		}
		_ = protocol.WriteFrame(server, &protocol.Frame{
			Type:    protocol.FrameConnectAck,
			Seq:     f.Seq,
			Payload: protocol.EncodeConnectAck(ack),
		})
	}()
	return server, &pipeConn{Conn: cli}
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestConnectRefused(t *testing.T) {
	_, conn := fakePeer(t, protocol.ConnectAck{Result: protocol.ResultOutOfSessions})
	_, err := Connect(testCtx(t), conn, protocol.ServiceFrdU)
	require.ErrorIs(t, err, protocol.ResultOutOfSessions)
}

func TestConnectUnexpectedReply(t *testing.T) {
	server, cli := net.Pipe()
	defer server.Close()
	go func() {
		f, err := protocol.ReadFrame(server)
		if err != nil {
			return
		}
		_ = protocol.WriteFrame(server, &protocol.Frame{Type: protocol.FrameReply, Seq: f.Seq})
	}()

	_, err := Connect(testCtx(t), &pipeConn{Conn: cli}, protocol.ServiceFrdU)
	require.ErrorIs(t, err, ErrUnexpectedAck)
}

func TestCallAndSignals(t *testing.T) {
	server, conn := fakePeer(t, protocol.ConnectAck{Slot: 3})
	c, err := Connect(testCtx(t), conn, protocol.ServiceFrdU)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Slot())
	assert.Equal(t, protocol.ServiceFrdU, c.Service())

	// 先发信号再应答，与服务端在命令处理中触发事件的顺序一致
	go func() {
		f, err := protocol.ReadFrame(server)
		if err != nil {
			return
		}
		_ = protocol.WriteFrame(server, &protocol.Frame{Type: protocol.FrameSignal, Payload: protocol.EncodeSignal(0x10)})
		raw, _ := ipc.EncodeResponse(ipc.NewBuilder(protocol.CmdHasLoggedIn).PushBool(true).Response(protocol.ResultSuccess))
		_ = protocol.WriteFrame(server, &protocol.Frame{Type: protocol.FrameReply, Seq: f.Seq, Payload: raw})
	}()

	online, err := c.HasLoggedIn(testCtx(t))
	require.NoError(t, err)
	assert.True(t, online)

	select {
	case h := <-c.Signals():
		assert.Equal(t, uint32(0x10), h)
	case <-time.After(time.Second):
		t.Fatal("signal not delivered")
	}
}

func TestResultCodeReturnedAsError(t *testing.T) {
	server, conn := fakePeer(t, protocol.ConnectAck{})
	c, err := Connect(testCtx(t), conn, protocol.ServiceFrdN)
	require.NoError(t, err)

	go func() {
		f, err := protocol.ReadFrame(server)
		if err != nil {
			return
		}
		raw, _ := ipc.EncodeResponse(ipc.ResultOnly(0, protocol.ResultInvalidCommand))
		_ = protocol.WriteFrame(server, &protocol.Frame{Type: protocol.FrameReply, Seq: f.Seq, Payload: raw})
	}()

	_, err = c.HasLoggedIn(testCtx(t))
	require.ErrorIs(t, err, protocol.ResultInvalidCommand)
}

func TestPeerCloseFailsPendingCalls(t *testing.T) {
	server, conn := fakePeer(t, protocol.ConnectAck{})
	c, err := Connect(testCtx(t), conn, protocol.ServiceFrdU)
	require.NoError(t, err)

	go func() {
		_, _ = protocol.ReadFrame(server)
		server.Close()
	}()

	_, err = c.HasLoggedIn(testCtx(t))
	require.Error(t, err)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("client not closed after peer close")
	}
	_, ok := <-c.Signals()
	assert.False(t, ok)

	_, err = c.HasLoggedIn(testCtx(t))
	require.Error(t, err)
}

func TestCloseSendsCloseFrame(t *testing.T) {
	server, conn := fakePeer(t, protocol.ConnectAck{})
	c, err := Connect(testCtx(t), conn, protocol.ServiceFrdU)
	require.NoError(t, err)

	got := make(chan uint32, 1)
	go func() {
		f, err := protocol.ReadFrame(server)
		if err == nil {
			got <- f.Type
		}
	}()

	require.NoError(t, c.Close())
	select {
	case typ := <-got:
		assert.Equal(t, protocol.FrameClose, typ)
	case <-time.After(time.Second):
		t.Fatal("close frame not sent")
	}
}
