package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

/*
传输层消息帧格式：
+-----------+----------+----------+---------------------------+
| FrameType |   Seq    |  Length  |          Payload          |
|  4 bytes  |  8 bytes |  4 bytes |  变长（IPC 命令缓冲区等）  |
+-----------+----------+----------+---------------------------+
帧头为大端序，Payload 内的 IPC 命令字为小端序。
*/

const (
	HeaderSize    = 16      // 4 + 8 + 4
	MaxPayloadLen = 1 << 20 // 1MB
)

var (
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrInvalidFrame    = errors.New("invalid frame")
)

// Frame 表示一个传输帧
type Frame struct {
	Type    uint32
	Seq     uint64
	Payload []byte
}

// EncodeFrame 编码传输帧
func EncodeFrame(f *Frame) []byte {
	payloadLen := len(f.Payload)
	buf := make([]byte, HeaderSize+payloadLen)

	binary.BigEndian.PutUint32(buf[0:4], f.Type)
	binary.BigEndian.PutUint64(buf[4:12], f.Seq)
	binary.BigEndian.PutUint32(buf[12:16], uint32(payloadLen))

	if payloadLen > 0 {
		copy(buf[HeaderSize:], f.Payload)
	}

	return buf
}

// DecodeFrame 解码传输帧
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, ErrInvalidFrame
	}

	frameType := binary.BigEndian.Uint32(data[0:4])
	seq := binary.BigEndian.Uint64(data[4:12])
	payloadLen := binary.BigEndian.Uint32(data[12:16])

	if payloadLen > MaxPayloadLen {
		return nil, ErrPayloadTooLarge
	}

	expectedLen := HeaderSize + int(payloadLen)
	if len(data) < expectedLen {
		return nil, ErrInvalidFrame
	}

	var payload []byte
	if payloadLen > 0 {
		payload = make([]byte, payloadLen)
		copy(payload, data[HeaderSize:expectedLen])
	}

	return &Frame{
		Type:    frameType,
		Seq:     seq,
		Payload: payload,
	}, nil
}

// ReadFrame 从 reader 读取一个帧
func ReadFrame(r io.Reader) (*Frame, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	frameType := binary.BigEndian.Uint32(header[0:4])
	seq := binary.BigEndian.Uint64(header[4:12])
	payloadLen := binary.BigEndian.Uint32(header[12:16])

	if payloadLen > MaxPayloadLen {
		return nil, ErrPayloadTooLarge
	}

	var payload []byte
	if payloadLen > 0 {
		payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}

	return &Frame{
		Type:    frameType,
		Seq:     seq,
		Payload: payload,
	}, nil
}

// WriteFrame 写入一个帧到 writer
func WriteFrame(w io.Writer, f *Frame) error {
	data := EncodeFrame(f)
	_, err := w.Write(data)
	return err
}

// ConnectAck 连接应答的 Payload：结果码 + 分配的槽位（小端序）
type ConnectAck struct {
	Result ResultCode
	Slot   uint32
}

// EncodeConnectAck 编码连接应答
func EncodeConnectAck(ack ConnectAck) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(ack.Result))
	binary.LittleEndian.PutUint32(buf[4:8], ack.Slot)
	return buf
}

// DecodeConnectAck 解码连接应答
func DecodeConnectAck(payload []byte) (ConnectAck, error) {
	if len(payload) < 8 {
		return ConnectAck{}, ErrInvalidFrame
	}
	return ConnectAck{
		Result: ResultCode(binary.LittleEndian.Uint32(payload[0:4])),
		Slot:   binary.LittleEndian.Uint32(payload[4:8]),
	}, nil
}

// EncodeSignal 编码事件触发帧的 Payload（句柄值，小端序）
func EncodeSignal(handle uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, handle)
	return buf
}

// DecodeSignal 解码事件触发帧
func DecodeSignal(payload []byte) (uint32, error) {
	if len(payload) < 4 {
		return 0, ErrInvalidFrame
	}
	return binary.LittleEndian.Uint32(payload), nil
}
