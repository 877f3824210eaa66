package protocol

import (
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/grpc/encoding"
)

func init() {
	encoding.RegisterCodec(MsgpackCodec{})
}

// CodecName gRPC 内容子类型名称
const CodecName = "msgpack"

// Encode 使用 msgpack 编码
func Encode(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Decode 使用 msgpack 解码
func Decode(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}

// MsgpackCodec 供 gRPC 使用的 msgpack 编解码器（实现 encoding.Codec），按内容子类型 "msgpack" 选用
type MsgpackCodec struct{}

// Marshal 编码
func (MsgpackCodec) Marshal(v any) ([]byte, error) {
	return Encode(v)
}

// Unmarshal 解码
func (MsgpackCodec) Unmarshal(data []byte, v any) error {
	return Decode(data, v)
}

// Name 返回编解码器名称
func (MsgpackCodec) Name() string {
	return CodecName
}
