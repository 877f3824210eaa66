package ipc

import (
	"errors"
	"fmt"
)

var (
	ErrShortBuffer       = errors.New("command buffer shorter than header declares")
	ErrTooManyWords      = errors.New("command exceeds 64 words")
	ErrUnknownDescriptor = errors.New("unknown translate descriptor")
	ErrDescriptorOverrun = errors.New("translate descriptor overruns translate area")
	ErrBufferOutOfRange  = errors.New("buffer exceeds transferred data")
	ErrBufferTooLarge    = errors.New("buffer too large for descriptor")
	ErrParamExhausted    = errors.New("no more parameters")
	ErrUnexpectedKind    = errors.New("unexpected translate parameter kind")
)

// DecodeError 命令缓冲区解码失败
type DecodeError struct {
	Header Header
	Offset int // 出错位置（字索引）
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode command 0x%04X at word %d: %v", e.Header.CommandID, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
