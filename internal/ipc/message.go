// Package ipc 实现 IPC 命令缓冲区的编解码
//
// 命令缓冲区布局（小端序 u32 字）：
//
//	word 0      header = command_id<<16 | normal_count<<6 | translate_count
//	word 1..n   普通参数字
//	word n+1..  转换参数（句柄描述符、缓冲区描述符）
//	之后        数据区：静态缓冲区与映射缓冲区的内容
//
// 缓冲区描述符后的一个字是其内容在数据区中的偏移。
package ipc

import "github.com/qiminjie89/frdsvc/internal/protocol"

const (
	// MaxWords 命令缓冲区最多 64 个字（0x100 字节）
	MaxWords = 64
	// MaxParamCount header 中普通/转换参数计数字段的上限（6 bit）
	MaxParamCount = 0x3F

	maxStaticSize = 1<<18 - 1
	maxMappedSize = 1<<28 - 1
)

// Kind 转换参数类型
type Kind uint8

const (
	KindHandle       Kind = iota + 1 // 句柄（复制或移动）
	KindProcessID                    // 调用进程 ID
	KindStaticBuffer                 // 静态缓冲区
	KindMappedBuffer                 // 映射缓冲区
)

// String 返回参数类型名称
func (k Kind) String() string {
	switch k {
	case KindHandle:
		return "handle"
	case KindProcessID:
		return "process_id"
	case KindStaticBuffer:
		return "static_buffer"
	case KindMappedBuffer:
		return "mapped_buffer"
	default:
		return "unknown"
	}
}

// MappedPerm 映射缓冲区权限
type MappedPerm uint8

const (
	PermRead      MappedPerm = 1
	PermWrite     MappedPerm = 2
	PermReadWrite MappedPerm = 3
)

// Header 命令头
type Header struct {
	CommandID uint16
	Normal    int
	Translate int
}

// Word 编码为 header 字
func (h Header) Word() uint32 {
	return uint32(h.CommandID)<<16 | uint32(h.Normal&MaxParamCount)<<6 | uint32(h.Translate&MaxParamCount)
}

// ParseHeader 解析 header 字
func ParseHeader(word uint32) Header {
	return Header{
		CommandID: uint16(word >> 16),
		Normal:    int((word >> 6) & MaxParamCount),
		Translate: int(word & MaxParamCount),
	}
}

// MakeHeader 构造 header 字
func MakeHeader(commandID uint16, normal, translate int) uint32 {
	return Header{CommandID: commandID, Normal: normal, Translate: translate}.Word()
}

// TranslateParam 转换参数
type TranslateParam struct {
	Kind Kind

	// KindHandle
	Handles []uint32
	Move    bool

	// KindProcessID
	ProcessID uint32

	// KindStaticBuffer / KindMappedBuffer
	BufferID uint8
	Perm     MappedPerm
	Data     []byte
}

// Words 返回该参数在命令缓冲区中占用的字数
func (p TranslateParam) Words() int {
	switch p.Kind {
	case KindHandle:
		return 1 + len(p.Handles)
	default:
		return 2
	}
}

// Request IPC 命令请求（解码后不可变）
type Request struct {
	CommandID uint16
	Normal    []uint32
	Translate []TranslateParam
}

// Header 返回请求的命令头
func (r *Request) Header() Header {
	return Header{CommandID: r.CommandID, Normal: len(r.Normal), Translate: translateWords(r.Translate)}
}

// Kinds 返回转换参数类型序列
func (r *Request) Kinds() []Kind {
	kinds := make([]Kind, len(r.Translate))
	for i, p := range r.Translate {
		kinds[i] = p.Kind
	}
	return kinds
}

// Response IPC 命令应答
// 线上格式中 word 1 固定为结果码，Normal 为其后的普通参数
type Response struct {
	CommandID uint16
	Result    protocol.ResultCode
	Normal    []uint32
	Translate []TranslateParam
}

// Header 返回应答的命令头（普通参数计数包含结果码）
func (r *Response) Header() Header {
	return Header{CommandID: r.CommandID, Normal: 1 + len(r.Normal), Translate: translateWords(r.Translate)}
}

// Kinds 返回转换参数类型序列
func (r *Response) Kinds() []Kind {
	kinds := make([]Kind, len(r.Translate))
	for i, p := range r.Translate {
		kinds[i] = p.Kind
	}
	return kinds
}

// ResultOnly 构造只含结果码的应答
func ResultOnly(commandID uint16, result protocol.ResultCode) *Response {
	return &Response{CommandID: commandID, Result: result}
}

func translateWords(params []TranslateParam) int {
	total := 0
	for _, p := range params {
		total += p.Words()
	}
	return total
}
