package ipc

import "github.com/qiminjie89/frdsvc/internal/protocol"

// Builder 按顺序组装普通参数与转换参数
type Builder struct {
	commandID uint16
	normal    []uint32
	translate []TranslateParam
}

// NewBuilder 创建 Builder
func NewBuilder(commandID uint16) *Builder {
	return &Builder{commandID: commandID}
}

// Push 追加一个字
func (b *Builder) Push(w uint32) *Builder {
	b.normal = append(b.normal, w)
	return b
}

// PushBool 追加布尔值（0/1）
func (b *Builder) PushBool(v bool) *Builder {
	if v {
		return b.Push(1)
	}
	return b.Push(0)
}

// PushU64 追加 64 位值（低字在前）
func (b *Builder) PushU64(v uint64) *Builder {
	return b.Push(uint32(v)).Push(uint32(v >> 32))
}

// PushBytes 追加原始字节，按字补零对齐
func (b *Builder) PushBytes(data []byte) *Builder {
	for i := 0; i < len(data); i += 4 {
		var w uint32
		for j := 0; j < 4 && i+j < len(data); j++ {
			w |= uint32(data[i+j]) << (8 * j)
		}
		b.normal = append(b.normal, w)
	}
	return b
}

// PushHandles 追加句柄描述符
func (b *Builder) PushHandles(move bool, handles ...uint32) *Builder {
	b.translate = append(b.translate, TranslateParam{Kind: KindHandle, Move: move, Handles: handles})
	return b
}

// PushProcessID 追加进程 ID 描述符（由服务端覆盖真实值）
func (b *Builder) PushProcessID() *Builder {
	b.translate = append(b.translate, TranslateParam{Kind: KindProcessID})
	return b
}

// PushStatic 追加静态缓冲区
func (b *Builder) PushStatic(id uint8, data []byte) *Builder {
	b.translate = append(b.translate, TranslateParam{Kind: KindStaticBuffer, BufferID: id, Data: data})
	return b
}

// PushMapped 追加映射缓冲区
func (b *Builder) PushMapped(perm MappedPerm, data []byte) *Builder {
	b.translate = append(b.translate, TranslateParam{Kind: KindMappedBuffer, Perm: perm, Data: data})
	return b
}

// Request 生成请求
func (b *Builder) Request() *Request {
	return &Request{CommandID: b.commandID, Normal: b.normal, Translate: b.translate}
}

// Response 生成应答
func (b *Builder) Response(result protocol.ResultCode) *Response {
	return &Response{CommandID: b.commandID, Result: result, Normal: b.normal, Translate: b.translate}
}

// Parser 顺序读取请求参数
// 普通参数读尽后返回零值并记录错误，调用方在末尾检查 Err
type Parser struct {
	normal    []uint32
	translate []TranslateParam
	ni, ti    int
	err       error
}

// NewParser 创建请求参数读取器
func NewParser(req *Request) *Parser {
	return &Parser{normal: req.Normal, translate: req.Translate}
}

// NewResponseParser 创建应答参数读取器（不含结果码）
func NewResponseParser(resp *Response) *Parser {
	return &Parser{normal: resp.Normal, translate: resp.Translate}
}

// Err 返回首个读取错误
func (p *Parser) Err() error {
	return p.err
}

// Pop 读取一个字
func (p *Parser) Pop() uint32 {
	if p.ni >= len(p.normal) {
		p.setErr(ErrParamExhausted)
		return 0
	}
	w := p.normal[p.ni]
	p.ni++
	return w
}

// PopBool 读取布尔值（非零为真）
func (p *Parser) PopBool() bool {
	return p.Pop()&0xFF != 0
}

// PopU64 读取 64 位值
func (p *Parser) PopU64() uint64 {
	lo := p.Pop()
	hi := p.Pop()
	return uint64(hi)<<32 | uint64(lo)
}

// PopBytes 读取 n 字节（占用 ceil(n/4) 个字）
func (p *Parser) PopBytes(n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n; i += 4 {
		w := p.Pop()
		for j := 0; j < 4 && i+j < n; j++ {
			out[i+j] = byte(w >> (8 * j))
		}
	}
	return out
}

// PopTranslate 读取指定类型的转换参数
func (p *Parser) PopTranslate(kind Kind) TranslateParam {
	if p.ti >= len(p.translate) {
		p.setErr(ErrParamExhausted)
		return TranslateParam{Kind: kind}
	}
	param := p.translate[p.ti]
	p.ti++
	if param.Kind != kind {
		p.setErr(ErrUnexpectedKind)
		return TranslateParam{Kind: kind}
	}
	return param
}

// PopHandles 读取句柄
func (p *Parser) PopHandles() []uint32 {
	return p.PopTranslate(KindHandle).Handles
}

// PopProcessID 读取进程 ID
func (p *Parser) PopProcessID() uint32 {
	return p.PopTranslate(KindProcessID).ProcessID
}

// PopStatic 读取静态缓冲区内容
func (p *Parser) PopStatic() []byte {
	return p.PopTranslate(KindStaticBuffer).Data
}

// PopMapped 读取映射缓冲区内容
func (p *Parser) PopMapped() []byte {
	return p.PopTranslate(KindMappedBuffer).Data
}

func (p *Parser) setErr(err error) {
	if p.err == nil {
		p.err = err
	}
}
