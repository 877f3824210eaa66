package ipc

import (
	"encoding/binary"

	"github.com/qiminjie89/frdsvc/internal/protocol"
)

// 描述符位
const (
	descHandleMask   = 0xF
	descMoveFlag     = 0x10
	descProcessID    = 0x20
	descStaticTag    = 0x2
	descStaticMask   = 0xF
	descMappedFlag   = 0x8
	descMappedLowBit = 0x1
)

// DecodeRequest 解码请求命令缓冲区
// raw 由命令字区与紧随其后的数据区组成
func DecodeRequest(raw []byte) (*Request, error) {
	hdr, normal, translate, err := decodeMessage(raw)
	if err != nil {
		return nil, err
	}
	return &Request{CommandID: hdr.CommandID, Normal: normal, Translate: translate}, nil
}

// DecodeResponse 解码应答命令缓冲区（客户端使用）
func DecodeResponse(raw []byte) (*Response, error) {
	hdr, normal, translate, err := decodeMessage(raw)
	if err != nil {
		return nil, err
	}
	if len(normal) == 0 {
		return nil, &DecodeError{Header: hdr, Offset: 1, Err: ErrShortBuffer}
	}
	return &Response{
		CommandID: hdr.CommandID,
		Result:    protocol.ResultCode(normal[0]),
		Normal:    normal[1:],
		Translate: translate,
	}, nil
}

// EncodeRequest 编码请求
func EncodeRequest(req *Request) ([]byte, error) {
	return encodeMessage(req.CommandID, req.Normal, req.Translate)
}

// EncodeResponse 编码应答，结果码写在 word 1
func EncodeResponse(resp *Response) ([]byte, error) {
	normal := make([]uint32, 0, 1+len(resp.Normal))
	normal = append(normal, uint32(resp.Result))
	normal = append(normal, resp.Normal...)
	return encodeMessage(resp.CommandID, normal, resp.Translate)
}

func decodeMessage(raw []byte) (Header, []uint32, []TranslateParam, error) {
	if len(raw) < 4 {
		return Header{}, nil, nil, &DecodeError{Err: ErrShortBuffer}
	}
	hdr := ParseHeader(binary.LittleEndian.Uint32(raw))
	total := 1 + hdr.Normal + hdr.Translate
	if total > MaxWords {
		return hdr, nil, nil, &DecodeError{Header: hdr, Err: ErrTooManyWords}
	}
	cmdLen := total * 4
	if len(raw) < cmdLen {
		return hdr, nil, nil, &DecodeError{Header: hdr, Offset: len(raw) / 4, Err: ErrShortBuffer}
	}

	words := make([]uint32, total)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	data := raw[cmdLen:]

	var normal []uint32
	if hdr.Normal > 0 {
		normal = words[1 : 1+hdr.Normal]
	}

	var translate []TranslateParam
	area := words[1+hdr.Normal:]
	for i := 0; i < len(area); {
		desc := area[i]
		offset := 1 + hdr.Normal + i
		fail := func(err error) (Header, []uint32, []TranslateParam, error) {
			return hdr, nil, nil, &DecodeError{Header: hdr, Offset: offset, Err: err}
		}

		switch {
		case desc&descHandleMask == 0:
			if desc&descProcessID != 0 {
				if i+2 > len(area) {
					return fail(ErrDescriptorOverrun)
				}
				translate = append(translate, TranslateParam{Kind: KindProcessID, ProcessID: area[i+1]})
				i += 2
				continue
			}
			count := int(desc>>26) + 1
			if i+1+count > len(area) {
				return fail(ErrDescriptorOverrun)
			}
			handles := make([]uint32, count)
			copy(handles, area[i+1:i+1+count])
			translate = append(translate, TranslateParam{
				Kind:    KindHandle,
				Handles: handles,
				Move:    desc&descMoveFlag != 0,
			})
			i += 1 + count

		case desc&descStaticMask == descStaticTag:
			if i+2 > len(area) {
				return fail(ErrDescriptorOverrun)
			}
			size := int(desc >> 14)
			buf, err := sliceData(data, area[i+1], size)
			if err != nil {
				return fail(err)
			}
			translate = append(translate, TranslateParam{
				Kind:     KindStaticBuffer,
				BufferID: uint8((desc >> 10) & 0xF),
				Data:     buf,
			})
			i += 2

		case desc&descMappedFlag != 0 && desc&descMappedLowBit == 0:
			perm := MappedPerm((desc >> 1) & 0x3)
			if perm == 0 {
				return fail(ErrUnknownDescriptor)
			}
			if i+2 > len(area) {
				return fail(ErrDescriptorOverrun)
			}
			size := int(desc >> 4)
			buf, err := sliceData(data, area[i+1], size)
			if err != nil {
				return fail(err)
			}
			translate = append(translate, TranslateParam{Kind: KindMappedBuffer, Perm: perm, Data: buf})
			i += 2

		default:
			return fail(ErrUnknownDescriptor)
		}
	}
	return hdr, normal, translate, nil
}

func sliceData(data []byte, offsetWord uint32, size int) ([]byte, error) {
	off := int(offsetWord)
	if off < 0 || size < 0 || off > len(data) || size > len(data)-off {
		return nil, ErrBufferOutOfRange
	}
	buf := make([]byte, size)
	copy(buf, data[off:off+size])
	return buf, nil
}

func encodeMessage(commandID uint16, normal []uint32, translate []TranslateParam) ([]byte, error) {
	tw := translateWords(translate)
	hdr := Header{CommandID: commandID, Normal: len(normal), Translate: tw}
	if hdr.Normal > MaxParamCount || hdr.Translate > MaxParamCount || 1+hdr.Normal+hdr.Translate > MaxWords {
		return nil, &DecodeError{Header: hdr, Err: ErrTooManyWords}
	}

	words := make([]uint32, 0, 1+hdr.Normal+hdr.Translate)
	words = append(words, hdr.Word())
	words = append(words, normal...)

	var data []byte
	for _, p := range translate {
		switch p.Kind {
		case KindHandle:
			if len(p.Handles) == 0 || len(p.Handles) > 64 {
				return nil, &DecodeError{Header: hdr, Offset: len(words), Err: ErrUnknownDescriptor}
			}
			desc := uint32(len(p.Handles)-1) << 26
			if p.Move {
				desc |= descMoveFlag
			}
			words = append(words, desc)
			words = append(words, p.Handles...)
		case KindProcessID:
			words = append(words, descProcessID, p.ProcessID)
		case KindStaticBuffer:
			if len(p.Data) > maxStaticSize {
				return nil, &DecodeError{Header: hdr, Offset: len(words), Err: ErrBufferTooLarge}
			}
			desc := uint32(len(p.Data))<<14 | uint32(p.BufferID&0xF)<<10 | descStaticTag
			words = append(words, desc, uint32(len(data)))
			data = append(data, p.Data...)
		case KindMappedBuffer:
			if len(p.Data) > maxMappedSize {
				return nil, &DecodeError{Header: hdr, Offset: len(words), Err: ErrBufferTooLarge}
			}
			perm := p.Perm
			if perm == 0 {
				perm = PermRead
			}
			desc := uint32(len(p.Data))<<4 | descMappedFlag | uint32(perm&0x3)<<1
			words = append(words, desc, uint32(len(data)))
			data = append(data, p.Data...)
		default:
			return nil, &DecodeError{Header: hdr, Offset: len(words), Err: ErrUnknownDescriptor}
		}
	}

	out := make([]byte, len(words)*4, len(words)*4+len(data))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return append(out, data...), nil
}
