package ipc

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiminjie89/frdsvc/internal/protocol"
)

func words(ws ...uint32) []byte {
	out := make([]byte, len(ws)*4)
	for i, w := range ws {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

func TestHeaderWord(t *testing.T) {
	assert.Equal(t, uint32(0x00110080), MakeHeader(0x11, 2, 0))
	assert.Equal(t, uint32(0x00320042), MakeHeader(0x32, 1, 2))

	h := ParseHeader(0x00220081)
	assert.Equal(t, uint16(0x22), h.CommandID)
	assert.Equal(t, 2, h.Normal)
	assert.Equal(t, 1, h.Translate)
}

func TestRequestRoundTrip(t *testing.T) {
	req := NewBuilder(0x1A).
		Push(3).
		PushU64(0x1122334455667788).
		PushProcessID().
		PushHandles(true, 0x10, 0x11).
		PushStatic(0, []byte{1, 2, 3, 4, 5}).
		PushMapped(PermWrite, make([]byte, 9)).
		Request()

	raw, err := EncodeRequest(req)
	require.NoError(t, err)

	got, err := DecodeRequest(raw)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1A), got.CommandID)
	assert.Equal(t, []uint32{3, 0x55667788, 0x11223344}, got.Normal)
	assert.Equal(t, []Kind{KindProcessID, KindHandle, KindStaticBuffer, KindMappedBuffer}, got.Kinds())
	assert.Equal(t, []uint32{0x10, 0x11}, got.Translate[1].Handles)
	assert.True(t, got.Translate[1].Move)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, got.Translate[2].Data)
	assert.Equal(t, PermWrite, got.Translate[3].Perm)
	assert.Len(t, got.Translate[3].Data, 9)

	hdr := got.Header()
	assert.Equal(t, 3, hdr.Normal)
	assert.Equal(t, 2+3+2+2, hdr.Translate)
}

func TestResponseRoundTrip(t *testing.T) {
	resp := NewBuilder(0x11).Push(2).PushStatic(0, make([]byte, 16)).Response(protocol.ResultSuccess)
	raw, err := EncodeResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, MakeHeader(0x11, 2, 2), binary.LittleEndian.Uint32(raw))

	got, err := DecodeResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, protocol.ResultSuccess, got.Result)
	assert.Equal(t, []uint32{2}, got.Normal)
	assert.Len(t, got.Translate[0].Data, 16)
}

func TestDecodeShortBuffer(t *testing.T) {
	// header 声明 4 个普通参数，实际只有 2 个字
	raw := words(MakeHeader(0x01, 4, 0), 0)
	_, err := DecodeRequest(raw)

	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	assert.ErrorIs(t, err, ErrShortBuffer)
	assert.Equal(t, uint16(0x01), derr.Header.CommandID)

	_, err = DecodeRequest([]byte{1, 2})
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestDecodeTooManyWords(t *testing.T) {
	raw := words(MakeHeader(0x01, 63, 10))
	raw = append(raw, make([]byte, 73*4)...)
	_, err := DecodeRequest(raw)
	assert.ErrorIs(t, err, ErrTooManyWords)
}

func TestDecodeDescriptorErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		err  error
	}{
		{
			name: "unknown descriptor",
			raw:  words(MakeHeader(0x01, 0, 2), 0x5, 0),
			err:  ErrUnknownDescriptor,
		},
		{
			name: "mapped without permission",
			raw:  words(MakeHeader(0x01, 0, 2), 0x8|4<<4, 0),
			err:  ErrUnknownDescriptor,
		},
		{
			name: "handle count overruns",
			raw:  words(MakeHeader(0x01, 0, 2), 2<<26, 0x10),
			err:  ErrDescriptorOverrun,
		},
		{
			name: "static missing offset",
			raw:  words(MakeHeader(0x01, 0, 1), 4<<14|0x2),
			err:  ErrDescriptorOverrun,
		},
		{
			name: "static beyond data",
			raw:  append(words(MakeHeader(0x01, 0, 2), 8<<14|0x2, 0), 1, 2, 3, 4),
			err:  ErrBufferOutOfRange,
		},
		{
			name: "mapped offset beyond data",
			raw:  append(words(MakeHeader(0x01, 0, 2), 2<<4|0x8|0x2, 6), 1, 2, 3, 4),
			err:  ErrBufferOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest(tt.raw)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestEncodeRejectsOversizedMessage(t *testing.T) {
	b := NewBuilder(0x01)
	for i := 0; i < 64; i++ {
		b.Push(uint32(i))
	}
	_, err := EncodeRequest(b.Request())
	assert.ErrorIs(t, err, ErrTooManyWords)
}

func TestParser(t *testing.T) {
	req := NewBuilder(0x13).
		Push(1).
		PushBytes([]byte("abcdef")).
		PushU64(42).
		PushStatic(0, []byte{9}).
		Request()

	p := NewParser(req)
	assert.True(t, p.PopBool())
	assert.Equal(t, []byte("abcdef"), p.PopBytes(6))
	assert.Equal(t, uint64(42), p.PopU64())
	assert.NoError(t, p.Err())

	assert.Nil(t, p.PopMapped())
	assert.ErrorIs(t, p.Err(), ErrUnexpectedKind)

	assert.Equal(t, uint32(0), p.Pop())
	assert.ErrorIs(t, p.Err(), ErrUnexpectedKind, "first error is kept")
}
