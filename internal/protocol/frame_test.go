package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTripThroughReader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, &Frame{Type: FrameRequest, Seq: 7, Payload: []byte{1, 2, 3}}))
	require.NoError(t, WriteFrame(&buf, &Frame{Type: FrameClose, Seq: 8}))

	first, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, FrameRequest, first.Type)
	assert.Equal(t, uint64(7), first.Seq)
	assert.Equal(t, []byte{1, 2, 3}, first.Payload)

	second, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, FrameClose, second.Type)
	assert.Nil(t, second.Payload)
}

func TestDecodeFrameRejectsTruncatedPayload(t *testing.T) {
	data := EncodeFrame(&Frame{Type: FrameRequest, Payload: make([]byte, 32)})

	_, err := DecodeFrame(data[:HeaderSize+10])
	assert.ErrorIs(t, err, ErrInvalidFrame)

	_, err = DecodeFrame(data[:4])
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestConnectAckAndSignalPayloads(t *testing.T) {
	ack, err := DecodeConnectAck(EncodeConnectAck(ConnectAck{Result: ResultOutOfSessions, Slot: 3}))
	require.NoError(t, err)
	assert.Equal(t, ResultOutOfSessions, ack.Result)
	assert.Equal(t, uint32(3), ack.Slot)

	handle, err := DecodeSignal(EncodeSignal(0x1234))
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1234), handle)

	_, err = DecodeSignal([]byte{1})
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestResultCodeHelpers(t *testing.T) {
	assert.True(t, ResultSuccess.IsSuccess())
	assert.False(t, ResultInvalidCommand.IsSuccess())
	assert.Equal(t, uint32(0x31), ResultInvalidFriendCode.Module())
	assert.Equal(t, "missing_data", ResultMissingData.Name())
	assert.Contains(t, ResultMissingData.Error(), "C8A0C7EF")
}
