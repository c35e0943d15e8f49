package modbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendCRC(adu []byte) []byte {
	sum := CRC16(adu)
	return append(adu, byte(sum), byte(sum>>8))
}

func TestBuildRTURequest(t *testing.T) {
	adu := BuildRTURequest(0x01, FuncReadHoldingRegisters, 0x0000, 0x000A)
	// 01 03 00 00 00 0A C5 CD
	assert.Equal(t, []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A, 0xC5, 0xCD}, adu)
}

func TestParseRTUFrameRoundTrip(t *testing.T) {
	tests := []struct {
		slave    uint8
		function FunctionCode
		address  uint16
		quantity uint16
	}{
		{1, FuncReadCoils, 0, 1},
		{17, FuncReadDiscreteInputs, 0x00C4, 0x0016},
		{1, FuncReadHoldingRegisters, 0x006B, 0x0003},
		{247, FuncReadInputRegisters, 0xFFFF, 0x007D},
	}
	for _, tt := range tests {
		adu := BuildRTURequest(tt.slave, tt.function, tt.address, tt.quantity)
		frame, err := ParseRTUFrame(adu)
		require.NoError(t, err, "function %v", tt.function)
		assert.Equal(t, tt.slave, frame.Slave)
		assert.Equal(t, tt.function, frame.Function)
		assert.NotEqual(t, FrameException, frame.Kind)
	}
}

func TestParseRTUFrameReadResponse(t *testing.T) {
	// slave 1, readHolding, 4 bytes payload
	adu := appendCRC([]byte{0x01, 0x03, 0x04, 0x00, 0x01, 0x00, 0x02})
	frame, err := ParseRTUFrame(adu)
	require.NoError(t, err)
	assert.Equal(t, FrameResponse, frame.Kind)
	assert.Equal(t, uint8(1), frame.Slave)
	assert.Equal(t, []byte{0x00, 0x01, 0x00, 0x02}, frame.Data)
}

func TestParseRTUFrameWriteEcho(t *testing.T) {
	adu := appendCRC([]byte{0x01, 0x10, 0x00, 0x64, 0x00, 0x02})
	frame, err := ParseRTUFrame(adu)
	require.NoError(t, err)
	assert.Equal(t, FrameResponse, frame.Kind)
	assert.Equal(t, FuncWriteMultipleRegisters, frame.Function)
	assert.Equal(t, uint16(0x0064), frame.Address)
	assert.Equal(t, uint16(0x0002), frame.Quantity)
}

func TestParseRTUFrameException(t *testing.T) {
	adu := appendCRC([]byte{0x11, 0x83, 0x02})
	frame, err := ParseRTUFrame(adu)
	require.NoError(t, err)
	assert.Equal(t, FrameException, frame.Kind)
	assert.Equal(t, FuncReadHoldingRegisters, frame.Function)
	assert.Equal(t, ExceptionIllegalDataAddress, frame.Exception)
}

func TestParseRTUFrameErrors(t *testing.T) {
	t.Run("short", func(t *testing.T) {
		_, err := ParseRTUFrame([]byte{0x01, 0x03})
		assert.ErrorIs(t, err, ErrShortFrame)
	})
	t.Run("crc mismatch", func(t *testing.T) {
		adu := BuildRTURequest(1, FuncReadCoils, 0, 1)
		adu[2] ^= 0xFF
		_, err := ParseRTUFrame(adu)
		assert.ErrorIs(t, err, ErrCRCMismatch)
	})
	t.Run("unknown function", func(t *testing.T) {
		_, err := ParseRTUFrame(appendCRC([]byte{0x01, 0x55, 0x00, 0x00}))
		assert.ErrorIs(t, err, ErrUnknownFunctionCode)
	})
}

func TestBuildRTUWriteMultiple(t *testing.T) {
	adu, err := BuildRTUWriteMultiple(0x01, FuncWriteMultipleRegisters, 0x0001, 0x0002, []byte{0x00, 0x0A, 0x01, 0x02})
	require.NoError(t, err)
	// byte count sits between quantity and payload
	assert.Equal(t, byte(0x04), adu[6])
	assert.Equal(t, []byte{0x00, 0x0A, 0x01, 0x02}, adu[7:11])
	sum := CRC16(adu[:len(adu)-2])
	assert.Equal(t, byte(sum), adu[len(adu)-2])
	assert.Equal(t, byte(sum>>8), adu[len(adu)-1])
}

func TestParseTCPFrame(t *testing.T) {
	t.Run("read response", func(t *testing.T) {
		adu := []byte{0x00, 0x07, 0x00, 0x00, 0x00, 0x05, 0x12, 0x03, 0x02, 0x01, 0x02}
		frame, err := ParseTCPFrame(adu)
		require.NoError(t, err)
		assert.Equal(t, FrameResponse, frame.Kind)
		assert.Equal(t, uint16(0x0007), frame.TransactionID)
		assert.Equal(t, uint8(0x12), frame.Slave)
		assert.Equal(t, []byte{0x01, 0x02}, frame.Data)
	})
	t.Run("exception", func(t *testing.T) {
		adu := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x03, 0x01, 0x81, 0x01}
		frame, err := ParseTCPFrame(adu)
		require.NoError(t, err)
		assert.Equal(t, FrameException, frame.Kind)
		assert.Equal(t, ExceptionIllegalFunction, frame.Exception)
	})
	t.Run("bad protocol id", func(t *testing.T) {
		adu := []byte{0x00, 0x01, 0x00, 0x01, 0x00, 0x03, 0x01, 0x81, 0x01}
		_, err := ParseTCPFrame(adu)
		assert.ErrorIs(t, err, ErrBadProtocolID)
	})
	t.Run("incomplete", func(t *testing.T) {
		adu := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x09, 0x01, 0x03, 0x02}
		_, err := ParseTCPFrame(adu)
		assert.ErrorIs(t, err, ErrIncompleteFrame)
	})
	t.Run("round trip", func(t *testing.T) {
		adu := BuildTCPRequest(42, 3, FuncReadInputRegisters, 0x0010, 0x0002)
		frame, err := ParseTCPFrame(adu)
		require.NoError(t, err)
		assert.Equal(t, uint16(42), frame.TransactionID)
		assert.Equal(t, uint8(3), frame.Slave)
		assert.Equal(t, FrameRequest, frame.Kind)
		assert.Equal(t, uint16(0x0010), frame.Address)
		assert.Equal(t, uint16(0x0002), frame.Quantity)
	})
}

func TestExceptionBitNeverResponse(t *testing.T) {
	for b := 0x81; b <= 0x90; b++ {
		adu := appendCRC([]byte{0x01, byte(b), 0x02})
		frame, err := ParseRTUFrame(adu)
		require.NoError(t, err)
		assert.Equal(t, FrameException, frame.Kind, "function byte 0x%02x", b)
	}
}

func TestExpectedRTUResponseLength(t *testing.T) {
	tests := []struct {
		function FunctionCode
		quantity uint16
		want     int
	}{
		{FuncReadCoils, 1, 6},
		{FuncReadCoils, 16, 7},
		{FuncReadCoils, 17, 8},
		{FuncReadHoldingRegisters, 2, 9},
		{FuncWriteMultipleRegisters, 2, 8},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpectedRTUResponseLength(tt.function, tt.quantity), "%v qty=%d", tt.function, tt.quantity)
	}
}
