package transport

import (
	"context"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modpoller/pkg/modbus"
	"modpoller/pkg/poller"
	"modpoller/pkg/utils/binutil"
)

// pipeClient wires a client to an in-memory peer served by handler. The
// handler gets each raw request ADU and returns the raw response ADU.
func pipeClient(t *testing.T, handler func(request []byte) []byte) *TCPClient {
	t.Helper()
	c := NewTCPClient("127.0.0.1", 502)
	c.dial = func() (net.Conn, error) {
		local, remote := net.Pipe()
		go func() {
			defer remote.Close()
			for {
				request := make([]byte, 12)
				if _, err := io.ReadFull(remote, request); err != nil {
					return
				}
				response := handler(request)
				if response == nil {
					return
				}
				if _, err := remote.Write(response); err != nil {
					return
				}
			}
		}()
		return local, nil
	}
	return c
}

func holdingResponse(request []byte, values ...uint16) []byte {
	response := make([]byte, 9+len(values)*2)
	copy(response, request[:2]) // echo transaction id
	binutil.WriteUint16(response[4:], uint16(3+len(values)*2))
	response[6] = request[6]
	response[7] = request[7]
	response[8] = byte(len(values) * 2)
	copy(response[9:], binutil.BytesFromWords(values))
	return response
}

func TestTCPClientReadHolding(t *testing.T) {
	c := pipeClient(t, func(request []byte) []byte {
		assert.Equal(t, byte(1), request[6])
		assert.Equal(t, byte(3), request[7])
		assert.Equal(t, uint16(0x0010), binutil.ParseUint16(request[8:]))
		assert.Equal(t, uint16(2), binutil.ParseUint16(request[10:]))
		return holdingResponse(request, 0x0102, 0x0304)
	})
	defer c.Close()

	values, err := c.Read(context.Background(), 1, modbus.Holding, 0x0010, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x0102, 0x0304}, values)
}

func TestTCPClientReadCoils(t *testing.T) {
	c := pipeClient(t, func(request []byte) []byte {
		response := make([]byte, 10)
		copy(response, request[:2])
		binutil.WriteUint16(response[4:], 4)
		response[6] = request[6]
		response[7] = request[7]
		response[8] = 1
		response[9] = 0b0000_0101
		return response
	})
	defer c.Close()

	values, err := c.Read(context.Background(), 1, modbus.Coil, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 0, 1}, values)
}

func TestTCPClientException(t *testing.T) {
	c := pipeClient(t, func(request []byte) []byte {
		response := make([]byte, 9)
		copy(response, request[:2])
		binutil.WriteUint16(response[4:], 3)
		response[6] = request[6]
		response[7] = request[7] | 0x80
		response[8] = byte(modbus.ExceptionIllegalDataAddress)
		return response
	})
	defer c.Close()

	_, err := c.Read(context.Background(), 1, modbus.Holding, 0xFFFF, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, modbus.ExceptionIllegalDataAddress)
}

func TestTCPClientTransactionMismatch(t *testing.T) {
	c := pipeClient(t, func(request []byte) []byte {
		response := holdingResponse(request, 1)
		binutil.WriteUint16(response, 0x7777)
		return response
	})
	defer c.Close()

	_, err := c.Read(context.Background(), 1, modbus.Holding, 0, 1)
	assert.ErrorIs(t, err, ErrTransactionMismatch)
}

func TestTCPClientReconnects(t *testing.T) {
	dials := 0
	c := pipeClient(t, func(request []byte) []byte {
		return holdingResponse(request, 9)
	})
	inner := c.dial
	c.dial = func() (net.Conn, error) {
		dials++
		if dials == 1 {
			local, remote := net.Pipe()
			remote.Close() // first connection dies immediately
			return local, nil
		}
		return inner()
	}

	_, err := c.Read(context.Background(), 1, modbus.Holding, 0, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadConn)

	values, err := c.Read(context.Background(), 1, modbus.Holding, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint16{9}, values)
	assert.Equal(t, 2, dials)
}

func TestTCPClientShortQuantityResponse(t *testing.T) {
	c := pipeClient(t, func(request []byte) []byte {
		return holdingResponse(request, 1) // caller asked for two words
	})
	defer c.Close()

	_, err := c.Read(context.Background(), 1, modbus.Holding, 0, 2)
	assert.ErrorIs(t, err, ErrServerBadResp)
}

func TestOpenPicksTransport(t *testing.T) {
	tcp, err := Open(&poller.Endpoint{
		Location: "192.168.0.7",
		Option:   &poller.EndpointOption{Port: 1502},
	})
	require.NoError(t, err)
	assert.IsType(t, &TCPClient{}, tcp)

	rtu, err := Open(&poller.Endpoint{
		Location: "/dev/ttyUSB0",
		Option:   &poller.EndpointOption{BaudRate: 9600, DataBits: 8, Parity: "N", StopBits: "1"},
	})
	require.NoError(t, err)
	assert.IsType(t, &SerialClient{}, rtu)

	_, err = Open(&poller.Endpoint{
		Location: "/dev/ttyUSB0",
		Option:   &poller.EndpointOption{BaudRate: 9600, DataBits: 8, Parity: "X", StopBits: "1"},
	})
	assert.ErrorIs(t, err, ErrSerialOption)

	_, err = Open(nil)
	assert.ErrorIs(t, err, ErrNoEndpoint)
}
