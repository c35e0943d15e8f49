package transport

import (
	"context"
	"errors"

	"modpoller/pkg/modbus"
	"modpoller/pkg/poller"
	"modpoller/pkg/utils/binutil"
)

var (
	ErrBadConn             = errors.New("modbus bad connection")
	ErrServerBadResp       = errors.New("modbus server bad response")
	ErrTransactionMismatch = errors.New("modbus transaction id mismatch")
	ErrSlaveMismatch       = errors.New("modbus slave id mismatch")
	ErrNoEndpoint          = errors.New("poll group has no endpoint")
)

var _ Client = (*TCPClient)(nil)
var _ Client = (*SerialClient)(nil)

// Client is one half-duplex channel to a field device. Read issues a single
// request and blocks for its response; callers serialize access themselves or
// rely on the client's internal lock.
type Client interface {
	Read(ctx context.Context, slave uint8, registerType modbus.RegisterType, address, quantity uint16) ([]uint16, error)
	Close() error
}

// Open picks the transport from the endpoint shape: a configured baud rate
// means a serial RTU device, anything else is Modbus TCP. Connections are
// established lazily on first read.
func Open(endpoint *poller.Endpoint) (Client, error) {
	if endpoint == nil {
		return nil, ErrNoEndpoint
	}
	if endpoint.Option != nil && endpoint.Option.BaudRate > 0 {
		return NewSerialClient(endpoint.Location, endpoint.Option)
	}
	port := 502
	if endpoint.Option != nil && endpoint.Option.Port > 0 {
		port = endpoint.Option.Port
	}
	return NewTCPClient(endpoint.Location, port), nil
}

// ReadFunc adapts a client to the scheduler's read callback.
func ReadFunc(client Client) poller.ReadFunc {
	return client.Read
}

// words unpacks a read response payload: bit registers expand LSB-first to
// one word per point, word registers pair big-endian bytes.
func words(registerType modbus.RegisterType, quantity uint16, data []byte) ([]uint16, error) {
	if registerType.IsBit() {
		need := int(quantity) / 8
		if quantity%8 != 0 {
			need++
		}
		if len(data) < need {
			return nil, ErrServerBadResp
		}
		return binutil.ExpandBits(data, int(quantity)), nil
	}
	if len(data) < int(quantity)*2 {
		return nil, ErrServerBadResp
	}
	return binutil.WordsFromBytes(data[:int(quantity)*2]), nil
}
