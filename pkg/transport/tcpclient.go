package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"k8s.io/klog/v2"

	"modpoller/pkg/modbus"
	"modpoller/pkg/utils/binutil"
)

const defaultTimeout = 1 * time.Second

// TCPClient speaks Modbus TCP over a single connection. The connection is
// dialed on first use and dropped on any transport error, so the next read
// reconnects. A mutex serializes requests; Modbus slaves answer one request
// at a time anyway.
type TCPClient struct {
	address     string
	timeout     time.Duration
	dial        func() (net.Conn, error)
	transaction *atomic.Uint32

	mu   sync.Mutex
	conn net.Conn
}

func NewTCPClient(host string, port int) *TCPClient {
	address := fmt.Sprintf("%s:%d", host, port)
	c := &TCPClient{
		address:     address,
		timeout:     defaultTimeout,
		transaction: atomic.NewUint32(0),
	}
	c.dial = func() (net.Conn, error) {
		return net.DialTimeout("tcp", address, c.timeout)
	}
	return c
}

func (c *TCPClient) Read(ctx context.Context, slave uint8, registerType modbus.RegisterType, address, quantity uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, err := c.dial()
		if err != nil {
			klog.V(2).InfoS("Failed to connect modbus server", "address", c.address, "err", err)
			return nil, errors.Wrap(ErrBadConn, err.Error())
		}
		c.conn = conn
	}

	transactionID := uint16(c.transaction.Inc())
	request := modbus.BuildTCPRequest(transactionID, slave, registerType.ReadFunction(), address, quantity)

	adu, err := c.ask(ctx, request)
	if err != nil {
		c.drop()
		return nil, err
	}

	frame, err := modbus.ParseTCPFrame(adu)
	if err != nil {
		return nil, errors.Wrap(ErrServerBadResp, err.Error())
	}
	if frame.TransactionID != transactionID {
		return nil, ErrTransactionMismatch
	}
	if frame.Kind == modbus.FrameException {
		return nil, frame.Exception
	}
	return words(registerType, quantity, frame.Data)
}

// ask writes the request and reassembles one response ADU: the 7 byte MBAP
// header first, then exactly the declared remainder.
func (c *TCPClient) ask(ctx context.Context, request []byte) ([]byte, error) {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, errors.Wrap(ErrBadConn, err.Error())
	}

	if _, err := c.conn.Write(request); err != nil {
		klog.V(2).InfoS("Failed to write modbus request", "address", c.address, "err", err)
		return nil, errors.Wrap(ErrBadConn, err.Error())
	}

	header := make([]byte, 7)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		klog.V(2).InfoS("Failed to read modbus response header", "address", c.address, "err", err)
		return nil, errors.Wrap(ErrBadConn, err.Error())
	}
	remaining := int(binutil.ParseUint16(header[4:])) - 1 // unit id already read
	if remaining < 1 || remaining > 253 {
		return nil, ErrServerBadResp
	}
	adu := make([]byte, 7+remaining)
	copy(adu, header)
	if _, err := io.ReadFull(c.conn, adu[7:]); err != nil {
		klog.V(2).InfoS("Failed to read modbus response body", "address", c.address, "err", err)
		return nil, errors.Wrap(ErrBadConn, err.Error())
	}
	return adu, nil
}

func (c *TCPClient) drop() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *TCPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drop()
	return nil
}
