package transport

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"k8s.io/klog/v2"

	"modpoller/pkg/modbus"
	"modpoller/pkg/poller"
)

var stringToStopBits = map[string]serial.StopBits{
	"1":   serial.OneStopBit,
	"1.5": serial.OnePointFiveStopBits,
	"2":   serial.TwoStopBits,
}

var stringToParity = map[string]serial.Parity{
	"N": serial.NoParity,
	"O": serial.OddParity,
	"E": serial.EvenParity,
}

var ErrSerialOption = errors.New("invalid serial option")

// SerialClient speaks Modbus RTU over one serial line. RTU has no framing
// beyond silence, so the reader collects bytes until the response length the
// request predicts has arrived. The port opens lazily and reopens after
// errors.
type SerialClient struct {
	location string
	mode     *serial.Mode
	timeout  time.Duration
	open     func() (serial.Port, error)

	mu   sync.Mutex
	port serial.Port
}

func NewSerialClient(location string, option *poller.EndpointOption) (*SerialClient, error) {
	parity, ok := stringToParity[option.Parity]
	if !ok {
		return nil, errors.Wrap(ErrSerialOption, "parity "+option.Parity)
	}
	stopBits, ok := stringToStopBits[option.StopBits]
	if !ok {
		return nil, errors.Wrap(ErrSerialOption, "stopBits "+option.StopBits)
	}
	mode := &serial.Mode{
		BaudRate: option.BaudRate,
		DataBits: option.DataBits,
		Parity:   parity,
		StopBits: stopBits,
	}
	c := &SerialClient{
		location: location,
		mode:     mode,
		timeout:  defaultTimeout,
	}
	c.open = func() (serial.Port, error) {
		return serial.Open(location, mode)
	}
	return c, nil
}

func (c *SerialClient) Read(ctx context.Context, slave uint8, registerType modbus.RegisterType, address, quantity uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if c.port == nil {
		port, err := c.open()
		if err != nil {
			klog.V(2).InfoS("Failed to open serial port", "location", c.location, "err", err)
			return nil, errors.Wrap(ErrBadConn, err.Error())
		}
		c.port = port
	}

	function := registerType.ReadFunction()
	request := modbus.BuildRTURequest(slave, function, address, quantity)
	expected := modbus.ExpectedRTUResponseLength(function, quantity)

	adu, err := c.ask(request, expected)
	if err != nil {
		c.drop()
		return nil, err
	}

	frame, err := modbus.ParseRTUFrame(adu)
	if err != nil {
		return nil, errors.Wrap(ErrServerBadResp, err.Error())
	}
	if frame.Slave != slave {
		return nil, ErrSlaveMismatch
	}
	if frame.Kind == modbus.FrameException {
		return nil, frame.Exception
	}
	return words(registerType, quantity, frame.Data)
}

// ask writes the request and reads until the expected ADU length arrived. An
// exception response is shorter than a data response, so once the function
// byte shows the exception bit the target shrinks to the 5 byte exception
// frame. A zero length read means the port timed out mid frame.
func (c *SerialClient) ask(request []byte, expected int) ([]byte, error) {
	n, err := c.port.Write(request)
	if err != nil {
		klog.V(2).InfoS("Failed to write to serial port", "location", c.location, "err", err)
		return nil, errors.Wrap(ErrBadConn, err.Error())
	}
	klog.V(5).InfoS("Wrote modbus rtu request", "location", c.location, "length", n)

	if err := c.port.SetReadTimeout(c.timeout); err != nil {
		return nil, errors.Wrap(ErrBadConn, err.Error())
	}

	adu := make([]byte, 0, expected)
	buf := make([]byte, 256)
	for len(adu) < expected {
		n, err := c.port.Read(buf)
		if err != nil {
			klog.V(2).InfoS("Failed to read from serial port", "location", c.location, "err", err)
			return nil, errors.Wrap(ErrBadConn, err.Error())
		}
		if n == 0 {
			return nil, errors.Wrap(ErrServerBadResp, "serial read timeout")
		}
		adu = append(adu, buf[:n]...)
		if len(adu) >= 2 && adu[1]&0x80 > 0 {
			expected = 5
		}
	}
	return adu[:expected], nil
}

func (c *SerialClient) drop() {
	if c.port != nil {
		_ = c.port.Close()
		c.port = nil
	}
}

func (c *SerialClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drop()
	return nil
}
