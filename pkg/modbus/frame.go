package modbus

import (
	"modpoller/pkg/utils/binutil"
)

/**
modbus rtu adu = slave(1) + pdu(253) + crc16(2) = 256
modbus tcp adu = mbap(7) + pdu(253) = 260
mbap = transactionId(2) + protocolId(2) + length(2) + unitId(1)
*/

const (
	rtuAduMinSize         = 4 // slave(1) + funcCode(1) + crc(2)
	rtuAduMaxSize         = 256
	rtuExceptionSize      = 5 // slave(1) + funcCode(1) + exceptionCode(1) + crc(2)
	tcpHeaderMbapSize     = 7
	tcpAduMinSize         = 8 // mbap(7) + funcCode(1)
	tcpAduMaxSize         = 260
	tcpProtocolIdentifier = 0x0000
)

// FrameKind classifies a parsed ADU.
type FrameKind int8

const (
	FrameRequest FrameKind = iota
	FrameResponse
	FrameException
)

func (fk FrameKind) String() string {
	return []string{
		"Request",
		"Response",
		"Exception",
	}[fk]
}

// Frame is a parsed ADU. Frames are produced only by parsing; requests are
// built directly as byte slices.
type Frame struct {
	Kind          FrameKind
	Slave         uint8
	Function      FunctionCode
	Exception     ExceptionCode // set when Kind == FrameException
	Address       uint16        // request, or write-style response echo
	Quantity      uint16        // request quantity, or write echo value/quantity
	Data          []byte        // read-style response payload (after byte count)
	TransactionID uint16        // tcp only
}

// BuildRTURequest builds a read request ADU:
// slave(1) + func(1) + addr(2 BE) + qty(2 BE) + crc(2 LE).
func BuildRTURequest(slave uint8, function FunctionCode, address, quantity uint16) []byte {
	adu := make([]byte, 6, 8)
	adu[0] = slave
	adu[1] = function.Byte()
	binutil.WriteUint16(adu[2:], address)
	binutil.WriteUint16(adu[4:], quantity)
	checksum := CRC16(adu)
	return append(adu, byte(checksum), byte(checksum>>8))
}

// BuildRTUWriteMultiple builds a write-multiple ADU, inserting the byte count
// and payload between the quantity and the CRC.
func BuildRTUWriteMultiple(slave uint8, function FunctionCode, address, quantity uint16, payload []byte) ([]byte, error) {
	length := 7 + len(payload) + 2
	if length > rtuAduMaxSize {
		return nil, ErrFrameTooLarge
	}
	adu := make([]byte, 7, length)
	adu[0] = slave
	adu[1] = function.Byte()
	binutil.WriteUint16(adu[2:], address)
	binutil.WriteUint16(adu[4:], quantity)
	adu[6] = byte(len(payload))
	adu = append(adu, payload...)
	checksum := CRC16(adu)
	return append(adu, byte(checksum), byte(checksum>>8)), nil
}

// ParseRTUFrame verifies the trailing CRC and decodes the PDU. There is no
// partial recovery; a bad checksum fails the whole frame.
func ParseRTUFrame(adu []byte) (*Frame, error) {
	if len(adu) < rtuAduMinSize {
		return nil, ErrShortFrame
	}
	sum := CRC16(adu[:len(adu)-2])
	expect := binutil.ParseUint16LittleEndian(adu[len(adu)-2:])
	if sum != expect {
		return nil, ErrCRCMismatch
	}
	if adu[1]&0x80 > 0 && len(adu) < rtuExceptionSize {
		return nil, ErrShortFrame
	}
	frame, err := parsePDU(adu[0], adu[1:len(adu)-2])
	if err != nil {
		return nil, err
	}
	return frame, nil
}

// BuildTCPRequest wraps the same PDU in an MBAP header:
// transactionId(2 BE) + protocolId(2 BE) + length(2 BE) + unitId(1).
func BuildTCPRequest(transactionID uint16, unit uint8, function FunctionCode, address, quantity uint16) []byte {
	adu := make([]byte, 12)
	binutil.WriteUint16(adu, transactionID)
	binutil.WriteUint16(adu[2:], tcpProtocolIdentifier)
	binutil.WriteUint16(adu[4:], 6) // unitId + pdu
	adu[6] = unit
	adu[7] = function.Byte()
	binutil.WriteUint16(adu[8:], address)
	binutil.WriteUint16(adu[10:], quantity)
	return adu
}

// ParseTCPFrame verifies the MBAP header and decodes the PDU. A declared
// length exceeding the available bytes is reported as ErrIncompleteFrame;
// reassembly is the transport's job.
func ParseTCPFrame(adu []byte) (*Frame, error) {
	if len(adu) < tcpAduMinSize {
		return nil, ErrShortFrame
	}
	if binutil.ParseUint16(adu[2:]) != tcpProtocolIdentifier {
		return nil, ErrBadProtocolID
	}
	length := binutil.ParseUint16(adu[4:])
	if int(length)+6 > len(adu) {
		return nil, ErrIncompleteFrame
	}
	frame, err := parsePDU(adu[6], adu[tcpHeaderMbapSize:6+int(length)])
	if err != nil {
		return nil, err
	}
	frame.TransactionID = binutil.ParseUint16(adu)
	return frame, nil
}

// parsePDU interprets funcCode(1) + data, independent of the envelope, so
// exception decoding is not duplicated per transport.
func parsePDU(slave uint8, pdu []byte) (*Frame, error) {
	if len(pdu) < 1 {
		return nil, ErrShortFrame
	}
	if pdu[0]&0x80 > 0 {
		if len(pdu) < 2 {
			return nil, ErrShortFrame
		}
		return &Frame{
			Kind:      FrameException,
			Slave:     slave,
			Function:  FunctionCode(pdu[0] &^ 0x80),
			Exception: ExceptionCode(pdu[1]),
		}, nil
	}

	function, ok := FunctionCodeOf(pdu[0])
	if !ok {
		return nil, ErrUnknownFunctionCode
	}
	data := pdu[1:]
	switch {
	case function.IsRead():
		// A read response carries an explicit byte count; a read request is
		// always addr(2)+qty(2). The shapes overlap, so prefer the response
		// reading when the byte count fits exactly.
		if len(data) >= 1 && 1+int(data[0]) == len(data) {
			return &Frame{
				Kind:     FrameResponse,
				Slave:    slave,
				Function: function,
				Data:     data[1 : 1+int(data[0])],
			}, nil
		}
		if len(data) == 4 {
			return &Frame{
				Kind:     FrameRequest,
				Slave:    slave,
				Function: function,
				Address:  binutil.ParseUint16(data),
				Quantity: binutil.ParseUint16(data[2:]),
			}, nil
		}
		return nil, ErrBadByteCount
	case function.IsWrite():
		// Write-style responses echo address and value/quantity.
		if len(data) < 4 {
			return nil, ErrShortFrame
		}
		return &Frame{
			Kind:     FrameResponse,
			Slave:    slave,
			Function: function,
			Address:  binutil.ParseUint16(data),
			Quantity: binutil.ParseUint16(data[2:]),
		}, nil
	default:
		return nil, ErrUnknownFunctionCode
	}
}

// ExpectedRTUResponseLength predicts the full response ADU size for a read
// request, so a serial transport knows how many bytes to wait for.
func ExpectedRTUResponseLength(function FunctionCode, quantity uint16) int {
	length := rtuAduMinSize
	switch function {
	case FuncReadCoils, FuncReadDiscreteInputs:
		count := int(quantity)
		length += 1 + count/8
		if count%8 != 0 {
			length++
		}
	case FuncReadHoldingRegisters, FuncReadInputRegisters:
		length += 1 + int(quantity)*2
	case FuncWriteSingleCoil, FuncWriteSingleRegister, FuncWriteMultipleCoils, FuncWriteMultipleRegisters:
		length += 4
	}
	return length
}
