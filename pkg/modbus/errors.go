package modbus

import "errors"

var ErrShortFrame = errors.New("modbus: frame too short")
var ErrCRCMismatch = errors.New("modbus: crc16 mismatch")
var ErrBadProtocolID = errors.New("modbus: mbap protocol id not zero")
var ErrIncompleteFrame = errors.New("modbus: declared length exceeds available bytes")
var ErrUnknownFunctionCode = errors.New("modbus: unknown function code")
var ErrBadByteCount = errors.New("modbus: byte count does not match payload")
var ErrFrameTooLarge = errors.New("modbus: frame exceeds adu limit")
