package modbus

import (
	"encoding/json"
	"fmt"
)

// FunctionCode is the closed set of Modbus operations this engine speaks.
type FunctionCode uint8

const (
	FuncReadCoils              FunctionCode = 0x01
	FuncReadDiscreteInputs     FunctionCode = 0x02
	FuncReadHoldingRegisters   FunctionCode = 0x03
	FuncReadInputRegisters     FunctionCode = 0x04
	FuncWriteSingleCoil        FunctionCode = 0x05
	FuncWriteSingleRegister    FunctionCode = 0x06
	FuncWriteMultipleCoils     FunctionCode = 0x0F
	FuncWriteMultipleRegisters FunctionCode = 0x10
)

var functionCodeToString = map[FunctionCode]string{
	FuncReadCoils:              "readCoils",
	FuncReadDiscreteInputs:     "readDiscreteInputs",
	FuncReadHoldingRegisters:   "readHoldingRegisters",
	FuncReadInputRegisters:     "readInputRegisters",
	FuncWriteSingleCoil:        "writeSingleCoil",
	FuncWriteSingleRegister:    "writeSingleRegister",
	FuncWriteMultipleCoils:     "writeMultipleCoils",
	FuncWriteMultipleRegisters: "writeMultipleRegisters",
}

// FunctionCodeOf maps a wire byte back into the closed set.
func FunctionCodeOf(b uint8) (FunctionCode, bool) {
	fc := FunctionCode(b)
	_, ok := functionCodeToString[fc]
	return fc, ok
}

func (fc FunctionCode) Byte() uint8 {
	return uint8(fc)
}

// IsRead reports whether responses to fc carry a byte-count prefixed payload.
func (fc FunctionCode) IsRead() bool {
	switch fc {
	case FuncReadCoils, FuncReadDiscreteInputs, FuncReadHoldingRegisters, FuncReadInputRegisters:
		return true
	}
	return false
}

// IsWrite reports whether responses to fc echo address and value/quantity.
func (fc FunctionCode) IsWrite() bool {
	switch fc {
	case FuncWriteSingleCoil, FuncWriteSingleRegister, FuncWriteMultipleCoils, FuncWriteMultipleRegisters:
		return true
	}
	return false
}

func (fc FunctionCode) String() string {
	if s, ok := functionCodeToString[fc]; ok {
		return s
	}
	return fmt.Sprintf("functionCode(0x%02x)", uint8(fc))
}

// ExceptionCode is the device-reported failure reason carried in an
// exception response (function byte with bit 0x80 set).
type ExceptionCode uint8

const (
	ExceptionIllegalFunction              ExceptionCode = 0x01
	ExceptionIllegalDataAddress           ExceptionCode = 0x02
	ExceptionIllegalDataValue             ExceptionCode = 0x03
	ExceptionServerDeviceFailure          ExceptionCode = 0x04
	ExceptionAcknowledge                  ExceptionCode = 0x05
	ExceptionServerDeviceBusy             ExceptionCode = 0x06
	ExceptionMemoryParityError            ExceptionCode = 0x08
	ExceptionGatewayPathUnavailable       ExceptionCode = 0x0A
	ExceptionGatewayTargetFailedToRespond ExceptionCode = 0x0B
)

var exceptionCodeToString = map[ExceptionCode]string{
	ExceptionIllegalFunction:              "illegal function",
	ExceptionIllegalDataAddress:           "illegal data address",
	ExceptionIllegalDataValue:             "illegal data value",
	ExceptionServerDeviceFailure:          "server device failure",
	ExceptionAcknowledge:                  "acknowledge",
	ExceptionServerDeviceBusy:             "server device busy",
	ExceptionMemoryParityError:            "memory parity error",
	ExceptionGatewayPathUnavailable:       "gateway path unavailable",
	ExceptionGatewayTargetFailedToRespond: "gateway target device failed to respond",
}

func (ec ExceptionCode) String() string {
	if s, ok := exceptionCodeToString[ec]; ok {
		return s
	}
	return "unknown"
}

// Error lets a decoded device exception travel as a first-class error,
// distinct from transport failure.
func (ec ExceptionCode) Error() string {
	return fmt.Sprintf("modbus: exception '%d' (%s)", uint8(ec), ec.String())
}

// RegisterType selects one of the four Modbus register spaces. It fixes the
// read function code and is never mixed within one merged read.
type RegisterType int8

const (
	Coil RegisterType = iota
	DiscreteInput
	Holding
	Input
)

var registerTypeToString = map[RegisterType]string{
	Coil:          "coil",
	DiscreteInput: "discreteInput",
	Holding:       "holding",
	Input:         "input",
}

var stringToRegisterType = map[string]RegisterType{
	"coil":          Coil,
	"discreteInput": DiscreteInput,
	"holding":       Holding,
	"input":         Input,
}

// RegisterTypeOf resolves a register space by its wire name.
func RegisterTypeOf(s string) (RegisterType, bool) {
	rt, ok := stringToRegisterType[s]
	return rt, ok
}

// ReadFunction returns the function code used to read this register space.
func (rt RegisterType) ReadFunction() FunctionCode {
	switch rt {
	case Coil:
		return FuncReadCoils
	case DiscreteInput:
		return FuncReadDiscreteInputs
	case Holding:
		return FuncReadHoldingRegisters
	default:
		return FuncReadInputRegisters
	}
}

// IsBit reports whether values in this space are single bits on the wire.
func (rt RegisterType) IsBit() bool {
	return rt == Coil || rt == DiscreteInput
}

func (rt RegisterType) String() string {
	if s, ok := registerTypeToString[rt]; ok {
		return s
	}
	return fmt.Sprintf("registerType(%d)", int8(rt))
}

func (rt RegisterType) MarshalJSON() ([]byte, error) {
	if s, ok := registerTypeToString[rt]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown register type %d", rt)
}

func (rt *RegisterType) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}

	v, ok := stringToRegisterType[s]
	if !ok {
		return fmt.Errorf("unknown register type %s", s)
	}
	*rt = v
	return nil
}
