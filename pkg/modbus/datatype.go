package modbus

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"modpoller/pkg/utils/binutil"
)

// DataType fixes how many raw registers a value spans and the pure rule that
// turns those words into a typed value.
type DataType int8

const (
	U16 DataType = iota
	I16
	U32BE
	U32LE
	I32BE
	I32LE
	F32BE
	F32LE
	U64BE
	I64BE
	F64BE
	Binary
	ASCII
)

var dataTypeToString = map[DataType]string{
	U16:    "uint16",
	I16:    "int16",
	U32BE:  "uint32be",
	U32LE:  "uint32le",
	I32BE:  "int32be",
	I32LE:  "int32le",
	F32BE:  "float32be",
	F32LE:  "float32le",
	U64BE:  "uint64be",
	I64BE:  "int64be",
	F64BE:  "float64be",
	Binary: "binary",
	ASCII:  "ascii",
}

var stringToDataType = map[string]DataType{
	"uint16":    U16,
	"int16":     I16,
	"uint32be":  U32BE,
	"uint32le":  U32LE,
	"int32be":   I32BE,
	"int32le":   I32LE,
	"float32be": F32BE,
	"float32le": F32LE,
	"uint64be":  U64BE,
	"int64be":   I64BE,
	"float64be": F64BE,
	"binary":    Binary,
	"ascii":     ASCII,
}

var dataTypeWord = map[DataType]uint16{
	U16:    1,
	I16:    1,
	U32BE:  2,
	U32LE:  2,
	I32BE:  2,
	I32LE:  2,
	F32BE:  2,
	F32LE:  2,
	U64BE:  4,
	I64BE:  4,
	F64BE:  4,
	Binary: 1,
	ASCII:  4,
}

// DataTypeOf resolves a data type by its wire name.
func DataTypeOf(s string) (DataType, bool) {
	dt, ok := stringToDataType[s]
	return dt, ok
}

// RegisterCount returns how many 16-bit registers one value of dt occupies.
func (dt DataType) RegisterCount() uint16 {
	return dataTypeWord[dt]
}

func (dt DataType) String() string {
	if s, ok := dataTypeToString[dt]; ok {
		return s
	}
	return fmt.Sprintf("dataType(%d)", int8(dt))
}

func (dt DataType) MarshalJSON() ([]byte, error) {
	if s, ok := dataTypeToString[dt]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown data type %d", dt)
}

func (dt *DataType) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}

	v, ok := stringToDataType[s]
	if !ok {
		return fmt.Errorf("unknown data type %s", s)
	}
	*dt = v
	return nil
}

// ValueKind tags the decoded representation of a register value.
type ValueKind int8

const (
	ValueU64 ValueKind = iota
	ValueI64
	ValueF64
	ValueBinary
	ValueString
)

// Value is a decoded, unscaled register value. Scale and offset application
// is the register definition's responsibility, kept orthogonal to decoding.
type Value struct {
	Kind ValueKind
	U64  uint64
	I64  int64
	F64  float64
	Bits uint16
	Str  string
}

func U64Value(v uint64) Value  { return Value{Kind: ValueU64, U64: v} }
func I64Value(v int64) Value   { return Value{Kind: ValueI64, I64: v} }
func F64Value(v float64) Value { return Value{Kind: ValueF64, F64: v} }
func BinaryValue(v uint16) Value {
	return Value{Kind: ValueBinary, Bits: v}
}
func StringValue(v string) Value {
	return Value{Kind: ValueString, Str: v}
}

// Float64 collapses numeric kinds for scaling and comparison. String values
// have no numeric reading and yield zero.
func (v Value) Float64() float64 {
	switch v.Kind {
	case ValueU64:
		return float64(v.U64)
	case ValueI64:
		return float64(v.I64)
	case ValueF64:
		return v.F64
	case ValueBinary:
		return float64(v.Bits)
	default:
		return 0
	}
}

// IsFloat reports whether change detection should use the float threshold
// instead of exact equality.
func (v Value) IsFloat() bool {
	return v.Kind == ValueF64
}

func (v Value) String() string {
	switch v.Kind {
	case ValueU64:
		return fmt.Sprintf("%d", v.U64)
	case ValueI64:
		return fmt.Sprintf("%d", v.I64)
	case ValueF64:
		return fmt.Sprintf("%g", v.F64)
	case ValueBinary:
		return fmt.Sprintf("0b%016b", v.Bits)
	default:
		return v.Str
	}
}

// Equal is exact for integer, binary and string kinds.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValueU64:
		return v.U64 == o.U64
	case ValueI64:
		return v.I64 == o.I64
	case ValueF64:
		return v.F64 == o.F64
	case ValueBinary:
		return v.Bits == o.Bits
	default:
		return v.Str == o.Str
	}
}

// Convert maps raw registers to a typed value. It reports ok=false when fewer
// words than RegisterCount are supplied. Multi-register integers assemble by
// shifting and OR-ing 16-bit words; floats reinterpret the assembled bit
// pattern, never coerce numerically.
func (dt DataType) Convert(words []uint16) (Value, bool) {
	if len(words) < int(dt.RegisterCount()) {
		return Value{}, false
	}
	switch dt {
	case U16:
		return U64Value(uint64(words[0])), true
	case I16:
		return I64Value(int64(int16(words[0]))), true
	case U32BE:
		return U64Value(uint64(binutil.U32FromWords(words[0], words[1]))), true
	case U32LE:
		return U64Value(uint64(binutil.U32FromWords(words[1], words[0]))), true
	case I32BE:
		return I64Value(int64(int32(binutil.U32FromWords(words[0], words[1])))), true
	case I32LE:
		return I64Value(int64(int32(binutil.U32FromWords(words[1], words[0])))), true
	case F32BE:
		return F64Value(float64(math.Float32frombits(binutil.U32FromWords(words[0], words[1])))), true
	case F32LE:
		return F64Value(float64(math.Float32frombits(binutil.U32FromWords(words[1], words[0])))), true
	case U64BE:
		return U64Value(binutil.U64FromWords(words[0], words[1], words[2], words[3])), true
	case I64BE:
		return I64Value(int64(binutil.U64FromWords(words[0], words[1], words[2], words[3]))), true
	case F64BE:
		return F64Value(math.Float64frombits(binutil.U64FromWords(words[0], words[1], words[2], words[3]))), true
	case Binary:
		return BinaryValue(words[0]), true
	case ASCII:
		var sb strings.Builder
		for _, w := range words[:dt.RegisterCount()] {
			if hi := byte(w >> 8); hi != 0 {
				sb.WriteByte(hi)
			}
			if lo := byte(w); lo != 0 {
				sb.WriteByte(lo)
			}
		}
		return StringValue(sb.String()), true
	default:
		return Value{}, false
	}
}
